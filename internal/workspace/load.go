package workspace

import (
	"context"
	"path/filepath"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
)

// Load captures a snapshot from src and converts it into manifests.
//
// Records outside scope are skipped. Records whose directory does not match
// the service-directory shape are skipped as well and only logged at V(1).
// Duplicate names keep the first record. Dependency lists are de-duplicated
// and never contain the package itself. Every dependency kind (normal, dev,
// build) becomes an edge.
//
// If the snapshot cannot be captured the returned error is a
// *ConfigurationError.
func Load(ctx context.Context, src MetadataSource, scope string) ([]v1alpha1.PackageManifest, error) {
	logger := log.FromContext(ctx).WithValues("scope", scope)

	snap, err := src.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	root := snap.WorkspaceRoot
	scope = relativeScope(root, scope)

	manifests := make([]v1alpha1.PackageManifest, 0, len(snap.Packages))
	seen := make(map[string]struct{}, len(snap.Packages))
	for _, rec := range snap.Packages {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			continue
		}

		relDir, ok := manifestDir(root, rec.ManifestPath)
		if !ok {
			logger.V(1).Info("manifest outside workspace root; skipping", "package", name, "manifestPath", rec.ManifestPath)
			continue
		}
		if !InScope(relDir, scope) {
			continue
		}
		serviceDir, ok := ServiceDirectory(relDir)
		if !ok {
			logger.V(1).Info("manifest directory does not match service layout; skipping", "package", name, "directory", relDir)
			continue
		}
		if _, dup := seen[name]; dup {
			logger.Info("duplicate package name in metadata; keeping first", "package", name, "directory", relDir)
			continue
		}
		seen[name] = struct{}{}

		manifests = append(manifests, v1alpha1.PackageManifest{
			Name:             name,
			Version:          strings.TrimSpace(rec.Version),
			Directory:        relDir,
			ServiceDirectory: serviceDir,
			Class:            Classify(name),
			Dependencies:     dependencyNames(name, rec.Dependencies),
		})
	}

	logger.V(1).Info("loaded workspace manifests", "root", root, "packages", len(manifests), "records", len(snap.Packages))
	return manifests, nil
}

func manifestDir(root, manifestPath string) (string, bool) {
	if manifestPath == "" {
		return "", false
	}
	dir := filepath.Dir(manifestPath)
	if root != "" && filepath.IsAbs(dir) {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return "", false
		}
		dir = rel
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	if dir == ".." || strings.HasPrefix(dir, "../") || filepath.IsAbs(dir) {
		return "", false
	}
	return dir, true
}

func relativeScope(root, scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" || root == "" || !filepath.IsAbs(scope) {
		return filepath.ToSlash(scope)
	}
	rel, err := filepath.Rel(root, scope)
	if err != nil {
		return filepath.ToSlash(scope)
	}
	return filepath.ToSlash(rel)
}

func dependencyNames(self string, deps []DependencyRecord) []string {
	names := make([]string, 0, len(deps))
	seen := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		name := strings.TrimSpace(d.Name)
		if name == "" || name == self {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
