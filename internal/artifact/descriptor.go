package artifact

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
	"github.com/anvil-platform/releaseplan/internal/registry"
	"github.com/anvil-platform/releaseplan/internal/workspace"
)

// Pair locates the two files of one artifact.
type Pair struct {
	Metadata string
	Archive  string
}

// BaseName is the shared file name of the pair without extension.
func (p Pair) BaseName() string {
	base := filepath.Base(p.Metadata)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extractor builds release descriptors from artifacts.
type Extractor struct {
	// ScratchDir is the parent of the per-artifact extraction directories.
	ScratchDir string
	Oracle     registry.VersionOracle
}

// BuildReleaseDescriptor reads pair and assembles its descriptor.
//
// Artifact failures are returned as *ExtractionError. Registry failures are
// not errors: they surface as DeployabilityUnknown on the descriptor.
// Running it repeatedly against the same artifact yields the same
// descriptor and tolerates leftovers from interrupted runs. It returns either
// a descriptor or an error, never both; a scratch cleanup failure discards
// the descriptor.
func (x *Extractor) BuildReleaseDescriptor(ctx context.Context, pair Pair) (desc *v1alpha1.ReleaseDescriptor, err error) {
	if x.Oracle == nil {
		return nil, errors.New("artifact extractor has no registry oracle")
	}
	base := pair.BaseName()
	logger := log.FromContext(ctx).WithValues("artifact", base)

	sidecar, err := ReadSidecar(pair.Metadata)
	if err != nil {
		return nil, &ExtractionError{Artifact: base, Op: "read metadata", Err: err}
	}
	logger = logger.WithValues("package", sidecar.Name, "version", sidecar.Version)

	dir, release, err := acquireScratch(x.ScratchDir, base)
	if err != nil {
		return nil, &ExtractionError{Artifact: base, Op: "prepare scratch", Err: err}
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logger.Error(rerr, "failed to remove scratch dir", "dir", dir)
			if err == nil {
				desc = nil
				err = &ExtractionError{Artifact: base, Op: "cleanup scratch", Err: rerr}
			}
		}
	}()

	if err := extractArchive(pair.Archive, dir); err != nil {
		return nil, &ExtractionError{Artifact: base, Op: "extract archive", Err: err}
	}
	root, err := contentRoot(dir)
	if err != nil {
		return nil, &ExtractionError{Artifact: base, Op: "inspect archive", Err: err}
	}

	changelog, err := readDocument(root, changelogFile)
	if err != nil {
		return nil, &ExtractionError{Artifact: base, Op: "read changelog", Err: err}
	}
	readme, err := readDocument(root, readmeFile)
	if err != nil {
		return nil, &ExtractionError{Artifact: base, Op: "read readme", Err: err}
	}

	section := ChangelogSection(changelog, sidecar.Version)
	if changelog != "" && section == "" {
		logger.Info("changelog has no section for version")
	}

	published := x.Oracle.ListPublishedVersions(ctx, sidecar.Name)
	deployable := published.Deployability(sidecar.Version)

	logger.V(1).Info("built release descriptor", "deployable", deployable.String(), "registry", published.State.String())

	return &v1alpha1.ReleaseDescriptor{
		PackageID:       sidecar.Name,
		Version:         sidecar.Version,
		Tag:             v1alpha1.ReleaseTag(sidecar.Name, sidecar.Version),
		Class:           workspace.Classify(sidecar.Name),
		Deployable:      deployable,
		LatestPublished: published.Latest(),
		Changelog:       section,
		Readme:          readme,
	}, nil
}
