package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Snapshot is the subset of `cargo metadata --format-version 1` output the
// release tooling reads.
type Snapshot struct {
	WorkspaceRoot string          `json:"workspace_root"`
	Packages      []PackageRecord `json:"packages"`
}

// PackageRecord is one raw package entry of a snapshot.
type PackageRecord struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	ManifestPath string             `json:"manifest_path"`
	Dependencies []DependencyRecord `json:"dependencies"`
}

// DependencyRecord is a declared dependency. Kind is empty for normal
// dependencies and "dev" or "build" otherwise; Load does not filter on it.
type DependencyRecord struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// MetadataSource captures a workspace metadata snapshot.
type MetadataSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// CargoMetadataSource shells out to cargo in Root. The working directory is
// set on the command only; the process directory is never changed.
type CargoMetadataSource struct {
	Root  string
	Cargo string
}

func (s *CargoMetadataSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	bin := strings.TrimSpace(s.Cargo)
	if bin == "" {
		bin = "cargo"
	}

	cmd := exec.CommandContext(ctx, bin, "metadata", "--format-version", "1", "--no-deps")
	cmd.Dir = s.Root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, &ConfigurationError{Root: s.Root, Err: fmt.Errorf("%s metadata: %w: %s", bin, err, msg)}
		}
		return nil, &ConfigurationError{Root: s.Root, Err: fmt.Errorf("%s metadata: %w", bin, err)}
	}

	snap, err := decodeSnapshot(stdout.Bytes())
	if err != nil {
		return nil, &ConfigurationError{Root: s.Root, Err: err}
	}
	if snap.WorkspaceRoot == "" {
		snap.WorkspaceRoot = s.Root
	}
	return snap, nil
}

// FileMetadataSource reads a snapshot saved from an earlier cargo run.
type FileMetadataSource struct {
	Path string
	// Root, when set, rebases a snapshot captured on another machine: manifest
	// paths under the snapshot's workspace_root are moved under Root, which
	// then becomes the workspace root.
	Root string
}

func (s *FileMetadataSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	_ = ctx

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &ConfigurationError{Root: s.Path, Err: err}
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, &ConfigurationError{Root: s.Path, Err: err}
	}
	if s.Root != "" {
		snap.rebase(s.Root)
	}
	return snap, nil
}

// rebase moves absolute manifest paths from the recorded workspace root to
// root. Paths outside the recorded root are left as they are.
func (snap *Snapshot) rebase(root string) {
	from := snap.WorkspaceRoot
	snap.WorkspaceRoot = root
	if from == "" || filepath.Clean(from) == filepath.Clean(root) {
		return
	}
	for i, rec := range snap.Packages {
		if !filepath.IsAbs(rec.ManifestPath) {
			continue
		}
		rel, err := filepath.Rel(from, rec.ManifestPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		snap.Packages[i].ManifestPath = filepath.Join(root, rel)
	}
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &snap, nil
}
