package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	SidecarExt = ".json"
	ArchiveExt = ".crate"
)

// Source locates the artifact pair for a package.
type Source interface {
	Fetch(ctx context.Context, name string) (Pair, error)
}

// LocalSource reads artifacts from a directory laid out as
// <Dir>/<name>.json and <Dir>/<name>.crate.
type LocalSource struct {
	Dir string
}

var _ Source = (*LocalSource)(nil)

func (s *LocalSource) Fetch(ctx context.Context, name string) (Pair, error) {
	_ = ctx

	pair := Pair{
		Metadata: filepath.Join(s.Dir, name+SidecarExt),
		Archive:  filepath.Join(s.Dir, name+ArchiveExt),
	}
	for _, p := range []string{pair.Metadata, pair.Archive} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return Pair{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, p)
			}
			return Pair{}, err
		}
	}
	return pair, nil
}
