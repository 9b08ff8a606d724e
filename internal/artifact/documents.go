package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/anvil-platform/releaseplan/internal/semver"
)

const (
	changelogFile = "CHANGELOG.md"
	readmeFile    = "README.md"
)

// readDocument returns the content of the file in dir whose name matches
// name case-insensitively. A missing file is not an error and yields "".
func readDocument(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(e.Name(), name) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", nil
}

// ChangelogSection returns the body of the "## <version>" section of a
// markdown changelog, without its heading and surrounding blank lines.
// Headings may carry a date or status after the version and may wrap the
// version in brackets or prefix it with "v". The section ends at the next
// second-level heading. "" means no section matches.
func ChangelogSection(changelog, version string) string {
	lines := strings.Split(strings.ReplaceAll(changelog, "\r\n", "\n"), "\n")

	start, end := -1, len(lines)
	for i, line := range lines {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		if start >= 0 {
			end = i
			break
		}
		if hv := headingVersion(line); hv != "" && semver.Equal(hv, version) {
			start = i + 1
		}
	}
	if start < 0 {
		return ""
	}

	section := lines[start:end]
	for len(section) > 0 && strings.TrimSpace(section[0]) == "" {
		section = section[1:]
	}
	for len(section) > 0 && strings.TrimSpace(section[len(section)-1]) == "" {
		section = section[:len(section)-1]
	}
	return strings.Join(section, "\n")
}

func headingVersion(line string) string {
	fields := strings.Fields(strings.TrimPrefix(line, "## "))
	if len(fields) == 0 {
		return ""
	}
	v := strings.Trim(fields[0], "[]")
	return strings.TrimPrefix(v, "v")
}
