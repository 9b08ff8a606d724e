package workspace

import (
	"path"
	"strings"
)

// ServiceDirectory derives the service directory from a manifest directory
// relative to the workspace root. Two shapes are recognised:
//
//	sdk/<service>/<package>         -> sdk/<service>
//	services/<plane>/<service>      -> services/<plane>/<service>
//
// Any other shape reports false and the manifest is left out of the graph.
func ServiceDirectory(relDir string) (string, bool) {
	relDir = path.Clean(strings.TrimSpace(relDir))
	parts := strings.Split(relDir, "/")
	if len(parts) != 3 {
		return "", false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", false
		}
	}
	switch parts[0] {
	case "sdk":
		return path.Join(parts[0], parts[1]), true
	case "services":
		return relDir, true
	default:
		return "", false
	}
}

// InScope reports whether relDir lies under scope. An empty scope or "."
// selects the whole workspace.
func InScope(relDir, scope string) bool {
	scope = strings.Trim(path.Clean("/"+strings.TrimSpace(scope)), "/")
	if scope == "" {
		return true
	}
	relDir = path.Clean(relDir)
	return relDir == scope || strings.HasPrefix(relDir, scope+"/")
}
