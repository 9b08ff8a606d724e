package v1alpha1

// PackageManifest declares a workspace package's identity and its dependencies.
//
// Values are built once from a metadata snapshot and must not be mutated
// afterwards; graph nodes share them.
type PackageManifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Directory is the manifest directory relative to the workspace root,
	// slash separated.
	Directory        string       `json:"directory"`
	ServiceDirectory string       `json:"serviceDirectory"`
	Class            PackageClass `json:"class"`
	// Dependencies holds declared dependency names in declaration order,
	// without duplicates.
	Dependencies []string `json:"dependencies"`
}
