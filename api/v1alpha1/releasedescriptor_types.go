package v1alpha1

// ReleaseDescriptor is the metadata bundle the publish stage needs to decide
// and describe one candidate release.
type ReleaseDescriptor struct {
	PackageID  string        `json:"packageId"`
	Version    string        `json:"version"`
	Tag        string        `json:"tag"`
	Class      PackageClass  `json:"class"`
	Deployable Deployability `json:"deployable"`
	// LatestPublished is the highest version the registry confirmed, empty
	// when the package was never published or the registry could not be read.
	LatestPublished string `json:"latestPublished,omitempty"`
	Changelog       string `json:"changelog"`
	Readme          string `json:"readme"`
}

// ReleaseTag returns the git tag used for a package release.
func ReleaseTag(packageID, version string) string {
	return packageID + "_" + version
}
