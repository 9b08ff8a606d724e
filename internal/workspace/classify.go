package workspace

import (
	"strings"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
)

const (
	managementPrefix         = "azure_mgmt_"
	generatedDataPlanePrefix = "azure_svc_"
)

// Classify maps a package name to its plane. It depends on the name only.
func Classify(name string) v1alpha1.PackageClass {
	switch {
	case strings.HasPrefix(name, managementPrefix):
		return v1alpha1.PackageClassManagement
	case strings.HasPrefix(name, generatedDataPlanePrefix):
		return v1alpha1.PackageClassGeneratedDataPlane
	default:
		return v1alpha1.PackageClassDataPlane
	}
}
