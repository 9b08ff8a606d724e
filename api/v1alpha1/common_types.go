package v1alpha1

import (
	"encoding/json"
	"fmt"
)

// PackageClass is the plane a workspace package belongs to.
type PackageClass string

const (
	PackageClassManagement         PackageClass = "management"
	PackageClassGeneratedDataPlane PackageClass = "generated-data-plane"
	PackageClassDataPlane          PackageClass = "data-plane"
)

// Deployability is the tri-state outcome of comparing a candidate version
// against the registry. The zero value is DeployabilityUnknown so that an
// unset field never reads as a decision.
type Deployability int8

const (
	DeployabilityUnknown Deployability = iota
	// DeployabilityDeployable means the version is confirmed absent from the registry.
	DeployabilityDeployable
	// DeployabilityPublished means the registry already lists the version.
	DeployabilityPublished
)

func (d Deployability) String() string {
	switch d {
	case DeployabilityDeployable:
		return "true"
	case DeployabilityPublished:
		return "false"
	default:
		return "unknown"
	}
}

// Known reports whether the registry gave a definite answer.
func (d Deployability) Known() bool {
	return d == DeployabilityDeployable || d == DeployabilityPublished
}

// MarshalJSON encodes the state as true, false or null.
func (d Deployability) MarshalJSON() ([]byte, error) {
	switch d {
	case DeployabilityDeployable:
		return []byte("true"), nil
	case DeployabilityPublished:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (d *Deployability) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("deployable: %w", err)
	}
	switch {
	case v == nil:
		*d = DeployabilityUnknown
	case *v:
		*d = DeployabilityDeployable
	default:
		*d = DeployabilityPublished
	}
	return nil
}
