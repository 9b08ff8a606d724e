// Package workspace turns a build tool's metadata snapshot into package
// manifests.
//
// A snapshot is captured once per run through a MetadataSource. Load filters
// its records by scope and by the expected service-directory shape, derives
// each package's service directory and class, and returns manifests that are
// read-only from then on.
package workspace
