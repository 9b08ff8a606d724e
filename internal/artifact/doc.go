// Package artifact turns a built package artifact into a release descriptor.
//
// An artifact is a pair of files sharing a base name: a JSON sidecar with the
// package name and version, and a gzip-compressed tar archive (.crate). The
// Extractor unpacks the archive into a scratch directory it owns, captures the
// version's changelog section and the readme, asks the registry oracle whether
// the version is already published, and removes the scratch directory again
// on every exit path.
package artifact
