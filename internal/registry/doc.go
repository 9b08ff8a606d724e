// Package registry answers which versions of a package the remote registry
// has published.
//
// Every query produces a Result in exactly one of three states: Confirmed with
// the ordered version list, NotFound when the registry has never heard of the
// package, or Unknown when the question could not be answered (network
// failure, timeout, unexpected status, malformed body). Unknown is never
// turned into NotFound or into an empty Confirmed list.
package registry
