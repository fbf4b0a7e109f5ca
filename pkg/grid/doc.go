// Package grid is a small client for a remote data grid that exposes named
// key/value maps. A Session represents an established connection to the grid
// and hands out typed NamedMap handles; every NamedMap call is a single
// round trip to the grid, which remains the only owner of the data.
//
// The transport is pluggable through Backend. Dial connects to a grid proxy
// over HTTP (see the wire protocol in internal/gridapi); the mock and
// boltstore subpackages provide in-memory and bbolt-backed backends that can
// be passed to Connect directly.
package grid
