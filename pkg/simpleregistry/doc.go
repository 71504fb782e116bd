// Package simpleregistry provides the protocol-to-storage translation layer of
// a multi-layout package registry.
//
// Package manager protocols (PyPI, NuGet) are served by adapters under
// subpackages. Each adapter validates the protocol request, converts the
// artifact identity into a canonical ArtifactCoordinate and hands the result
// to a StorageFacade. Storage results come back as a Response that the api
// package serialises onto the wire.
//
// # Canonical Paths
//
// Every artifact, regardless of the protocol that produced it, is addressed
// within a repository by the path "name/version/filename". The facade maps
// that path to a blob key of the form "repositoryId/name/version/filename" on
// the blob store bound to the storage id.
package simpleregistry
