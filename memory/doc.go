// Package memory contains an in-process document index and a retrieval
// runner serving retrieval capabilities from it. The index is meant for
// tests, demos and dry runs; production deployments register a runner
// backed by their own search service.
package memory
