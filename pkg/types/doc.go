// Package types defines the domain and wire types shared by the coordinator
// and worker processes: integration tasks, partial results, handshake records
// and worker registry entries.
package types
