// Package protocol implements the coordinator/worker wire protocol: every
// message is a 4-byte little-endian length prefix followed by that many bytes
// of a serialized record. The record serialization itself is pluggable via
// Codec; the default codec encodes records as JSON.
package protocol
