// Package shardcontroller implements the single authoritative process that
// owns the current shard-to-server Configuration: it serves Join, Leave,
// Move, and Query, and drives the source-to-destination hand-off
// protocol that backs Move.
//
// This plays the same role internal/coordinator does (control plane
// holding the authoritative placement map, exposed over the network,
// serialized by a single mutex), reshaped from ShardRegistry's fixed
// hash-bucket assignments to config.Configuration's ordered,
// dynamically-split shard ranges, and from HTTP+JSON handlers to the
// internal/wire framed protocol carried over internal/transport.
package shardcontroller
