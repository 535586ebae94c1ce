// Package wire implements the length-prefixed message envelope and the
// typed request/response codec carried over every connection in this
// store.
//
// Every message on the wire is framed as:
//
//	tag:u8  payload_len:u64_le  payload:byte[payload_len]
//
// tag identifies which request or response variant the payload encodes.
// Field encodings within a payload are a straightforward concatenation:
// strings as a u64_le length prefix followed by raw bytes, lists as a
// u64_le count followed by that many elements, shards as two raw bytes
// (low, high), and configurations as a u64_le count followed by that
// many (server string, shard list) pairs and then the u64_le epoch.
//
// This package is grounded directly on the original C++ source's wire
// design (original_source/kvstore/net/network_messages.hpp's
// MessageType enum and Message{type, sz, buf} struct) reimplemented with
// Go's encoding/binary instead of std::variant, and carries forward the
// shape of internal/cluster.PostJSON/GetJSON (typed request/response
// helpers shared between client and server) onto this project's binary,
// length-prefixed framing in place of JSON-over-HTTP.
//
// Decoding never panics: malformed input (a short read, an unknown tag,
// a length field whose value doesn't fit remaining bytes) always returns
// a *kverrors.Error of kind Malformed.
package wire
