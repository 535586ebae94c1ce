// Package transport implements the blocking network helpers underneath
// every RPC in this store: send_message/recv_message with a
// total-deadline timeout, plus the dialing and connection-pooling
// helpers built on top of them for the shardcontroller, storage server,
// and client router.
//
// Every exported call here takes or defaults to a 400ms total deadline,
// set once on the net.Conn before the operation; partial reads/writes
// are handled by the standard library's io.ReadFull/Write loop, and a
// deadline expiry surfaces as a *kverrors.Error of kind Timeout, while a
// peer shutdown mid-frame surfaces as kind Closed.
//
// This reshapes cluster.PostJSON/GetJSON (one shared, reusable
// request/response round-trip function reused by every caller) from
// HTTP requests to raw framed TCP round trips, trading HTTP's framing
// for a length-prefixed binary one.
package transport
