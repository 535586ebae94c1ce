package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/wire"
)

// DefaultTimeout is the total-deadline timeout used when a caller doesn't
// supply one.
const DefaultTimeout = 400 * time.Millisecond

// maxPayloadSize bounds how large a single frame's payload is allowed to
// be, so that a corrupted or adversarial length prefix can't make
// RecvMessage allocate unbounded memory. 64MiB comfortably covers any
// batch this store's operations produce.
const maxPayloadSize = 64 << 20

// classify maps a raw net/io error into the Timeout/Closed error kinds,
// or passes through anything else as Internal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return kverrors.New(kverrors.Timeout, "%v", err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return kverrors.New(kverrors.Closed, "%v", err)
	}
	return kverrors.New(kverrors.Internal, "%v", err)
}

// SendMessage writes a single framed message to conn, failing with
// Timeout if the deadline expires mid-write and Closed if the peer has
// gone away. A timeout of 0 uses DefaultTimeout.
func SendMessage(conn net.Conn, msg wire.Message, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return kverrors.New(kverrors.Internal, "set write deadline: %v", err)
	}
	frame := wire.EncodeFrame(msg.Tag, msg.Payload)
	if _, err := conn.Write(frame); err != nil {
		return classify(err)
	}
	return nil
}

// RecvMessage reads a single framed message from conn, failing with
// Timeout if the deadline expires mid-read, Closed if the peer shuts down
// mid-frame, and Malformed if the header names an unknown tag or an
// implausibly large payload. A timeout of 0 uses DefaultTimeout.
func RecvMessage(conn net.Conn, timeout time.Duration) (wire.Message, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return wire.Message{}, kverrors.New(kverrors.Internal, "set read deadline: %v", err)
	}

	var header [wire.HeaderSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return wire.Message{}, classify(err)
	}
	tag, length, err := wire.DecodeHeader(header[:])
	if err != nil {
		return wire.Message{}, err
	}
	if length > maxPayloadSize {
		return wire.Message{}, kverrors.New(kverrors.Malformed, "payload length %d exceeds maximum %d", length, maxPayloadSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return wire.Message{}, classify(err)
	}
	return wire.Message{Tag: tag, Payload: payload}, nil
}

// SendRequest encodes and sends a typed request.
func SendRequest(conn net.Conn, req wire.Request, timeout time.Duration) error {
	return SendMessage(conn, wire.EncodeRequest(req), timeout)
}

// RecvRequest receives and decodes a typed request, used by server accept
// loops.
func RecvRequest(conn net.Conn, timeout time.Duration) (wire.Request, error) {
	msg, err := RecvMessage(conn, timeout)
	if err != nil {
		return nil, err
	}
	return wire.DecodeRequest(msg)
}

// SendResponse encodes and sends a typed response, used by server request
// handlers.
func SendResponse(conn net.Conn, resp wire.Response, timeout time.Duration) error {
	return SendMessage(conn, wire.EncodeResponse(resp), timeout)
}

// RecvResponse receives and decodes a typed response.
func RecvResponse(conn net.Conn, timeout time.Duration) (wire.Response, error) {
	msg, err := RecvMessage(conn, timeout)
	if err != nil {
		return nil, err
	}
	return wire.DecodeResponse(msg)
}

// Call performs a single request/response round trip over an
// already-connected conn: send req, then wait for and decode the
// response. If the response is an ErrorResponse, Call returns it
// translated into a *kverrors.Error instead of a wire.Response, so
// callers can use the usual Go error-handling idiom.
func Call(conn net.Conn, req wire.Request, timeout time.Duration) (wire.Response, error) {
	if err := SendRequest(conn, req, timeout); err != nil {
		return nil, err
	}
	resp, err := RecvResponse(conn, timeout)
	if err != nil {
		return nil, err
	}
	if errResp, ok := resp.(wire.ErrorResponse); ok {
		return nil, &kverrors.Error{Kind: kverrors.Kind(errResp.Kind), Msg: errResp.Message}
	}
	return resp, nil
}

// Dial opens a new TCP connection to addr with the given timeout (0 uses
// DefaultTimeout).
func Dial(addr string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, kverrors.New(kverrors.Closed, "dial %s: %v", addr, err)
	}
	return conn, nil
}

// Pool is a connection pool keyed by server address: one long-lived
// connection per address, opened lazily and reused across calls. Each
// entry carries its own mutex, so concurrent calls to different servers
// proceed in parallel while calls to the same server serialize on its
// single connection; a call that fails at the transport layer discards
// the connection so the next caller redials rather than reusing a conn
// left in an indeterminate state. A call that completes but carries back
// an application-level error from the peer leaves the connection pooled.
type Pool struct {
	dialTimeout time.Duration
	ioTimeout   time.Duration

	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewPool builds an empty pool. A zero dialTimeout or ioTimeout uses
// DefaultTimeout.
func NewPool(dialTimeout, ioTimeout time.Duration) *Pool {
	if dialTimeout <= 0 {
		dialTimeout = DefaultTimeout
	}
	if ioTimeout <= 0 {
		ioTimeout = DefaultTimeout
	}
	return &Pool{
		dialTimeout: dialTimeout,
		ioTimeout:   ioTimeout,
		entries:     make(map[string]*poolEntry),
	}
}

func (p *Pool) entry(addr string) *poolEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[addr]
	if !ok {
		e = &poolEntry{}
		p.entries[addr] = e
	}
	return e
}

// Call performs a request/response round trip against addr, dialing a
// connection on first use and reusing it on subsequent calls. A
// transport-level failure (send/receive error, a malformed frame) leaves
// the connection in an indeterminate state, so it's discarded before the
// error is returned and the next Call to addr redials from scratch. A
// well-formed ErrorResponse from the peer (WrongShard, NotJoined, BadArgs,
// MoveFailed, ...) means the round trip itself succeeded, so the
// connection stays pooled for reuse even though Call still returns it
// translated into a *kverrors.Error.
func (p *Pool) Call(addr string, req wire.Request) (wire.Response, error) {
	e := p.entry(addr)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		conn, err := Dial(addr, p.dialTimeout)
		if err != nil {
			return nil, err
		}
		e.conn = conn
	}

	if err := SendRequest(e.conn, req, p.ioTimeout); err != nil {
		e.conn.Close()
		e.conn = nil
		return nil, err
	}
	resp, err := RecvResponse(e.conn, p.ioTimeout)
	if err != nil {
		e.conn.Close()
		e.conn = nil
		return nil, err
	}
	if errResp, ok := resp.(wire.ErrorResponse); ok {
		return nil, &kverrors.Error{Kind: kverrors.Kind(errResp.Kind), Msg: errResp.Message}
	}
	return resp, nil
}

// Discard closes and forgets any pooled connection to addr, forcing the
// next Call to redial. Callers use this after observing a failure on a
// connection obtained outside of Call (e.g. a partial handoff).
func (p *Pool) Discard(addr string) {
	e := p.entry(addr)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
}

// Close closes every pooled connection. The pool may still be used
// afterward; entries simply redial on next use.
func (p *Pool) Close() {
	for _, addr := range p.Addrs() {
		p.Discard(addr)
	}
}

// Addrs returns the addresses the pool currently has an entry for, sorted
// for deterministic logging and tests.
func (p *Pool) Addrs() []string {
	p.mu.Lock()
	addrs := make([]string, 0, len(p.entries))
	for addr := range p.entries {
		addrs = append(addrs, addr)
	}
	p.mu.Unlock()
	slices.Sort(addrs)
	return addrs
}
