package shardcontroller

import (
	"net"

	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/transport"
	"github.com/dreamware/torua/internal/wire"
)

// Server accepts connections and dispatches Join/Leave/Move/Query
// requests to a Controller, one goroutine per connection: the familiar
// one-worker-per-request model generalized from HTTP handlers to a raw
// framed-TCP accept loop.
type Server struct {
	ctrl *Controller
	ln   net.Listener
	log  *zap.Logger
}

// Listen starts accepting connections on addr. Callers run Serve in a
// goroutine and Close it on shutdown.
func Listen(addr string, ctrl *Controller, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, kverrors.New(kverrors.Internal, "listen on %s: %v", addr, err)
	}
	return &Server{ctrl: ctrl, ln: ln, log: log}, nil
}

// Addr returns the listener's bound address, useful when addr was ":0".
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error { return s.ln.Close() }

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		req, err := transport.RecvRequest(conn, 0)
		if err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := transport.SendResponse(conn, resp, 0); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req wire.Request) wire.Response {
	switch r := req.(type) {
	case wire.JoinRequest:
		if err := s.ctrl.Join(r.Server); err != nil {
			return errorResponse(err)
		}
		return wire.JoinResponse{}
	case wire.LeaveRequest:
		if err := s.ctrl.Leave(r.Server); err != nil {
			return errorResponse(err)
		}
		return wire.LeaveResponse{}
	case wire.MoveRequest:
		if err := s.ctrl.Move(r.Dest, r.Shards); err != nil {
			return errorResponse(err)
		}
		return wire.MoveResponse{}
	case wire.QueryRequest:
		return wire.QueryResponse{Configuration: s.ctrl.Query()}
	default:
		return errorResponse(kverrors.New(kverrors.Malformed, "shardcontroller does not serve %T", req))
	}
}

func errorResponse(err error) wire.ErrorResponse {
	if kvErr, ok := err.(*kverrors.Error); ok {
		return wire.ErrorResponse{Kind: string(kvErr.Kind), Message: kvErr.Msg}
	}
	return wire.ErrorResponse{Kind: string(kverrors.Internal), Message: err.Error()}
}
