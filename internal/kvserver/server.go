package kvserver

import (
	"net"

	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/transport"
	"github.com/dreamware/torua/internal/wire"
)

// Server accepts connections and dispatches Get/Put/Append/Delete/
// MultiGet/MultiPut and the move-protocol requests (ShardHandoff/BulkPut/
// AbortBulk) to a KvServer, one goroutine per connection.
type Server struct {
	kv  *KvServer
	ln  net.Listener
	log *zap.Logger
}

// Listen starts accepting connections on addr.
func Listen(addr string, kv *KvServer, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, kverrors.New(kverrors.Internal, "listen on %s: %v", addr, err)
	}
	return &Server{kv: kv, ln: ln, log: log}, nil
}

// Addr returns the listener's bound address.
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
	case wire.GetRequest:
		v, present, err := s.kv.Get(r.Key)
		if err != nil {
			return errorResponse(err)
		}
		return wire.GetResponse{Value: v, Present: present}
	case wire.PutRequest:
		if err := s.kv.Put(r.Key, r.Value); err != nil {
			return errorResponse(err)
		}
		return wire.PutResponse{}
	case wire.AppendRequest:
		if err := s.kv.Append(r.Key, r.Value); err != nil {
			return errorResponse(err)
		}
		return wire.AppendResponse{}
	case wire.DeleteRequest:
		if err := s.kv.Delete(r.Key); err != nil {
			return errorResponse(err)
		}
		return wire.DeleteResponse{}
	case wire.MultiGetRequest:
		values, err := s.kv.MultiGet(r.Keys)
		if err != nil {
			return errorResponse(err)
		}
		out := make([]wire.KeyValue, len(values))
		for i, v := range values {
			out[i] = wire.KeyValue{Value: v.Value, Present: v.Present}
		}
		return wire.MultiGetResponse{Values: out}
	case wire.MultiPutRequest:
		if err := s.kv.MultiPut(r.Keys, r.Values); err != nil {
			return errorResponse(err)
		}
		return wire.MultiPutResponse{}
	case wire.ShardHandoffRequest:
		if err := s.kv.ShardHandoff(r.Piece, r.Dest); err != nil {
			return errorResponse(err)
		}
		return wire.ShardHandoffResponse{}
	case wire.BulkPutRequest:
		if err := s.kv.BulkPut(r.Piece, r.Keys, r.Values); err != nil {
			return errorResponse(err)
		}
		return wire.BulkPutResponse{}
	case wire.AbortBulkRequest:
		if err := s.kv.AbortBulk(r.Piece); err != nil {
			return errorResponse(err)
		}
		return wire.AbortBulkResponse{}
	default:
		return errorResponse(kverrors.New(kverrors.Malformed, "kvserver does not serve %T", req))
	}
}

func errorResponse(err error) wire.ErrorResponse {
	if kvErr, ok := err.(*kverrors.Error); ok {
		return wire.ErrorResponse{Kind: string(kvErr.Kind), Message: kvErr.Msg}
	}
	return wire.ErrorResponse{Kind: string(kverrors.Internal), Message: err.Error()}
}
