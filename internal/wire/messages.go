package wire

import (
	"github.com/dreamware/torua/internal/config"
	"github.com/dreamware/torua/internal/shardkey"
)

// Request is implemented by every typed request payload.
type Request interface {
	requestTag() Tag
}

// Response is implemented by every typed response payload, including
// ErrorResponse.
type Response interface {
	responseTag() Tag
}

// --- KvServer requests/responses -------------------------------------------

type GetRequest struct{ Key string }

func (GetRequest) requestTag() Tag { return TagGetRequest }

type GetResponse struct {
	Value   string
	Present bool
}

func (GetResponse) responseTag() Tag { return TagGetResponse }

type PutRequest struct{ Key, Value string }

func (PutRequest) requestTag() Tag { return TagPutRequest }

type PutResponse struct{}

func (PutResponse) responseTag() Tag { return TagPutResponse }

type AppendRequest struct{ Key, Value string }

func (AppendRequest) requestTag() Tag { return TagAppendRequest }

type AppendResponse struct{}

func (AppendResponse) responseTag() Tag { return TagAppendResponse }

type DeleteRequest struct{ Key string }

func (DeleteRequest) requestTag() Tag { return TagDeleteRequest }

type DeleteResponse struct{}

func (DeleteResponse) responseTag() Tag { return TagDeleteResponse }

type MultiGetRequest struct{ Keys []string }

func (MultiGetRequest) requestTag() Tag { return TagMultiGetRequest }

// KeyValue pairs a value with a presence flag, the per-element result of
// a MultiGet: a missing key produces an explicit absent marker rather
// than being dropped from the result.
type KeyValue struct {
	Value   string
	Present bool
}

type MultiGetResponse struct{ Values []KeyValue }

func (MultiGetResponse) responseTag() Tag { return TagMultiGetResponse }

type MultiPutRequest struct{ Keys, Values []string }

func (MultiPutRequest) requestTag() Tag { return TagMultiPutRequest }

type MultiPutResponse struct{}

func (MultiPutResponse) responseTag() Tag { return TagMultiPutResponse }

// --- Shardcontroller requests/responses ------------------------------------

type JoinRequest struct{ Server string }

func (JoinRequest) requestTag() Tag { return TagJoinRequest }

type JoinResponse struct{}

func (JoinResponse) responseTag() Tag { return TagJoinResponse }

type LeaveRequest struct{ Server string }

func (LeaveRequest) requestTag() Tag { return TagLeaveRequest }

type LeaveResponse struct{}

func (LeaveResponse) responseTag() Tag { return TagLeaveResponse }

type MoveRequest struct {
	Dest   string
	Shards []shardkey.Shard
}

func (MoveRequest) requestTag() Tag { return TagMoveRequest }

type MoveResponse struct{}

func (MoveResponse) responseTag() Tag { return TagMoveResponse }

type QueryRequest struct{}

func (QueryRequest) requestTag() Tag { return TagQueryRequest }

type QueryResponse struct {
	Configuration *config.Configuration
}

func (QueryResponse) responseTag() Tag { return TagQueryResponse }

// --- Move-protocol (controller <-> server) requests/responses -------------

type ShardHandoffRequest struct {
	Piece shardkey.Shard
	Dest  string
}

func (ShardHandoffRequest) requestTag() Tag { return TagShardHandoffRequest }

type ShardHandoffResponse struct{}

func (ShardHandoffResponse) responseTag() Tag { return TagShardHandoffResponse }

type BulkPutRequest struct {
	Piece  shardkey.Shard
	Keys   []string
	Values []string
}

func (BulkPutRequest) requestTag() Tag { return TagBulkPutRequest }

type BulkPutResponse struct{}

func (BulkPutResponse) responseTag() Tag { return TagBulkPutResponse }

type AbortBulkRequest struct{ Piece shardkey.Shard }

func (AbortBulkRequest) requestTag() Tag { return TagAbortBulkRequest }

type AbortBulkResponse struct{}

func (AbortBulkResponse) responseTag() Tag { return TagAbortBulkResponse }

// --- Generic error response --------------------------------------------

// ErrorResponse may be returned in place of any other response. Kind
// carries the typed error kind; Message is a human-readable detail
// string.
type ErrorResponse struct {
	Kind    string
	Message string
}

func (ErrorResponse) responseTag() Tag { return TagErrorResponse }

// --- encode/decode dispatch -------------------------------------------------

// EncodeRequest serializes a typed request into a frame.
func EncodeRequest(req Request) Message {
	e := &encoder{}
	switch r := req.(type) {
	case GetRequest:
		e.writeString(r.Key)
	case PutRequest:
		e.writeString(r.Key)
		e.writeString(r.Value)
	case AppendRequest:
		e.writeString(r.Key)
		e.writeString(r.Value)
	case DeleteRequest:
		e.writeString(r.Key)
	case MultiGetRequest:
		e.writeStrings(r.Keys)
	case MultiPutRequest:
		e.writeStrings(r.Keys)
		e.writeStrings(r.Values)
	case JoinRequest:
		e.writeString(r.Server)
	case LeaveRequest:
		e.writeString(r.Server)
	case MoveRequest:
		e.writeString(r.Dest)
		e.writeShards(r.Shards)
	case QueryRequest:
		// no fields
	case ShardHandoffRequest:
		e.writeShard(r.Piece)
		e.writeString(r.Dest)
	case BulkPutRequest:
		e.writeShard(r.Piece)
		e.writeStrings(r.Keys)
		e.writeStrings(r.Values)
	case AbortBulkRequest:
		e.writeShard(r.Piece)
	default:
		panic("wire: EncodeRequest: unhandled request type")
	}
	return Message{Tag: req.requestTag(), Payload: e.buf}
}

// DecodeRequest parses a frame into its typed request. It returns a
// Malformed error for a short payload, trailing bytes, or a tag that is
// valid but not a request tag.
func DecodeRequest(msg Message) (Request, error) {
	d := &decoder{buf: msg.Payload}
	var req Request
	switch msg.Tag {
	case TagGetRequest:
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		req = GetRequest{Key: key}
	case TagPutRequest:
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readString()
		if err != nil {
			return nil, err
		}
		req = PutRequest{Key: key, Value: value}
	case TagAppendRequest:
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readString()
		if err != nil {
			return nil, err
		}
		req = AppendRequest{Key: key, Value: value}
	case TagDeleteRequest:
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		req = DeleteRequest{Key: key}
	case TagMultiGetRequest:
		keys, err := d.readStrings()
		if err != nil {
			return nil, err
		}
		req = MultiGetRequest{Keys: keys}
	case TagMultiPutRequest:
		keys, err := d.readStrings()
		if err != nil {
			return nil, err
		}
		values, err := d.readStrings()
		if err != nil {
			return nil, err
		}
		req = MultiPutRequest{Keys: keys, Values: values}
	case TagJoinRequest:
		server, err := d.readString()
		if err != nil {
			return nil, err
		}
		req = JoinRequest{Server: server}
	case TagLeaveRequest:
		server, err := d.readString()
		if err != nil {
			return nil, err
		}
		req = LeaveRequest{Server: server}
	case TagMoveRequest:
		dest, err := d.readString()
		if err != nil {
			return nil, err
		}
		shards, err := d.readShards()
		if err != nil {
			return nil, err
		}
		req = MoveRequest{Dest: dest, Shards: shards}
	case TagQueryRequest:
		req = QueryRequest{}
	case TagShardHandoffRequest:
		piece, err := d.readShard()
		if err != nil {
			return nil, err
		}
		dest, err := d.readString()
		if err != nil {
			return nil, err
		}
		req = ShardHandoffRequest{Piece: piece, Dest: dest}
	case TagBulkPutRequest:
		piece, err := d.readShard()
		if err != nil {
			return nil, err
		}
		keys, err := d.readStrings()
		if err != nil {
			return nil, err
		}
		values, err := d.readStrings()
		if err != nil {
			return nil, err
		}
		req = BulkPutRequest{Piece: piece, Keys: keys, Values: values}
	case TagAbortBulkRequest:
		piece, err := d.readShard()
		if err != nil {
			return nil, err
		}
		req = AbortBulkRequest{Piece: piece}
	default:
		return nil, malformed("tag %d is not a request tag", msg.Tag)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return req, nil
}

// EncodeResponse serializes a typed response into a frame.
func EncodeResponse(resp Response) Message {
	e := &encoder{}
	switch r := resp.(type) {
	case GetResponse:
		e.writeString(r.Value)
		e.writeBool(r.Present)
	case PutResponse, AppendResponse, DeleteResponse:
		// no fields
	case MultiGetResponse:
		e.writeU64(uint64(len(r.Values)))
		for _, kv := range r.Values {
			e.writeString(kv.Value)
			e.writeBool(kv.Present)
		}
	case MultiPutResponse:
		// no fields
	case JoinResponse, LeaveResponse, MoveResponse:
		// no fields
	case QueryResponse:
		e.writeConfiguration(r.Configuration)
	case ShardHandoffResponse, BulkPutResponse, AbortBulkResponse:
		// no fields
	case ErrorResponse:
		e.writeString(r.Kind)
		e.writeString(r.Message)
	default:
		panic("wire: EncodeResponse: unhandled response type")
	}
	return Message{Tag: resp.responseTag(), Payload: e.buf}
}

// DecodeResponse parses a frame into its typed response.
func DecodeResponse(msg Message) (Response, error) {
	d := &decoder{buf: msg.Payload}
	var resp Response
	switch msg.Tag {
	case TagGetResponse:
		value, err := d.readString()
		if err != nil {
			return nil, err
		}
		present, err := d.readBool()
		if err != nil {
			return nil, err
		}
		resp = GetResponse{Value: value, Present: present}
	case TagPutResponse:
		resp = PutResponse{}
	case TagAppendResponse:
		resp = AppendResponse{}
	case TagDeleteResponse:
		resp = DeleteResponse{}
	case TagMultiGetResponse:
		n, err := d.readU64()
		if err != nil {
			return nil, err
		}
		// Every element takes at least an 8-byte length prefix and a bool.
		if n > uint64(d.remaining())/9 {
			return nil, malformed("value count %d exceeds remaining payload (%d bytes)", n, d.remaining())
		}
		values := make([]KeyValue, 0, n)
		for i := uint64(0); i < n; i++ {
			value, err := d.readString()
			if err != nil {
				return nil, err
			}
			present, err := d.readBool()
			if err != nil {
				return nil, err
			}
			values = append(values, KeyValue{Value: value, Present: present})
		}
		resp = MultiGetResponse{Values: values}
	case TagMultiPutResponse:
		resp = MultiPutResponse{}
	case TagJoinResponse:
		resp = JoinResponse{}
	case TagLeaveResponse:
		resp = LeaveResponse{}
	case TagMoveResponse:
		resp = MoveResponse{}
	case TagQueryResponse:
		cfg, err := d.readConfiguration()
		if err != nil {
			return nil, err
		}
		resp = QueryResponse{Configuration: cfg}
	case TagShardHandoffResponse:
		resp = ShardHandoffResponse{}
	case TagBulkPutResponse:
		resp = BulkPutResponse{}
	case TagAbortBulkResponse:
		resp = AbortBulkResponse{}
	case TagErrorResponse:
		kind, err := d.readString()
		if err != nil {
			return nil, err
		}
		message, err := d.readString()
		if err != nil {
			return nil, err
		}
		resp = ErrorResponse{Kind: kind, Message: message}
	default:
		return nil, malformed("tag %d is not a response tag", msg.Tag)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return resp, nil
}
