package wire

import (
	"encoding/binary"

	"github.com/dreamware/torua/internal/config"
	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/shardkey"
)

// Tag discriminates which request/response variant a frame's payload
// encodes.
type Tag uint8

const (
	TagGetRequest Tag = iota
	TagGetResponse
	TagPutRequest
	TagPutResponse
	TagAppendRequest
	TagAppendResponse
	TagDeleteRequest
	TagDeleteResponse
	TagMultiGetRequest
	TagMultiGetResponse
	TagMultiPutRequest
	TagMultiPutResponse
	TagJoinRequest
	TagJoinResponse
	TagLeaveRequest
	TagLeaveResponse
	TagMoveRequest
	TagMoveResponse
	TagQueryRequest
	TagQueryResponse
	TagShardHandoffRequest
	TagShardHandoffResponse
	TagBulkPutRequest
	TagBulkPutResponse
	TagAbortBulkRequest
	TagAbortBulkResponse
	TagErrorResponse

	tagCount
)

func (t Tag) valid() bool { return t < tagCount }

// HeaderSize is the size in bytes of the fixed frame header: a one-byte
// tag followed by an eight-byte little-endian payload length.
const HeaderSize = 1 + 8

// EncodeHeader renders a frame header for a payload of the given length.
func EncodeHeader(tag Tag, payloadLen uint64) [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = byte(tag)
	binary.LittleEndian.PutUint64(buf[1:], payloadLen)
	return buf
}

// DecodeHeader parses a frame header from the first HeaderSize bytes of
// buf. It fails with a Malformed error if buf is too short or the tag is
// not one of the known variants.
func DecodeHeader(buf []byte) (tag Tag, payloadLen uint64, err error) {
	if len(buf) < HeaderSize {
		return 0, 0, kverrors.New(kverrors.Malformed, "short header: got %d bytes, want %d", len(buf), HeaderSize)
	}
	tag = Tag(buf[0])
	if !tag.valid() {
		return 0, 0, kverrors.New(kverrors.Malformed, "unknown tag %d", buf[0])
	}
	payloadLen = binary.LittleEndian.Uint64(buf[1:HeaderSize])
	return tag, payloadLen, nil
}

// EncodeFrame renders a complete frame (header + payload) as a single
// byte slice.
func EncodeFrame(tag Tag, payload []byte) []byte {
	header := EncodeHeader(tag, uint64(len(payload)))
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, header[:]...)
	out = append(out, payload...)
	return out
}

// Message is a decoded frame: a tag plus its raw payload bytes, before
// the payload has been parsed into a typed request or response.
type Message struct {
	Tag     Tag
	Payload []byte
}

// --- primitive payload encoding -------------------------------------------

type encoder struct {
	buf []byte
}

func (e *encoder) writeByte(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) writeU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) writeString(s string) {
	e.writeU64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) writeStrings(ss []string) {
	e.writeU64(uint64(len(ss)))
	for _, s := range ss {
		e.writeString(s)
	}
}

func (e *encoder) writeBool(b bool) {
	if b {
		e.writeByte(1)
	} else {
		e.writeByte(0)
	}
}

func (e *encoder) writeShard(s shardkey.Shard) {
	e.writeByte(s.Low)
	e.writeByte(s.High)
}

func (e *encoder) writeShards(ss []shardkey.Shard) {
	e.writeU64(uint64(len(ss)))
	for _, s := range ss {
		e.writeShard(s)
	}
}

func (e *encoder) writeConfiguration(c *config.Configuration) {
	names := c.ServerNames()
	e.writeU64(uint64(len(names)))
	for _, name := range names {
		e.writeString(name)
		e.writeShards(c.Servers[name])
	}
	e.writeU64(c.Epoch)
}

type decoder struct {
	buf []byte
	off int
}

func malformed(format string, args ...any) error {
	return kverrors.New(kverrors.Malformed, format, args...)
}

func (d *decoder) remaining() int { return len(d.buf) - d.off }

func (d *decoder) readByte() (byte, error) {
	if d.remaining() < 1 {
		return 0, malformed("unexpected end of payload reading a byte")
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) readU64() (uint64, error) {
	if d.remaining() < 8 {
		return 0, malformed("unexpected end of payload reading a u64")
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off : d.off+8])
	d.off += 8
	return v, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readU64()
	if err != nil {
		return "", err
	}
	if uint64(d.remaining()) < n {
		return "", malformed("string length %d exceeds remaining payload (%d bytes)", n, d.remaining())
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *decoder) readStrings() ([]string, error) {
	n, err := d.readU64()
	if err != nil {
		return nil, err
	}
	// Every string takes at least its 8-byte length prefix.
	if n > uint64(d.remaining())/8 {
		return nil, malformed("string count %d exceeds remaining payload (%d bytes)", n, d.remaining())
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) readBool() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (d *decoder) readShard() (shardkey.Shard, error) {
	low, err := d.readByte()
	if err != nil {
		return shardkey.Shard{}, err
	}
	high, err := d.readByte()
	if err != nil {
		return shardkey.Shard{}, err
	}
	return shardkey.Shard{Low: low, High: high}, nil
}

func (d *decoder) readShards() ([]shardkey.Shard, error) {
	n, err := d.readU64()
	if err != nil {
		return nil, err
	}
	// Every shard takes exactly two bytes.
	if n > uint64(d.remaining())/2 {
		return nil, malformed("shard count %d exceeds remaining payload (%d bytes)", n, d.remaining())
	}
	out := make([]shardkey.Shard, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := d.readShard()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) readConfiguration() (*config.Configuration, error) {
	n, err := d.readU64()
	if err != nil {
		return nil, err
	}
	cfg := config.New()
	for i := uint64(0); i < n; i++ {
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		shards, err := d.readShards()
		if err != nil {
			return nil, err
		}
		cfg.Servers[name] = shards
	}
	epoch, err := d.readU64()
	if err != nil {
		return nil, err
	}
	cfg.Epoch = epoch
	return cfg, nil
}

func (d *decoder) finish() error {
	if d.remaining() != 0 {
		return malformed("%d trailing bytes after decoding payload", d.remaining())
	}
	return nil
}
