package kvserver

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/config"
	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/shardkey"
	"github.com/dreamware/torua/internal/transport"
	"github.com/dreamware/torua/internal/wire"
)

// KvServer is a storage server: a key-value map restricted to the shards
// it currently owns, guarded by a single exclusive mutex. All public
// operations take the mutex for the duration of their critical section,
// which is what gives MultiGet/MultiPut per-server atomicity.
type KvServer struct {
	mu     sync.Mutex
	shards []shardkey.Shard
	store  map[string]string

	self    string
	pool    *transport.Pool
	log     *zap.Logger
	metrics *Metrics
}

// New builds an empty KvServer that dials peers through pool when acting
// as a Move hand-off source. self is this server's own dialable address,
// used only for logging.
func New(self string, pool *transport.Pool, log *zap.Logger) *KvServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KvServer{
		store:   make(map[string]string),
		self:    self,
		pool:    pool,
		log:     log,
		metrics: NewMetrics(),
	}
}

// MustRegisterMetrics registers the server's Prometheus instruments
// against reg. Call once per process after New.
func (s *KvServer) MustRegisterMetrics(reg prometheus.Registerer) {
	s.metrics.MustRegister(reg)
}

// owns reports whether key falls within one of the server's currently
// owned shards. Callers must hold mu.
func (s *KvServer) owns(key string) bool {
	for _, sh := range s.shards {
		if sh.Contains(key) {
			return true
		}
	}
	return false
}

// Shards returns a copy of the server's currently owned shard list.
func (s *KvServer) Shards() []shardkey.Shard {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]shardkey.Shard, len(s.shards))
	copy(out, s.shards)
	return out
}

// Get returns the value stored at key.
func (s *KvServer) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.owns(key) {
		s.metrics.wrongShard.Inc()
		return "", false, kverrors.New(kverrors.WrongShard, "key %q is not owned by this server", key)
	}
	v, ok := s.store[key]
	s.metrics.opsTotal.WithLabelValues("get").Inc()
	return v, ok, nil
}

// Put inserts or overwrites key's value.
func (s *KvServer) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.owns(key) {
		s.metrics.wrongShard.Inc()
		return kverrors.New(kverrors.WrongShard, "key %q is not owned by this server", key)
	}
	s.store[key] = value
	s.metrics.opsTotal.WithLabelValues("put").Inc()
	s.metrics.residentKeys.Set(float64(len(s.store)))
	return nil
}

// Append concatenates value onto key's existing value, or creates it —
// behaving like Put — if key is absent.
func (s *KvServer) Append(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.owns(key) {
		s.metrics.wrongShard.Inc()
		return kverrors.New(kverrors.WrongShard, "key %q is not owned by this server", key)
	}
	s.store[key] += value
	s.metrics.opsTotal.WithLabelValues("append").Inc()
	s.metrics.residentKeys.Set(float64(len(s.store)))
	return nil
}

// Delete removes key if present; deleting an absent key succeeds
// silently.
func (s *KvServer) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.owns(key) {
		s.metrics.wrongShard.Inc()
		return kverrors.New(kverrors.WrongShard, "key %q is not owned by this server", key)
	}
	delete(s.store, key)
	s.metrics.opsTotal.WithLabelValues("delete").Inc()
	s.metrics.residentKeys.Set(float64(len(s.store)))
	return nil
}

// KeyValue pairs a value with a presence flag, mirroring wire.KeyValue so
// callers (the RPC dispatcher) can convert it directly.
type KeyValue struct {
	Value   string
	Present bool
}

// MultiGet returns a value (or absence marker) for every key in the same
// order as keys. Any key outside the server's owned shards fails the
// whole call with no partial return.
func (s *KvServer) MultiGet(keys []string) ([]KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if !s.owns(k) {
			s.metrics.wrongShard.Inc()
			return nil, kverrors.New(kverrors.WrongShard, "key %q is not owned by this server", k)
		}
	}
	out := make([]KeyValue, len(keys))
	for i, k := range keys {
		v, ok := s.store[k]
		out[i] = KeyValue{Value: v, Present: ok}
	}
	s.metrics.opsTotal.WithLabelValues("multiget").Inc()
	return out, nil
}

// MultiPut writes every (key, value) pair atomically: either all writes
// land or none do. keys and values must be the same length (BadArgs
// otherwise), and every key must be owned (WrongShard otherwise) before
// any mutation happens.
func (s *KvServer) MultiPut(keys, values []string) error {
	if len(keys) != len(values) {
		return kverrors.New(kverrors.BadArgs, "MultiPut: %d keys but %d values", len(keys), len(values))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if !s.owns(k) {
			s.metrics.wrongShard.Inc()
			return kverrors.New(kverrors.WrongShard, "key %q is not owned by this server", k)
		}
	}
	for i, k := range keys {
		s.store[k] = values[i]
	}
	s.metrics.opsTotal.WithLabelValues("multiput").Inc()
	s.metrics.residentKeys.Set(float64(len(s.store)))
	return nil
}

// ShardHandoff plays the source role of a shard move: it snapshots every
// key covered by piece, streams them to dest via a BulkPut call, and on
// acknowledgement erases them locally and narrows its own owned-shard
// list. The whole sequence runs under mu, so no concurrent
// Get/Put/Append/Delete/MultiGet/MultiPut can observe or mutate piece's
// keys mid-handoff.
func (s *KvServer) ShardHandoff(piece shardkey.Shard, dest string) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.metrics.observeHandoff(start)

	var keys, values []string
	for k, v := range s.store {
		if piece.Contains(k) {
			keys = append(keys, k)
			values = append(values, v)
		}
	}

	if err := s.bulkPutTo(dest, piece, keys, values); err != nil {
		return kverrors.New(kverrors.MoveFailed, "handoff of %v to %s: %v", piece, dest, err)
	}

	for _, k := range keys {
		delete(s.store, k)
	}
	s.shards = removePiece(s.shards, piece)
	s.metrics.handoffsSent.Inc()
	s.metrics.residentKeys.Set(float64(len(s.store)))
	s.log.Info("shard handed off", zap.String("self", s.self), zap.String("dest", dest), zap.Stringer("piece", piece), zap.Int("keys", len(keys)))
	return nil
}

// BulkPut is the destination side of a hand-off: it absorbs items for a
// piece this server has been told it will own, inserting them and
// extending its own owned-shard list immediately. A sibling piece
// failing elsewhere in the same move is unwound by a later AbortBulk
// call against this same piece.
func (s *KvServer) BulkPut(piece shardkey.Shard, keys, values []string) error {
	if len(keys) != len(values) {
		return kverrors.New(kverrors.BadArgs, "BulkPut: %d keys but %d values", len(keys), len(values))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range keys {
		s.store[k] = values[i]
	}
	s.shards = append(s.shards, piece)
	s.shards = config.Coalesce(s.shards)
	s.metrics.handoffsReceived.Inc()
	s.metrics.residentKeys.Set(float64(len(s.store)))
	return nil
}

// AbortBulk discards keys covered by piece and drops ownership of it,
// rolling back a BulkPut whose enclosing move ultimately failed.
func (s *KvServer) AbortBulk(piece shardkey.Shard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.store {
		if piece.Contains(k) {
			delete(s.store, k)
		}
	}
	s.shards = removePiece(s.shards, piece)
	s.metrics.residentKeys.Set(float64(len(s.store)))
	return nil
}

// bulkPutTo streams keys/values to dest as a single BulkPut call, acting
// as a client of the destination server. Caller must hold mu.
func (s *KvServer) bulkPutTo(dest string, piece shardkey.Shard, keys, values []string) error {
	_, err := s.pool.Call(dest, wire.BulkPutRequest{Piece: piece, Keys: keys, Values: values})
	return err
}

// removePiece returns shards with every symbol of piece taken out,
// splitting an owned shard that only partly overlaps piece.
func removePiece(shards []shardkey.Shard, piece shardkey.Shard) []shardkey.Shard {
	out := make([]shardkey.Shard, 0, len(shards))
	for _, sh := range shards {
		if !shardkey.Overlaps(sh, piece) {
			out = append(out, sh)
			continue
		}
		if sh.Low < piece.Low {
			out = append(out, shardkey.Shard{Low: sh.Low, High: shardkey.SymbolAt(shardkey.SymbolIndex(piece.Low) - 1)})
		}
		if sh.High > piece.High {
			out = append(out, shardkey.Shard{Low: shardkey.SymbolAt(shardkey.SymbolIndex(piece.High) + 1), High: sh.High})
		}
	}
	return out
}
