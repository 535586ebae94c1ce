package kvserver

import (
	"testing"

	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/shardkey"
	"github.com/dreamware/torua/internal/transport"
)

func newTestServer(shards ...shardkey.Shard) *KvServer {
	s := New("test:0", transport.NewPool(0, 0), zap.NewNop())
	s.shards = shards
	return s
}

func TestGetWrongShard(t *testing.T) {
	s := newTestServer(shardkey.New('0', '7'))
	_, _, err := s.Get("zzz")
	if !kverrors.Is(err, kverrors.WrongShard) {
		t.Fatalf("Get outside owned shard = %v, want WrongShard", err)
	}
}

func TestAppendToNonexistent(t *testing.T) {
	s := newTestServer(shardkey.New('0', 'Z'))
	if err := s.Append("nonexistent", "world"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	v, present, err := s.Get("nonexistent")
	if err != nil || !present || v != "world" {
		t.Fatalf("Get after Append = (%q, %v, %v), want (world, true, nil)", v, present, err)
	}
}

func TestAppendEmptyIsIdempotent(t *testing.T) {
	s := newTestServer(shardkey.New('0', 'Z'))
	s.Put("k", "v")
	if err := s.Append("k", ""); err != nil {
		t.Fatalf("Append empty: %v", err)
	}
	v, _, _ := s.Get("k")
	if v != "v" {
		t.Fatalf("value after empty Append = %q, want v", v)
	}
}

func TestDeleteAbsentKeySucceeds(t *testing.T) {
	s := newTestServer(shardkey.New('0', 'Z'))
	if err := s.Delete("ghost"); err != nil {
		t.Fatalf("Delete absent key: %v", err)
	}
}

func TestMultiGetPreservesOrderAndPresence(t *testing.T) {
	s := newTestServer(shardkey.New('0', 'Z'))
	s.Put("a", "1")
	s.Put("c", "3")
	values, err := s.MultiGet([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	want := []KeyValue{{Value: "1", Present: true}, {Present: false}, {Value: "3", Present: true}}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("values[%d] = %+v, want %+v", i, values[i], want[i])
		}
	}
}

func TestMultiGetWrongShardReturnsNoPartialResult(t *testing.T) {
	s := newTestServer(shardkey.New('0', '7'))
	_, err := s.MultiGet([]string{"0", "Z"})
	if !kverrors.Is(err, kverrors.WrongShard) {
		t.Fatalf("MultiGet spanning an unowned key = %v, want WrongShard", err)
	}
}

func TestMultiPutLengthMismatch(t *testing.T) {
	s := newTestServer(shardkey.New('0', 'Z'))
	err := s.MultiPut([]string{"a", "b"}, []string{"1"})
	if !kverrors.Is(err, kverrors.BadArgs) {
		t.Fatalf("MultiPut length mismatch = %v, want BadArgs", err)
	}
}

func TestMultiPutOnUnownedRangeDoesNotMutate(t *testing.T) {
	// Shards [8,E][F,L][M,S][T,Z] assigned, [0,7] unassigned: an unowned
	// key anywhere in the batch must fail the whole call.
	s := newTestServer(shardkey.New('8', 'E'), shardkey.New('F', 'L'), shardkey.New('M', 'S'), shardkey.New('T', 'Z'))
	err := s.MultiPut([]string{"0abc", "3xyz"}, []string{"a", "b"})
	if !kverrors.Is(err, kverrors.WrongShard) {
		t.Fatalf("MultiPut on unowned range = %v, want WrongShard", err)
	}
	if len(s.store) != 0 {
		t.Fatalf("MultiPut on unowned range mutated the store: %+v", s.store)
	}
}

func TestBulkPutThenAbortRollsBack(t *testing.T) {
	s := newTestServer()
	piece := shardkey.New('0', '9')
	if err := s.BulkPut(piece, []string{"1"}, []string{"one"}); err != nil {
		t.Fatalf("BulkPut: %v", err)
	}
	if v, present, _ := s.Get("1"); !present || v != "one" {
		t.Fatalf("BulkPut did not make key visible: (%q, %v)", v, present)
	}
	if err := s.AbortBulk(piece); err != nil {
		t.Fatalf("AbortBulk: %v", err)
	}
	if _, _, err := s.Get("1"); !kverrors.Is(err, kverrors.WrongShard) {
		t.Fatalf("Get after AbortBulk = %v, want WrongShard (piece no longer owned)", err)
	}
}
