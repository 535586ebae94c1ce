package shardkey

import "fmt"

// alphabetSize is the number of distinct symbols a key's first byte can
// fold to: the ten digits plus the twenty-six letters, compared
// case-insensitively. The wire alphabet is nominally 62 symbols
// (0-9A-Za-z), but because lowercase folds onto its uppercase
// counterpart for every comparison, shard boundaries only ever need to
// be expressed in terms of these 36 distinct buckets.
const alphabetSize = 36

// AlphabetSize is the number of distinct folded routing symbols.
const AlphabetSize = alphabetSize

// SymbolAt exposes symbolAt for callers outside the package that need to
// walk the alphabet position-by-position, such as the controller's move
// decomposition.
func SymbolAt(idx int) byte { return symbolAt(idx) }

// SymbolIndex exposes symbolIndex for callers outside the package.
func SymbolIndex(c byte) int { return symbolIndex(c) }

// Fold case-folds a single byte the way the routing alphabet compares it:
// 'a'..'z' maps to 'A'..'Z', everything else is returned unchanged.
func Fold(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// symbolAt returns the folded alphabet symbol at position idx in the
// ordered sequence '0'..'9','A'..'Z' (idx in [0, alphabetSize)).
func symbolAt(idx int) byte {
	if idx < 10 {
		return '0' + byte(idx)
	}
	return 'A' + byte(idx-10)
}

// symbolIndex returns the position of a folded alphabet symbol in the
// ordered sequence '0'..'9','A'..'Z', or -1 if c is not a valid folded
// symbol.
func symbolIndex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// Shard is an inclusive range [Low, High] over the folded routing
// alphabet. Both bounds are folded alphabet symbols (a digit or an
// uppercase letter); Low must be <= High for a well-formed shard.
type Shard struct {
	Low  byte
	High byte
}

// New constructs a Shard, folding both bounds so that callers can pass
// either case.
func New(low, high byte) Shard {
	return Shard{Low: Fold(low), High: Fold(high)}
}

// Valid reports whether the shard's bounds are both valid folded alphabet
// symbols with Low <= High.
func (s Shard) Valid() bool {
	return symbolIndex(s.Low) >= 0 && symbolIndex(s.High) >= 0 && s.Low <= s.High
}

// Contains reports whether key belongs to this shard. An empty key, or a
// key whose first character falls outside the 0-9A-Za-z alphabet, is
// never contained by any shard.
func (s Shard) Contains(key string) bool {
	if key == "" {
		return false
	}
	c := Fold(key[0])
	if symbolIndex(c) < 0 {
		return false
	}
	return s.Low <= c && c <= s.High
}

// Overlaps reports whether two shards share at least one symbol.
func Overlaps(a, b Shard) bool {
	return a.Low <= b.High && b.Low <= a.High
}

// String renders a shard as "[low,high]" for logging and error messages.
func (s Shard) String() string {
	return fmt.Sprintf("[%c,%c]", s.Low, s.High)
}

// SplitInto partitions the full routing alphabet into n contiguous,
// non-overlapping shards whose union is the entire alphabet. n must be
// >= 1. Sizes are as equal as possible; when alphabetSize does not divide
// evenly by n, the first (alphabetSize % n) shards get one extra symbol
// each rather than the last shard absorbing the whole remainder — this
// is the distribution the reference test fixtures assume (see
// DESIGN.md's SplitInto remainder-distribution entry for the example this
// matches: split_into(5) yields [0,7] [8,E] [F,L] [M,S] [T,Z]).
func SplitInto(n int) []Shard {
	if n < 1 {
		panic("shardkey: SplitInto requires n >= 1")
	}
	if n > alphabetSize {
		n = alphabetSize
	}

	base := alphabetSize / n
	remainder := alphabetSize % n

	shards := make([]Shard, 0, n)
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < remainder {
			size++
		}
		if size == 0 {
			continue
		}
		low := symbolAt(idx)
		high := symbolAt(idx + size - 1)
		shards = append(shards, Shard{Low: low, High: high})
		idx += size
	}
	return shards
}
