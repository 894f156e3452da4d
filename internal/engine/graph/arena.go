package graph

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"go.stu.dev/stu/internal/core/domain"
)

// Arena interns Execution nodes by (kind, name, depth) (§4.4). Lookup is
// bucketed by an xxhash64 digest of the key, the same "fast structural
// identity hash" role the teacher's fs.Hasher plays for on-disk cache
// identity (SPEC_FULL.md §2 DOMAIN STACK), applied here to in-memory graph
// identity instead: a Go map alone would intern just as correctly, but
// this keeps xxhash doing real identity work rather than going unused now
// that stu has no persisted build cache to hash into.
type Arena struct {
	buckets map[uint64][]*Execution
}

// NewArena constructs an empty arena.
func NewArena() *Arena {
	return &Arena{buckets: make(map[uint64][]*Execution)}
}

func targetHash(t domain.Target) uint64 {
	var buf [10]byte
	buf[0] = byte(t.Kind)
	buf[1] = t.Depth
	binary.LittleEndian.PutUint64(buf[2:], 0) // reserved, keeps the digest stable if Target grows
	h := xxhash.New()
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(t.Name.String())
	return h.Sum64()
}

// Intern returns the Execution for t, creating it in PhaseInit if this is
// the first reference.
func (a *Arena) Intern(t domain.Target) *Execution {
	h := targetHash(t)
	for _, e := range a.buckets[h] {
		if e.Target == t {
			return e
		}
	}
	e := newExecution(t)
	a.buckets[h] = append(a.buckets[h], e)
	return e
}

// All returns every interned Execution, in no particular order. Used by
// the scheduler's error collection, by internal/format's report, and by
// tests.
func (a *Arena) All() []*Execution {
	var out []*Execution
	for _, bucket := range a.buckets {
		out = append(out, bucket...)
	}
	return out
}

// Len returns the number of interned executions.
func (a *Arena) Len() int {
	n := 0
	for _, bucket := range a.buckets {
		n += len(bucket)
	}
	return n
}
