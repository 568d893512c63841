package scanner

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/glowline/internal/core/kind"
)

// Result is one scan pass: every selected block found, grouped by kind.
// A published Result is never modified.
type Result struct {
	byKind    map[kind.Kind]map[Position]struct{}
	total     int
	digest    uint64
	origin    Position
	radius    int
	scannedAt time.Time
}

var emptyResult = &Result{byKind: map[kind.Kind]map[Position]struct{}{}}

// Empty reports whether no selected block was found.
func (r *Result) Empty() bool {
	return r.total == 0
}

// Len is the number of kinds with at least one position.
func (r *Result) Len() int {
	return len(r.byKind)
}

// Total is the number of tracked positions over all kinds.
func (r *Result) Total() int {
	return r.total
}

// Kinds returns the tracked kinds in name order.
func (r *Result) Kinds() []kind.Kind {
	out := make([]kind.Kind, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return kind.Less(out[i], out[j]) })
	return out
}

// Positions returns the positions of k in X, Y, Z order.
func (r *Result) Positions(k kind.Kind) []Position {
	set := r.byKind[k]
	out := make([]Position, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return lessPosition(out[i], out[j]) })
	return out
}

func (r *Result) Contains(k kind.Kind, p Position) bool {
	_, ok := r.byKind[k][p]
	return ok
}

// Groups copies the result into a plain map, mostly for tests and debugging.
func (r *Result) Groups() map[kind.Kind][]Position {
	out := make(map[kind.Kind][]Position, len(r.byKind))
	for k := range r.byKind {
		out[k] = r.Positions(k)
	}
	return out
}

// Digest identifies the content of the result. Equal content gives equal
// digests regardless of scan origin or time.
func (r *Result) Digest() uint64 {
	return r.digest
}

func (r *Result) Origin() Position     { return r.origin }
func (r *Result) Radius() int          { return r.radius }
func (r *Result) ScannedAt() time.Time { return r.scannedAt }

// builder accumulates one pass before it is sealed into a Result.
type builder struct {
	byKind map[kind.Kind]map[Position]struct{}
}

func newBuilder() *builder {
	return &builder{byKind: make(map[kind.Kind]map[Position]struct{})}
}

func (b *builder) add(k kind.Kind, p Position) {
	set, ok := b.byKind[k]
	if !ok {
		set = make(map[Position]struct{})
		b.byKind[k] = set
	}
	set[p] = struct{}{}
}

func (b *builder) merge(other *builder) {
	for k, set := range other.byKind {
		for p := range set {
			b.add(k, p)
		}
	}
}

func (b *builder) seal(origin Position, radius int, at time.Time) *Result {
	res := &Result{
		byKind:    b.byKind,
		origin:    origin,
		radius:    radius,
		scannedAt: at,
	}
	for _, set := range b.byKind {
		res.total += len(set)
	}
	res.digest = digest(res)
	return res
}

func digest(r *Result) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, k := range r.Kinds() {
		binary.LittleEndian.PutUint64(buf[:], k.Hash())
		_, _ = d.Write(buf[:])
		for _, p := range r.Positions(k) {
			binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(p.X)))
			binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(p.Y)))
			_, _ = d.Write(buf[:])
			binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(p.Z)))
			_, _ = d.Write(buf[:4])
		}
	}
	return d.Sum64()
}
