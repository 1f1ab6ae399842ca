package memory

import "sort"

// partition is a keyed record collection supporting insert, point lookup and
// predicate scans. Values are cloned on the way in and out.
type partition[T any] struct {
	records map[string]T
	clone   func(T) T
}

func newPartition[T any](clone func(T) T) partition[T] {
	return partition[T]{records: make(map[string]T), clone: clone}
}

func (p partition[T]) get(id string) (T, bool) {
	v, ok := p.records[id]
	if !ok {
		var zero T
		return zero, false
	}
	return p.clone(v), true
}

func (p partition[T]) has(id string) bool {
	_, ok := p.records[id]
	return ok
}

func (p partition[T]) insert(id string, v T) {
	p.records[id] = p.clone(v)
}

// scan returns matching records ordered by key so callers see a stable order.
func (p partition[T]) scan(match func(T) bool) []T {
	keys := make([]string, 0, len(p.records))
	for k := range p.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		v := p.records[k]
		if match == nil || match(v) {
			out = append(out, p.clone(v))
		}
	}
	return out
}

func (p partition[T]) len() int { return len(p.records) }

func (p partition[T]) copy() partition[T] {
	cp := newPartition(p.clone)
	for k, v := range p.records {
		cp.records[k] = p.clone(v)
	}
	return cp
}

func (p partition[T]) export() map[string]T {
	out := make(map[string]T, len(p.records))
	for k, v := range p.records {
		out[k] = p.clone(v)
	}
	return out
}
