// Package table implements the open-addressed hash table spec §4.C
// calls for: the VM's globals table and the string-intern table both
// use it. Grounded on clox's table.c/table.h (original_source/clox),
// translated into Go idiom (a backing slice of entries, no manual
// malloc/realloc) rather than copied line for line.
package table

import "github.com/loxvm/loxvm/pkg/object"

const maxLoad = 0.75

type entry struct {
	key   *object.ObjString // nil means empty; a tombstone is key==nil && tombstone==true
	value object.Value
	// tombstone marks a deleted slot: probing must continue past it,
	// but it is free for a future insert to reuse.
	tombstone bool
}

// Table is an open-addressed hash table keyed by interned string
// pointers, with linear probing and tombstone deletion.
type Table struct {
	count    int // live entries + tombstones, drives the grow threshold
	entries  []entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Count reports the number of live (non-tombstone) entries.
func (t *Table) Count() int {
	if len(t.entries) == 0 {
		return 0
	}
	n := 0
	for _, e := range t.entries {
		if e.key != nil {
			n++
		}
	}
	return n
}

// Get looks up key, reporting whether it was present.
func (t *Table) Get(key *object.ObjString) (object.Value, bool) {
	if len(t.entries) == 0 {
		return object.Nil, false
	}
	e := t.find(key)
	if e.key == nil {
		return object.Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value, reporting whether this was a
// new key (true) or an overwrite of an existing one (false).
func (t *Table) Set(key *object.ObjString, value object.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}
	e := t.find(key)
	isNew := e.key == nil
	if isNew && !e.tombstone {
		t.count++
	}
	e.key = key
	e.value = value
	e.tombstone = false
	return isNew
}

// Delete removes key, leaving a tombstone so later probes still find
// entries that collided with it. Reports whether key was present.
func (t *Table) Delete(key *object.ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.tombstone = true
	return true
}

// FindString looks up an interned string by raw content, the operation
// MakeString uses to decide between returning a cache hit and
// allocating a new ObjString. Table equality elsewhere is reference
// equality; this is the one place content is actually compared,
// exactly as in clox.
func (t *Table) FindString(bytes []byte, hash uint32) *object.ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		if e.key == nil {
			if !e.tombstone {
				return nil
			}
		} else if e.key.Hash == hash && string(e.key.Bytes) == string(bytes) {
			return e.key
		}
		index = (index + 1) & mask
	}
}

// find returns the entry key should occupy: either the one already
// holding it, or the first empty-or-tombstone slot probed, mirroring
// clox's tableFindEntry. Capacity is always a power of two so index
// wraps via a bitmask instead of a modulo.
func (t *Table) find(key *object.ObjString) *entry {
	mask := uint32(len(t.entries) - 1)
	index := key.Hash & mask
	var tombstone *entry
	for {
		e := &t.entries[index]
		if e.key == nil {
			if !e.tombstone {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		index = (index + 1) & mask
	}
}

// grow reallocates entries to newCap (a power of two) and reinserts
// every live entry, dropping tombstones and recomputing count, per
// clox's adjustCapacity.
func (t *Table) grow(newCap int) {
	old := t.entries
	t.entries = make([]entry, newCap)
	t.count = 0
	for _, e := range old {
		if e.key == nil {
			continue
		}
		dst := t.find(e.key)
		dst.key = e.key
		dst.value = e.value
		t.count++
	}
}

// growCapacity mirrors clox's GROW_CAPACITY: 0 -> 8, else double.
func growCapacity(cap int) int {
	if cap < 8 {
		return 8
	}
	return cap * 2
}

// AddAll copies every live entry of src into t. (OP_INHERIT copies
// method tables, which are Go maps, with the VM's own helper instead.)
func (t *Table) AddAll(src *Table) {
	for _, e := range src.entries {
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// Each calls fn for every live entry, in arbitrary bucket order. Used
// by pkg/gc to enumerate the globals table as a mark root.
func (t *Table) Each(fn func(key *object.ObjString, value object.Value)) {
	for _, e := range t.entries {
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}
