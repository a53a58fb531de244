package table

import "github.com/loxvm/loxvm/pkg/object"

// fnv1a32 hashes bytes with 32-bit FNV-1a, the hash spec §4.C mandates
// for string interning (matches clox's hashString).
func fnv1a32(bytes []byte) uint32 {
	var hash uint32 = 2166136261
	for _, b := range bytes {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return hash
}

// MakeString returns the single interned ObjString for bytes, copying
// bytes so later mutation of a caller-owned slice cannot corrupt the
// table. intern is the VM/compiler's shared string table; heap is
// where a genuine cache miss gets allocated.
func MakeString(heap *object.Heap, intern *Table, bytes []byte) *object.ObjString {
	hash := fnv1a32(bytes)
	if existing := intern.FindString(bytes, hash); existing != nil {
		return existing
	}
	owned := make([]byte, len(bytes))
	copy(owned, bytes)
	s := heap.NewString(owned, hash)
	intern.Set(s, object.Nil)
	return s
}

// ConcatStrings implements the `+` operator's string case (spec §4.G):
// concatenate a and b's bytes and return the interned result.
func ConcatStrings(heap *object.Heap, intern *Table, a, b *object.ObjString) *object.ObjString {
	buf := make([]byte, 0, len(a.Bytes)+len(b.Bytes))
	buf = append(buf, a.Bytes...)
	buf = append(buf, b.Bytes...)
	return MakeString(heap, intern, buf)
}
