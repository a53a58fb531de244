package table

import (
	"testing"

	"github.com/loxvm/loxvm/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSetGetDelete(t *testing.T) {
	heap := object.NewHeap()
	intern := NewTable()
	tab := NewTable()

	key := MakeString(heap, intern, []byte("count"))

	_, ok := tab.Get(key)
	require.False(t, ok, "fresh table should not contain key")

	isNew := tab.Set(key, object.NumberVal(1))
	assert.True(t, isNew)

	v, ok := tab.Get(key)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Number)

	isNew = tab.Set(key, object.NumberVal(2))
	assert.False(t, isNew, "overwriting an existing key is not new")

	v, _ = tab.Get(key)
	assert.Equal(t, 2.0, v.Number)

	assert.True(t, tab.Delete(key))
	_, ok = tab.Get(key)
	assert.False(t, ok, "deleted key must not be found")
	assert.False(t, tab.Delete(key), "deleting twice reports absent")
}

func TestTableGrowthPreservesEntries(t *testing.T) {
	heap := object.NewHeap()
	intern := NewTable()
	tab := NewTable()

	const n = 200
	keys := make([]*object.ObjString, n)
	for i := 0; i < n; i++ {
		keys[i] = MakeString(heap, intern, []byte{byte(i), byte(i >> 8)})
		tab.Set(keys[i], object.NumberVal(float64(i)))
	}

	for i := 0; i < n; i++ {
		v, ok := tab.Get(keys[i])
		require.True(t, ok, "key %d must survive growth", i)
		assert.Equal(t, float64(i), v.Number)
	}
	assert.Equal(t, n, tab.Count())
}

func TestMakeStringInterns(t *testing.T) {
	heap := object.NewHeap()
	intern := NewTable()

	a := MakeString(heap, intern, []byte("hello"))
	b := MakeString(heap, intern, []byte("hello"))
	assert.Same(t, a, b, "equal-content strings must be the same object")

	c := MakeString(heap, intern, []byte("world"))
	assert.NotSame(t, a, c)
}

func TestConcatStrings(t *testing.T) {
	heap := object.NewHeap()
	intern := NewTable()

	a := MakeString(heap, intern, []byte("foo"))
	b := MakeString(heap, intern, []byte("bar"))
	got := ConcatStrings(heap, intern, a, b)
	assert.Equal(t, "foobar", string(got.Bytes))
}

func TestAddAllCopiesMethods(t *testing.T) {
	heap := object.NewHeap()
	intern := NewTable()
	super := NewTable()
	sub := NewTable()

	initKey := MakeString(heap, intern, []byte("init"))
	super.Set(initKey, object.NumberVal(1))

	sub.AddAll(super)
	v, ok := sub.Get(initKey)
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Number)
}
