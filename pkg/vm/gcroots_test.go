package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectGarbageMarksLiveGlobals(t *testing.T) {
	m := New(nil)
	defer m.Free()

	_, err := m.Interpret(`var kept = "alive"; var also = "this too";`)
	if err != nil {
		t.Fatalf("Interpret error: %v", err)
	}

	stats := m.CollectGarbage()
	assert.Greater(t, stats.Marked, 0)
}
