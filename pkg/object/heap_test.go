package object

import "testing"

func TestHeapLinksAllocations(t *testing.T) {
	h := NewHeap()
	if h.Count() != 0 {
		t.Fatalf("fresh heap must be empty, got %d", h.Count())
	}

	s := h.NewString([]byte("hi"), 1)
	f := h.NewFunction()
	_ = s
	_ = f

	if h.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", h.Count())
	}

	seen := map[Kind]bool{}
	for o := h.Head(); o != nil; o = o.Next {
		seen[o.Kind] = true
	}
	if !seen[KindString] || !seen[KindFunction] {
		t.Fatalf("expected both string and function in all-objects list, got %v", seen)
	}
}

func TestHeapAccessorsRoundTrip(t *testing.T) {
	h := NewHeap()
	fn := h.NewFunction()
	fn.Arity = 2
	fn.UpvalueCount = 1

	closure := h.NewClosure(fn)
	if closure.Function != fn {
		t.Fatal("closure must reference the function it was created over")
	}
	if len(closure.Upvalues) != 1 {
		t.Fatalf("expected 1 upvalue slot, got %d", len(closure.Upvalues))
	}
	if closure.Obj.AsClosure() != closure {
		t.Fatal("Obj.AsClosure() must round-trip to the owning ObjClosure")
	}

	class := h.NewClass(nil)
	instance := h.NewInstance(class)
	if instance.Class != class {
		t.Fatal("instance must reference its class")
	}
	if instance.Obj.AsInstance() != instance {
		t.Fatal("Obj.AsInstance() must round-trip")
	}
}

func TestFreeObjectsClearsList(t *testing.T) {
	h := NewHeap()
	h.NewString([]byte("a"), 1)
	h.NewString([]byte("b"), 2)
	if h.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", h.Count())
	}
	h.FreeObjects()
	if h.Count() != 0 {
		t.Fatalf("Count() after FreeObjects() = %d, want 0", h.Count())
	}
	if h.Head() != nil {
		t.Fatal("Head() after FreeObjects() must be nil")
	}
}
