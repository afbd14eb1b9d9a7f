package ringbuf

import (
	"bytes"
	"testing"
)

func TestEnqueueDequeueBasic(t *testing.T) {
	b := New(8)
	if n := b.EnqueueSlice([]byte("hello")); n != 5 {
		t.Fatalf("EnqueueSlice() = %d, want 5", n)
	}
	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}
	dst := make([]byte, 5)
	if n := b.DequeueSlice(dst); n != 5 {
		t.Fatalf("DequeueSlice() = %d, want 5", n)
	}
	if !bytes.Equal(dst, []byte("hello")) {
		t.Errorf("DequeueSlice() = %q, want %q", dst, "hello")
	}
	if !b.IsEmpty() {
		t.Error("IsEmpty() = false, want true")
	}
}

func TestEnqueueTruncatesAtCapacity(t *testing.T) {
	b := New(4)
	n := b.EnqueueSlice([]byte("abcdef"))
	if n != 4 {
		t.Fatalf("EnqueueSlice() = %d, want 4", n)
	}
	if !b.IsFull() {
		t.Error("IsFull() = false, want true")
	}
}

func TestWraparoundPreservesOrder(t *testing.T) {
	b := New(4)
	b.EnqueueSlice([]byte("ab"))
	dst := make([]byte, 2)
	b.DequeueSlice(dst)
	b.EnqueueSlice([]byte("cdef")) // wraps: only 2 bytes before the physical end
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (enqueue should fill to capacity)", b.Len())
	}
	out := make([]byte, 4)
	n := b.DequeueSlice(out)
	if n != 4 {
		t.Fatalf("DequeueSlice() = %d, want 4", n)
	}
	if !bytes.Equal(out, []byte("cdef")) {
		t.Errorf("DequeueSlice() after wraparound = %q, want %q", out, "cdef")
	}
}

func TestInvariantLenNeverExceedsCapacity(t *testing.T) {
	b := New(4)
	initial := b.Len()
	n := b.EnqueueSlice([]byte("abcdefgh"))
	if initial+n > b.Capacity() {
		t.Errorf("enqueue violated capacity invariant: initial=%d n=%d cap=%d", initial, n, b.Capacity())
	}
}

func TestDequeueManyWith(t *testing.T) {
	b := New(8)
	b.EnqueueSlice([]byte("abcd"))
	sum := DequeueManyWith(b, func(view []byte) (int, int) {
		total := 0
		for _, c := range view {
			total += int(c)
		}
		return len(view), total
	})
	if b.Len() != 0 {
		t.Errorf("Len() after DequeueManyWith = %d, want 0", b.Len())
	}
	if sum == 0 {
		t.Error("DequeueManyWith() result = 0, want nonzero checksum")
	}
}

func TestDequeueManyWithWrapping(t *testing.T) {
	b := New(4)
	b.EnqueueSlice([]byte("ab"))
	discard := make([]byte, 2)
	b.DequeueSlice(discard)
	b.EnqueueSlice([]byte("cdef"))

	var got []byte
	DequeueManyWithWrapping(b, func(first, second []byte) (int, struct{}) {
		got = append(got, first...)
		got = append(got, second...)
		return len(first) + len(second), struct{}{}
	})
	if !bytes.Equal(got, []byte("cdef")) {
		t.Errorf("DequeueManyWithWrapping() assembled = %q, want %q", got, "cdef")
	}
	if !b.IsEmpty() {
		t.Error("IsEmpty() = false after consuming all segments")
	}
}

func TestGetAllocatedZeroCopyPeek(t *testing.T) {
	b := New(8)
	b.EnqueueSlice([]byte("abcdef"))
	view := b.GetAllocated(2, 3)
	if !bytes.Equal(view, []byte("cde")) {
		t.Errorf("GetAllocated(2, 3) = %q, want %q", view, "cde")
	}
	if b.Len() != 6 {
		t.Errorf("GetAllocated must not consume bytes: Len() = %d, want 6", b.Len())
	}
}

func TestGetAllocatedPastEnd(t *testing.T) {
	b := New(4)
	b.EnqueueSlice([]byte("ab"))
	if view := b.GetAllocated(5, 2); view != nil {
		t.Errorf("GetAllocated() past end = %v, want nil", view)
	}
}

func TestReset(t *testing.T) {
	b := New(4)
	b.EnqueueSlice([]byte("ab"))
	b.Reset()
	if !b.IsEmpty() {
		t.Error("IsEmpty() = false after Reset")
	}
	if n := b.EnqueueSlice([]byte("wxyz")); n != 4 {
		t.Errorf("EnqueueSlice() after Reset = %d, want 4", n)
	}
}
