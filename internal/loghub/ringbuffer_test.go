package loghub

import "testing"

func TestRingBufferTailChronological(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := int64(1); i <= 3; i++ {
		rb.Push(LogEntry{LineNumber: i, Content: "line"})
	}
	tail := rb.Tail(0)
	if len(tail) != 3 {
		t.Fatalf("len = %d, want 3", len(tail))
	}
	for i, e := range tail {
		if e.LineNumber != int64(i+1) {
			t.Fatalf("tail[%d].LineNumber = %d, want %d", i, e.LineNumber, i+1)
		}
	}
}

func TestRingBufferEvictsOldestAtCapacityPlusOne(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := int64(1); i <= 4; i++ {
		rb.Push(LogEntry{LineNumber: i})
	}
	tail := rb.Tail(0)
	if len(tail) != 3 {
		t.Fatalf("len = %d, want 3", len(tail))
	}
	if tail[0].LineNumber != 2 {
		t.Fatalf("oldest retained = %d, want 2 (line 1 evicted)", tail[0].LineNumber)
	}
	if tail[2].LineNumber != 4 {
		t.Fatalf("newest = %d, want 4", tail[2].LineNumber)
	}
}

func TestRingBufferTailNLessThanSize(t *testing.T) {
	rb := NewRingBuffer(10)
	for i := int64(1); i <= 5; i++ {
		rb.Push(LogEntry{LineNumber: i})
	}
	tail := rb.Tail(2)
	if len(tail) != 2 || tail[0].LineNumber != 4 || tail[1].LineNumber != 5 {
		t.Fatalf("tail = %+v", tail)
	}
}
