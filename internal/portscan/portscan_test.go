package portscan

import "testing"

func TestSortUint32(t *testing.T) {
	got := sortUint32([]uint32{5, 1, 3, 1, 9})
	want := []uint32{1, 1, 3, 5, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDetectUnknownPidIsEmpty(t *testing.T) {
	// A pid unlikely to exist; Detect must never error or panic.
	ports := Detect(1 << 30)
	if ports != nil {
		t.Fatalf("expected no ports for a bogus pid, got %v", ports)
	}
}
