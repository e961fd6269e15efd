package common

import "testing"

func TestProcessKeyString(t *testing.T) {
	k := NewProcessKey("demo", "web")
	if got, want := k.String(), "demo/web"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestParseProcessKey(t *testing.T) {
	k, err := ParseProcessKey("demo/web")
	if err != nil {
		t.Fatalf("ParseProcessKey: %v", err)
	}
	if k.Project != "demo" || k.Name != "web" {
		t.Fatalf("got %+v", k)
	}
	if _, err := ParseProcessKey("no-slash"); err == nil {
		t.Fatal("expected error for key without separator")
	}
}

func TestSanitizedName(t *testing.T) {
	k := NewProcessKey("demo", "api/worker")
	if got, want := k.SanitizedName(), "api_worker"; got != want {
		t.Fatalf("SanitizedName() = %q, want %q", got, want)
	}
}
