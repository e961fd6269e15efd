package supervisor

import "testing"

func TestBuildCommandSpecShellForm(t *testing.T) {
	spec, display, err := buildCommandSpec(StartParams{ShellCommand: "echo hi"}, nil)
	if err != nil {
		t.Fatalf("buildCommandSpec: %v", err)
	}
	if spec.ShellCommand != "echo hi" {
		t.Errorf("ShellCommand = %q", spec.ShellCommand)
	}
	if display != "echo hi" {
		t.Errorf("display = %q", display)
	}
}

func TestBuildCommandSpecArgvForm(t *testing.T) {
	spec, display, err := buildCommandSpec(StartParams{Argv: []string{"echo", "hi there"}}, nil)
	if err != nil {
		t.Fatalf("buildCommandSpec: %v", err)
	}
	if len(spec.Argv) != 2 || spec.ShellCommand != "" {
		t.Errorf("spec = %+v", spec)
	}
	if display != "echo hi there" {
		t.Errorf("display = %q", display)
	}
}

func TestBuildCommandSpecToolchainWrapsArgv(t *testing.T) {
	spec, _, err := buildCommandSpec(StartParams{Argv: []string{"npm", "run", "dev"}, Toolchain: "mise"}, nil)
	if err != nil {
		t.Fatalf("buildCommandSpec: %v", err)
	}
	if spec.ShellCommand == "" {
		t.Fatalf("expected toolchain wrapping to produce a shell-form command")
	}
}

func TestJoinArgvQuotesSpecialCharacters(t *testing.T) {
	got := joinArgv([]string{"echo", "a b", "c'd", ""})
	want := `echo 'a b' 'c'\''d' ''`
	if got != want {
		t.Errorf("joinArgv() = %q, want %q", got, want)
	}
}

func TestShellQuotePlainWord(t *testing.T) {
	if got := shellQuote("plain"); got != "plain" {
		t.Errorf("shellQuote(plain) = %q", got)
	}
}

func TestMapToEnvSliceSortedDeterministic(t *testing.T) {
	got := mapToEnvSlice(map[string]string{"B": "2", "A": "1"})
	want := []string{"A=1", "B=2"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("mapToEnvSlice() = %v, want %v", got, want)
	}
}

func TestNewRecordStartsStopped(t *testing.T) {
	r := newRecord(newTestKey(), nil, "/tmp/x.log")
	if got := r.getState(); got != StateStopped {
		t.Errorf("newRecord state = %s, want Stopped", got)
	}
	if r.id == "" {
		t.Error("expected a generated id")
	}
}

func TestStartBannerOmitsGenerationOnFirstRun(t *testing.T) {
	b := startBanner("echo hi", "/tmp", fixedTime(), 1)
	if containsSubstring(b, "generation:") {
		t.Errorf("first-run banner should omit generation: %q", b)
	}
}

func TestStartBannerIncludesGenerationOnRestart(t *testing.T) {
	b := startBanner("echo hi", "/tmp", fixedTime(), 2)
	if !containsSubstring(b, "generation: 2") {
		t.Errorf("restart banner should include generation: %q", b)
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
