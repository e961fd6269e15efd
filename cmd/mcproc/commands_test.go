package main

import "testing"

func TestBuildRootRegistersEveryOperation(t *testing.T) {
	root := buildRoot()
	want := []string{"start", "stop", "restart", "get", "list", "logs", "grep", "clean", "status"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestStartHasProjectAndNameFlags(t *testing.T) {
	cmd := newStartCommand(&globalFlags{})
	if cmd.Flags().Lookup("project") == nil || cmd.Flags().Lookup("name") == nil {
		t.Fatal("start command is missing --project/--name flags")
	}
}

func TestGrepRequiresAPattern(t *testing.T) {
	cmd := newGrepCommand(&globalFlags{})
	cmd.SetArgs(nil)
	_ = cmd.Flags().Set("project", "demo")
	_ = cmd.Flags().Set("name", "web")
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Fatal("expected an error when no pattern is given")
	}
}
