package main

import "testing"

func TestFilterDaemonizeArg(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"none", []string{"--config", "x.toml"}, []string{"--config", "x.toml"}},
		{"leading", []string{"--daemonize", "--config", "x.toml"}, []string{"--config", "x.toml"}},
		{"trailing", []string{"--config", "x.toml", "--daemonize"}, []string{"--config", "x.toml"}},
		{"keeps-logfile", []string{"--daemonize", "--logfile", "/tmp/d.log"}, []string{"--logfile", "/tmp/d.log"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := filterDaemonizeArg(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}
