// Package portscan best-effort-detects TCP ports a process (and its
// descendants) are listening on. Grounded on
// loykin-provisr/internal/detector/procstart_unix.go's use of
// github.com/shirou/gopsutil/v4 as the idiomatic-Go substitute for shelling
// out to lsof/pgrep the way
// original_source/mcproc/src/daemon/process/port_detector.rs does (see
// DESIGN.md). Absence of a detected port is never an error (spec.md §4.1).
package portscan

import (
	gopsnet "github.com/shirou/gopsutil/v4/net"
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Detect returns the sorted, de-duplicated set of TCP ports in LISTEN state
// owned by pid or any of its descendants. Errors are swallowed: detection is
// always best-effort per spec.md §4.1.
func Detect(pid int32) []uint32 {
	pids := descendants(pid)
	pids = append(pids, pid)

	seen := map[int32]bool{}
	var owners []int32
	for _, p := range pids {
		if !seen[p] {
			seen[p] = true
			owners = append(owners, p)
		}
	}

	conns, err := gopsnet.Connections("tcp")
	if err != nil {
		return nil
	}

	portSeen := map[uint32]bool{}
	var ports []uint32
	for _, c := range conns {
		if c.Status != "LISTEN" {
			continue
		}
		if !seen[c.Pid] {
			continue
		}
		port := c.Laddr.Port
		if port == 0 || portSeen[port] {
			continue
		}
		portSeen[port] = true
		ports = append(ports, port)
	}
	return sortUint32(ports)
}

// descendants walks the process tree under pid via gopsutil, tolerating a
// process that has already exited (returns nil).
func descendants(pid int32) []int32 {
	proc, err := gopsproc.NewProcess(pid)
	if err != nil {
		return nil
	}
	var out []int32
	var walk func(p *gopsproc.Process)
	walk = func(p *gopsproc.Process) {
		children, err := p.Children()
		if err != nil {
			return
		}
		for _, c := range children {
			out = append(out, c.Pid)
			walk(c)
		}
	}
	walk(proc)
	return out
}

func sortUint32(s []uint32) []uint32 {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
	return s
}
