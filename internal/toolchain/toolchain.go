// Package toolchain wraps a shell command through a version-manager shim,
// ported from original_source/mcproc/src/daemon/process/toolchain.rs (see
// SPEC_FULL.md, Supplemented Features).
package toolchain

import (
	"fmt"
	"strings"
)

// Toolchain describes one version-manager wrapper.
type Toolchain struct {
	Name            string
	commandTemplate string // "{cmd}" is replaced with the (possibly quoted) shell command
	displayTemplate string
	useDoubleQuotes bool
}

var all = []Toolchain{
	{Name: "mise", commandTemplate: `mise exec -- sh -c "{cmd}"`, displayTemplate: "mise exec -- {cmd}", useDoubleQuotes: true},
	{Name: "asdf", commandTemplate: `asdf exec sh -c "{cmd}"`, displayTemplate: "asdf exec {cmd}", useDoubleQuotes: true},
	{Name: "nvm", commandTemplate: `bash -c "source ~/.nvm/nvm.sh && {cmd}"`, displayTemplate: "nvm run {cmd}", useDoubleQuotes: true},
	{Name: "rbenv", commandTemplate: `rbenv exec sh -c "{cmd}"`, displayTemplate: "rbenv exec {cmd}", useDoubleQuotes: true},
	{Name: "pyenv", commandTemplate: `pyenv exec sh -c "{cmd}"`, displayTemplate: "pyenv exec {cmd}", useDoubleQuotes: true},
	{Name: "nodenv", commandTemplate: `nodenv exec sh -c "{cmd}"`, displayTemplate: "nodenv exec {cmd}", useDoubleQuotes: true},
	{Name: "jenv", commandTemplate: `jenv exec sh -c "{cmd}"`, displayTemplate: "jenv exec {cmd}", useDoubleQuotes: true},
	{Name: "tfenv", commandTemplate: `tfenv exec sh -c "{cmd}"`, displayTemplate: "tfenv exec {cmd}", useDoubleQuotes: true},
	{Name: "goenv", commandTemplate: `goenv exec sh -c "{cmd}"`, displayTemplate: "goenv exec {cmd}", useDoubleQuotes: true},
	{Name: "rustup", commandTemplate: `rustup run stable sh -c '{cmd}'`, displayTemplate: "rustup run {cmd}", useDoubleQuotes: false},
}

// AllSupported lists every toolchain name this daemon recognizes.
func AllSupported() []string {
	names := make([]string, len(all))
	for i, tc := range all {
		names[i] = tc.Name
	}
	return names
}

// Parse looks up a toolchain by name, case-insensitively.
func Parse(s string) (Toolchain, bool) {
	for _, tc := range all {
		if strings.EqualFold(tc.Name, s) {
			return tc, true
		}
	}
	return Toolchain{}, false
}

// WrapCommand wraps shellCommand through the toolchain's exec form, returning
// the command to actually run and a human-readable display form for banners
// and logs.
func (tc Toolchain) WrapCommand(shellCommand string) (final string, display string) {
	escaped := shellCommand
	if tc.useDoubleQuotes {
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	} else {
		escaped = strings.ReplaceAll(escaped, `'`, `'\''`)
	}
	final = strings.ReplaceAll(tc.commandTemplate, "{cmd}", escaped)
	display = strings.ReplaceAll(tc.displayTemplate, "{cmd}", shellCommand)
	return final, display
}

// WrapByName is a convenience wrapper around Parse+WrapCommand, returning an
// InvalidArgument-flavored error if name is not recognized.
func WrapByName(name, shellCommand string) (final string, display string, err error) {
	tc, ok := Parse(name)
	if !ok {
		return "", "", fmt.Errorf("unknown toolchain %q: supported are %s", name, strings.Join(AllSupported(), ", "))
	}
	final, display = tc.WrapCommand(shellCommand)
	return final, display, nil
}
