package common

import (
	"fmt"
	"strings"
)

// ProcessKey identifies a managed process by its project/name pair.
// Grounded on original_source/mcproc/src/common/process_key.rs.
type ProcessKey struct {
	Project string
	Name    string
}

func NewProcessKey(project, name string) ProcessKey {
	return ProcessKey{Project: project, Name: name}
}

// ParseProcessKey splits a "project/name" string into a ProcessKey.
func ParseProcessKey(s string) (ProcessKey, error) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return ProcessKey{}, fmt.Errorf("invalid process key %q: expected project/name", s)
	}
	return ProcessKey{Project: s[:i], Name: s[i+1:]}, nil
}

func (k ProcessKey) String() string {
	return k.Project + "/" + k.Name
}

// SanitizedName replaces path separators in Name so it is safe to use as a
// log file basename.
func (k ProcessKey) SanitizedName() string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(k.Name)
}
