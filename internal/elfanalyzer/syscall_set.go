package elfanalyzer

import (
	"encoding/json"
	"sort"
)

// SyscallSet is a set of syscall names. The zero value is an empty set ready
// to use.
type SyscallSet struct {
	m map[string]struct{}
}

// NewSyscallSet returns a set holding names.
func NewSyscallSet(names ...string) SyscallSet {
	var s SyscallSet
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name.
func (s *SyscallSet) Add(name string) {
	if s.m == nil {
		s.m = make(map[string]struct{})
	}
	s.m[name] = struct{}{}
}

// Merge adds every member of other.
func (s *SyscallSet) Merge(other SyscallSet) {
	for n := range other.m {
		s.Add(n)
	}
}

// Contains reports whether name is a member.
func (s SyscallSet) Contains(name string) bool {
	_, ok := s.m[name]
	return ok
}

// Len returns the number of members.
func (s SyscallSet) Len() int { return len(s.m) }

// Sorted returns the members in lexical order.
func (s SyscallSet) Sorted() []string {
	out := make([]string, 0, len(s.m))
	for n := range s.m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same members.
func (s SyscallSet) Equal(other SyscallSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for n := range s.m {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s SyscallSet) Clone() SyscallSet {
	var c SyscallSet
	c.Merge(s)
	return c
}

// MarshalJSON encodes the set as a sorted array.
func (s SyscallSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of names.
func (s *SyscallSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSyscallSet(names...)
	return nil
}
