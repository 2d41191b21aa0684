package elfanalyzer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyscallSet_ZeroValue(t *testing.T) {
	var s SyscallSet
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains("write"))
	assert.Empty(t, s.Sorted())

	s.Add("write")
	assert.True(t, s.Contains("write"))
}

func TestSyscallSet_MergeIsIdempotent(t *testing.T) {
	s := NewSyscallSet("socket", "connect")
	before := s.Clone()

	s.Merge(s.Clone())
	s.Merge(before)
	s.Add("socket")

	assert.True(t, s.Equal(before))
	assert.Equal(t, []string{"connect", "socket"}, s.Sorted())
}

func TestSyscallSet_MergeIsOrderIndependent(t *testing.T) {
	a := NewSyscallSet("read", "write")
	b := NewSyscallSet("write", "openat")

	ab := a.Clone()
	ab.Merge(b)
	ba := b.Clone()
	ba.Merge(a)

	assert.True(t, ab.Equal(ba))
	assert.Equal(t, 3, ab.Len())
	assert.False(t, a.Equal(b))
}

func TestSyscallSet_JSON(t *testing.T) {
	data, err := json.Marshal(NewSyscallSet("write", "close", "openat"))
	require.NoError(t, err)
	assert.JSONEq(t, `["close","openat","write"]`, string(data))

	var s SyscallSet
	require.NoError(t, json.Unmarshal([]byte(`["write","write"]`), &s))
	assert.Equal(t, []string{"write"}, s.Sorted())
}
