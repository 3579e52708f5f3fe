package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRosterAddDefaultsToAnonymous(t *testing.T) {
	r := NewRoster()

	assert.Equal(t, "Ann", r.Add("v1", "Ann"))
	assert.Equal(t, AnonymousName, r.Add("v2", ""))
	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Has("v1"))
}

func TestRosterAddIsUpsert(t *testing.T) {
	r := NewRoster()

	r.Add("v1", "Ann")
	r.Add("v1", "Annabel")

	assert.Equal(t, 1, r.Count())
	name, ok := r.Remove("v1")
	assert.True(t, ok)
	assert.Equal(t, "Annabel", name)
}

func TestRosterRemoveUnknownIsNoop(t *testing.T) {
	r := NewRoster()
	r.Add("v1", "Ann")

	name, ok := r.Remove("v2")
	assert.False(t, ok)
	assert.Empty(t, name)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Remove("v1")
	assert.True(t, ok)
	_, ok = r.Remove("v1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}
