package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReactionSet_ScanLegacyNumeric(t *testing.T) {
	var r ReactionSet
	err := r.Scan("5")

	assert.NoError(t, err)
	assert.Equal(t, 5, r.Count())
	assert.Empty(t, r.Users())
}

func TestReactionSet_ScanMemberArray(t *testing.T) {
	var r ReactionSet
	err := r.Scan(`["alice","bob"]`)

	assert.NoError(t, err)
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"alice", "bob"}, r.Users())
	assert.True(t, r.Has("alice"))
	assert.False(t, r.Has("carol"))
}

func TestReactionSet_ScanEmpty(t *testing.T) {
	var r ReactionSet

	assert.NoError(t, r.Scan(nil))
	assert.Equal(t, 0, r.Count())

	assert.NoError(t, r.Scan(""))
	assert.Equal(t, 0, r.Count())

	assert.NoError(t, r.Scan([]byte("[]")))
	assert.Equal(t, 0, r.Count())
}

func TestReactionSet_LegacyValuePreserved(t *testing.T) {
	var r ReactionSet
	assert.NoError(t, r.Scan("7"))

	v, err := r.Value()

	assert.NoError(t, err)
	assert.Equal(t, "7", v)
}

func TestReactionSet_ToggleConvertsLegacy(t *testing.T) {
	var r ReactionSet
	assert.NoError(t, r.Scan("7"))

	added := r.Toggle("alice")

	assert.True(t, added)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"alice"}, r.Users())

	v, err := r.Value()
	assert.NoError(t, err)
	assert.Equal(t, `["alice"]`, v)
}

func TestReactionSet_TogglePairIsIdempotent(t *testing.T) {
	var r ReactionSet

	assert.True(t, r.Toggle("alice"))
	assert.Equal(t, 1, r.Count())

	assert.False(t, r.Toggle("alice"))
	assert.Equal(t, 0, r.Count())

	v, err := r.Value()
	assert.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestReactionSet_ToggleNeverDuplicates(t *testing.T) {
	var r ReactionSet

	r.Toggle("alice")
	r.Toggle("bob")
	r.Toggle("alice")
	r.Toggle("alice")

	assert.Equal(t, []string{"bob", "alice"}, r.Users())
}

func TestMediaList_RoundTrip(t *testing.T) {
	m := MediaList{{URL: "/uploads/1_a.png", Kind: "image"}}

	v, err := m.Value()
	assert.NoError(t, err)

	var decoded MediaList
	assert.NoError(t, decoded.Scan(v))
	assert.Equal(t, m, decoded)
}

func TestStringList_EmptyStoresArray(t *testing.T) {
	var s StringList

	v, err := s.Value()

	assert.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestIsVisitor(t *testing.T) {
	assert.True(t, IsVisitor("visitor_8f2c"))
	assert.False(t, IsVisitor("alice"))
	assert.False(t, IsVisitor(""))
}
