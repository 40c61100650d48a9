package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshotFromFixture(t *testing.T) {
	snap, err := BuildSnapshotFromFixture("testdata/social.yaml")
	require.NoError(t, err)

	userEnt, ok := snap.ByName("User")
	require.True(t, ok)
	user := userEnt.(*ObjectType)

	// bio/age are own properties; name is inherited from Named.
	_, ok = user.OwnPointer("bio")
	assert.True(t, ok)
	_, ok = user.OwnPointer("name")
	assert.False(t, ok, "name should be inherited, not own")
	nameID, ok := user.Pointers["name"]
	require.True(t, ok)
	assert.Equal(t, KindPointer, snap.MustLookup(nameID).EntityKind())

	friendsID, ok := user.Pointers["friends"]
	require.True(t, ok)
	friends := snap.MustLookup(friendsID).(*Pointer)
	assert.Equal(t, PointerLink, friends.Kind)
	assert.Equal(t, CardinalityMany, friends.Cardinality)
	assert.Equal(t, userEnt.Head().ID, friends.Target)
}

func TestParseFixtureRejectsMalformedYAML(t *testing.T) {
	_, err := ParseFixture([]byte("types: [not a mapping"))
	assert.Error(t, err)
}
