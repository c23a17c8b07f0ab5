package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u := NewUser("alice")
	assert.Regexp(t, `^usr_[0-9a-f]{12}$`, u.ID)
	assert.Equal(t, "alice", u.Name)
	assert.Empty(t, u.Tags)
	assert.NotEqual(t, u.ID, NewUser("alice").ID)
}

func TestUser_WithTagIsCopyOnWrite(t *testing.T) {
	u := NewUser("alice")
	tagged := u.WithTag("admin")

	assert.Equal(t, u.ID, tagged.ID)
	assert.Empty(t, u.Tags, "original must be unchanged")
	assert.Equal(t, []string{"admin"}, tagged.Tags)

	again := tagged.WithTag("admin")
	assert.Equal(t, []string{"admin"}, again.Tags)

	both := tagged.WithTag("ops")
	assert.Equal(t, []string{"admin", "ops"}, both.Tags)
	assert.Equal(t, []string{"admin"}, tagged.Tags)
}

func TestNewProject(t *testing.T) {
	p := NewProject("/home/alice/my-project", "0123456789abcdef")
	assert.Equal(t, "proj_0123456789ab", p.ID)
	assert.Equal(t, "my-project", p.Name)
	assert.Equal(t, "0123456789abcdef", p.PathHash)
	assert.Equal(t, "/home/alice/my-project", p.LastKnownPath)

	assert.Equal(t, "my-project", NewProject("/home/alice/my-project/", "aa").Name)
	assert.Equal(t, "root", NewProject("/", "bb").Name)
}

func TestIdentity_JSONRoundTrip(t *testing.T) {
	u := NewUser("bob").WithTag("beta")
	b, err := json.Marshal(u)
	require.NoError(t, err)
	var gotUser User
	require.NoError(t, json.Unmarshal(b, &gotUser))
	assert.Equal(t, u, gotUser)

	p := NewProject("/srv/app", "fedcba9876543210").WithTag("go")
	b, err = json.Marshal(p)
	require.NoError(t, err)
	var gotProject Project
	require.NoError(t, json.Unmarshal(b, &gotProject))
	assert.Equal(t, p, gotProject)
}

func TestIdentity_UnmarshalValidates(t *testing.T) {
	var u User
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"name":"x"}`), &u), ErrValidation)

	var p Project
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"id":"proj_1"}`), &p), ErrValidation)
}
