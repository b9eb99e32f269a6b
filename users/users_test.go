package users_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/club-booking-client/users"
	"github.com/stretchr/testify/require"
)

func TestIdentityUnmarshal_NumericID(t *testing.T) {
	var id users.Identity
	err := json.Unmarshal([]byte(`{"id":42,"username":"kiki","name":"Kiki","email":"k@club.test","role":"member","canBookCourse":true}`), &id)
	require.NoError(t, err)
	require.Equal(t, "42", id.ID)
	require.Equal(t, users.RoleMember, id.Role)
	require.True(t, id.CanBook())
	require.True(t, id.CanBookCourse)
}

func TestIdentityUnmarshal_DanceTypeSpellings(t *testing.T) {
	var a, b users.Identity
	require.NoError(t, json.Unmarshal([]byte(`{"id":"3","role":"leader","danceType":"popping"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"3","role":"LEADER","dance_type":"popping"}`), &b))
	require.Equal(t, a, b)
	require.True(t, a.LeadsDanceType("Popping"))
	require.False(t, a.CanBook())
	require.False(t, a.CanBookCourse)
}

func TestIdentityUnmarshal_BadID(t *testing.T) {
	var id users.Identity
	err := json.Unmarshal([]byte(`{"id":true,"username":"kiki"}`), &id)
	require.ErrorContains(t, err, "identity id")
}

func TestIdentityRoundTripKeepsCanonicalForm(t *testing.T) {
	in := users.Identity{ID: "9", Username: "u", Role: users.RoleAdmin, EmailVerified: true}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out users.Identity
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, in, out)
	require.True(t, out.IsAdmin())
}

func TestCanonicalID(t *testing.T) {
	tests := map[string]string{
		`17`:    "17",
		`"17"`:  "17",
		`null`:  "",
		``:      "",
		`"abc"`: "abc",
		`1.5`:   "1.5",
	}
	for raw, want := range tests {
		got, err := users.CanonicalID(json.RawMessage(raw))
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
}

func TestRoleValid(t *testing.T) {
	require.True(t, users.RoleLeader.Valid())
	require.False(t, users.RoleType("student").Valid())
}
