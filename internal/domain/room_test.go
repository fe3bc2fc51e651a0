package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validSpec() *RoomSpec {
	return &RoomSpec{
		Name:       "standup",
		Kind:       KindVideoSession,
		Visibility: VisibilityPublic,
		Capacity:   8,
	}
}

func TestRoomSpecValidate(t *testing.T) {
	require.NoError(t, validSpec().Validate(100))

	cases := []struct {
		name   string
		mutate func(*RoomSpec)
	}{
		{"empty name", func(s *RoomSpec) { s.Name = "  " }},
		{"name too long", func(s *RoomSpec) { s.Name = strings.Repeat("x", MaxRoomNameLen+1) }},
		{"unknown kind", func(s *RoomSpec) { s.Kind = "arena" }},
		{"unknown visibility", func(s *RoomSpec) { s.Visibility = "secret" }},
		{"capacity too small", func(s *RoomSpec) { s.Capacity = 1 }},
		{"capacity too big", func(s *RoomSpec) { s.Capacity = 101 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := validSpec()
			tc.mutate(spec)
			require.ErrorIs(t, spec.Validate(100), ErrInvalidRoomSpec)
		})
	}
}

func TestNewRoom_ScheduledStatus(t *testing.T) {
	room := NewRoom(validSpec(), "u1")
	require.Equal(t, StatusLive, room.Status)
	require.True(t, strings.HasPrefix(string(room.ID), "rm_"))
	require.Equal(t, UserID("u1"), room.OwnerID)

	future := time.Now().Add(time.Hour)
	spec := validSpec()
	spec.ScheduledAt = &future
	require.Equal(t, StatusScheduled, NewRoom(spec, "u1").Status)

	past := time.Now().Add(-time.Hour)
	spec.ScheduledAt = &past
	require.Equal(t, StatusLive, NewRoom(spec, "u1").Status)
}

func TestRequiresInvite(t *testing.T) {
	room := NewRoom(validSpec(), "u1")
	require.False(t, room.RequiresInvite())

	room.Visibility = VisibilityPrivate
	require.True(t, room.RequiresInvite())

	room.Visibility = VisibilityInviteOnly
	require.True(t, room.RequiresInvite())

	room.Visibility = VisibilityPublic
	room.Settings.RequireApproval = true
	require.True(t, room.RequiresInvite())
}
