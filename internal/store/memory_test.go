package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

func seedRoom(t *testing.T, s *MemStore, id string, vis domain.Visibility, created time.Time) *domain.Room {
	t.Helper()
	room := &domain.Room{
		ID:         domain.RoomID(id),
		Name:       id,
		Kind:       domain.KindCollab,
		OwnerID:    "u_owner",
		Visibility: vis,
		Status:     domain.StatusLive,
		Capacity:   4,
		CreatedAt:  created,
	}
	require.NoError(t, s.CreateRoom(context.Background(), room))
	return room
}

func TestMemStore_RoomCRUD(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_, err := s.GetRoom(ctx, "rm_missing")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)

	room := seedRoom(t, s, "rm_1", domain.VisibilityPublic, time.Now().UTC())

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, room.Name, got.Name)

	// returned values are copies, not aliases of the stored row
	got.Name = "scribbled"
	fresh, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, "rm_1", fresh.Name)

	fresh.Status = domain.StatusEnded
	require.NoError(t, s.UpdateRoom(ctx, fresh))
	got, err = s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusEnded, got.Status)

	err = s.UpdateRoom(ctx, &domain.Room{ID: "rm_missing"})
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemStore_ListRoomsCursorWalk(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		seedRoom(t, s, fmt.Sprintf("rm_%d", i), domain.VisibilityPublic, base.Add(time.Duration(i)*time.Second))
	}
	// out of scope for a public listing
	seedRoom(t, s, "rm_private", domain.VisibilityPrivate, base)
	ended := seedRoom(t, s, "rm_gone", domain.VisibilityPublic, base)
	ended.Status = domain.StatusEnded
	require.NoError(t, s.UpdateRoom(ctx, ended))

	var (
		seen   []string
		cursor string
	)
	for {
		page, next, err := s.ListRooms(ctx, domain.VisibilityPublic, 2, cursor)
		require.NoError(t, err)
		for _, r := range page {
			seen = append(seen, string(r.ID))
		}
		if next == "" {
			break
		}
		cursor = next
	}

	// newest first, every live public room exactly once
	require.Equal(t, []string{"rm_4", "rm_3", "rm_2", "rm_1", "rm_0"}, seen)
}

func TestMemStore_InvalidCursor(t *testing.T) {
	s := NewMemStore()
	_, _, err := s.ListRooms(context.Background(), domain.VisibilityPublic, 10, "!!not-base64!!")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, _, err = s.ListChatMessages(context.Background(), "rm_1", 10, "!!not-base64!!")
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestMemStore_Participants(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	orphan := domain.NewParticipant("rm_missing", domain.Identity{UserID: "u_a", Username: "a"}, domain.RoleParticipant, false)
	require.ErrorIs(t, s.UpsertParticipant(ctx, orphan), domain.ErrRoomNotFound)

	room := seedRoom(t, s, "rm_1", domain.VisibilityPublic, time.Now().UTC())
	first := domain.NewParticipant(room.ID, domain.Identity{UserID: "u_a", Username: "a"}, domain.RoleParticipant, false)
	first.JoinedAt = time.Now().UTC().Add(-time.Minute)
	second := domain.NewParticipant(room.ID, domain.Identity{UserID: "u_b", Username: "b"}, domain.RoleModerator, false)
	require.NoError(t, s.UpsertParticipant(ctx, first))
	require.NoError(t, s.UpsertParticipant(ctx, second))

	got, err := s.GetParticipant(ctx, room.ID, "u_b")
	require.NoError(t, err)
	require.Equal(t, domain.RoleModerator, got.Role)

	_, err = s.GetParticipant(ctx, room.ID, "u_ghost")
	require.ErrorIs(t, err, domain.ErrParticipantNotFound)

	// listing follows join order
	list, err := s.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.UserID("u_a"), list[0].UserID)

	// an upsert replaces the row in place
	first.Depart()
	require.NoError(t, s.UpsertParticipant(ctx, first))
	got, err = s.GetParticipant(ctx, room.ID, "u_a")
	require.NoError(t, err)
	require.False(t, got.IsPresent)
	list, err = s.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestMemStore_ChatPagination(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	room := seedRoom(t, s, "rm_1", domain.VisibilityPublic, time.Now().UTC())
	base := time.Now().UTC().Add(-time.Minute)

	for i := 0; i < 5; i++ {
		msg := &domain.ChatMessage{
			ID:       domain.MessageID(fmt.Sprintf("msg_%d", i)),
			RoomID:   room.ID,
			SenderID: "u_a",
			Body:     fmt.Sprintf("line %d", i),
			SentAt:   base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.SaveChatMessage(ctx, msg))
	}

	page, next, err := s.ListChatMessages(ctx, room.ID, 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	require.Equal(t, "line 4", page[0].Body)
	require.Equal(t, "line 3", page[1].Body)

	page, next, err = s.ListChatMessages(ctx, room.ID, 2, next)
	require.NoError(t, err)
	require.Equal(t, "line 2", page[0].Body)
	require.Equal(t, "line 1", page[1].Body)

	page, next, err = s.ListChatMessages(ctx, room.ID, 2, next)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "line 0", page[0].Body)
	require.Empty(t, next)
}

func TestMemStore_RecordingsUpsertByID(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	room := seedRoom(t, s, "rm_1", domain.VisibilityPublic, time.Now().UTC())

	rec := domain.NewRecording(room.ID, "u_a")
	require.NoError(t, s.SaveRecording(ctx, rec))

	rec.Finish("s3://bucket/out.mkv")
	require.NoError(t, s.SaveRecording(ctx, rec))

	recs, err := s.ListRecordings(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.False(t, recs[0].Active)
	require.Equal(t, "s3://bucket/out.mkv", recs[0].OutputRef)
}

func TestMemStore_RoomDataTopicWindow(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	room := seedRoom(t, s, "rm_1", domain.VisibilityPublic, time.Now().UTC())

	for i := 0; i < 4; i++ {
		blob, err := domain.NewRoomDataBlob(room.ID, "u_a", "whiteboard", []byte(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
		require.NoError(t, s.SaveRoomData(ctx, blob))
	}
	poll, err := domain.NewRoomDataBlob(room.ID, "u_b", "poll", []byte(`{"q":"?"}`))
	require.NoError(t, err)
	require.NoError(t, s.SaveRoomData(ctx, poll))

	blobs, err := s.ListRoomData(ctx, room.ID, "whiteboard", 10)
	require.NoError(t, err)
	require.Len(t, blobs, 4)

	// the window keeps the most recent entries, oldest first within it
	blobs, err = s.ListRoomData(ctx, room.ID, "whiteboard", 2)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	require.JSONEq(t, `{"n":2}`, string(blobs[0].Payload))
	require.JSONEq(t, `{"n":3}`, string(blobs[1].Payload))

	blobs, err = s.ListRoomData(ctx, room.ID, "", 10)
	require.NoError(t, err)
	require.Len(t, blobs, 5)
}

func TestMemStore_InviteLifecycle(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_, err := s.GetInvite(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrInvalidInviteCode)

	inv := domain.NewInvite("rm_1", "u_owner", time.Hour, 2)
	require.NoError(t, s.CreateInvite(ctx, inv))

	got, err := s.GetInvite(ctx, inv.Code)
	require.NoError(t, err)
	require.Equal(t, 0, got.Uses)

	used, err := s.ConsumeInvite(ctx, inv.Code)
	require.NoError(t, err)
	require.Equal(t, 1, used.Uses)
	used, err = s.ConsumeInvite(ctx, inv.Code)
	require.NoError(t, err)
	require.Equal(t, 2, used.Uses)

	// budget spent
	_, err = s.ConsumeInvite(ctx, inv.Code)
	require.ErrorIs(t, err, domain.ErrInvalidInviteCode)

	require.NoError(t, s.RevokeInvite(ctx, inv.Code))
	_, err = s.GetInvite(ctx, inv.Code)
	require.ErrorIs(t, err, domain.ErrInvalidInviteCode)
}

func TestMemStore_ExpiredInviteNotConsumable(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	inv := domain.NewInvite("rm_1", "u_owner", -time.Minute, 0)
	require.NoError(t, s.CreateInvite(ctx, inv))

	_, err := s.ConsumeInvite(ctx, inv.Code)
	require.ErrorIs(t, err, domain.ErrInvalidInviteCode)
}

func TestMemStore_UnlimitedInvite(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	inv := domain.NewInvite("rm_1", "u_owner", time.Hour, 0)
	require.NoError(t, s.CreateInvite(ctx, inv))
	for i := 0; i < 10; i++ {
		_, err := s.ConsumeInvite(ctx, inv.Code)
		require.NoError(t, err)
	}
}

func TestMemStore_SnapshotTTL(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	data, err := s.LoadVoiceSnapshot(ctx, "rm_1")
	require.NoError(t, err)
	require.Nil(t, data)

	require.NoError(t, s.SaveVoiceSnapshot(ctx, "rm_1", []byte(`{"ts":1}`), 50*time.Millisecond))
	data, err = s.LoadVoiceSnapshot(ctx, "rm_1")
	require.NoError(t, err)
	require.JSONEq(t, `{"ts":1}`, string(data))

	time.Sleep(80 * time.Millisecond)
	data, err = s.LoadVoiceSnapshot(ctx, "rm_1")
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{TS: time.Now().UTC().Truncate(time.Millisecond), ID: "msg_42"}
	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.True(t, decoded.TS.Equal(c.TS))
	require.Equal(t, c.ID, decoded.ID)

	decoded, err = DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, decoded)
}
