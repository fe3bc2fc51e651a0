package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

const defaultPageSize = 50

// MemStore is the in-process implementation used for development and
// tests. It satisfies Store, InviteStore and SnapshotStore. Values are
// cloned at the boundary so callers never alias live map entries.
type MemStore struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomID]*domain.Room
	participants map[domain.RoomID]map[domain.UserID]*domain.Participant
	recordings   map[domain.RoomID][]*domain.Recording
	messages     map[domain.RoomID][]*domain.ChatMessage
	blobs        map[domain.RoomID][]*domain.RoomDataBlob
	invites      map[domain.InviteCode]*domain.Invite

	snapMu    sync.RWMutex
	snapshots map[domain.RoomID]memSnapshot
}

type memSnapshot struct {
	data    []byte
	expires time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		rooms:        make(map[domain.RoomID]*domain.Room),
		participants: make(map[domain.RoomID]map[domain.UserID]*domain.Participant),
		recordings:   make(map[domain.RoomID][]*domain.Recording),
		messages:     make(map[domain.RoomID][]*domain.ChatMessage),
		blobs:        make(map[domain.RoomID][]*domain.RoomDataBlob),
		invites:      make(map[domain.InviteCode]*domain.Invite),
		snapshots:    make(map[domain.RoomID]memSnapshot),
	}
}

func (s *MemStore) Close() {}

func (s *MemStore) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *MemStore) GetRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (s *MemStore) UpdateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *MemStore) ListRooms(_ context.Context, visibility domain.Visibility, limit int, cursor string) ([]*domain.Room, string, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.mu.RLock()
	all := make([]*domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if r.Visibility != visibility || r.Ended() {
			continue
		}
		all = append(all, r)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	out := make([]*domain.Room, 0, limit)
	for _, r := range all {
		if cur != nil && !beforeCursor(r.CreatedAt, string(r.ID), cur) {
			continue
		}
		out = append(out, cloneRoom(r))
		if len(out) == limit {
			break
		}
	}

	next := ""
	if len(out) == limit && len(out) < len(all) {
		last := out[len(out)-1]
		next = EncodeCursor(Cursor{TS: last.CreatedAt, ID: string(last.ID)})
	}
	return out, next, nil
}

// beforeCursor reports whether a (ts, id) row sorts strictly after the
// cursor position in the newest-first ordering.
func beforeCursor(ts time.Time, id string, cur *Cursor) bool {
	if ts.Equal(cur.TS) {
		return id < cur.ID
	}
	return ts.Before(cur.TS)
}

func (s *MemStore) UpsertParticipant(_ context.Context, p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[p.RoomID]; !ok {
		return domain.ErrRoomNotFound
	}
	byUser, ok := s.participants[p.RoomID]
	if !ok {
		byUser = make(map[domain.UserID]*domain.Participant)
		s.participants[p.RoomID] = byUser
	}
	byUser[p.UserID] = cloneParticipant(p)
	return nil
}

func (s *MemStore) GetParticipant(_ context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[roomID][userID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return cloneParticipant(p), nil
}

func (s *MemStore) ListParticipants(_ context.Context, roomID domain.RoomID) ([]*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := s.participants[roomID]
	out := make([]*domain.Participant, 0, len(byUser))
	for _, p := range byUser {
		out = append(out, cloneParticipant(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *MemStore) SaveRecording(_ context.Context, rec *domain.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.recordings[rec.RoomID]
	for i, r := range recs {
		if r.ID == rec.ID {
			recs[i] = cloneRecording(rec)
			return nil
		}
	}
	s.recordings[rec.RoomID] = append(recs, cloneRecording(rec))
	return nil
}

func (s *MemStore) ListRecordings(_ context.Context, roomID domain.RoomID) ([]*domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.recordings[roomID]
	out := make([]*domain.Recording, 0, len(recs))
	for _, r := range recs {
		out = append(out, cloneRecording(r))
	}
	return out, nil
}

func (s *MemStore) SaveChatMessage(_ context.Context, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *msg
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], &c)
	return nil
}

func (s *MemStore) ListChatMessages(_ context.Context, roomID domain.RoomID, limit int, cursor string) ([]*domain.ChatMessage, string, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.mu.RLock()
	msgs := make([]*domain.ChatMessage, len(s.messages[roomID]))
	copy(msgs, s.messages[roomID])
	s.mu.RUnlock()

	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].SentAt.After(msgs[j].SentAt)
		}
		return msgs[i].ID > msgs[j].ID
	})

	out := make([]*domain.ChatMessage, 0, limit)
	for _, m := range msgs {
		if cur != nil && !beforeCursor(m.SentAt, string(m.ID), cur) {
			continue
		}
		c := *m
		out = append(out, &c)
		if len(out) == limit {
			break
		}
	}

	next := ""
	if len(out) == limit && len(out) < len(msgs) {
		last := out[len(out)-1]
		next = EncodeCursor(Cursor{TS: last.SentAt, ID: string(last.ID)})
	}
	return out, next, nil
}

func (s *MemStore) SaveRoomData(_ context.Context, blob *domain.RoomDataBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *blob
	s.blobs[blob.RoomID] = append(s.blobs[blob.RoomID], &c)
	return nil
}

func (s *MemStore) ListRoomData(_ context.Context, roomID domain.RoomID, topic string, limit int) ([]*domain.RoomDataBlob, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*domain.RoomDataBlob, 0, limit)
	for _, b := range s.blobs[roomID] {
		if topic == "" || b.Topic == topic {
			matched = append(matched, b)
		}
	}
	// trailing window, oldest first within the window
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]*domain.RoomDataBlob, 0, len(matched))
	for _, b := range matched {
		c := *b
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemStore) CreateInvite(_ context.Context, inv *domain.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *inv
	s.invites[inv.Code] = &c
	return nil
}

func (s *MemStore) GetInvite(_ context.Context, code domain.InviteCode) (*domain.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invites[code]
	if !ok {
		return nil, domain.ErrInvalidInviteCode
	}
	c := *inv
	return &c, nil
}

func (s *MemStore) ConsumeInvite(_ context.Context, code domain.InviteCode) (*domain.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[code]
	if !ok || inv.Expired(time.Now().UTC()) || inv.Exhausted() {
		return nil, domain.ErrInvalidInviteCode
	}
	inv.Uses++
	c := *inv
	return &c, nil
}

func (s *MemStore) RevokeInvite(_ context.Context, code domain.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invites, code)
	return nil
}

func (s *MemStore) SaveVoiceSnapshot(_ context.Context, roomID domain.RoomID, data []byte, ttl time.Duration) error {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.snapshots[roomID] = memSnapshot{data: buf, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemStore) LoadVoiceSnapshot(_ context.Context, roomID domain.RoomID) ([]byte, error) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	snap, ok := s.snapshots[roomID]
	if !ok || time.Now().After(snap.expires) {
		return nil, nil
	}
	buf := make([]byte, len(snap.data))
	copy(buf, snap.data)
	return buf, nil
}

func cloneRoom(r *domain.Room) *domain.Room {
	c := *r
	if r.ScheduledAt != nil {
		t := *r.ScheduledAt
		c.ScheduledAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func cloneParticipant(p *domain.Participant) *domain.Participant {
	c := *p
	if p.LeftAt != nil {
		t := *p.LeftAt
		c.LeftAt = &t
	}
	if p.Overrides != nil {
		o := *p.Overrides
		c.Overrides = &o
	}
	return &c
}

func cloneRecording(r *domain.Recording) *domain.Recording {
	c := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}
