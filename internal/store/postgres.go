package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	owner_id     TEXT NOT NULL,
	visibility   TEXT NOT NULL,
	status       TEXT NOT NULL,
	capacity     INT NOT NULL,
	settings     JSONB NOT NULL DEFAULT '{}',
	scheduled_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_rooms_listing ON rooms (visibility, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS room_participants (
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	user_id    TEXT NOT NULL,
	username   TEXT NOT NULL,
	role       TEXT NOT NULL,
	overrides  JSONB,
	is_present BOOLEAN NOT NULL,
	media      JSONB NOT NULL DEFAULT '{}',
	joined_at  TIMESTAMPTZ NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL,
	left_at    TIMESTAMPTZ,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS room_recordings (
	id           TEXT PRIMARY KEY,
	room_id      TEXT NOT NULL REFERENCES rooms(id),
	active       BOOLEAN NOT NULL,
	started_by   TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ,
	output_ref   TEXT NOT NULL DEFAULT '',
	duration_sec BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_room_recordings_room ON room_recordings (room_id, started_at DESC);

CREATE TABLE IF NOT EXISTS room_messages (
	id          TEXT PRIMARY KEY,
	room_id     TEXT NOT NULL REFERENCES rooms(id),
	sender_id   TEXT NOT NULL,
	sender_name TEXT NOT NULL,
	target_id   TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL,
	sent_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_messages_page ON room_messages (room_id, sent_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS room_data_blobs (
	id        TEXT PRIMARY KEY,
	room_id   TEXT NOT NULL REFERENCES rooms(id),
	sender_id TEXT NOT NULL,
	topic     TEXT NOT NULL DEFAULT '',
	payload   JSONB NOT NULL,
	sent_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_data_blobs_topic ON room_data_blobs (room_id, topic, sent_at DESC);
`

// PGStore is the postgres-backed Store.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore connects, pings and, when migrate is set, applies the
// embedded schema.
func NewPGStore(ctx context.Context, dsn string, migrate bool) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	if migrate {
		if _, err := pool.Exec(ctx, schema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	log.Info().Str("module", "store.pg").Msg("postgres connected")
	return &PGStore{db: pool}, nil
}

func (s *PGStore) Close() { s.db.Close() }

func (s *PGStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rooms (id, name, kind, owner_id, visibility, status, capacity, settings, scheduled_at, created_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		room.ID, room.Name, room.Kind, room.OwnerID, room.Visibility, room.Status,
		room.Capacity, room.Settings, room.ScheduledAt, room.CreatedAt, room.EndedAt)
	return err
}

const roomCols = `id, name, kind, owner_id, visibility, status, capacity, settings, scheduled_at, created_at, ended_at`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var r domain.Room
	err := row.Scan(&r.ID, &r.Name, &r.Kind, &r.OwnerID, &r.Visibility, &r.Status,
		&r.Capacity, &r.Settings, &r.ScheduledAt, &r.CreatedAt, &r.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PGStore) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return scanRoom(s.db.QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE id=$1`, id))
}

func (s *PGStore) UpdateRoom(ctx context.Context, room *domain.Room) error {
	cmd, err := s.db.Exec(ctx, `
		UPDATE rooms SET name=$2, visibility=$3, status=$4, capacity=$5, settings=$6, scheduled_at=$7, ended_at=$8, owner_id=$9
		WHERE id=$1`,
		room.ID, room.Name, room.Visibility, room.Status, room.Capacity,
		room.Settings, room.ScheduledAt, room.EndedAt, room.OwnerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *PGStore) ListRooms(ctx context.Context, visibility domain.Visibility, limit int, cursor string) ([]*domain.Room, string, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	var rows pgx.Rows
	if cur == nil {
		rows, err = s.db.Query(ctx, `
			SELECT `+roomCols+` FROM rooms
			WHERE visibility=$1 AND status <> 'ended'
			ORDER BY created_at DESC, id DESC LIMIT $2`,
			visibility, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+roomCols+` FROM rooms
			WHERE visibility=$1 AND status <> 'ended' AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC LIMIT $4`,
			visibility, cur.TS, cur.ID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, "", rows.Err()
	}

	next := ""
	if len(out) == limit {
		last := out[len(out)-1]
		next = EncodeCursor(Cursor{TS: last.CreatedAt, ID: string(last.ID)})
	}
	return out, next, nil
}

func (s *PGStore) UpsertParticipant(ctx context.Context, p *domain.Participant) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_participants (room_id, user_id, username, role, overrides, is_present, media, joined_at, last_seen, left_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET username=$3, role=$4, overrides=$5, is_present=$6, media=$7, joined_at=$8, last_seen=$9, left_at=$10`,
		p.RoomID, p.UserID, p.Username, p.Role, p.Overrides, p.IsPresent, p.Media, p.JoinedAt, p.LastSeen, p.LeftAt)
	return err
}

const participantCols = `room_id, user_id, username, role, overrides, is_present, media, joined_at, last_seen, left_at`

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(&p.RoomID, &p.UserID, &p.Username, &p.Role, &p.Overrides,
		&p.IsPresent, &p.Media, &p.JoinedAt, &p.LastSeen, &p.LeftAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PGStore) GetParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error) {
	return scanParticipant(s.db.QueryRow(ctx,
		`SELECT `+participantCols+` FROM room_participants WHERE room_id=$1 AND user_id=$2`,
		roomID, userID))
}

func (s *PGStore) ListParticipants(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+participantCols+` FROM room_participants WHERE room_id=$1 ORDER BY joined_at ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) SaveRecording(ctx context.Context, rec *domain.Recording) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_recordings (id, room_id, active, started_by, started_at, ended_at, output_ref, duration_sec)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET active=$3, ended_at=$6, output_ref=$7, duration_sec=$8`,
		rec.ID, rec.RoomID, rec.Active, rec.StartedBy, rec.StartedAt, rec.EndedAt, rec.OutputRef, rec.DurationSec)
	return err
}

func (s *PGStore) ListRecordings(ctx context.Context, roomID domain.RoomID) ([]*domain.Recording, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, room_id, active, started_by, started_at, ended_at, output_ref, duration_sec
		FROM room_recordings WHERE room_id=$1 ORDER BY started_at DESC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Recording
	for rows.Next() {
		var r domain.Recording
		if err := rows.Scan(&r.ID, &r.RoomID, &r.Active, &r.StartedBy, &r.StartedAt,
			&r.EndedAt, &r.OutputRef, &r.DurationSec); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PGStore) SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_messages (id, room_id, sender_id, sender_name, target_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.TargetID, msg.Body, msg.SentAt)
	return err
}

func (s *PGStore) ListChatMessages(ctx context.Context, roomID domain.RoomID, limit int, cursor string) ([]*domain.ChatMessage, string, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	var rows pgx.Rows
	if cur == nil {
		rows, err = s.db.Query(ctx, `
			SELECT id, room_id, sender_id, sender_name, target_id, body, sent_at
			FROM room_messages WHERE room_id=$1
			ORDER BY sent_at DESC, id DESC LIMIT $2`,
			roomID, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT id, room_id, sender_id, sender_name, target_id, body, sent_at
			FROM room_messages WHERE room_id=$1 AND (sent_at, id) < ($2, $3)
			ORDER BY sent_at DESC, id DESC LIMIT $4`,
			roomID, cur.TS, cur.ID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.TargetID, &m.Body, &m.SentAt); err != nil {
			return nil, "", err
		}
		out = append(out, &m)
	}
	if rows.Err() != nil {
		return nil, "", rows.Err()
	}

	next := ""
	if len(out) == limit {
		last := out[len(out)-1]
		next = EncodeCursor(Cursor{TS: last.SentAt, ID: string(last.ID)})
	}
	return out, next, nil
}

func (s *PGStore) SaveRoomData(ctx context.Context, blob *domain.RoomDataBlob) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_data_blobs (id, room_id, sender_id, topic, payload, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		blob.ID, blob.RoomID, blob.SenderID, blob.Topic, blob.Payload, blob.SentAt)
	return err
}

func (s *PGStore) ListRoomData(ctx context.Context, roomID domain.RoomID, topic string, limit int) ([]*domain.RoomDataBlob, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, room_id, sender_id, topic, payload, sent_at FROM (
			SELECT id, room_id, sender_id, topic, payload, sent_at
			FROM room_data_blobs
			WHERE room_id=$1 AND ($2 = '' OR topic=$2)
			ORDER BY sent_at DESC, id DESC LIMIT $3
		) w ORDER BY sent_at ASC, id ASC`,
		roomID, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RoomDataBlob
	for rows.Next() {
		var b domain.RoomDataBlob
		if err := rows.Scan(&b.ID, &b.RoomID, &b.SenderID, &b.Topic, &b.Payload, &b.SentAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
