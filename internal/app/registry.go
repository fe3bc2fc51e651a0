package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	fbcore "github.com/frostbyte73/core"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
	"github.com/pankajbaid567/DevHub-sub000/internal/telemetry"
)

// RegistryConfig carries the tunables the registry needs; main maps the
// config file onto it.
type RegistryConfig struct {
	DefaultCapacity  int
	MaxCapacity      int
	StoreTimeout     time.Duration
	SnapshotInterval time.Duration
	SnapshotTTL      time.Duration
	EmptyRoomTTL     time.Duration
}

// roomState is one arena entry: the durable record plus membership,
// loaded lazily from the store. mu is the room's single-writer lock;
// everything behind it mutates only inside Locked.
type roomState struct {
	mu     sync.Mutex
	loaded bool
	// evicted is set under mu when the janitor drops the entry from the
	// arena; a locker that finds it set must refetch.
	evicted      bool
	room         *domain.Room
	participants map[domain.UserID]*domain.Participant
	recording    *domain.Recording
	lastActive   time.Time

	// present mirrors the live head count for readers outside mu; the
	// participants map stays authoritative inside the region.
	present atomic.Int32
}

// Registry owns durable room and participant records. All mutations on
// one room are serialized behind its arena entry's lock; different rooms
// proceed independently.
type Registry struct {
	store store.Store
	snaps store.SnapshotStore
	cfg   RegistryConfig

	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomState

	done fbcore.Fuse
}

func NewRegistry(st store.Store, snaps store.SnapshotStore, cfg RegistryConfig) *Registry {
	return &Registry{
		store: st,
		snaps: snaps,
		cfg:   cfg,
		rooms: make(map[domain.RoomID]*roomState),
	}
}

// persist runs one store write with a deadline, retrying once before
// giving up with ErrServiceUnavailable. Callers commit in-memory state
// only after it returns nil.
func (r *Registry) persist(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := func() error {
		pctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
		defer cancel()
		return fn(pctx)
	}
	err := attempt()
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("module", "app.registry").Str("op", op).Msg("store write failed, retrying")
	if err = attempt(); err == nil {
		return nil
	}
	log.Error().Err(err).Str("module", "app.registry").Str("op", op).Msg("store write failed after retry")
	return fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, op)
}

// CreateRoom validates the spec, persists the room and seeds the arena.
func (r *Registry) CreateRoom(ctx context.Context, owner domain.Identity, spec *domain.RoomSpec) (*domain.Room, error) {
	if spec.Capacity == 0 {
		spec.Capacity = r.cfg.DefaultCapacity
	}
	if spec.Visibility == "" {
		spec.Visibility = domain.VisibilityPublic
	}
	if spec.Settings == (domain.RoomSettings{}) {
		spec.Settings = domain.RoomSettings{ChatAllowed: true, RecordingAllowed: true}
	}
	if err := spec.Validate(r.cfg.MaxCapacity); err != nil {
		return nil, err
	}

	room := domain.NewRoom(spec, owner.UserID)
	if err := r.persist(ctx, "create_room", func(c context.Context) error {
		return r.store.CreateRoom(c, room)
	}); err != nil {
		return nil, err
	}

	st := r.lockState(room.ID)
	st.loaded = true
	st.room = room
	st.participants = make(map[domain.UserID]*domain.Participant)
	st.recording = nil
	st.present.Store(0)
	st.lastActive = time.Now()
	st.mu.Unlock()

	telemetry.RoomStarted()
	log.Info().Str("module", "app.registry").Str("room", string(room.ID)).
		Str("kind", string(room.Kind)).Str("owner", string(owner.UserID)).Msg("room created")
	return room, nil
}

// state returns the arena entry for roomID, creating an unloaded stub on
// first sight. Double-checked so concurrent first touches agree. A fresh
// stub starts its idle clock at creation, so the janitor leaves it alone
// for a full TTL.
func (r *Registry) state(roomID domain.RoomID) *roomState {
	r.mu.RLock()
	st, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.rooms[roomID]; !ok {
		st = &roomState{
			participants: make(map[domain.UserID]*domain.Participant),
			lastActive:   time.Now(),
		}
		r.rooms[roomID] = st
	}
	return st
}

// lockState acquires the room lock on the entry currently in the arena.
// The janitor can drop an entry in the gap between the fetch and the
// lock; such an orphan carries the evicted mark, so release it and fetch
// again.
func (r *Registry) lockState(roomID domain.RoomID) *roomState {
	for {
		st := r.state(roomID)
		st.mu.Lock()
		if !st.evicted {
			return st
		}
		st.mu.Unlock()
	}
}

// load pulls the durable record under the room lock.
func (r *Registry) load(ctx context.Context, st *roomState, roomID domain.RoomID) error {
	if st.loaded {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, r.cfg.StoreTimeout)
	defer cancel()

	room, err := r.store.GetRoom(lctx, roomID)
	if err != nil {
		return err
	}
	parts, err := r.store.ListParticipants(lctx, roomID)
	if err != nil {
		return err
	}
	recs, err := r.store.ListRecordings(lctx, roomID)
	if err != nil {
		return err
	}

	st.room = room
	st.participants = make(map[domain.UserID]*domain.Participant, len(parts))
	live := int32(0)
	for _, p := range parts {
		st.participants[p.UserID] = p
		if p.IsPresent {
			live++
		}
	}
	st.present.Store(live)
	for _, rec := range recs {
		if rec.Active {
			st.recording = rec
			break
		}
	}
	st.loaded = true
	log.Debug().Str("module", "app.registry").Str("room", string(roomID)).
		Int("participants", len(parts)).Msg("room loaded")
	return nil
}

// Locked runs fn inside the room's serialized region. fn must not call
// back into Locked for the same room. Store reads needed to face a cold
// room happen before fn; the only writes inside are the minimal
// persistence of the mutations fn performs.
func (r *Registry) Locked(ctx context.Context, roomID domain.RoomID, fn func(h *RoomHandle) error) error {
	st := r.lockState(roomID)
	defer st.mu.Unlock()
	if err := r.load(ctx, st, roomID); err != nil {
		return err
	}
	st.lastActive = time.Now()
	return fn(&RoomHandle{reg: r, st: st, ctx: ctx})
}

// RoomHandle is the view of one room inside its serialized region; it is
// only valid for the duration of the Locked callback.
type RoomHandle struct {
	reg *Registry
	st  *roomState
	ctx context.Context
}

func (h *RoomHandle) Room() *domain.Room { return h.st.room }

func (h *RoomHandle) Participant(userID domain.UserID) (*domain.Participant, bool) {
	p, ok := h.st.participants[userID]
	return p, ok
}

// Roster lists every membership record, present first, join order
// within.
func (h *RoomHandle) Roster() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(h.st.participants))
	for _, p := range h.st.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPresent != out[j].IsPresent {
			return out[i].IsPresent
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// PresentRoster lists only present participants in join order.
func (h *RoomHandle) PresentRoster() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(h.st.participants))
	for _, p := range h.st.participants {
		if p.IsPresent {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (h *RoomHandle) PresentCount() int {
	n := 0
	for _, p := range h.st.participants {
		if p.IsPresent {
			n++
		}
	}
	return n
}

// UpsertParticipant applies the join semantics: a present record is a
// no-op refresh, a departed one reactivates, an unknown user gets a new
// record. Capacity gates only genuinely new presence. The creator always
// carries the kind's maximal role.
func (h *RoomHandle) UpsertParticipant(id domain.Identity) (*domain.Participant, bool, error) {
	room := h.st.room
	if room.Ended() {
		return nil, false, domain.ErrRoomEnded
	}

	if existing, ok := h.st.participants[id.UserID]; ok && existing.IsPresent {
		refreshed := *existing
		refreshed.Touch()
		if err := h.persistParticipant(&refreshed); err != nil {
			return nil, false, err
		}
		h.st.participants[id.UserID] = &refreshed
		return &refreshed, false, nil
	}

	if h.PresentCount() >= room.Capacity {
		return nil, false, domain.ErrRoomFull
	}

	var next *domain.Participant
	if existing, ok := h.st.participants[id.UserID]; ok {
		reactivated := *existing
		if existing.Overrides != nil {
			o := *existing.Overrides
			reactivated.Overrides = &o
		}
		reactivated.Rejoin(id.Username, room.Settings.MuteOnEntry)
		next = &reactivated
	} else {
		role := h.initialRole(id)
		next = domain.NewParticipant(room.ID, id, role, room.Settings.MuteOnEntry)
	}
	if id.UserID == room.OwnerID {
		next.Role = domain.MaxRole(room.Kind)
	}

	if room.Status == domain.StatusScheduled {
		flipped := *room
		flipped.Status = domain.StatusLive
		if err := h.reg.persist(h.ctx, "room_live", func(c context.Context) error {
			return h.reg.store.UpdateRoom(c, &flipped)
		}); err != nil {
			return nil, false, err
		}
		h.st.room = &flipped
		room = h.st.room
	}

	if err := h.persistParticipant(next); err != nil {
		return nil, false, err
	}
	h.st.participants[next.UserID] = next
	h.st.present.Add(1)
	telemetry.AddParticipant()
	return next, true, nil
}

// initialRole honors a valid role hint below the maximal rank; everyone
// else starts at the kind default.
func (h *RoomHandle) initialRole(id domain.Identity) domain.Role {
	kind := h.st.room.Kind
	if id.RoleHint != "" && domain.ValidRole(kind, id.RoleHint) &&
		domain.RoleRank(kind, id.RoleHint) < domain.RoleRank(kind, domain.MaxRole(kind)) {
		return id.RoleHint
	}
	return domain.DefaultRole(kind)
}

func (h *RoomHandle) persistParticipant(p *domain.Participant) error {
	return h.reg.persist(h.ctx, "upsert_participant", func(c context.Context) error {
		return h.reg.store.UpsertParticipant(c, p)
	})
}

// MarkDeparted flips presence off exactly once. The in-memory flip
// commits even if the durable write keeps failing: a transport-initiated
// unwind cannot be rejected, so the stale row is reconciled by the next
// upsert instead.
func (h *RoomHandle) MarkDeparted(userID domain.UserID) bool {
	p, ok := h.st.participants[userID]
	if !ok || !p.IsPresent {
		return false
	}
	departed := *p
	if p.Overrides != nil {
		o := *p.Overrides
		departed.Overrides = &o
	}
	departed.Depart()
	if err := h.persistParticipant(&departed); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("room", string(h.st.room.ID)).
			Str("user", string(userID)).Msg("depart write lost, committing in memory")
	}
	h.st.participants[userID] = &departed
	h.st.present.Add(-1)
	telemetry.SubParticipant()
	return true
}

// EndRoom transitions to ended, departs everyone present and is
// idempotent. The status flip must persist; participant rows follow
// best-effort since the ended status gates everything.
func (h *RoomHandle) EndRoom() error {
	room := h.st.room
	if room.Ended() {
		return nil
	}
	ended := *room
	now := time.Now().UTC()
	ended.Status = domain.StatusEnded
	ended.EndedAt = &now
	if err := h.reg.persist(h.ctx, "end_room", func(c context.Context) error {
		return h.reg.store.UpdateRoom(c, &ended)
	}); err != nil {
		return err
	}
	h.st.room = &ended

	for _, p := range h.st.participants {
		if p.IsPresent {
			h.MarkDeparted(p.UserID)
		}
	}
	telemetry.RoomEnded(room.CreatedAt)
	log.Info().Str("module", "app.registry").Str("room", string(room.ID)).Msg("room ended")
	return nil
}

// SetRole persists a role change and clears overrides so the new role's
// defaults apply cleanly.
func (h *RoomHandle) SetRole(userID domain.UserID, role domain.Role) (*domain.Participant, error) {
	p, ok := h.st.participants[userID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	changed := *p
	changed.Role = role
	changed.Overrides = nil
	changed.Touch()
	if err := h.persistParticipant(&changed); err != nil {
		return nil, err
	}
	h.st.participants[userID] = &changed
	return &changed, nil
}

func (h *RoomHandle) SetOverrides(userID domain.UserID, o *domain.PermissionOverrides) (*domain.Participant, error) {
	p, ok := h.st.participants[userID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	changed := *p
	changed.Overrides = o
	changed.Touch()
	if err := h.persistParticipant(&changed); err != nil {
		return nil, err
	}
	h.st.participants[userID] = &changed
	return &changed, nil
}

// TransferOwner reassigns room ownership; the caller handles the role
// swap of both sides.
func (h *RoomHandle) TransferOwner(newOwner domain.UserID) error {
	room := *h.st.room
	room.OwnerID = newOwner
	if err := h.reg.persist(h.ctx, "transfer_owner", func(c context.Context) error {
		return h.reg.store.UpdateRoom(c, &room)
	}); err != nil {
		return err
	}
	h.st.room = &room
	return nil
}

func (h *RoomHandle) UpdateSettings(settings domain.RoomSettings) error {
	room := *h.st.room
	room.Settings = settings
	if err := h.reg.persist(h.ctx, "update_settings", func(c context.Context) error {
		return h.reg.store.UpdateRoom(c, &room)
	}); err != nil {
		return err
	}
	h.st.room = &room
	return nil
}

// UpdateMedia commits a new media state for a present participant.
// Purely in-memory: transient flags reach the store only through the
// periodic voice snapshot flush.
func (h *RoomHandle) UpdateMedia(userID domain.UserID, media domain.MediaState) (*domain.Participant, error) {
	p, ok := h.st.participants[userID]
	if !ok || !p.IsPresent {
		return nil, domain.ErrParticipantNotFound
	}
	changed := *p
	changed.Media = media
	changed.Touch()
	h.st.participants[userID] = &changed
	return &changed, nil
}

func (h *RoomHandle) ActiveRecording() *domain.Recording { return h.st.recording }

// SetRecording persists the transition and commits it; nil clears the
// active slot after a stop has been persisted.
func (h *RoomHandle) SetRecording(rec *domain.Recording) error {
	if rec != nil {
		if err := h.reg.persist(h.ctx, "save_recording", func(c context.Context) error {
			return h.reg.store.SaveRecording(c, rec)
		}); err != nil {
			return err
		}
		if rec.Active {
			h.st.recording = rec
		} else {
			h.st.recording = nil
		}
		return nil
	}
	h.st.recording = nil
	return nil
}

// RoomSummary is a room plus the live head count of this node.
type RoomSummary struct {
	*domain.Room
	PresentCount int `json:"present_count"`
}

// Summary reads one room through its serialized region.
func (r *Registry) Summary(ctx context.Context, roomID domain.RoomID) (*RoomSummary, error) {
	var out *RoomSummary
	err := r.Locked(ctx, roomID, func(h *RoomHandle) error {
		room := *h.Room()
		out = &RoomSummary{Room: &room, PresentCount: h.PresentCount()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListRooms pages the store's listing and overlays the live head count
// for rooms this node holds in the arena. The mirror counter keeps the
// overlay off the room lock; listing tolerates a stale figure.
func (r *Registry) ListRooms(ctx context.Context, visibility domain.Visibility, limit int, cursor string) ([]*RoomSummary, string, error) {
	rooms, next, err := r.store.ListRooms(ctx, visibility, limit, cursor)
	if err != nil {
		return nil, "", err
	}
	out := make([]*RoomSummary, 0, len(rooms))
	r.mu.RLock()
	for _, room := range rooms {
		sum := &RoomSummary{Room: room}
		if st, ok := r.rooms[room.ID]; ok {
			sum.PresentCount = int(st.present.Load())
		}
		out = append(out, sum)
	}
	r.mu.RUnlock()
	return out, next, nil
}

// Run drives the periodic voice snapshot flush and the arena janitor
// until ctx ends or Shutdown breaks the fuse.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.cfg.SnapshotInterval
	if interval <= 0 {
		select {
		case <-ctx.Done():
		case <-r.done.Watch():
		}
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.done.Watch():
			return nil
		case <-ticker.C:
			r.flushSnapshots(ctx)
			r.evictIdle()
		}
	}
}

func (r *Registry) Shutdown() {
	r.done.Break()
}

type voiceSnapshot struct {
	RoomID       domain.RoomID       `json:"room_id"`
	TS           int64               `json:"ts"`
	Participants []voiceSnapshotUser `json:"participants"`
}

type voiceSnapshotUser struct {
	UserID domain.UserID     `json:"user_id"`
	Role   domain.Role       `json:"role"`
	Media  domain.MediaState `json:"media"`
}

// flushSnapshots writes the transient voice state of rooms with members
// present; purely observational, losing one is harmless.
func (r *Registry) flushSnapshots(ctx context.Context) {
	if r.snaps == nil {
		return
	}
	r.mu.RLock()
	ids := make([]domain.RoomID, 0, len(r.rooms))
	for id, st := range r.rooms {
		if st.present.Load() > 0 {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range ids {
		var snap *voiceSnapshot
		err := r.Locked(ctx, id, func(h *RoomHandle) error {
			if h.Room().Ended() {
				return nil
			}
			present := h.PresentRoster()
			if len(present) == 0 {
				return nil
			}
			snap = &voiceSnapshot{RoomID: id, TS: time.Now().UnixMilli()}
			for _, p := range present {
				snap.Participants = append(snap.Participants, voiceSnapshotUser{
					UserID: p.UserID, Role: p.Role, Media: p.Media,
				})
			}
			return nil
		})
		if err != nil || snap == nil {
			continue
		}
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if err := r.snaps.SaveVoiceSnapshot(ctx, id, data, r.cfg.SnapshotTTL); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("room", string(id)).Msg("voice snapshot flush failed")
		}
	}
}

// evictIdle drops arena entries for ended or long-quiet empty rooms; the
// next touch reloads them from the store. The evicted mark is set while
// the entry lock is held, so a locker that fetched the entry just before
// the sweep refetches instead of running on the orphan.
func (r *Registry) evictIdle() {
	ttl := r.cfg.EmptyRoomTTL
	if ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, st := range r.rooms {
		if !st.mu.TryLock() {
			continue
		}
		idle := st.lastActive.Before(cutoff)
		empty := true
		for _, p := range st.participants {
			if p.IsPresent {
				empty = false
				break
			}
		}
		ended := st.loaded && st.room.Ended()
		if (ended || !st.loaded || empty) && idle {
			st.evicted = true
			delete(r.rooms, id)
			log.Debug().Str("module", "app.registry").Str("room", string(id)).Msg("arena entry evicted")
		}
		st.mu.Unlock()
	}
}
