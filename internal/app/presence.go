package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/core"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/telemetry"
)

type connEntry struct {
	id      core.ConnID
	userID  domain.UserID
	conn    core.Conn
	cancel  context.CancelFunc
	boundAt time.Time
}

// roomPresence is one room's live connection table. byUser keeps bind
// order per user, most recent last; the last entry is the authoritative
// delivery target while older ones linger through reconnect races.
type roomPresence struct {
	conns  map[core.ConnID]*connEntry
	byUser map[domain.UserID][]core.ConnID
}

type pendKey struct {
	room domain.RoomID
	user domain.UserID
}

// Presence is the single source of truth for who can currently receive
// a message. Membership truth stays with the registry; the two disagree
// only inside a single serialized unbind+markDeparted call.
type Presence struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomPresence
	index map[core.ConnID]domain.RoomID

	pendMu  sync.Mutex
	pending map[pendKey]*time.Timer

	debMu      sync.Mutex
	debouncers map[domain.RoomID]func(func())
	debounceIn time.Duration

	// wired by the orchestrator after construction
	onGraceExpired func(domain.RoomID, domain.UserID)
	onSpeakers     func(domain.RoomID) []domain.UserID
}

func NewPresence(speakerDebounce time.Duration) *Presence {
	return &Presence{
		rooms:      make(map[domain.RoomID]*roomPresence),
		index:      make(map[core.ConnID]domain.RoomID),
		pending:    make(map[pendKey]*time.Timer),
		debouncers: make(map[domain.RoomID]func(func())),
		debounceIn: speakerDebounce,
	}
}

// OnGraceExpired registers the departure-confirm callback invoked when a
// reconnect window elapses without a rebind.
func (p *Presence) OnGraceExpired(fn func(domain.RoomID, domain.UserID)) { p.onGraceExpired = fn }

// OnSpeakers registers the roster callback used for active-speaker
// updates.
func (p *Presence) OnSpeakers(fn func(domain.RoomID) []domain.UserID) { p.onSpeakers = fn }

// Bind registers a connection under (room, user). A prior connection for
// the pair is superseded, not closed: it still receives broadcasts but
// is no longer addressed for relay.
func (p *Presence) Bind(connID core.ConnID, roomID domain.RoomID, userID domain.UserID, conn core.Conn, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rp, ok := p.rooms[roomID]
	if !ok {
		rp = &roomPresence{
			conns:  make(map[core.ConnID]*connEntry),
			byUser: make(map[domain.UserID][]core.ConnID),
		}
		p.rooms[roomID] = rp
	}
	rp.conns[connID] = &connEntry{
		id:      connID,
		userID:  userID,
		conn:    conn,
		cancel:  cancel,
		boundAt: time.Now(),
	}
	rp.byUser[userID] = append(rp.byUser[userID], connID)
	p.index[connID] = roomID
	telemetry.ConnBound()
	log.Info().Str("module", "app.presence").Str("conn", string(connID)).
		Str("room", string(roomID)).Str("user", string(userID)).Msg("bound")
}

// Lookup resolves the binding of a connection.
func (p *Presence) Lookup(connID core.ConnID) (domain.RoomID, domain.UserID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	roomID, ok := p.index[connID]
	if !ok {
		return "", "", false
	}
	e := p.rooms[roomID].conns[connID]
	if e == nil {
		return "", "", false
	}
	return roomID, e.userID, true
}

// Unbind removes a connection and reports whether it was the user's last
// one in the room. Unknown connections return ok=false, which makes a
// disconnect racing an explicit leave harmless.
func (p *Presence) Unbind(connID core.ConnID) (roomID domain.RoomID, userID domain.UserID, last, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	roomID, found := p.index[connID]
	if !found {
		return "", "", false, false
	}
	rp := p.rooms[roomID]
	e := rp.conns[connID]
	delete(rp.conns, connID)
	delete(p.index, connID)

	ids := rp.byUser[e.userID]
	for i, id := range ids {
		if id == connID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(rp.byUser, e.userID)
	} else {
		rp.byUser[e.userID] = ids
	}
	telemetry.ConnUnbound()
	log.Info().Str("module", "app.presence").Str("conn", string(connID)).
		Str("room", string(roomID)).Str("user", string(e.userID)).Msg("unbound")
	return roomID, e.userID, len(ids) == 0, true
}

// UserBound reports whether the user still holds any connection in the
// room.
func (p *Presence) UserBound(roomID domain.RoomID, userID domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rp, ok := p.rooms[roomID]
	return ok && len(rp.byUser[userID]) > 0
}

// Deliver sends a frame to the user's authoritative (most recent)
// connection. A miss is not an error: relay semantics are best-effort.
func (p *Presence) Deliver(roomID domain.RoomID, userID domain.UserID, frame core.Frame) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rp, ok := p.rooms[roomID]
	if !ok {
		return false
	}
	ids := rp.byUser[userID]
	if len(ids) == 0 {
		return false
	}
	e := rp.conns[ids[len(ids)-1]]
	if e == nil {
		return false
	}
	return e.conn.TrySend(frame) == nil
}

// DeliverUser sends to every connection the user holds in the room; used
// for victim-directed notices like a kick.
func (p *Presence) DeliverUser(roomID domain.RoomID, userID domain.UserID, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("marshal direct event")
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	rp, ok := p.rooms[roomID]
	if !ok {
		return
	}
	for _, id := range rp.byUser[userID] {
		if e := rp.conns[id]; e != nil {
			_ = e.conn.TrySend(frame)
		}
	}
}

// Broadcast marshals once and fans out to every bound connection in the
// room except exclude. Best-effort: slow consumers drop the frame.
func (p *Presence) Broadcast(roomID domain.RoomID, eventType domain.EventType, v any, exclude core.ConnID) core.PublishResult {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("marshal broadcast event")
		return core.PublishResult{}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	res := core.PublishResult{}
	rp, ok := p.rooms[roomID]
	if !ok {
		return res
	}
	for id, e := range rp.conns {
		if id == exclude {
			continue
		}
		if err := e.conn.TrySend(frame); err != nil {
			res.Dropped++
			continue
		}
		res.SentTo++
	}
	telemetry.EventBroadcast(string(eventType), res.SentTo, res.Dropped)
	log.Debug().Str("module", "app.presence").Str("room", string(roomID)).
		Str("type", string(eventType)).Int("sent_to", res.SentTo).Int("dropped", res.Dropped).Msg("broadcast")
	return res
}

// CloseUser cancels every connection the user holds in the room. The
// transport teardown then funnels through the normal disconnect path.
func (p *Presence) CloseUser(roomID domain.RoomID, userID domain.UserID) {
	p.mu.RLock()
	var cancels []context.CancelFunc
	if rp, ok := p.rooms[roomID]; ok {
		for _, id := range rp.byUser[userID] {
			if e := rp.conns[id]; e != nil && e.cancel != nil {
				cancels = append(cancels, e.cancel)
			}
		}
	}
	p.mu.RUnlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// CloseRoom cancels every connection in the room and drops its tables.
func (p *Presence) CloseRoom(roomID domain.RoomID) {
	p.mu.Lock()
	rp, ok := p.rooms[roomID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.rooms, roomID)
	var cancels []context.CancelFunc
	for id, e := range rp.conns {
		delete(p.index, id)
		telemetry.ConnUnbound()
		if e.cancel != nil {
			cancels = append(cancels, e.cancel)
		}
	}
	p.mu.Unlock()

	p.debMu.Lock()
	delete(p.debouncers, roomID)
	p.debMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	log.Info().Str("module", "app.presence").Str("room", string(roomID)).Msg("room closed")
}

// RoomConnCount reports the number of bound connections in the room.
func (p *Presence) RoomConnCount(roomID domain.RoomID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rp, ok := p.rooms[roomID]
	if !ok {
		return 0
	}
	return len(rp.conns)
}

// ScheduleDeparture arms the reconnect grace timer for (room, user).
// When it fires without a rebind, the orchestrator confirms the
// departure. A zero grace confirms synchronously.
func (p *Presence) ScheduleDeparture(roomID domain.RoomID, userID domain.UserID, grace time.Duration) {
	if grace <= 0 {
		if p.onGraceExpired != nil {
			p.onGraceExpired(roomID, userID)
		}
		return
	}
	key := pendKey{room: roomID, user: userID}
	p.pendMu.Lock()
	if t, ok := p.pending[key]; ok {
		t.Stop()
	}
	p.pending[key] = time.AfterFunc(grace, func() {
		p.pendMu.Lock()
		delete(p.pending, key)
		p.pendMu.Unlock()
		if p.onGraceExpired != nil {
			p.onGraceExpired(roomID, userID)
		}
	})
	p.pendMu.Unlock()
}

// CancelPendingDeparture stops a grace timer if one is armed; reports
// whether a departure was pending, so the join path can suppress the
// joined broadcast of a quiet reconnect.
func (p *Presence) CancelPendingDeparture(roomID domain.RoomID, userID domain.UserID) bool {
	key := pendKey{room: roomID, user: userID}
	p.pendMu.Lock()
	defer p.pendMu.Unlock()
	t, ok := p.pending[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(p.pending, key)
	return true
}

// KickSpeakerUpdate coalesces active-speaker broadcasts for the room;
// bursts of speaking flips collapse into one event per debounce window.
func (p *Presence) KickSpeakerUpdate(roomID domain.RoomID) {
	if p.onSpeakers == nil {
		return
	}
	p.debMu.Lock()
	deb, ok := p.debouncers[roomID]
	if !ok {
		deb = debounce.New(p.debounceIn)
		p.debouncers[roomID] = deb
	}
	p.debMu.Unlock()

	deb(func() {
		speakers := p.onSpeakers(roomID)
		if speakers == nil {
			return
		}
		ev := &domain.ActiveSpeakersEvent{
			EventHead: domain.NewEventHead(domain.EventActiveSpeakers, roomID, ""),
			Speakers:  speakers,
		}
		p.Broadcast(roomID, domain.EventActiveSpeakers, ev, "")
	})
}
