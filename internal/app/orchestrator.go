package app

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/core"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
	"github.com/pankajbaid567/DevHub-sub000/internal/telemetry"
)

// OwnerLeaveMode decides what happens to a room when its owner departs.
type OwnerLeaveMode string

const (
	// OwnerLeaveDeny rejects an explicit leave while others are present.
	OwnerLeaveDeny OwnerLeaveMode = "deny"
	// OwnerLeavePromote hands the room to the longest-present member.
	OwnerLeavePromote OwnerLeaveMode = "promote"
	// OwnerLeaveRetain lets the owner go and keeps ownership with them.
	OwnerLeaveRetain OwnerLeaveMode = "retain"
)

type OrchestratorConfig struct {
	ReconnectGrace time.Duration
	OwnerLeave     map[domain.RoomKind]OwnerLeaveMode
	InviteTTL      time.Duration
	InviteMaxUses  int
	PersistWorkers int
	StoreTimeout   time.Duration
}

func (c OrchestratorConfig) ownerLeaveMode(kind domain.RoomKind) OwnerLeaveMode {
	if m, ok := c.OwnerLeave[kind]; ok && m != "" {
		return m
	}
	if kind == domain.KindVideoSession {
		return OwnerLeaveDeny
	}
	return OwnerLeavePromote
}

// Orchestrator drives the room lifecycle: joins, departures, moderation
// and the fan-out of everything that changes a room. Each operation runs
// inside the room's serialized region, so members observe state changes
// in commit order.
type Orchestrator struct {
	Registry *Registry
	Presence *Presence
	Relay    *Relay
	Recorder *Recorder
	Policy   *Engine

	invites store.InviteStore
	store   store.Store
	pool    *workerpool.WorkerPool
	cfg     OrchestratorConfig
}

func NewOrchestrator(reg *Registry, pres *Presence, rel *Relay, rec *Recorder, eng *Engine, invites store.InviteStore, st store.Store, cfg OrchestratorConfig) *Orchestrator {
	if cfg.PersistWorkers <= 0 {
		cfg.PersistWorkers = 4
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	o := &Orchestrator{
		Registry: reg,
		Presence: pres,
		Relay:    rel,
		Recorder: rec,
		Policy:   eng,
		invites:  invites,
		store:    st,
		pool:     workerpool.New(cfg.PersistWorkers),
		cfg:      cfg,
	}
	pres.OnGraceExpired(func(roomID domain.RoomID, userID domain.UserID) {
		o.confirmDeparture(context.Background(), roomID, userID, "disconnected")
	})
	pres.OnSpeakers(o.speakingUsers)
	return o
}

// Shutdown drains the async persistence queue.
func (o *Orchestrator) Shutdown() {
	o.pool.StopWait()
}

// JoinRequest carries everything a transport collected before admission.
// ComposeAck, when set, renders the state snapshot; the resulting frame
// is queued to the joining connection inside the serialized region, so
// it lands before any event of a later commit.
type JoinRequest struct {
	RoomID     domain.RoomID
	Identity   domain.Identity
	InviteCode domain.InviteCode
	ConnID     core.ConnID
	Conn       core.Conn
	Cancel     context.CancelFunc
	ComposeAck func(*JoinResult) (core.Frame, error)
}

// JoinResult is the state snapshot handed back to the joining
// connection; transports render it as the room_state acknowledgement.
type JoinResult struct {
	Room        *domain.Room
	Self        *domain.Participant
	Permissions domain.PermissionSet
	Roster      []*domain.Participant
	Recording   *domain.Recording
	IsNew       bool
}

// Join admits a connection into a room. Membership persists before the
// bind, the bind lands before the joined broadcast, and the returned
// snapshot reflects exactly the commit the broadcast announces. A
// reconnect that lands inside the departure grace refreshes the existing
// record and stays silent.
func (o *Orchestrator) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if err := req.Identity.Validate(); err != nil {
		return nil, err
	}

	var res *JoinResult
	err := o.Registry.Locked(ctx, req.RoomID, func(h *RoomHandle) error {
		room := h.Room()
		if room.Ended() {
			return domain.ErrRoomEnded
		}

		invite, err := o.checkInvite(ctx, h, req)
		if err != nil {
			return err
		}

		p, isNew, err := h.UpsertParticipant(req.Identity)
		if err != nil {
			if err == domain.ErrRoomFull {
				telemetry.JoinResult("room_full")
			}
			return err
		}
		if invite != nil {
			if _, err := o.invites.ConsumeInvite(ctx, invite.Code); err != nil {
				log.Warn().Err(err).Str("module", "app.orchestrator").
					Str("room", string(req.RoomID)).Msg("invite consume lost after admission")
			}
		}

		o.Presence.CancelPendingDeparture(req.RoomID, p.UserID)
		o.Presence.Bind(req.ConnID, req.RoomID, p.UserID, req.Conn, req.Cancel)

		res = &JoinResult{
			Room:        h.Room(),
			Self:        p,
			Permissions: o.Policy.ResolveFor(h.Room(), p),
			Roster:      h.PresentRoster(),
			Recording:   h.ActiveRecording(),
			IsNew:       isNew,
		}
		if req.ComposeAck != nil {
			frame, err := req.ComposeAck(res)
			if err != nil {
				return err
			}
			_ = req.Conn.TrySend(frame)
		}

		if isNew {
			evt := &domain.ParticipantJoinedEvent{
				EventHead:   domain.NewEventHead(domain.EventParticipantJoined, req.RoomID, p.UserID),
				Participant: p,
			}
			o.Presence.Broadcast(req.RoomID, domain.EventParticipantJoined, evt, req.ConnID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.JoinResult("ok")
	log.Info().Str("module", "app.orchestrator").Str("room", string(req.RoomID)).
		Str("user", string(req.Identity.UserID)).Bool("new", res.IsNew).Msg("join")
	return res, nil
}

// checkInvite validates admission for gated rooms. The owner and anyone
// with an existing membership record pass free; a genuinely new user
// needs a live invite for this room.
func (o *Orchestrator) checkInvite(ctx context.Context, h *RoomHandle, req JoinRequest) (*domain.Invite, error) {
	room := h.Room()
	if !room.RequiresInvite() || req.Identity.UserID == room.OwnerID {
		return nil, nil
	}
	if _, ok := h.Participant(req.Identity.UserID); ok {
		return nil, nil
	}
	if req.InviteCode == "" {
		telemetry.JoinResult("invite_required")
		return nil, domain.ErrInvalidInviteCode
	}
	invite, err := o.invites.GetInvite(ctx, req.InviteCode)
	if err != nil {
		telemetry.JoinResult("invite_invalid")
		return nil, err
	}
	if invite.RoomID != room.ID || invite.Expired(time.Now()) || invite.Exhausted() {
		telemetry.JoinResult("invite_invalid")
		return nil, domain.ErrInvalidInviteCode
	}
	return invite, nil
}

// Leave is the explicit exit. Idempotent: departing twice is a no-op.
func (o *Orchestrator) Leave(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		p, ok := h.Participant(userID)
		if !ok || !p.IsPresent {
			return nil
		}
		if userID == h.Room().OwnerID {
			if err := o.handleOwnerExit(h, userID, true); err != nil {
				return err
			}
		}
		o.Presence.CancelPendingDeparture(roomID, userID)
		if !h.MarkDeparted(userID) {
			return nil
		}
		o.broadcastLeft(h, userID, "left")
		return nil
	})
	if err != nil {
		return err
	}
	o.Presence.CloseUser(roomID, userID)
	o.Presence.KickSpeakerUpdate(roomID)
	return nil
}

// Disconnect is the transport unwind for one connection. Only the last
// connection of a user opens the departure window; with no grace the
// departure confirms synchronously.
func (o *Orchestrator) Disconnect(connID core.ConnID) {
	roomID, userID, last, ok := o.Presence.Unbind(connID)
	if !ok {
		return
	}
	if !last {
		return
	}
	o.Presence.ScheduleDeparture(roomID, userID, o.cfg.ReconnectGrace)
}

// confirmDeparture finalizes a disconnect after the grace window. A user
// who rebound in the meantime keeps their seat.
func (o *Orchestrator) confirmDeparture(ctx context.Context, roomID domain.RoomID, userID domain.UserID, reason string) {
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		if o.Presence.UserBound(roomID, userID) {
			return nil
		}
		p, ok := h.Participant(userID)
		if !ok || !p.IsPresent {
			return nil
		}
		if userID == h.Room().OwnerID {
			if err := o.handleOwnerExit(h, userID, false); err != nil {
				log.Warn().Err(err).Str("module", "app.orchestrator").
					Str("room", string(roomID)).Msg("owner succession failed on disconnect")
			}
		}
		if !h.MarkDeparted(userID) {
			return nil
		}
		o.broadcastLeft(h, userID, reason)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Str("room", string(roomID)).
			Str("user", string(userID)).Msg("departure confirm failed")
		return
	}
	o.Presence.KickSpeakerUpdate(roomID)
}

// handleOwnerExit applies the per-kind owner departure policy. explicit
// marks a user-initiated leave; a transport drop can never be denied, so
// deny-mode rooms fall back to retaining ownership.
func (o *Orchestrator) handleOwnerExit(h *RoomHandle, owner domain.UserID, explicit bool) error {
	mode := o.cfg.ownerLeaveMode(h.Room().Kind)
	switch mode {
	case OwnerLeaveDeny:
		if explicit && h.PresentCount() > 1 {
			return domain.NotAllowedReason("leave", "transfer ownership or end the room first")
		}
		return nil
	case OwnerLeavePromote:
		return o.promoteSuccessor(h, owner)
	default:
		return nil
	}
}

// promoteSuccessor hands the room to the longest-present remaining
// member. With nobody left the owner keeps the room for a later return.
func (o *Orchestrator) promoteSuccessor(h *RoomHandle, leaving domain.UserID) error {
	var successor *domain.Participant
	for _, p := range h.PresentRoster() {
		if p.UserID != leaving {
			successor = p
			break
		}
	}
	if successor == nil {
		return nil
	}
	room := h.Room()
	promoted, err := h.SetRole(successor.UserID, domain.MaxRole(room.Kind))
	if err != nil {
		return err
	}
	if err := h.TransferOwner(successor.UserID); err != nil {
		return err
	}
	evt := &domain.PermissionChangedEvent{
		EventHead:   domain.NewEventHead(domain.EventPermissionChanged, room.ID, leaving),
		UserID:      promoted.UserID,
		Role:        promoted.Role,
		Permissions: o.Policy.ResolveFor(h.Room(), promoted),
	}
	o.Presence.Broadcast(room.ID, domain.EventPermissionChanged, evt, "")
	log.Info().Str("module", "app.orchestrator").Str("room", string(room.ID)).
		Str("from", string(leaving)).Str("to", string(promoted.UserID)).Msg("ownership transferred")
	return nil
}

func (o *Orchestrator) broadcastLeft(h *RoomHandle, userID domain.UserID, reason string) {
	evt := &domain.ParticipantLeftEvent{
		EventHead: domain.NewEventHead(domain.EventParticipantLeft, h.Room().ID, userID),
		UserID:    userID,
		Reason:    reason,
	}
	o.Presence.Broadcast(h.Room().ID, domain.EventParticipantLeft, evt, "")
}

// Kick removes a participant on a moderator's order. The victim hears
// first on their own connections, then the room learns, then the
// transport tears the victim's connections down.
func (o *Orchestrator) Kick(ctx context.Context, roomID domain.RoomID, actor, target domain.UserID, reason string) error {
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		ap, ok := h.Participant(actor)
		if !ok || !ap.IsPresent {
			return domain.ErrParticipantNotFound
		}
		tp, ok := h.Participant(target)
		if !ok || !tp.IsPresent {
			return domain.ErrParticipantNotFound
		}
		if err := o.Policy.AuthorizeKick(h.Room(), ap, tp); err != nil {
			return err
		}
		notice := &domain.KickedEvent{
			EventHead: domain.NewEventHead(domain.EventKicked, roomID, actor),
			Reason:    reason,
		}
		o.Presence.DeliverUser(roomID, target, notice)
		o.Presence.CancelPendingDeparture(roomID, target)
		if !h.MarkDeparted(target) {
			return nil
		}
		o.broadcastLeft(h, target, "kicked")
		return nil
	})
	if err != nil {
		return err
	}
	o.Presence.CloseUser(roomID, target)
	o.Presence.KickSpeakerUpdate(roomID)
	log.Info().Str("module", "app.orchestrator").Str("room", string(roomID)).
		Str("actor", string(actor)).Str("target", string(target)).Msg("participant kicked")
	return nil
}

// UpdatePresence applies a self-reported media patch, clamped to what
// the participant's permissions actually allow.
func (o *Orchestrator) UpdatePresence(ctx context.Context, roomID domain.RoomID, userID domain.UserID, patch *domain.PresencePatch) (*domain.Participant, error) {
	var updated *domain.Participant
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		p, ok := h.Participant(userID)
		if !ok || !p.IsPresent {
			return domain.ErrParticipantNotFound
		}
		media := p.Media
		media.Apply(patch)
		o.Policy.ClampMedia(o.Policy.ResolveFor(h.Room(), p), &media)

		var err error
		updated, err = h.UpdateMedia(userID, media)
		if err != nil {
			return err
		}
		evt := &domain.PresenceChangedEvent{
			EventHead: domain.NewEventHead(domain.EventPresenceChanged, roomID, userID),
			UserID:    userID,
			Media:     updated.Media,
		}
		o.Presence.Broadcast(roomID, domain.EventPresenceChanged, evt, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	if patch != nil && patch.Speaking != nil {
		o.Presence.KickSpeakerUpdate(roomID)
	}
	return updated, nil
}

// speakingUsers lists who is currently speaking; feeds the debounced
// active speaker broadcast.
func (o *Orchestrator) speakingUsers(roomID domain.RoomID) []domain.UserID {
	var out []domain.UserID
	_ = o.Registry.Locked(context.Background(), roomID, func(h *RoomHandle) error {
		for _, p := range h.PresentRoster() {
			if p.Media.Speaking {
				out = append(out, p.UserID)
			}
		}
		return nil
	})
	return out
}

// Mute forces a participant's audio off; Unmute lifts it. A forced mute
// sticks through self-serve presence updates until a moderator clears it
// or the participant genuinely rejoins.
func (o *Orchestrator) Mute(ctx context.Context, roomID domain.RoomID, actor, target domain.UserID, mute bool) (*domain.Participant, error) {
	var updated *domain.Participant
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		ap, ok := h.Participant(actor)
		if !ok || !ap.IsPresent {
			return domain.ErrParticipantNotFound
		}
		tp, ok := h.Participant(target)
		if !ok || !tp.IsPresent {
			return domain.ErrParticipantNotFound
		}
		if err := o.Policy.AuthorizeMute(h.Room(), ap, tp); err != nil {
			return err
		}
		media := tp.Media
		if mute {
			media.ForcedMute = true
			media.Audio.Muted = true
			media.Speaking = false
		} else {
			media.ForcedMute = false
			media.Audio.Muted = false
		}
		var err error
		updated, err = h.UpdateMedia(target, media)
		if err != nil {
			return err
		}
		evt := &domain.PresenceChangedEvent{
			EventHead: domain.NewEventHead(domain.EventPresenceChanged, roomID, actor),
			UserID:    target,
			Media:     updated.Media,
		}
		o.Presence.Broadcast(roomID, domain.EventPresenceChanged, evt, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.Presence.KickSpeakerUpdate(roomID)
	return updated, nil
}

// SetRole changes a participant's role. An owner granting the maximal
// role hands over the room: ownership moves and the old owner steps down
// one tier.
func (o *Orchestrator) SetRole(ctx context.Context, roomID domain.RoomID, actor, target domain.UserID, role domain.Role) (*domain.Participant, error) {
	var updated *domain.Participant
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		room := h.Room()
		ap, ok := h.Participant(actor)
		if !ok || !ap.IsPresent {
			return domain.ErrParticipantNotFound
		}
		tp, ok := h.Participant(target)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if err := o.Policy.AuthorizeSetRole(room, ap, tp, role); err != nil {
			return err
		}

		transfer := actor == room.OwnerID && target != actor &&
			domain.RoleRank(room.Kind, role) == domain.RoleRank(room.Kind, domain.MaxRole(room.Kind))

		var err error
		updated, err = h.SetRole(target, role)
		if err != nil {
			return err
		}
		o.broadcastPermission(h, actor, updated)

		if transfer {
			if err := h.TransferOwner(target); err != nil {
				return err
			}
			demoted, err := h.SetRole(actor, o.stepDownRole(room.Kind))
			if err != nil {
				return err
			}
			o.broadcastPermission(h, actor, demoted)
			log.Info().Str("module", "app.orchestrator").Str("room", string(roomID)).
				Str("from", string(actor)).Str("to", string(target)).Msg("ownership transferred")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// stepDownRole is where a former owner lands after a transfer: the tier
// right under the top one, or the default when the kind has no middle.
func (o *Orchestrator) stepDownRole(kind domain.RoomKind) domain.Role {
	roles := domain.KindRoles(kind)
	if len(roles) > 1 {
		return roles[1]
	}
	return domain.DefaultRole(kind)
}

// SetPermissions replaces a participant's permission overrides.
func (o *Orchestrator) SetPermissions(ctx context.Context, roomID domain.RoomID, actor, target domain.UserID, overrides *domain.PermissionOverrides) (*domain.Participant, error) {
	var updated *domain.Participant
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		ap, ok := h.Participant(actor)
		if !ok || !ap.IsPresent {
			return domain.ErrParticipantNotFound
		}
		tp, ok := h.Participant(target)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if err := o.Policy.AuthorizeSetPermissions(h.Room(), ap, tp); err != nil {
			return err
		}
		var err error
		updated, err = h.SetOverrides(target, overrides)
		if err != nil {
			return err
		}
		o.broadcastPermission(h, actor, updated)

		if updated.IsPresent {
			clamped := updated.Media
			o.Policy.ClampMedia(o.Policy.ResolveFor(h.Room(), updated), &clamped)
			if clamped != updated.Media {
				updated, err = h.UpdateMedia(target, clamped)
				if err != nil {
					return err
				}
				evt := &domain.PresenceChangedEvent{
					EventHead: domain.NewEventHead(domain.EventPresenceChanged, roomID, actor),
					UserID:    target,
					Media:     updated.Media,
				}
				o.Presence.Broadcast(roomID, domain.EventPresenceChanged, evt, "")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (o *Orchestrator) broadcastPermission(h *RoomHandle, actor domain.UserID, p *domain.Participant) {
	evt := &domain.PermissionChangedEvent{
		EventHead:   domain.NewEventHead(domain.EventPermissionChanged, h.Room().ID, actor),
		UserID:      p.UserID,
		Role:        p.Role,
		Permissions: o.Policy.ResolveFor(h.Room(), p),
	}
	o.Presence.Broadcast(h.Room().ID, domain.EventPermissionChanged, evt, "")
}

// SendSignal relays a negotiation payload from a connected sender to a
// room peer.
func (o *Orchestrator) SendSignal(ctx context.Context, roomID domain.RoomID, env *domain.SignalEnvelope) error {
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		p, ok := h.Participant(env.From)
		if !ok || !p.IsPresent {
			return domain.ErrParticipantNotFound
		}
		if _, ok := h.Participant(env.To); !ok {
			return domain.ErrParticipantNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	return o.Relay.Forward(roomID, env)
}

// Chat fans a message out to the room, or to one recipient and the
// sender for whispers. Persistence is asynchronous and never blocks the
// broadcast.
func (o *Orchestrator) Chat(ctx context.Context, roomID domain.RoomID, actor domain.UserID, body string, target domain.UserID) (*domain.ChatMessage, error) {
	var msg *domain.ChatMessage
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		p, ok := h.Participant(actor)
		if !ok || !p.IsPresent {
			return domain.ErrParticipantNotFound
		}
		if err := o.Policy.AuthorizeChat(h.Room(), p); err != nil {
			return err
		}
		if target != "" {
			if tp, ok := h.Participant(target); !ok || !tp.IsPresent {
				return domain.ErrParticipantNotFound
			}
		}
		sender := domain.Identity{UserID: p.UserID, Username: p.Username}
		var err error
		msg, err = domain.NewChatMessage(roomID, sender, target, body)
		if err != nil {
			return err
		}
		evt := &domain.ChatEvent{
			EventHead: domain.NewEventHead(domain.EventChat, roomID, actor),
			Message:   msg,
		}
		if target != "" {
			o.Presence.DeliverUser(roomID, target, evt)
			o.Presence.DeliverUser(roomID, actor, evt)
		} else {
			o.Presence.Broadcast(roomID, domain.EventChat, evt, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if target == "" {
		o.persistAsync("chat", func(c context.Context) error {
			return o.store.SaveChatMessage(c, msg)
		})
	}
	return msg, nil
}

// ShareRoomData fans an arbitrary payload out under a topic and keeps it
// for late joiners.
func (o *Orchestrator) ShareRoomData(ctx context.Context, roomID domain.RoomID, actor domain.UserID, topic string, payload []byte) (*domain.RoomDataBlob, error) {
	var blob *domain.RoomDataBlob
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		p, ok := h.Participant(actor)
		if !ok || !p.IsPresent {
			return domain.ErrParticipantNotFound
		}
		if err := o.Policy.AuthorizeRoomData(h.Room(), p); err != nil {
			return err
		}
		var err error
		blob, err = domain.NewRoomDataBlob(roomID, actor, topic, payload)
		if err != nil {
			return err
		}
		evt := &domain.RoomDataEvent{
			EventHead: domain.NewEventHead(domain.EventRoomData, roomID, actor),
			Data:      blob,
		}
		o.Presence.Broadcast(roomID, domain.EventRoomData, evt, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.persistAsync("room_data", func(c context.Context) error {
		return o.store.SaveRoomData(c, blob)
	})
	return blob, nil
}

func (o *Orchestrator) persistAsync(op string, fn func(context.Context) error) {
	o.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.StoreTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("module", "app.orchestrator").Str("op", op).Msg("async persist failed")
		}
	})
}

// EndRoom shuts a room down: recording closed, everyone departed, the
// ended notice the last frame out before connections drop.
func (o *Orchestrator) EndRoom(ctx context.Context, roomID domain.RoomID, actor domain.UserID) error {
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		if h.Room().Ended() {
			return nil
		}
		// the owner may end their room from the REST surface without
		// ever having joined; everyone else needs a seat and the role
		p, ok := h.Participant(actor)
		switch {
		case ok && p.IsPresent:
			if err := o.Policy.AuthorizeEndRoom(h.Room(), p); err != nil {
				return err
			}
		case actor == h.Room().OwnerID:
		default:
			return domain.ErrParticipantNotFound
		}
		o.Recorder.StopForRoomEnd(h, actor)
		if err := h.EndRoom(); err != nil {
			return err
		}
		evt := &domain.RoomEndedEvent{
			EventHead: domain.NewEventHead(domain.EventRoomEnded, roomID, actor),
		}
		o.Presence.Broadcast(roomID, domain.EventRoomEnded, evt, "")
		return nil
	})
	if err != nil {
		return err
	}
	o.Presence.CloseRoom(roomID)
	return nil
}

// UpdateSettings replaces the room settings and tells everyone.
func (o *Orchestrator) UpdateSettings(ctx context.Context, roomID domain.RoomID, actor domain.UserID, settings domain.RoomSettings) (*domain.Room, error) {
	var room *domain.Room
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		p, ok := h.Participant(actor)
		switch {
		case ok && p.IsPresent:
			if err := o.Policy.AuthorizeUpdateSettings(h.Room(), p); err != nil {
				return err
			}
		case actor == h.Room().OwnerID:
		default:
			return domain.ErrParticipantNotFound
		}
		if err := h.UpdateSettings(settings); err != nil {
			return err
		}
		room = h.Room()
		evt := &domain.RoomStateEvent{
			EventHead: domain.NewEventHead(domain.EventRoomState, roomID, actor),
			Room:      room,
		}
		o.Presence.Broadcast(roomID, domain.EventRoomState, evt, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// CreateInvite mints an invite code for a gated room.
func (o *Orchestrator) CreateInvite(ctx context.Context, roomID domain.RoomID, actor domain.UserID, ttl time.Duration, maxUses int) (*domain.Invite, error) {
	var invite *domain.Invite
	err := o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		if h.Room().Ended() {
			return domain.ErrRoomEnded
		}
		p, ok := h.Participant(actor)
		switch {
		case ok && p.IsPresent:
			if err := o.Policy.AuthorizeInvite(h.Room(), p); err != nil {
				return err
			}
		case actor == h.Room().OwnerID:
		default:
			return domain.ErrParticipantNotFound
		}
		if ttl <= 0 {
			ttl = o.cfg.InviteTTL
		}
		if maxUses <= 0 {
			maxUses = o.cfg.InviteMaxUses
		}
		invite = domain.NewInvite(roomID, actor, ttl, maxUses)
		return o.invites.CreateInvite(ctx, invite)
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// RevokeInvite withdraws an invite code early.
func (o *Orchestrator) RevokeInvite(ctx context.Context, roomID domain.RoomID, actor domain.UserID, code domain.InviteCode) error {
	invite, err := o.invites.GetInvite(ctx, code)
	if err != nil {
		return err
	}
	if invite.RoomID != roomID {
		return domain.ErrInvalidInviteCode
	}
	return o.Registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		p, ok := h.Participant(actor)
		switch {
		case ok && p.IsPresent:
			if err := o.Policy.AuthorizeInvite(h.Room(), p); err != nil {
				return err
			}
		case actor == h.Room().OwnerID:
		default:
			return domain.ErrParticipantNotFound
		}
		return o.invites.RevokeInvite(ctx, code)
	})
}
