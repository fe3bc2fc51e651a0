package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/telemetry"
)

// Recorder tracks the at-most-one active recording per room. The state
// machine lives behind the room's serialized region, so start/stop races
// resolve to exactly one winner.
type Recorder struct {
	registry *Registry
	presence *Presence
	policy   *Engine
}

func NewRecorder(reg *Registry, p *Presence, eng *Engine) *Recorder {
	return &Recorder{registry: reg, presence: p, policy: eng}
}

// Start begins a recording if none is active and the actor is allowed
// to. Every member learns about the transition.
func (rc *Recorder) Start(ctx context.Context, roomID domain.RoomID, actor domain.UserID) (*domain.Recording, error) {
	var rec *domain.Recording
	err := rc.registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		room := h.Room()
		if room.Ended() {
			return domain.ErrRoomEnded
		}
		p, ok := h.Participant(actor)
		if !ok || !p.IsPresent {
			return domain.ErrParticipantNotFound
		}
		if err := rc.policy.AuthorizeStartRecording(room, p); err != nil {
			return err
		}
		if h.ActiveRecording() != nil {
			return domain.ErrAlreadyRecording
		}
		rec = domain.NewRecording(roomID, actor)
		if err := h.SetRecording(rec); err != nil {
			return err
		}
		evt := &domain.RecordingStartedEvent{
			EventHead: domain.NewEventHead(domain.EventRecordingStarted, roomID, actor),
			Recording: rec,
		}
		rc.presence.Broadcast(roomID, domain.EventRecordingStarted, evt, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.RecordingStarted()
	log.Info().Str("module", "app.recorder").Str("room", string(roomID)).
		Str("recording", string(rec.ID)).Str("by", string(actor)).Msg("recording started")
	return rec, nil
}

// Stop ends the active recording. The starter may always stop their own
// recording; anyone else needs the recording permission.
func (rc *Recorder) Stop(ctx context.Context, roomID domain.RoomID, actor domain.UserID, outputRef string) (*domain.Recording, error) {
	var rec *domain.Recording
	err := rc.registry.Locked(ctx, roomID, func(h *RoomHandle) error {
		active := h.ActiveRecording()
		if active == nil {
			return domain.ErrNotRecording
		}
		p, ok := h.Participant(actor)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if err := rc.policy.AuthorizeStopRecording(h.Room(), p, active); err != nil {
			return err
		}
		stopped := *active
		stopped.Finish(outputRef)
		if err := h.SetRecording(&stopped); err != nil {
			return err
		}
		rec = &stopped
		evt := &domain.RecordingStoppedEvent{
			EventHead: domain.NewEventHead(domain.EventRecordingStopped, roomID, actor),
			Recording: rec,
		}
		rc.presence.Broadcast(roomID, domain.EventRecordingStopped, evt, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.RecordingStopped()
	log.Info().Str("module", "app.recorder").Str("room", string(roomID)).
		Str("recording", string(rec.ID)).Str("by", string(actor)).
		Int64("duration_sec", rec.DurationSec).Msg("recording stopped")
	return rec, nil
}

// StopForRoomEnd closes out a recording left running when its room ends.
// Runs inside an already-held room region, so it works on the handle
// directly.
func (rc *Recorder) StopForRoomEnd(h *RoomHandle, actor domain.UserID) *domain.Recording {
	active := h.ActiveRecording()
	if active == nil {
		return nil
	}
	stopped := *active
	stopped.Finish("")
	if err := h.SetRecording(&stopped); err != nil {
		log.Error().Err(err).Str("module", "app.recorder").
			Str("room", string(h.Room().ID)).Msg("recording close on room end failed")
		return nil
	}
	evt := &domain.RecordingStoppedEvent{
		EventHead: domain.NewEventHead(domain.EventRecordingStopped, h.Room().ID, actor),
		Recording: &stopped,
	}
	rc.presence.Broadcast(h.Room().ID, domain.EventRecordingStopped, evt, "")
	telemetry.RecordingStopped()
	return &stopped
}
