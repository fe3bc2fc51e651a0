package domain

import (
	"time"

	"github.com/lithammer/shortuuid/v4"
)

type RecordingID string

func NewRecordingID() RecordingID { return RecordingID("rec_" + shortuuid.New()) }

// Recording is one start/stop cycle for a room. At most one active
// recording may exist per room at any time.
type Recording struct {
	ID          RecordingID `json:"id"`
	RoomID      RoomID      `json:"room_id"`
	Active      bool        `json:"active"`
	StartedBy   UserID      `json:"started_by"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
	OutputRef   string      `json:"output_ref,omitempty"`
	DurationSec int64       `json:"duration_sec,omitempty"`
}

func NewRecording(roomID RoomID, startedBy UserID) *Recording {
	return &Recording{
		ID:        NewRecordingID(),
		RoomID:    roomID,
		Active:    true,
		StartedBy: startedBy,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the end, stores the output reference and computes the
// duration.
func (r *Recording) Finish(outputRef string) {
	now := time.Now().UTC()
	r.Active = false
	r.EndedAt = &now
	r.OutputRef = outputRef
	r.DurationSec = int64(now.Sub(r.StartedAt).Seconds())
}
