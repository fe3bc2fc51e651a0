package signal

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

// Client commands carried in the "type" field of every inbound frame.
const (
	cmdJoin           = "join"
	cmdLeave          = "leave"
	cmdPing           = "ping"
	cmdWhoAmI         = "whoami"
	cmdUpdatePresence = "update_presence"
	cmdSignal         = "signal"
	cmdMute           = "mute_participant"
	cmdKick           = "kick_participant"
	cmdSetRole        = "set_role"
	cmdSetPermissions = "set_permissions"
	cmdStartRecording = "start_recording"
	cmdStopRecording  = "stop_recording"
	cmdChat           = "chat"
	cmdRoomData       = "room_data"
	cmdEndRoom        = "end_room"
	cmdCreateInvite   = "create_invite"
	cmdRevokeInvite   = "revoke_invite"
)

type joinRequest struct {
	Type   string `json:"type"`
	Room   string `json:"room"`
	Invite string `json:"invite,omitempty"`
}

type presenceRequest struct {
	Type string `json:"type"`
	domain.PresencePatch
}

type signalRequest struct {
	Type    string          `json:"type"`
	Target  string          `json:"target"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type muteRequest struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Mute   bool   `json:"mute"`
}

type kickRequest struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

type roleRequest struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Role   string `json:"role"`
}

type permissionsRequest struct {
	Type      string                      `json:"type"`
	Target    string                      `json:"target"`
	Overrides *domain.PermissionOverrides `json:"overrides"`
}

type stopRecordingRequest struct {
	Type      string `json:"type"`
	OutputRef string `json:"output_ref,omitempty"`
}

type chatRequest struct {
	Type   string `json:"type"`
	Body   string `json:"body"`
	Target string `json:"target,omitempty"`
}

type roomDataRequest struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

type inviteRequest struct {
	Type    string `json:"type"`
	TTLSec  int    `json:"ttl_sec,omitempty"`
	MaxUses int    `json:"max_uses,omitempty"`
	Code    string `json:"code,omitempty"`
}

// roomStateAck is the first frame a joiner receives: the committed room
// snapshot plus everything a client needs to start negotiating.
type roomStateAck struct {
	Type        string                `json:"type"`
	Room        *domain.Room          `json:"room"`
	Self        *domain.Participant   `json:"self"`
	Permissions domain.PermissionSet  `json:"permissions"`
	Roster      []*domain.Participant `json:"roster"`
	Recording   *domain.Recording     `json:"recording,omitempty"`
	ChatTail    []*domain.ChatMessage `json:"chat_tail,omitempty"`
	ICEServers  []webrtc.ICEServer    `json:"ice_servers,omitempty"`
}

type errorResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// errorCodeFor maps domain errors onto the stable wire codes clients
// switch on.
func errorCodeFor(err error) string {
	var na *domain.NotAllowedError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, domain.ErrParticipantNotFound):
		return "participant_not_found"
	case errors.Is(err, domain.ErrRoomFull):
		return "room_full"
	case errors.Is(err, domain.ErrRoomEnded):
		return "room_ended"
	case errors.Is(err, domain.ErrInvalidInviteCode):
		return "invalid_invite"
	case errors.Is(err, domain.ErrAlreadyRecording):
		return "already_recording"
	case errors.Is(err, domain.ErrNotRecording):
		return "not_recording"
	case errors.Is(err, domain.ErrInvalidRoomSpec):
		return "invalid_room"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "service_unavailable"
	case errors.As(err, &na):
		return "not_allowed"
	default:
		return "internal"
	}
}
