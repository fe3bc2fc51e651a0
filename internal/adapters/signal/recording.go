package signal

import (
	"context"
	"encoding/json"
)

func (ctl *SignalWSController) handleStartRecording(ctx context.Context, s *wsSession) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	if _, err := ctl.Orch.Recorder.Start(ctx, roomID, s.identity.UserID); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}

func (ctl *SignalWSController) handleStopRecording(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p stopRecordingRequest
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(s.conn, "bad_payload", "bad stop_recording payload")
		return
	}
	if _, err := ctl.Orch.Recorder.Stop(ctx, roomID, s.identity.UserID, p.OutputRef); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}
