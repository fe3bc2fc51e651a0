// Package rtc holds the WebRTC edge of the signaling relay: the ICE
// server catalog handed to joining clients and shape checks for the
// negotiation payloads passing through. Media itself never terminates
// here; peers connect directly.
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

// ServerEntry is one configured ICE server; main maps config rows onto
// it.
type ServerEntry struct {
	URLs       []string
	Username   string
	Credential string
}

// ICEServers builds the list advertised in the join snapshot. With
// nothing configured clients get a public STUN fallback so negotiation
// works out of the box.
func ICEServers(entries []ServerEntry) []webrtc.ICEServer {
	if len(entries) == 0 {
		return []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	out := make([]webrtc.ICEServer, 0, len(entries))
	for _, e := range entries {
		srv := webrtc.ICEServer{URLs: e.URLs, Username: e.Username}
		if e.Credential != "" {
			srv.Credential = e.Credential
		}
		out = append(out, srv)
	}
	return out
}

// ValidateSignal rejects payloads that cannot be what their kind claims:
// offers and answers must carry SDP of the matching type, candidates
// must parse as an ICE candidate. Contents are not interpreted further.
func ValidateSignal(kind domain.SignalKind, payload []byte) error {
	if len(payload) == 0 {
		return errors.New("empty signal payload")
	}
	switch kind {
	case domain.SignalOffer, domain.SignalAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(payload, &sd); err != nil {
			return fmt.Errorf("bad session description: %w", err)
		}
		if sd.SDP == "" {
			return errors.New("empty sdp")
		}
		want := webrtc.SDPTypeOffer
		if kind == domain.SignalAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if sd.Type != want {
			return fmt.Errorf("sdp type %q does not match signal kind %q", sd.Type, kind)
		}
	case domain.SignalCandidate:
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(payload, &ci); err != nil {
			return fmt.Errorf("bad ice candidate: %w", err)
		}
		// an end-of-candidates marker arrives as an empty candidate
	default:
		return fmt.Errorf("unknown signal kind %q", kind)
	}
	return nil
}
