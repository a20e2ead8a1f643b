package relay

import (
	"encoding/json"

	"github.com/livedevhub/collab-relay/pkg/state"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

type signalOut struct {
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	From      json.RawMessage `json:"from"`
}

// handleSignal forwards WebRTC negotiation messages to the sender's bound
// project room, excluding the sender. Stateless store-and-forward: the to
// field is ignored and receivers self-filter by from, which holds for the
// small rooms this serves.
func (r *Relay) handleSignal(conn *state.Connection, payload json.RawMessage, event string) {
	if conn.ProjectID == "" {
		r.drop(conn.ID, event, "sender not in a project room")
		return
	}
	var p signalPayload
	if !r.decode(conn, event, payload, &p) {
		return
	}
	out := signalOut{From: p.From}
	switch event {
	case "audio-offer":
		out.Offer = p.Offer
	case "audio-answer":
		out.Answer = p.Answer
	case "ice-candidate":
		out.Candidate = p.Candidate
	}
	r.broadcast(transport.ProjectGroup(conn.ProjectID), conn.ID, event, out)
}
