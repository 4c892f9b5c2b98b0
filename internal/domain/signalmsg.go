package domain

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v3"
)

type Kind string

const (
	KindWelcome     Kind = "welcome"
	KindJoinRoom    Kind = "join-room"
	KindAllUsers    Kind = "all-users"
	KindOffer       Kind = "offer"
	KindAnswer      Kind = "answer"
	KindICE         Kind = "ice"
	KindChatMessage Kind = "chat-message"
	KindLeave       Kind = "leave"
	KindUserLeft    Kind = "user-left"
	KindError       Kind = "error"
)

// IsUnicast reports whether envelopes of this kind are addressed to exactly
// one target participant.
func (k Kind) IsUnicast() bool {
	switch k {
	case KindOffer, KindAnswer, KindICE:
		return true
	}
	return false
}

var ErrMissingPayload = errors.New("envelope has no payload for its kind")

// SignalMessage is the envelope exchanged between clients and the relay.
// SDP, Candidate and Payload stay raw so the relay forwards them without
// looking inside.
type SignalMessage struct {
	Type      Kind            `json:"type"`
	Room      string          `json:"room,omitempty"`
	SenderID  string          `json:"sender_id,omitempty"`
	TargetID  string          `json:"target_id,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Users     []string        `json:"users,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewSDPMessage(kind Kind, target string, desc webrtc.SessionDescription) (*SignalMessage, error) {
	raw, err := json.Marshal(desc)
	if err != nil {
		return nil, err
	}
	return &SignalMessage{Type: kind, TargetID: target, SDP: raw}, nil
}

func NewICEMessage(target string, candidate webrtc.ICECandidateInit) (*SignalMessage, error) {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, err
	}
	return &SignalMessage{Type: KindICE, TargetID: target, Candidate: raw}, nil
}

func NewChatEnvelope(msg ChatMessage) (*SignalMessage, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &SignalMessage{Type: KindChatMessage, Payload: raw}, nil
}

func (m *SignalMessage) SessionDescription() (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if len(m.SDP) == 0 {
		return desc, ErrMissingPayload
	}
	err := json.Unmarshal(m.SDP, &desc)
	return desc, err
}

func (m *SignalMessage) ICECandidate() (webrtc.ICECandidateInit, error) {
	var candidate webrtc.ICECandidateInit
	if len(m.Candidate) == 0 {
		return candidate, ErrMissingPayload
	}
	err := json.Unmarshal(m.Candidate, &candidate)
	return candidate, err
}

func (m *SignalMessage) ChatMessage() (ChatMessage, error) {
	var msg ChatMessage
	if len(m.Payload) == 0 {
		return msg, ErrMissingPayload
	}
	if err := json.Unmarshal(m.Payload, &msg); err != nil {
		return msg, err
	}
	msg.SenderID = m.SenderID
	return msg, nil
}

// ErrorPayload is carried by KindError envelopes.
type ErrorPayload struct {
	Error string `json:"error"`
}

func NewErrorMessage(err error) SignalMessage {
	raw, _ := json.Marshal(ErrorPayload{Error: err.Error()})
	return SignalMessage{Type: KindError, Payload: raw}
}
