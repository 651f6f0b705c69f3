package hub

import (
	"encoding/json"
	"fmt"
)

// wireEnvelope is the minimal shape every inbound message shares: a
// type discriminant plus the raw remainder, decoded fully once the
// type is known.
type wireEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (w *wireEnvelope) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	w.Type = head.Type
	w.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Client -> server message shapes.

type wireConnect struct {
	Type       string               `json:"type"`
	LastSeen   string               `json:"lastSeen"`
	ClientID   string               `json:"clientId,omitempty"`
	UUIDParams *wireSignedGenParams `json:"uuidParams,omitempty"`
}

type wireAction struct {
	Type       string          `json:"type"`
	ActionID   string          `json:"actionId"`
	ActionData json.RawMessage `json:"actionData"`
}

// structuredData reports whether the action's payload decodes as a
// JSON object, returning it as a map; non-object payloads (strings,
// numbers, arrays, null) are rejected, which is the defense against
// type confusion in the reducer that the wire format mandates.
func (a wireAction) structuredData() (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(a.ActionData, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// Server -> client message shapes.

type wireInvalidStore struct {
	Type string `json:"type"`
}

type wireNeedAuthentication struct {
	Type string `json:"type"`
}

type wireBadAuthorization struct {
	Type     string `json:"type"`
	ActionID string `json:"actionId"`
}

type wireConnected struct {
	Type         string              `json:"type"`
	InitialState any                 `json:"initialState"`
	ClientID     string              `json:"clientId"`
	UUIDParams   wireSignedGenParams `json:"uuidParams"`
}

type wireResumeConnection struct {
	Type    string             `json:"type"`
	Actions []wireResumeAction `json:"actions"`
}

type wireResumeAction struct {
	ID         string `json:"id"`
	ReplacesID string `json:"replacesId,omitempty"`
	Action     any    `json:"action"`
}

type wireReplaceState struct {
	Type  string `json:"type"`
	State any    `json:"state"`
}

type wireActionFanout struct {
	Type   string `json:"type"`
	Action any    `json:"action"`
	ID     string `json:"id"`
}

type wireAckAction struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type wireReplaceAction struct {
	Type   string `json:"type"`
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Action any    `json:"action"`
}

type wireRenameID struct {
	Type   string `json:"type"`
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
}

type wireRejectAction struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	ActionID string `json:"actionId"`
}

// wireSignedGenParams is the base64 wire form of genparams.SignedGenParams.
type wireSignedGenParams struct {
	InitBytesBase64 string `json:"initBytesBase64"`
	SignatureBase64 string `json:"signatureBase64"`
}

func decodeWireMessage(env wireEnvelope) (any, error) {
	switch env.Type {
	case "connect":
		var m wireConnect
		if err := json.Unmarshal(env.Raw, &m); err != nil {
			return nil, fmt.Errorf("hub: decode connect: %w", err)
		}
		return m, nil
	case "action":
		var m wireAction
		if err := json.Unmarshal(env.Raw, &m); err != nil {
			return nil, fmt.Errorf("hub: decode action: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("hub: unknown message type %q", env.Type)
	}
}
