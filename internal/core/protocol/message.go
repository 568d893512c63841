// Package protocol defines the two-message permission handshake spoken
// between a glowline client and a game server, independent of transport.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MaxMessageSize bounds a single encoded message.
const MaxMessageSize = 4 << 10

type MessageType string

const (
	// TypePermissionRequest is sent by the client on join. It has no payload.
	TypePermissionRequest MessageType = "permission_request"
	// TypePermission carries the server verdict.
	TypePermission MessageType = "permission"
)

func (t MessageType) Valid() bool {
	return t == TypePermissionRequest || t == TypePermission
}

// Message is one JSON frame.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Permission is the payload of TypePermission.
type Permission struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func NewPermissionRequest() Message {
	return Message{Type: TypePermissionRequest}
}

func NewPermission(p Permission) Message {
	payload, _ := json.Marshal(p)
	return Message{Type: TypePermission, Payload: payload}
}

// Permission decodes the payload of a TypePermission message.
func (m Message) Permission() (Permission, error) {
	if m.Type != TypePermission {
		return Permission{}, fmt.Errorf("%w: %s is not a permission message", ErrInvalidMessage, m.Type)
	}
	var p Permission
	if len(m.Payload) == 0 {
		return p, fmt.Errorf("%w: empty permission payload", ErrInvalidMessage)
	}
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return Permission{}, &Error{Code: ErrorCodeInvalidMessage, Message: "decode permission payload", Cause: err}
	}
	return p, nil
}

// Encode returns the wire form of m without a trailing newline.
func Encode(m Message) ([]byte, error) {
	if !m.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, WrapError(err, "encode message")
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}
	return data, nil
}

// Decode parses one frame. Unknown types are rejected.
func Decode(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}
	data = bytes.TrimSpace(data)
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, &Error{Code: ErrorCodeInvalidMessage, Message: "decode message", Cause: err}
	}
	if !m.Type.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, m.Type)
	}
	return m, nil
}
