package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionWireFormat(t *testing.T) {
	data, err := Encode(NewPermission(Permission{Allowed: false, Reason: "no x-ray on this server"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"permission","payload":{"allowed":false,"reason":"no x-ray on this server"}}`, string(data))

	data, err = Encode(NewPermissionRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"permission_request"}`, string(data))
}

func TestDecodePermission(t *testing.T) {
	m, err := Decode([]byte(" {\"type\":\"permission\",\"payload\":{\"allowed\":true}}\n"))
	require.NoError(t, err)
	assert.Equal(t, TypePermission, m.Type)

	p, err := m.Permission()
	require.NoError(t, err)
	assert.Equal(t, Permission{Allowed: true}, p)
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	_, err = Decode([]byte(`{"type":`))
	assert.Equal(t, ErrorCodeInvalidMessage, GetErrorCode(err))

	_, err = Decode(make([]byte, MaxMessageSize+1))
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = Encode(Message{Type: "teleport"})
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestPermissionPayloadErrors(t *testing.T) {
	_, err := NewPermissionRequest().Permission()
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Message{Type: TypePermission}.Permission()
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Message{Type: TypePermission, Payload: json.RawMessage(`"yes"`)}.Permission()
	assert.Equal(t, ErrorCodeInvalidMessage, GetErrorCode(err))
}

func TestWrapErrorKeepsCode(t *testing.T) {
	err := WrapError(ErrConnectionClosed, "send permission")
	assert.Equal(t, ErrorCodeConnectionClosed, GetErrorCode(err))
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Equal(t, "send permission: connection is closed", err.Error())
	assert.Equal(t, ErrorCodeUnknown, GetErrorCode(errors.New("other")))
	assert.Equal(t, "connection_closed", ErrorCodeConnectionClosed.String())
}
