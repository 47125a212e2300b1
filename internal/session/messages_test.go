package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage_KnownKinds(t *testing.T) {
	msg := DecodeClientMessage([]byte(`{"kind":"FocusedTab"}`))
	require.Equal(t, FocusedTab, msg.Kind)
}

func TestDecodeClientMessage_UnknownKindIsBadJSON(t *testing.T) {
	msg := DecodeClientMessage([]byte(`{"kind":"SomethingElse"}`))
	require.Equal(t, BadJSON, msg.Kind)
}

func TestDecodeClientMessage_MalformedIsBadJSON(t *testing.T) {
	msg := DecodeClientMessage([]byte(`not json`))
	require.Equal(t, BadJSON, msg.Kind)
}

func TestDecodeClientMessage_UnknownFieldIsBadJSON(t *testing.T) {
	msg := DecodeClientMessage([]byte(`{"kind":"FocusedTab","extra":1}`))
	require.Equal(t, BadJSON, msg.Kind)
}

func TestDecodeChangedCompilationMode(t *testing.T) {
	msg := DecodeClientMessage([]byte(`{"kind":"ChangedCompilationMode","payload":{"mode":"optimize"}}`))
	require.Equal(t, ChangedCompilationMode, msg.Kind)

	mode, ok := DecodeChangedCompilationMode(msg)
	require.True(t, ok)
	require.Equal(t, "optimize", mode)
}

func TestDecodeChangedCompilationMode_MissingModeIsNotOK(t *testing.T) {
	msg := DecodeClientMessage([]byte(`{"kind":"ChangedCompilationMode","payload":{}}`))
	_, ok := DecodeChangedCompilationMode(msg)
	require.False(t, ok)
}

func TestDecodeChangedCompilationMode_WrongKindIsNotOK(t *testing.T) {
	_, ok := DecodeChangedCompilationMode(ClientMessage{Kind: FocusedTab})
	require.False(t, ok)
}
