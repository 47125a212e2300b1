package session

import (
	"bytes"
	"encoding/json"
)

// ClientMessageKind tags a client -> server message. Any tag outside
// this set decodes as BadJSON per spec.md §4.7.
type ClientMessageKind string

const (
	ChangedCompilationMode ClientMessageKind = "ChangedCompilationMode"
	FocusedTab             ClientMessageKind = "FocusedTab"
	ExitRequested          ClientMessageKind = "ExitRequested"
	BadJSON                ClientMessageKind = "BadJson"
)

var knownClientKinds = map[ClientMessageKind]bool{
	ChangedCompilationMode: true,
	FocusedTab:             true,
	ExitRequested:          true,
}

// ClientMessage is a decoded client -> server message.
type ClientMessage struct {
	Kind    ClientMessageKind
	Payload json.RawMessage
}

// wireClientMessage is the strict wire shape client messages must
// match; unrecognized fields are rejected the same way
// cli.LoadGraphFromFile's decoder configuration rejects them.
type wireClientMessage struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeClientMessage parses raw bytes into a ClientMessage, mapping any
// decode failure or unrecognized kind to BadJSON.
func DecodeClientMessage(raw []byte) ClientMessage {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var wire wireClientMessage
	if err := dec.Decode(&wire); err != nil {
		return ClientMessage{Kind: BadJSON}
	}
	kind := ClientMessageKind(wire.Kind)
	if !knownClientKinds[kind] {
		return ClientMessage{Kind: BadJSON}
	}
	return ClientMessage{Kind: kind, Payload: wire.Payload}
}

// ChangedCompilationModePayload is ChangedCompilationMode's payload
// shape: `{"mode": "debug" | "standard" | "optimize"}`.
type ChangedCompilationModePayload struct {
	Mode string `json:"mode"`
}

// DecodeChangedCompilationMode extracts the requested mode string from a
// ChangedCompilationMode message's payload. ok is false if the message
// isn't that kind or the payload doesn't carry a mode.
func DecodeChangedCompilationMode(msg ClientMessage) (mode string, ok bool) {
	if msg.Kind != ChangedCompilationMode {
		return "", false
	}
	var p ChangedCompilationModePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Mode == "" {
		return "", false
	}
	return p.Mode, true
}

// ServerMessageKind tags a server -> client message: a status update, a
// delivery, or a reload directive (spec.md §4.7).
type ServerMessageKind string

const (
	StatusConnecting            ServerMessageKind = "Connecting"
	StatusWaitingForCompilation ServerMessageKind = "WaitingForCompilation"
	StatusSuccessfullyCompiled  ServerMessageKind = "SuccessfullyCompiled"
	StatusCompilationError      ServerMessageKind = "CompilationError"
	StatusUnexpectedError       ServerMessageKind = "UnexpectedError"
	DeliveryArtifact            ServerMessageKind = "Artifact"
	DirectiveFullReload         ServerMessageKind = "FullReload"
	DirectivePortsAdded         ServerMessageKind = "PortsAdded"
)

// ServerMessage is any message hotproxy sends to a browser client.
type ServerMessage struct {
	Kind ServerMessageKind `json:"kind"`

	// Artifact delivery fields.
	Bytes        []byte   `json:"bytes,omitempty"`
	CompiledAtMs int64    `json:"compiledAt,omitempty"`
	RecordFields []string `json:"recordFields,omitempty"`

	// Reload/error/advisory fields.
	Reason  ReloadReason `json:"reason,omitempty"`
	Detail  string       `json:"detail,omitempty"`
	Message string       `json:"message,omitempty"`

	// TargetNotFound context.
	EnabledTargets  []string `json:"enabledTargets,omitempty"`
	DisabledTargets []string `json:"disabledTargets,omitempty"`

	// PortsAdded advisory.
	Ports []string `json:"ports,omitempty"`
}
