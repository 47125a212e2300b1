// Package session implements the per-client websocket state machine of
// spec.md §4.7: connect handshake validation, the client/server message
// taxonomy, and the pure reload-verdict algorithm.
//
// The read/write loop shape (a buffered outbound channel drained by a
// writer goroutine, ping/pong deadlines, context-driven teardown) is
// grounded on Keyhole-Koro-InsightifyCore's
// internal/gateway/handler/rpc/user_interaction.go — the pack's own
// gorilla/websocket handler — generalized from a single interaction
// stream to hotproxy's richer status/delivery/reload message set.
package session

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HandshakeErrorKind enumerates the connect-time rejections of spec.md
// §4.7.
type HandshakeErrorKind string

const (
	BadURL           HandshakeErrorKind = "BadUrl"
	ParamsDecodeError HandshakeErrorKind = "ParamsDecodeError"
	WrongVersion     HandshakeErrorKind = "WrongVersion"
	TargetNotFound   HandshakeErrorKind = "TargetNotFound"
	TargetDisabled   HandshakeErrorKind = "TargetDisabled"
)

// HandshakeError is returned by Negotiate on a rejected connection.
type HandshakeError struct {
	Kind     HandshakeErrorKind
	Message  string
	Enabled  []string
	Disabled []string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("session: handshake rejected: %s: %s", e.Kind, e.Message)
}

// Handshake is the validated result of a successful connect.
type Handshake struct {
	TargetName string
	CompiledAt time.Time
	ToolVersion string
}

// Negotiate validates a websocket connect request in one place, each
// check returning a specific typed error with no partial mutation on
// failure — the same shape the teacher's cli.ParseInvocation uses for
// CLI argument validation.
func Negotiate(path string, query url.Values, expectedPath, serverVersion string, enabledTargets, disabledTargets []string) (*Handshake, *HandshakeError) {
	if path != expectedPath {
		return nil, &HandshakeError{Kind: BadURL, Message: fmt.Sprintf("unexpected path %q", path)}
	}

	targetName := strings.TrimSpace(query.Get("targetName"))
	toolVersion := strings.TrimSpace(query.Get("toolVersion"))
	compiledAtRaw := query.Get("compiledAt")

	if targetName == "" || toolVersion == "" || compiledAtRaw == "" {
		return nil, &HandshakeError{Kind: ParamsDecodeError, Message: "targetName, toolVersion and compiledAt are required"}
	}
	compiledAtMs, err := strconv.ParseInt(compiledAtRaw, 10, 64)
	if err != nil {
		return nil, &HandshakeError{Kind: ParamsDecodeError, Message: fmt.Sprintf("compiledAt: %v", err)}
	}

	if toolVersion != serverVersion {
		return nil, &HandshakeError{Kind: WrongVersion, Message: fmt.Sprintf("client %s, server %s", toolVersion, serverVersion)}
	}

	for _, d := range disabledTargets {
		if d == targetName {
			return nil, &HandshakeError{Kind: TargetDisabled, Message: targetName, Enabled: enabledTargets, Disabled: disabledTargets}
		}
	}
	found := false
	for _, e := range enabledTargets {
		if e == targetName {
			found = true
			break
		}
	}
	if !found {
		return nil, &HandshakeError{Kind: TargetNotFound, Message: targetName, Enabled: enabledTargets, Disabled: disabledTargets}
	}

	return &Handshake{
		TargetName:  targetName,
		ToolVersion: toolVersion,
		CompiledAt:  time.UnixMilli(compiledAtMs),
	}, nil
}
