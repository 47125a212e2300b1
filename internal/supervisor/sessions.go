package supervisor

import (
	"time"

	"hotproxy/internal/compiler"
	"hotproxy/internal/inject"
	"hotproxy/internal/output"
	"hotproxy/internal/session"
)

// sessionEvent is the sum type carried on Supervisor.sessionEvents. The
// HTTP/websocket layer (cmd/hotproxy) owns Negotiate and websocket
// upgrade; everything past a successful handshake is funnelled through
// this channel so only the control-loop goroutine ever touches the
// session registry, per spec.md §5.
type sessionEvent interface{ sessionEventTag() }

// sessionConnected is emitted once per successfully negotiated
// websocket connection.
type sessionConnected struct {
	Session          *session.Session
	TargetName       string
	ClientCompiledAt time.Time
}

func (sessionConnected) sessionEventTag() {}

// sessionDisconnected is emitted when a Session's Run loop returns.
type sessionDisconnected struct {
	ID         session.ID
	TargetName string
}

func (sessionDisconnected) sessionEventTag() {}

// sessionClientMessage is emitted for every decoded client -> server
// message on an already-connected Session.
type sessionClientMessage struct {
	ID      session.ID
	Message session.ClientMessage
}

func (sessionClientMessage) sessionEventTag() {}

// PublishConnect, PublishDisconnect and PublishClientMessage let the
// websocket handler goroutines hand events to the control loop without
// ever touching Supervisor state directly.
func (s *Supervisor) PublishConnect(sess *session.Session, targetName string, clientCompiledAt time.Time) {
	s.sessionEvents <- sessionConnected{Session: sess, TargetName: targetName, ClientCompiledAt: clientCompiledAt}
}

func (s *Supervisor) PublishDisconnect(id session.ID, targetName string) {
	s.sessionEvents <- sessionDisconnected{ID: id, TargetName: targetName}
}

func (s *Supervisor) PublishClientMessage(id session.ID, msg session.ClientMessage) {
	s.sessionEvents <- sessionClientMessage{ID: id, Message: msg}
}

func (s *Supervisor) handleSessionEvent(ev sessionEvent) {
	switch e := ev.(type) {
	case sessionConnected:
		s.registerSession(e)
	case sessionDisconnected:
		s.unregisterSession(e)
	case sessionClientMessage:
		s.handleClientMessage(e)
	}
}

func (s *Supervisor) registerSession(e sessionConnected) {
	byID, ok := s.sessionsByTarget[e.TargetName]
	if !ok {
		byID = make(map[session.ID]*session.Session)
		s.sessionsByTarget[e.TargetName] = byID
	}
	byID[e.Session.ID] = e.Session
	s.targetBySession[e.Session.ID] = e.TargetName

	e.Session.Send(session.ServerMessage{Kind: session.StatusConnecting})

	outputPath, st, _, ok := s.proj.FindByTargetName(e.TargetName)
	if !ok {
		return
	}

	switch status := st.Status.(type) {
	case output.Success:
		artifact := s.lastArtifactBytes[e.TargetName]
		summary := s.lastArtifact[e.TargetName]
		e.Session.Send(session.ServerMessage{Kind: session.StatusSuccessfullyCompiled})
		if artifact == nil || summary == nil {
			return
		}
		compiledAt := s.lastCompiledAt[e.TargetName]
		if e.ClientCompiledAt.IsZero() || e.ClientCompiledAt.Before(compiledAt) {
			e.Session.Send(session.ServerMessage{
				Kind:         session.DeliveryArtifact,
				Bytes:        artifact,
				CompiledAtMs: compiledAt.UnixMilli(),
				RecordFields: compiler.SortedRecordFields(summary.RecordFields),
			})
		}
	default:
		if output.IsErrorLeaf(status) {
			e.Session.Send(session.ServerMessage{Kind: session.StatusCompilationError, Message: statusMessage(status)})
			return
		}
		e.Session.Send(session.ServerMessage{Kind: session.StatusWaitingForCompilation})
		if !s.everWritten[outputPath] {
			if err := inject.WriteProxyStub(outputPath, e.TargetName); err != nil {
				s.logger.Error("writing proxy stub", "target", e.TargetName, "error", err)
				return
			}
			s.everWritten[outputPath] = true
		}
	}
}

func (s *Supervisor) unregisterSession(e sessionDisconnected) {
	if byID, ok := s.sessionsByTarget[e.TargetName]; ok {
		delete(byID, e.ID)
		if len(byID) == 0 {
			delete(s.sessionsByTarget, e.TargetName)
		}
	}
	delete(s.targetBySession, e.ID)
}

func (s *Supervisor) handleClientMessage(e sessionClientMessage) {
	targetName, ok := s.targetBySession[e.ID]
	if !ok {
		return
	}
	sess := s.sessionsByTarget[targetName][e.ID]
	if sess == nil {
		return
	}

	switch e.Message.Kind {
	case session.ChangedCompilationMode:
		// Persisted per spec.md §6.2; takes effect on the target's next
		// resolution (applyPreferredModes in the CLI layer), not on the
		// build currently in flight.
		if mode, ok := session.DecodeChangedCompilationMode(e.Message); ok && s.preferencesSink != nil {
			s.preferencesSink(targetName, mode)
		}
	case session.FocusedTab:
		// Advisory only; no supervisor state currently depends on tab
		// focus.
	case session.ExitRequested:
		sess.Send(session.ServerMessage{Kind: session.StatusUnexpectedError, Message: "client requested exit"})
	case session.BadJSON:
		s.logger.Info("dropping malformed client message", "target", targetName, "session", string(e.ID))
	}
}

// statusMessage renders one of output.IsErrorLeaf's terminal error
// statuses as the human-readable text sent alongside CompilationError
// / UnexpectedError, for a session connecting after the target already
// failed.
func statusMessage(status output.Status) string {
	switch st := status.(type) {
	case output.ParseError:
		return st.Message
	case output.CompilerError:
		return st.Message
	case output.PostprocessError:
		return st.Reason
	case output.InjectError:
		return string(st.Reason)
	case output.ReadOutputError:
		return st.Err.Error()
	case output.WriteOutputError:
		return st.Err.Error()
	case output.WriteProxyOutputError:
		return st.Err.Error()
	case output.WalkSourcesError:
		return st.Err.Error()
	default:
		return ""
	}
}
