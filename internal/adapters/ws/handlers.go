package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/aretw0/switchbot/pkg/domain"
)

func (s *Server) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		domain.EventGetPrograms:       s.handleGetPrograms,
		domain.EventStartProgram:      s.handleStartProgram,
		domain.EventStopProgram:       s.handleStopProgram,
		domain.EventUpdateOptions:     s.handleUpdateOptions,
		domain.EventReloadPrograms:    s.handleReloadPrograms,
		domain.EventDialogClosed:      s.handleDialogClosed,
		domain.EventGetRunningProgram: s.handleGetRunningProgram,
		domain.EventConnectSerial:     s.handleConnectSerial,
		domain.EventDisconnectSerial:  s.handleDisconnectSerial,
		domain.EventCurrentSerial:     s.handleCurrentSerial,
		domain.EventAllSerials:        s.handleAllSerials,
		domain.EventConnectVideo:      s.handleConnectVideo,
		domain.EventDisconnectVideo:   s.handleDisconnectVideo,
		domain.EventCurrentVideo:      s.handleCurrentVideo,
		domain.EventAllVideo:          s.handleAllVideo,
		domain.EventPressButton:       s.handlePressButton,
		domain.EventMoveJoystick:      s.handleMoveJoystick,
	}
}

// dispatch answers one raw client message. Malformed envelopes and unknown
// events get a protocol_error reply; the connection stays open.
func (s *Server) dispatch(ctx context.Context, c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.protocolError(c, "", fmt.Errorf("%w: %v", domain.ErrProtocol, err))
		return
	}
	if env.Event == "" {
		s.protocolError(c, env.ID, fmt.Errorf("%w: missing event name", domain.ErrProtocol))
		return
	}
	h, ok := s.handlers[env.Event]
	if !ok {
		s.protocolError(c, env.ID, fmt.Errorf("%w: unknown event %q", domain.ErrProtocol, env.Event))
		return
	}

	s.logger.Debug("Received event", "event", env.Event, "client", c.id)
	s.reply(c, domain.ResponseEvent(env.Event), env.ID, h(ctx, env.Data))
}

func (s *Server) reply(c *Client, event, id string, payload any) {
	msg, err := encode(event, id, payload)
	if err != nil {
		s.logger.Error("Failed to encode response", "event", event, "err", err)
		return
	}
	if !c.enqueue(msg) {
		s.logger.Warn("Client buffer full, dropping response", "client", c.id, "event", event)
	}
}

func (s *Server) protocolError(c *Client, id string, err error) {
	s.metrics.ProtocolError()
	s.logger.Warn("Rejected client message", "client", c.id, "err", err)
	s.reply(c, domain.EventProtocolError, id, domain.Failure(err))
}

// rejected acknowledges a request whose payload could not be decoded.
func (s *Server) rejected(err error) domain.ResultMessage {
	if errors.Is(err, domain.ErrProtocol) {
		s.metrics.ProtocolError()
	}
	return domain.Failure(err)
}

func result(err error) domain.ResultMessage {
	if err != nil {
		return domain.Failure(err)
	}
	return domain.Success()
}

func (s *Server) handleGetPrograms(context.Context, json.RawMessage) any {
	return s.Sessions.Programs()
}

func (s *Server) handleStartProgram(ctx context.Context, data json.RawMessage) any {
	var msg domain.StartProgramMessage
	if err := decodeData(data, &msg); err != nil {
		return s.rejected(err)
	}
	if err := sanitizeValues(msg.OptionValues); err != nil {
		return s.rejected(err)
	}
	if err := s.Sessions.Start(ctx, msg.ProgramName, msg.OptionValues); err != nil {
		s.logger.Warn("Failed to start program", "program", msg.ProgramName, "err", err)
		return domain.Failure(err)
	}
	return domain.Success()
}

func (s *Server) handleStopProgram(ctx context.Context, _ json.RawMessage) any {
	return result(s.Sessions.Stop(ctx))
}

func (s *Server) handleUpdateOptions(ctx context.Context, data json.RawMessage) any {
	var msg domain.UpdateOptionsMessage
	if err := decodeData(data, &msg); err != nil {
		return s.rejected(err)
	}
	if err := sanitizeValues(msg.OptionValues); err != nil {
		return s.rejected(err)
	}
	return result(s.Sessions.UpdateOptions(ctx, msg.OptionValues))
}

// handleReloadPrograms rebuilds the catalog and pushes it to every client.
func (s *Server) handleReloadPrograms(ctx context.Context, _ json.RawMessage) any {
	err := s.Sessions.Reload(ctx)
	if err != nil {
		s.logger.Warn("Some programs failed to load", "err", err)
	}
	s.hub.Broadcast(domain.ResponseEvent(domain.EventGetPrograms), s.Sessions.Programs())
	return result(err)
}

func (s *Server) handleDialogClosed(_ context.Context, data json.RawMessage) any {
	var msg domain.DialogClosedMessage
	if err := decodeData(data, &msg); err != nil {
		return s.rejected(err)
	}
	answer, err := sanitize(msg.Button)
	if err != nil {
		return s.rejected(err)
	}
	if !s.Sessions.Answer(answer) {
		return domain.Failure(fmt.Errorf("%w: no dialog is waiting for an answer", domain.ErrNotRunning))
	}
	return domain.Success()
}

func (s *Server) handleGetRunningProgram(context.Context, json.RawMessage) any {
	return s.Sessions.CurrentProgram()
}

func (s *Server) currentSerial() *string {
	if name, ok := s.Serial.Port(); ok {
		return &name
	}
	return nil
}

func (s *Server) availableSerials() []string {
	ports, err := s.Serial.ListPorts()
	if err != nil {
		s.logger.Warn("Failed to list serial ports", "err", err)
	}
	if ports == nil {
		ports = []string{}
	}
	return ports
}

func (s *Server) handleConnectSerial(_ context.Context, data json.RawMessage) any {
	var port string
	if err := decodeData(data, &port); err != nil {
		return s.rejected(err)
	}
	err := s.Serial.Connect(port)
	s.hub.Broadcast(domain.EventCurrentSerial, s.currentSerial())
	return result(err)
}

func (s *Server) handleDisconnectSerial(context.Context, json.RawMessage) any {
	s.Serial.Disconnect()
	s.hub.Broadcast(domain.EventCurrentSerial, s.currentSerial())
	return domain.Success()
}

func (s *Server) handleCurrentSerial(context.Context, json.RawMessage) any {
	return s.currentSerial()
}

func (s *Server) handleAllSerials(context.Context, json.RawMessage) any {
	return s.availableSerials()
}

func (s *Server) handleConnectVideo(_ context.Context, data json.RawMessage) any {
	var descriptor domain.CameraDescriptor
	if err := decodeData(data, &descriptor); err != nil {
		return s.rejected(err)
	}
	err := s.Video.Connect(descriptor)
	s.hub.Broadcast(domain.EventCurrentVideo, s.Video.Current())
	return result(err)
}

func (s *Server) handleDisconnectVideo(context.Context, json.RawMessage) any {
	s.Video.Disconnect()
	s.hub.Broadcast(domain.EventCurrentVideo, s.Video.Current())
	return domain.Success()
}

func (s *Server) handleCurrentVideo(context.Context, json.RawMessage) any {
	return s.Video.Current()
}

func (s *Server) handleAllVideo(context.Context, json.RawMessage) any {
	return s.Video.ListCameras()
}

func (s *Server) handlePressButton(ctx context.Context, data json.RawMessage) any {
	var name string
	if err := decodeData(data, &name); err != nil {
		return s.rejected(err)
	}
	return result(s.Serial.Press(ctx, domain.Button(name)))
}

func (s *Server) handleMoveJoystick(ctx context.Context, data json.RawMessage) any {
	var msg domain.JoystickMessage
	if err := decodeData(data, &msg); err != nil {
		return s.rejected(err)
	}
	if msg.Joystick != domain.StickLeft && msg.Joystick != domain.StickRight {
		return s.rejected(fmt.Errorf("%w: unknown joystick %q", domain.ErrProtocol, msg.Joystick))
	}
	radius := math.Max(0, math.Min(1, msg.Radius))
	return result(s.Serial.SetJoystick(ctx, msg.Joystick, msg.Angle, radius))
}
