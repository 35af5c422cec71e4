package gameserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/termrumble/termrumble/internal/game"
	"github.com/termrumble/termrumble/internal/protocol"
)

// dispatch routes one inbound envelope. Messages on a single
// connection are processed in arrival order by the read loop.
func (s *Server) dispatch(c *Client, env protocol.Envelope) {
	c.UpdateActivity(time.Now())

	switch env.Type {
	case protocol.TypeConnect:
		s.handleConnect(c, env)
	case protocol.TypeMove:
		s.handleMove(c, env)
	case protocol.TypeFire:
		s.handleFire(c, env)
	case protocol.TypePing:
		s.sendTo(c, protocol.TypePong, struct{}{})
	default:
		slog.Warn("unknown message type", "client", c.ID(), "type", env.Type)
		s.sendError(c, protocol.CodeUnknownType, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (s *Server) handleConnect(c *Client, env protocol.Envelope) {
	if c.PlayerID() != "" {
		slog.Warn("duplicate CONNECT on transport, dropping", "client", c.ID(), "player", c.PlayerID())
		return
	}

	var req protocol.ConnectRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		slog.Warn("malformed CONNECT payload, dropping", "client", c.ID(), "error", err)
		return
	}

	playerID, playerName, restored := "", "", false
	if req.PlayerID != "" {
		// reconnect path: revive the prior player when grace allows
		name, err := s.game.RestorePlayer(req.PlayerID, c.ID())
		if err == nil {
			playerID, playerName, restored = req.PlayerID, name, true
			slog.Info("player restored", "client", c.ID(), "player", playerID)
		}
	}

	if !restored {
		playerID = uuid.NewString()
		playerName = req.PlayerName
		if playerName == "" {
			playerName = fmt.Sprintf("player-%s", playerID[:8])
		}
		if err := s.game.AddPlayer(c.ID(), playerID, playerName); err != nil {
			slog.Error("adding player", "client", c.ID(), "error", err)
			return
		}
		status, err := s.game.SpawnPlayer(playerID)
		if err != nil {
			slog.Error("spawning player", "client", c.ID(), "player", playerID, "error", err)
			return
		}
		if status == game.StatusWaiting {
			slog.Info("player queued for spawn", "client", c.ID(), "player", playerID)
		}
	}

	c.SetPlayerID(playerID)
	c.SetPlayerName(playerName)

	s.sendTo(c, protocol.TypeConnect, protocol.ConnectResponse{
		ClientID:   c.ID(),
		PlayerID:   playerID,
		PlayerName: playerName,
		GameState:  s.game.Snapshot(),
	})
	slog.Info("player joined", "client", c.ID(), "player", playerID, "name", playerName, "restored", restored)
}

func (s *Server) handleMove(c *Client, env protocol.Envelope) {
	playerID := c.PlayerID()
	if playerID == "" {
		s.sendError(c, protocol.CodeNotConnected, "join before moving")
		return
	}

	var req protocol.MoveRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		s.sendError(c, protocol.CodeInvalidMove, "malformed move payload")
		return
	}

	if err := s.game.MovePlayer(playerID, req.DX, req.DY); err != nil {
		switch {
		case errors.Is(err, game.ErrInvalidMove):
			s.sendError(c, protocol.CodeInvalidMove, err.Error())
		case errors.Is(err, game.ErrUnknownPlayer):
			s.sendError(c, protocol.CodeNotConnected, err.Error())
		default:
			// not-spawned and collision rejections both surface as a
			// failed move; the next snapshot carries the truth
			s.sendError(c, protocol.CodeMoveFailed, err.Error())
		}
		return
	}
	// no per-move success response
}

func (s *Server) handleFire(c *Client, env protocol.Envelope) {
	playerID := c.PlayerID()
	if playerID == "" {
		s.sendError(c, protocol.CodeNotConnected, "join before firing")
		return
	}

	var req protocol.FireRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		s.sendError(c, protocol.CodeInvalidDirection, "malformed fire payload")
		return
	}

	if _, err := s.game.FireBullet(playerID, req.DX, req.DY); err != nil {
		switch {
		case errors.Is(err, game.ErrInvalidDirection):
			s.sendError(c, protocol.CodeInvalidDirection, err.Error())
		case errors.Is(err, game.ErrBulletInFlight):
			s.sendError(c, protocol.CodeBulletInFlight, err.Error())
		case errors.Is(err, game.ErrUnknownPlayer):
			s.sendError(c, protocol.CodeNotConnected, err.Error())
		default:
			s.sendError(c, protocol.CodeMoveFailed, err.Error())
		}
	}
}

// sendTo unicasts an envelope of the given type.
func (s *Server) sendTo(c *Client, msgType string, payload any) {
	env, err := protocol.New(msgType, payload)
	if err != nil {
		slog.Error("building envelope", "type", msgType, "error", err)
		return
	}
	env.ClientID = c.ID()
	c.SendEnvelope(env)
}

func (s *Server) sendError(c *Client, code, message string) {
	s.sendTo(c, protocol.TypeError, protocol.ErrorPayload{Code: code, Message: message})
}
