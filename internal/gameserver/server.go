// Package gameserver accepts WebSocket connections, routes inbound
// envelopes to the game model, and runs the simulation and broadcast
// tickers.
package gameserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/termrumble/termrumble/internal/config"
	"github.com/termrumble/termrumble/internal/game"
	"github.com/termrumble/termrumble/internal/protocol"
)

const shutdownTimeout = 5 * time.Second

// Server owns the listener, the connection registry, and both tickers.
type Server struct {
	cfg     config.Server
	game    *game.Game
	clients *ClientManager

	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server over the given game model.
func NewServer(cfg config.Server, g *game.Game) *Server {
	return &Server{
		cfg:     cfg,
		game:    g,
		clients: NewClientManager(),
		upgrader: websocket.Upgrader{
			// identities are not authenticated; any origin may join
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ClientManager returns the connection registry.
func (s *Server) ClientManager() *ClientManager {
	return s.clients
}

// Addr returns the bound listen address, nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run binds the listener and blocks until ctx is canceled. The accept
// loop, the simulation ticker, and the broadcast ticker run in
// parallel; cancellation stops all three, closes every transport, and
// shuts the HTTP server down with a bounded timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	httpServer := &http.Server{Handler: mux}

	s.game.SetRunning(true)
	defer s.game.SetRunning(false)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.simulationLoop(gctx)
		return nil
	})

	g.Go(func() error {
		s.broadcastLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("server shutting down")
		s.clients.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// handleWS upgrades the transport and runs the connection's read loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := s.clients.AddConnection(conn, s.cfg.SendQueueSize, s.cfg.WriteTimeout())
	slog.Info("connection accepted", "client", c.ID(), "remote", r.RemoteAddr)

	go c.writePump()
	s.readLoop(c)
}

// readLoop processes inbound frames in arrival order until the
// transport closes, then runs disconnect cleanup. A panic inside one
// connection's handling never takes the server down.
func (s *Server) readLoop(c *Client) {
	defer s.disconnect(c)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("connection handler panicked", "client", c.ID(), "panic", r)
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("read failed", "client", c.ID(), "error", err)
			}
			return
		}

		env, err := protocol.Parse(data)
		if err != nil {
			// protocol errors drop the message, not the connection
			slog.Warn("dropping malformed envelope", "client", c.ID(), "error", err)
			continue
		}

		s.dispatch(c, env)
	}
}

// disconnect runs transport-close cleanup: the registry entry ends and
// the player moves into the grace buffer for possible reconnect.
func (s *Server) disconnect(c *Client) {
	c.Close()
	s.clients.RemoveConnection(c.ID())

	if playerID := c.PlayerID(); playerID != "" {
		// keyed by this connection: a player rebound to a newer
		// transport survives the stale close
		if err := s.game.RemovePlayer(playerID, c.ID(), game.ReasonDisconnect); err != nil {
			slog.Debug("removing player on disconnect", "player", playerID, "error", err)
		}
	}
	slog.Info("connection closed", "client", c.ID(), "player", c.PlayerID())
}

// simulationLoop advances bullets, respawns, waiting spawns, and the
// grace purge at the configured tick.
func (s *Server) simulationLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SimulationTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			summary := s.game.TickBullets()
			for _, k := range summary.Kills {
				slog.Info("player killed", "killer", k.KillerID, "victim", k.VictimID)
			}
			if respawned := s.game.ProcessRespawns(); len(respawned) > 0 {
				slog.Info("players respawned", "players", respawned)
			}
			if placed := s.game.TrySpawnWaitingPlayers(); len(placed) > 0 {
				slog.Info("waiting players placed", "players", placed)
			}
			s.game.PurgeExpiredDisconnected()
			s.clients.Sweep(now)
		}
	}
}

// broadcastLoop fans the snapshot out to every active connection at
// the configured interval. The snapshot is serialized once per tick
// and only when someone is listening.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BroadcastInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.clients.ActiveCount() == 0 {
				continue
			}

			env, err := protocol.New(protocol.TypeStateUpdate, s.game.Snapshot())
			if err != nil {
				slog.Error("building state update", "error", err)
				continue
			}
			data, err := env.Encode()
			if err != nil {
				slog.Error("encoding state update", "error", err)
				continue
			}

			s.clients.ForEachActive(func(c *Client) bool {
				c.Send(data)
				return true
			})
		}
	}
}
