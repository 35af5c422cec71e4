package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/termrumble/termrumble/internal/board"
	"github.com/termrumble/termrumble/internal/config"
	"github.com/termrumble/termrumble/internal/event"
	"github.com/termrumble/termrumble/internal/game"
	"github.com/termrumble/termrumble/internal/gameserver"
	"github.com/termrumble/termrumble/internal/spawn"
)

const (
	version           = "0.1.0"
	defaultConfigPath = "config/gameserver.yaml"
)

func main() {
	boardPath := flag.String("board", "", "path to the board file (overrides config)")
	configPath := flag.String("config", "", "path to the server config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("termrumble", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, *boardPath, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "termrumble:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, boardPath, configPath string) error {
	// config FIRST to determine log level
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = defaultConfigPath
		if p := os.Getenv("TERMRUMBLE_CONFIG"); p != "" {
			cfgPath = p
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	if boardPath != "" {
		cfg.BoardPath = boardPath
	}

	slog.Info("termrumble server starting",
		"version", version,
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"board", cfg.BoardPath,
		"log_level", cfg.LogLevel)

	// no fallback board: a missing file fails startup
	b, err := board.Load(cfg.BoardPath)
	if err != nil {
		return fmt.Errorf("loading board: %w", err)
	}
	slog.Info("board loaded",
		"width", b.Width(),
		"height", b.Height(),
		"spawn_points", len(b.SpawnPoints()))

	bus := event.NewBus()
	subscribeEventLog(bus)

	policy := spawn.NewPolicy(b, cfg.SpawnClearRadius)
	g := game.New(b, policy, bus, cfg.RespawnDelay(), cfg.DisconnectGrace())
	srv := gameserver.NewServer(cfg, g)

	return srv.Run(ctx)
}

// subscribeEventLog wires game events to structured logging.
func subscribeEventLog(bus *event.Bus) {
	bus.Subscribe(event.TypePlayerJoined, func(ev event.Event) {
		if p, ok := ev.Payload.(game.PlayerJoinedPayload); ok {
			slog.Info("player joined", "player", p.PlayerID, "name", p.PlayerName)
		}
	})
	bus.Subscribe(event.TypePlayerLeft, func(ev event.Event) {
		if p, ok := ev.Payload.(game.PlayerLeftPayload); ok {
			slog.Info("player left", "player", p.PlayerID, "reason", p.Reason)
		}
	})
	bus.Subscribe(event.TypeScoreChange, func(ev event.Event) {
		if p, ok := ev.Payload.(game.ScoreChangePayload); ok {
			slog.Info("score changed", "player", p.PlayerID, "score", p.Score, "victim", p.VictimID)
		}
	})
	bus.Subscribe(event.TypeBump, func(ev event.Event) {
		if p, ok := ev.Payload.(game.BumpPayload); ok {
			slog.Debug("move rejected",
				"player", p.PlayerID,
				"collision", p.CollisionType,
				"attempted_x", p.AttemptedX,
				"attempted_y", p.AttemptedY)
		}
	})
	bus.Subscribe(event.TypeGameStateChange, func(ev event.Event) {
		if p, ok := ev.Payload.(game.GameStateChangePayload); ok {
			slog.Info("game state changed", "running", p.Running)
		}
	})
}
