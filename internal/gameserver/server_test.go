package gameserver

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/termrumble/termrumble/internal/board"
	"github.com/termrumble/termrumble/internal/config"
	"github.com/termrumble/termrumble/internal/event"
	"github.com/termrumble/termrumble/internal/game"
	"github.com/termrumble/termrumble/internal/protocol"
	"github.com/termrumble/termrumble/internal/spawn"
)

// testServer runs a full server on an ephemeral port with fast ticks.
type testServer struct {
	t      *testing.T
	srv    *Server
	game   *game.Game
	cancel context.CancelFunc
	url    string
}

// borderedBoard builds a 20x20 board with perimeter walls and spawn
// points at the given cells.
func borderedBoard(t *testing.T, spawns ...board.Point) *board.Board {
	t.Helper()
	const size = 20
	cells := make([]int, size*size)
	for x := 0; x < size; x++ {
		cells[x] = board.CellWall
		cells[(size-1)*size+x] = board.CellWall
	}
	for y := 0; y < size; y++ {
		cells[y*size] = board.CellWall
		cells[y*size+size-1] = board.CellWall
	}
	for _, s := range spawns {
		cells[s.Y*size+s.X] = board.CellSpawn
	}
	b, err := board.FromCells(size, size, cells)
	require.NoError(t, err)
	return b
}

func newTestServer(t *testing.T, spawns ...board.Point) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = 0
	cfg.SimulationTickMs = 10
	cfg.BroadcastIntervalMs = 25
	cfg.RespawnDelayMs = 50

	b := borderedBoard(t, spawns...)
	g := game.New(b, spawn.NewPolicy(b, 0), event.NewBus(), cfg.RespawnDelay(), cfg.DisconnectGrace())
	srv := NewServer(cfg, g)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := srv.Run(ctx); err != nil {
			t.Errorf("server run: %v", err)
		}
	}()

	// wait for the listener to bind
	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("server did not bind")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ts := &testServer{
		t:      t,
		srv:    srv,
		game:   g,
		cancel: cancel,
		url:    fmt.Sprintf("ws://%s/ws", srv.Addr()),
	}
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) Close() {
	ts.cancel()
}

func (ts *testServer) dial() *websocket.Conn {
	ts.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	env, err := protocol.New(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

// readUntil reads frames until one of the wanted type arrives,
// skipping interleaved broadcasts.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		env, err := protocol.Parse(data)
		require.NoError(t, err)
		if env.Type == msgType {
			return env
		}
	}
}

// connect joins and returns the CONNECT acknowledgement.
func connect(t *testing.T, conn *websocket.Conn, name string) protocol.ConnectResponse {
	t.Helper()
	send(t, conn, protocol.TypeConnect, protocol.ConnectRequest{PlayerName: name})
	env := readUntil(t, conn, protocol.TypeConnect)
	var resp protocol.ConnectResponse
	require.NoError(t, json.Unmarshal(env.Payload, &resp))
	return resp
}

func readError(t *testing.T, conn *websocket.Conn) protocol.ErrorPayload {
	t.Helper()
	env := readUntil(t, conn, protocol.TypeError)
	var ep protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ep))
	return ep
}

// playerIn finds a player's entry in a snapshot.
func playerIn(t *testing.T, gs *protocol.GameState, playerID string) protocol.PlayerState {
	t.Helper()
	for _, ps := range gs.Players {
		if ps.PlayerID == playerID {
			return ps
		}
	}
	t.Fatalf("player %s not in snapshot", playerID)
	return protocol.PlayerState{}
}

func TestConnect_AssignsIdentityAndSnapshot(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()

	resp := connect(t, conn, "alice")

	assert.NotEmpty(t, resp.ClientID)
	assert.NotEmpty(t, resp.PlayerID)
	assert.Equal(t, "alice", resp.PlayerName)
	require.NotNil(t, resp.GameState)
	assert.True(t, resp.GameState.Running)

	p := playerIn(t, resp.GameState, resp.PlayerID)
	require.NotNil(t, p.X)
	assert.Equal(t, 5, *p.X)
	assert.Equal(t, 5, *p.Y)
	assert.Equal(t, 0, resp.GameState.Scores[resp.PlayerID])
}

func TestConnect_DefaultName(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()

	resp := connect(t, conn, "")
	assert.Contains(t, resp.PlayerName, "player-")
}

func TestMove_SoloMoveShowsInBroadcast(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()
	resp := connect(t, conn, "alice")

	send(t, conn, protocol.TypeMove, protocol.MoveRequest{DX: 1, DY: 0})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "move never showed in a snapshot")
		env := readUntil(t, conn, protocol.TypeStateUpdate)
		var gs protocol.GameState
		require.NoError(t, json.Unmarshal(env.Payload, &gs))
		p := playerIn(t, &gs, resp.PlayerID)
		if p.X != nil && *p.X == 6 {
			assert.Equal(t, 5, *p.Y)
			assert.Greater(t, p.VX, 0.0)
			assert.Zero(t, p.VY)
			assert.Equal(t, 0, gs.Scores[resp.PlayerID])
			return
		}
	}
}

func TestMove_BeforeConnect(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()

	send(t, conn, protocol.TypeMove, protocol.MoveRequest{DX: 1, DY: 0})
	ep := readError(t, conn)
	assert.Equal(t, protocol.CodeNotConnected, ep.Code)
}

func TestMove_InvalidDelta(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()
	connect(t, conn, "alice")

	send(t, conn, protocol.TypeMove, protocol.MoveRequest{DX: 0, DY: 0})
	ep := readError(t, conn)
	assert.Equal(t, protocol.CodeInvalidMove, ep.Code)
}

func TestMove_WallBump(t *testing.T) {
	// right-most interior cell on a 20-wide board
	ts := newTestServer(t, board.Point{X: 18, Y: 5})
	conn := ts.dial()
	resp := connect(t, conn, "alice")

	send(t, conn, protocol.TypeMove, protocol.MoveRequest{DX: 1, DY: 0})
	ep := readError(t, conn)
	assert.Equal(t, protocol.CodeMoveFailed, ep.Code)

	env := readUntil(t, conn, protocol.TypeStateUpdate)
	var gs protocol.GameState
	require.NoError(t, json.Unmarshal(env.Payload, &gs))
	p := playerIn(t, &gs, resp.PlayerID)
	require.NotNil(t, p.X)
	assert.Equal(t, 18, *p.X)
}

func TestFire_InvalidDirections(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()
	connect(t, conn, "alice")

	send(t, conn, protocol.TypeFire, protocol.FireRequest{DX: 0, DY: 0})
	assert.Equal(t, protocol.CodeInvalidDirection, readError(t, conn).Code)

	send(t, conn, protocol.TypeFire, protocol.FireRequest{DX: 1, DY: 1})
	assert.Equal(t, protocol.CodeInvalidDirection, readError(t, conn).Code)
}

func TestFire_OneBulletInFlight(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()
	connect(t, conn, "alice")

	send(t, conn, protocol.TypeFire, protocol.FireRequest{DX: 1, DY: 0})
	send(t, conn, protocol.TypeFire, protocol.FireRequest{DX: 1, DY: 0})
	assert.Equal(t, protocol.CodeBulletInFlight, readError(t, conn).Code)

	// the bullet dies on the east wall within ~14 simulation ticks
	require.Eventually(t, func() bool { return ts.game.BulletCount() == 0 },
		2*time.Second, 10*time.Millisecond)

	send(t, conn, protocol.TypeFire, protocol.FireRequest{DX: 0, DY: 1})
	// no error: drain until the next broadcast proves the fire landed
	require.Eventually(t, func() bool { return ts.game.BulletCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestKill_ScoreAndRespawn(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5}, board.Point{X: 6, Y: 5})
	connA := ts.dial()
	respA := connect(t, connA, "alice")
	connB := ts.dial()
	respB := connect(t, connB, "bob")

	send(t, connA, protocol.TypeFire, protocol.FireRequest{DX: 1, DY: 0})

	// victim goes to waiting and the killer scores
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "kill never showed in a snapshot")
		env := readUntil(t, connA, protocol.TypeStateUpdate)
		var gs protocol.GameState
		require.NoError(t, json.Unmarshal(env.Payload, &gs))
		if gs.Scores[respA.PlayerID] == 1 {
			break
		}
	}

	// after the respawn delay the victim reappears at a spawn point
	require.Eventually(t, func() bool {
		gs := ts.game.Snapshot()
		p := playerIn(t, gs, respB.PlayerID)
		return p.X != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPing_Pong(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()

	send(t, conn, protocol.TypePing, struct{}{})
	readUntil(t, conn, protocol.TypePong)
}

func TestUnknownTypeAndGarbageAreHarmless(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()

	// unknown type gets an ERROR back
	send(t, conn, "TELEPORT", struct{}{})
	assert.Equal(t, protocol.CodeUnknownType, readError(t, conn).Code)

	// malformed envelopes are dropped silently
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)))

	// connection survives all three
	send(t, conn, protocol.TypePing, struct{}{})
	readUntil(t, conn, protocol.TypePong)
}

func TestReconnect_WithinGraceRestoresState(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn := ts.dial()
	resp := connect(t, conn, "alice")

	send(t, conn, protocol.TypeMove, protocol.MoveRequest{DX: 1, DY: 1})
	send(t, conn, protocol.TypeMove, protocol.MoveRequest{DX: 1, DY: 1})
	require.Eventually(t, func() bool {
		p := playerIn(t, ts.game.Snapshot(), resp.PlayerID)
		return p.X != nil && *p.X == 7
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return ts.game.PlayerCount() == 0 },
		2*time.Second, 10*time.Millisecond)

	conn2 := ts.dial()
	send(t, conn2, protocol.TypeConnect, protocol.ConnectRequest{PlayerID: resp.PlayerID})
	env := readUntil(t, conn2, protocol.TypeConnect)
	var resp2 protocol.ConnectResponse
	require.NoError(t, json.Unmarshal(env.Payload, &resp2))

	assert.Equal(t, resp.PlayerID, resp2.PlayerID)
	assert.Equal(t, "alice", resp2.PlayerName)
	p := playerIn(t, resp2.GameState, resp.PlayerID)
	require.NotNil(t, p.X)
	assert.Equal(t, 7, *p.X)
	assert.Equal(t, 7, *p.Y)
}

func TestReconnect_RebindBeforeOldTransportCloses(t *testing.T) {
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn1 := ts.dial()
	resp := connect(t, conn1, "alice")

	// a new transport claims the player while conn1 is still open
	conn2 := ts.dial()
	send(t, conn2, protocol.TypeConnect, protocol.ConnectRequest{PlayerID: resp.PlayerID})
	env := readUntil(t, conn2, protocol.TypeConnect)
	var resp2 protocol.ConnectResponse
	require.NoError(t, json.Unmarshal(env.Payload, &resp2))
	require.Equal(t, resp.PlayerID, resp2.PlayerID)

	// the stale transport closing must not remove the rebound player
	conn1.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, ts.game.PlayerCount())

	// and the new transport still drives the player
	send(t, conn2, protocol.TypeMove, protocol.MoveRequest{DX: 1, DY: 0})
	require.Eventually(t, func() bool {
		p := playerIn(t, ts.game.Snapshot(), resp.PlayerID)
		return p.X != nil && *p.X == 6
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSpawnContention_WaitingPlayerPlacedWhenFreed(t *testing.T) {
	// single spawn point: the second player has to wait
	ts := newTestServer(t, board.Point{X: 5, Y: 5})
	conn1 := ts.dial()
	connect(t, conn1, "p1")

	conn2 := ts.dial()
	resp2 := connect(t, conn2, "p2")

	p := playerIn(t, resp2.GameState, resp2.PlayerID)
	assert.Nil(t, p.X, "second player waits for the occupied spawn point")

	conn1.Close()

	require.Eventually(t, func() bool {
		gs := ts.game.Snapshot()
		for _, ps := range gs.Players {
			if ps.PlayerID == resp2.PlayerID && ps.X != nil {
				return *ps.X == 5 && *ps.Y == 5
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
