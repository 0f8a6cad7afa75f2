package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/arcadianet/arcadia/internal/peer"
	"github.com/arcadianet/arcadia/internal/protocol"
	"github.com/arcadianet/arcadia/internal/room"
	"github.com/arcadianet/arcadia/internal/spawn"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()

	logger := testLogger()
	pool := spawn.NewPool(logger)
	pool.RegisterSpawner(&spawn.Spawner{
		ID:       "stub",
		MaxTasks: 8,
		Start:    func(*spawn.Task) error { return nil },
	})
	d := NewDispatcher(logger, pool, room.NewRegistry([]byte("test-key"), logger), nil)

	d.RegisterFactory("default", func(id uint32, props map[string]string, deps Deps) (*Lobby, error) {
		opts := twoTeamOptions()
		opts.Properties = props
		return New(id, opts, deps), nil
	})
	return d
}

// send pushes one raw message through the dispatcher on behalf of p.
func send(t *testing.T, d *Dispatcher, p *testPeer, msg string) {
	t.Helper()
	if err := d.Handle(context.Background(), p.peer, []byte(msg)); err != nil {
		t.Fatalf("Handle(%s) error = %v", msg, err)
	}
}

// awaitResponse polls for the response to op and decodes it. Responses are
// consumed in arrival order so that a request can be awaited even when an
// earlier request of the same op already produced a response.
func awaitResponse(t *testing.T, p *testPeer, op string) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	waitFor(t, "response to "+op, func() bool {
		p.conn.mu.Lock()
		defer p.conn.mu.Unlock()
		for i := p.consumed; i < len(p.conn.messages); i++ {
			var msg map[string]interface{}
			if err := json.Unmarshal(p.conn.messages[i], &msg); err != nil {
				continue
			}
			if msg["type"] == "response" && msg["op"] == op {
				resp = msg
				p.consumed = i + 1
				return true
			}
		}
		return false
	})
	return resp
}

type testPeer struct {
	peer     *peer.Peer
	conn     *fakeConn
	consumed int
}

func connect(t *testing.T, d *Dispatcher, username string) *testPeer {
	t.Helper()
	p, conn := newTestPeer(t, "")
	tp := &testPeer{peer: p, conn: conn}
	send(t, d, tp, fmt.Sprintf(`{"type":"hello","username":%q}`, username))
	resp := awaitResponse(t, tp, protocol.OpHello)
	if resp["status"] != protocol.StatusOK {
		t.Fatalf("hello for %s failed: %v", username, resp)
	}
	return tp
}

func TestDispatcherHello(t *testing.T) {
	d := newTestDispatcher(t)
	p, conn := newTestPeer(t, "")
	tp := &testPeer{peer: p, conn: conn}

	send(t, d, tp, `{"type":"hello","username":""}`)
	resp := awaitResponse(t, tp, protocol.OpHello)
	if resp["status"] != protocol.StatusFailed {
		t.Errorf("empty hello status = %v, want %v", resp["status"], protocol.StatusFailed)
	}

	send(t, d, tp, `{"type":"hello","username":"alice"}`)
	resp = awaitResponse(t, tp, protocol.OpHello)
	if resp["status"] != protocol.StatusOK {
		t.Errorf("hello status = %v, want %v", resp["status"], protocol.StatusOK)
	}
	if got := p.Username(); got != "alice" {
		t.Errorf("Username() = %q after hello, want %q", got, "alice")
	}
}

func TestDispatcherCreateAndJoin(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	send(t, d, alice, `{"type":"create_lobby","factory_id":"default","properties":{"name":"My Game"}}`)
	resp := awaitResponse(t, alice, protocol.OpCreateLobby)
	if resp["status"] != protocol.StatusOK {
		t.Fatalf("create_lobby failed: %v", resp)
	}
	payload := resp["payload"].(map[string]interface{})
	lobbyID := payload["lobby_id"].(float64)

	send(t, d, alice, fmt.Sprintf(`{"type":"join_lobby","lobby_id":%d}`, int(lobbyID)))
	resp = awaitResponse(t, alice, protocol.OpJoinLobby)
	if resp["status"] != protocol.StatusOK {
		t.Fatalf("join_lobby failed: %v", resp)
	}
	snapshot := resp["payload"].(map[string]interface{})
	if snapshot["master"] != "alice" {
		t.Errorf("snapshot master = %v, want alice", snapshot["master"])
	}
	if snapshot["state"] != "preparations" {
		t.Errorf("snapshot state = %v, want preparations", snapshot["state"])
	}

	if got := d.LobbyCount(); got != 1 {
		t.Errorf("LobbyCount() = %d, want 1", got)
	}
}

func TestDispatcherCreateWithUnknownFactory(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	send(t, d, alice, `{"type":"create_lobby","factory_id":"ranked"}`)
	resp := awaitResponse(t, alice, protocol.OpCreateLobby)
	if resp["status"] != protocol.StatusNotFound {
		t.Errorf("status = %v, want %v", resp["status"], protocol.StatusNotFound)
	}
}

func TestDispatcherJoinUnknownLobby(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	send(t, d, alice, `{"type":"join_lobby","lobby_id":42}`)
	resp := awaitResponse(t, alice, protocol.OpJoinLobby)
	if resp["status"] != protocol.StatusNotFound {
		t.Errorf("status = %v, want %v", resp["status"], protocol.StatusNotFound)
	}
}

// createAndJoin builds a lobby through the default factory and joins the
// given peers to it, first peer first.
func createAndJoin(t *testing.T, d *Dispatcher, peers ...*testPeer) uint32 {
	t.Helper()
	send(t, d, peers[0], `{"type":"create_lobby","factory_id":"default"}`)
	resp := awaitResponse(t, peers[0], protocol.OpCreateLobby)
	if resp["status"] != protocol.StatusOK {
		t.Fatalf("create_lobby failed: %v", resp)
	}
	id := uint32(resp["payload"].(map[string]interface{})["lobby_id"].(float64))

	for _, p := range peers {
		send(t, d, p, fmt.Sprintf(`{"type":"join_lobby","lobby_id":%d}`, id))
		if resp := awaitResponse(t, p, protocol.OpJoinLobby); resp["status"] != protocol.StatusOK {
			t.Fatalf("join_lobby failed: %v", resp)
		}
	}
	return id
}

func TestDispatcherPropertyRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")
	id := createAndJoin(t, d, alice)

	send(t, d, alice, fmt.Sprintf(`{"type":"set_lobby_properties","lobby_id":%d,"properties":{"region":"eu"}}`, id))
	if resp := awaitResponse(t, alice, protocol.OpSetLobbyProps); resp["status"] != protocol.StatusOK {
		t.Fatalf("set_lobby_properties failed: %v", resp)
	}

	send(t, d, alice, fmt.Sprintf(`{"type":"get_lobby_info","lobby_id":%d}`, id))
	resp := awaitResponse(t, alice, protocol.OpGetLobbyInfo)
	if resp["status"] != protocol.StatusOK {
		t.Fatalf("get_lobby_info failed: %v", resp)
	}
	props := resp["payload"].(map[string]interface{})["properties"].(map[string]interface{})
	if props["region"] != "eu" {
		t.Errorf(`properties["region"] = %v, want "eu"`, props["region"])
	}
}

func TestDispatcherStartGameUnauthorized(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")
	bob := connect(t, d, "bob")
	createAndJoin(t, d, alice, bob)

	send(t, d, bob, `{"type":"start_game"}`)
	resp := awaitResponse(t, bob, protocol.OpStartGame)
	if resp["status"] != protocol.StatusUnauthorized {
		t.Errorf("status = %v, want %v", resp["status"], protocol.StatusUnauthorized)
	}
	if resp["reason"] == "" {
		t.Error("unauthorized response carries no reason")
	}
}

func TestDispatcherStartGameOutsideLobby(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	send(t, d, alice, `{"type":"start_game"}`)
	resp := awaitResponse(t, alice, protocol.OpStartGame)
	if resp["status"] != protocol.StatusFailed {
		t.Errorf("status = %v, want %v", resp["status"], protocol.StatusFailed)
	}
}

func TestDispatcherLeaveDestroysEmptyLobby(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")
	id := createAndJoin(t, d, alice)

	send(t, d, alice, fmt.Sprintf(`{"type":"leave_lobby","lobby_id":%d}`, id))
	if resp := awaitResponse(t, alice, protocol.OpLeaveLobby); resp["status"] != protocol.StatusOK {
		t.Fatalf("leave_lobby failed: %v", resp)
	}

	if got := d.LobbyCount(); got != 0 {
		t.Errorf("LobbyCount() = %d after last member left, want 0", got)
	}
	if got := d.Lobby(id); got != nil {
		t.Errorf("Lobby(%d) = %v after destruction, want nil", id, got)
	}
}

func TestDispatcherLobbyIDsNeverReused(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	first := createAndJoin(t, d, alice)
	send(t, d, alice, fmt.Sprintf(`{"type":"leave_lobby","lobby_id":%d}`, first))
	awaitResponse(t, alice, protocol.OpLeaveLobby)

	second := createAndJoin(t, d, alice)
	if second <= first {
		t.Errorf("second lobby id = %d, want greater than %d", second, first)
	}
}

func TestDispatcherChatBroadcast(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")
	bob := connect(t, d, "bob")
	createAndJoin(t, d, alice, bob)

	send(t, d, alice, `{"type":"send_chat","message":"glhf"}`)

	waitFor(t, "chat delivery", func() bool { return bob.conn.count("chat") >= 1 })
	msg := bob.conn.last("chat")
	if msg["sender"] != "alice" || msg["message"] != "glhf" {
		t.Errorf("chat = %v, want sender alice message glhf", msg)
	}
	if msg["is_error"] != false {
		t.Errorf("chat is_error = %v, want false", msg["is_error"])
	}
}

func TestDispatcherGetMemberData(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")
	id := createAndJoin(t, d, alice)

	send(t, d, alice, fmt.Sprintf(`{"type":"get_member_data","lobby_id":%d,"peer_id":%d}`, id, alice.peer.ID()))
	resp := awaitResponse(t, alice, protocol.OpGetMemberData)
	if resp["status"] != protocol.StatusOK {
		t.Fatalf("get_member_data failed: %v", resp)
	}
	payload := resp["payload"].(map[string]interface{})
	if payload["username"] != "alice" {
		t.Errorf("username = %v, want alice", payload["username"])
	}
	if payload["is_master"] != true {
		t.Errorf("is_master = %v, want true", payload["is_master"])
	}

	send(t, d, alice, fmt.Sprintf(`{"type":"get_member_data","lobby_id":%d,"peer_id":9999}`, id))
	resp = awaitResponse(t, alice, protocol.OpGetMemberData)
	if resp["status"] != protocol.StatusNotFound {
		t.Errorf("status = %v for unknown peer, want %v", resp["status"], protocol.StatusNotFound)
	}
}

func TestDispatcherGetRoomAccessWithoutGame(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")
	createAndJoin(t, d, alice)

	send(t, d, alice, `{"type":"get_room_access"}`)
	resp := awaitResponse(t, alice, protocol.OpGetRoomAccess)
	if resp["status"] != protocol.StatusFailed {
		t.Errorf("status = %v, want %v", resp["status"], protocol.StatusFailed)
	}
}

func TestDispatcherUnknownOpIgnored(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	if err := d.Handle(context.Background(), alice.peer, []byte(`{"type":"warp_drive"}`)); err != nil {
		t.Errorf("Handle(unknown op) error = %v, want nil", err)
	}
}

func TestDispatcherMalformedMessage(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	if err := d.Handle(context.Background(), alice.peer, []byte(`not json`)); err == nil {
		t.Error("Handle(garbage) returned nil, want error")
	}
}

func TestDispatcherGameEntries(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")
	id := createAndJoin(t, d, alice)

	entries := d.GameEntries()
	if len(entries) != 1 {
		t.Fatalf("GameEntries() returned %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.LobbyID != id {
		t.Errorf("entry.LobbyID = %d, want %d", entry.LobbyID, id)
	}
	if entry.Occupancy != 1 || entry.Capacity != 4 {
		t.Errorf("entry occupancy/capacity = %d/%d, want 1/4", entry.Occupancy, entry.Capacity)
	}
}

func TestDispatcherReasonIsTitleCased(t *testing.T) {
	d := newTestDispatcher(t)
	alice := connect(t, d, "alice")

	send(t, d, alice, `{"type":"join_lobby","lobby_id":42}`)
	resp := awaitResponse(t, alice, protocol.OpJoinLobby)
	reason, _ := resp["reason"].(string)
	if reason == "" {
		t.Fatal("rejection carries no reason")
	}
	if reason[0] >= 'a' && reason[0] <= 'z' {
		t.Errorf("reason %q is not title-cased", reason)
	}
}
