package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arcadianet/arcadia/internal/peer"
	"github.com/arcadianet/arcadia/internal/protocol"
	"github.com/arcadianet/arcadia/internal/room"
	"github.com/arcadianet/arcadia/internal/spawn"
)

var titleCaser = cases.Title(language.English)

// Factory builds a lobby for a create request. Factories are registered
// under a string id so game modes can ship their own lobby configurations.
type Factory func(id uint32, props map[string]string, deps Deps) (*Lobby, error)

// Dispatcher routes inbound peer requests to the lobby they target. It owns
// the lobby table, the factory registry, and the peers' current-lobby
// association. Lobby ids come from a monotonic counter and are never reused
// within the process lifetime.
type Dispatcher struct {
	Logger   *logrus.Logger
	Spawner  spawn.Service
	Rooms    *room.Registry
	Recorder func(MatchResult)

	mu        sync.RWMutex
	lobbies   map[uint32]*Lobby
	nextID    uint32
	factories map[string]Factory
}

func NewDispatcher(logger *logrus.Logger, spawner spawn.Service, rooms *room.Registry, recorder func(MatchResult)) *Dispatcher {
	return &Dispatcher{
		Logger:    logger,
		Spawner:   spawner,
		Rooms:     rooms,
		Recorder:  recorder,
		lobbies:   map[uint32]*Lobby{},
		factories: map[string]Factory{},
	}
}

// RegisterFactory makes a lobby factory available under factoryID.
func (d *Dispatcher) RegisterFactory(factoryID string, f Factory) {
	d.mu.Lock()
	d.factories[factoryID] = f
	d.mu.Unlock()
}

// CreateLobby instantiates a lobby through the named factory and registers
// it in the lobby table.
func (d *Dispatcher) CreateLobby(factoryID string, props map[string]string) (*Lobby, *Error) {
	d.mu.Lock()
	f, ok := d.factories[factoryID]
	if !ok {
		d.mu.Unlock()
		return nil, notFoundf("no lobby factory named %s", factoryID)
	}
	d.nextID++
	id := d.nextID
	d.mu.Unlock()

	deps := Deps{
		Logger:      d.Logger,
		Spawner:     d.Spawner,
		Rooms:       d.Rooms,
		Recorder:    d.Recorder,
		OnDestroyed: d.dropLobby,
	}
	l, err := f(id, props, deps)
	if err != nil {
		return nil, failf("creating lobby: %s", err.Error())
	}

	d.mu.Lock()
	d.lobbies[id] = l
	d.mu.Unlock()

	d.Logger.Infof("[LOBBY] created lobby %d (%s) via factory %s", id, l.Name(), factoryID)
	return l, nil
}

func (d *Dispatcher) dropLobby(l *Lobby) {
	d.mu.Lock()
	delete(d.lobbies, l.ID)
	d.mu.Unlock()
}

// Lobby returns the registered lobby with the given id, or nil.
func (d *Dispatcher) Lobby(id uint32) *Lobby {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lobbies[id]
}

// LobbyCount returns the number of live lobbies.
func (d *Dispatcher) LobbyCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lobbies)
}

// GameEntries is the read-only listing of all live lobbies for the server
// browser and matchmaking surface.
func (d *Dispatcher) GameEntries() []protocol.GameEntry {
	d.mu.RLock()
	lobbies := make([]*Lobby, 0, len(d.lobbies))
	for _, l := range d.lobbies {
		lobbies = append(lobbies, l)
	}
	d.mu.RUnlock()

	entries := make([]protocol.GameEntry, 0, len(lobbies))
	for _, l := range lobbies {
		entries = append(entries, l.GameEntry())
	}
	return entries
}

// Handle is the entry point for one inbound peer message. Each op is
// validated before any state changes; a rejected request produces a failure
// response and touches nothing.
func (d *Dispatcher) Handle(ctx context.Context, p *peer.Peer, data []byte) error {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshaling message from peer %d: %w", p.ID(), err)
	}

	switch env.Type {
	case protocol.OpHello:
		return d.handleHello(p, data)
	case protocol.OpCreateLobby:
		return d.handleCreateLobby(p, data)
	case protocol.OpJoinLobby:
		return d.handleJoinLobby(p, data)
	case protocol.OpLeaveLobby:
		return d.handleLeaveLobby(p, data)
	case protocol.OpSetLobbyProps:
		return d.handleSetLobbyProperties(p, data)
	case protocol.OpSetMemberProps:
		return d.handleSetMemberProperties(p, data)
	case protocol.OpJoinTeam:
		return d.handleJoinTeam(p, data)
	case protocol.OpSendChat:
		return d.handleSendChat(p, data)
	case protocol.OpSetReady:
		return d.handleSetReady(p, data)
	case protocol.OpStartGame:
		return d.handleStartGame(p)
	case protocol.OpGetRoomAccess:
		return d.handleGetRoomAccess(p, data)
	case protocol.OpGetMemberData:
		return d.handleGetMemberData(p, data)
	case protocol.OpGetLobbyInfo:
		return d.handleGetLobbyInfo(p, data)
	default:
		d.Logger.Infof("received unknown message type %q from peer %d", env.Type, p.ID())
		return nil
	}
}

// respond sends the single success-or-failure response for a request.
// payload is ignored unless the request succeeded.
func (d *Dispatcher) respond(p *peer.Peer, op string, rejection *Error, payload interface{}) error {
	resp := protocol.Response{Type: "response", Op: op, Status: protocol.StatusOK}
	if rejection != nil {
		resp.Status = rejection.Status
		resp.Reason = titleCaser.String(rejection.Reason)
	} else if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling %s response: %w", op, err)
		}
		resp.Payload = data
	}
	return p.Send(resp)
}

func (d *Dispatcher) handleHello(p *peer.Peer, data []byte) error {
	var req protocol.Hello
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpHello, failf("malformed hello payload"), nil)
	}
	if req.Username == "" {
		return d.respond(p, protocol.OpHello, failf("a username is required"), nil)
	}
	p.SetUsername(req.Username)
	return d.respond(p, protocol.OpHello, nil, nil)
}

func (d *Dispatcher) handleCreateLobby(p *peer.Peer, data []byte) error {
	var req protocol.CreateLobby
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpCreateLobby, failf("malformed create_lobby payload"), nil)
	}

	l, rejection := d.CreateLobby(req.FactoryID, req.Properties)
	if rejection != nil {
		return d.respond(p, protocol.OpCreateLobby, rejection, nil)
	}
	return d.respond(p, protocol.OpCreateLobby, nil, protocol.CreateLobbyResult{LobbyID: l.ID})
}

func (d *Dispatcher) handleJoinLobby(p *peer.Peer, data []byte) error {
	var req protocol.JoinLobby
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpJoinLobby, failf("malformed join_lobby payload"), nil)
	}

	l := d.Lobby(req.LobbyID)
	if l == nil {
		return d.respond(p, protocol.OpJoinLobby, notFoundf("no lobby with id %d", req.LobbyID), nil)
	}
	if rejection := l.AddPlayer(p); rejection != nil {
		return d.respond(p, protocol.OpJoinLobby, rejection, nil)
	}
	return d.respond(p, protocol.OpJoinLobby, nil, l.Snapshot())
}

func (d *Dispatcher) handleLeaveLobby(p *peer.Peer, data []byte) error {
	var req protocol.LeaveLobby
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpLeaveLobby, failf("malformed leave_lobby payload"), nil)
	}

	l := d.Lobby(req.LobbyID)
	if l == nil {
		return d.respond(p, protocol.OpLeaveLobby, notFoundf("no lobby with id %d", req.LobbyID), nil)
	}
	l.RemovePlayer(p)
	return d.respond(p, protocol.OpLeaveLobby, nil, nil)
}

func (d *Dispatcher) handleSetLobbyProperties(p *peer.Peer, data []byte) error {
	var req protocol.SetLobbyProperties
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpSetLobbyProps, failf("malformed set_lobby_properties payload"), nil)
	}

	l := d.Lobby(req.LobbyID)
	if l == nil {
		return d.respond(p, protocol.OpSetLobbyProps, notFoundf("no lobby with id %d", req.LobbyID), nil)
	}
	return d.respond(p, protocol.OpSetLobbyProps, l.SetLobbyProperties(p, req.Properties), nil)
}

// currentLobby resolves the peer's current lobby for ops that implicitly
// target it.
func (d *Dispatcher) currentLobby(p *peer.Peer) (*Lobby, *Error) {
	l := stateFor(p).lobby()
	if l == nil {
		return nil, failf("you are not in a lobby")
	}
	return l, nil
}

func (d *Dispatcher) handleSetMemberProperties(p *peer.Peer, data []byte) error {
	var req protocol.SetMemberProperties
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpSetMemberProps, failf("malformed set_member_properties payload"), nil)
	}

	l, rejection := d.currentLobby(p)
	if rejection != nil {
		return d.respond(p, protocol.OpSetMemberProps, rejection, nil)
	}
	return d.respond(p, protocol.OpSetMemberProps, l.SetMemberProperties(p, req.Properties), nil)
}

func (d *Dispatcher) handleJoinTeam(p *peer.Peer, data []byte) error {
	var req protocol.JoinTeam
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpJoinTeam, failf("malformed join_team payload"), nil)
	}

	l, rejection := d.currentLobby(p)
	if rejection != nil {
		return d.respond(p, protocol.OpJoinTeam, rejection, nil)
	}
	return d.respond(p, protocol.OpJoinTeam, l.JoinTeam(p, req.TeamName), nil)
}

func (d *Dispatcher) handleSendChat(p *peer.Peer, data []byte) error {
	var req protocol.SendChat
	if err := json.Unmarshal(data, &req); err != nil {
		// Chat produces no direct response; malformed payloads only log.
		d.Logger.Infof("malformed chat payload from peer %d", p.ID())
		return nil
	}

	l, rejection := d.currentLobby(p)
	if rejection != nil {
		return nil
	}
	if rejection := l.SendChat(p, req.Message); rejection != nil {
		d.Logger.Infof("chat from peer %d rejected: %s", p.ID(), rejection.Reason)
	}
	return nil
}

func (d *Dispatcher) handleSetReady(p *peer.Peer, data []byte) error {
	var req protocol.SetReady
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpSetReady, failf("malformed set_ready payload"), nil)
	}

	l, rejection := d.currentLobby(p)
	if rejection != nil {
		return d.respond(p, protocol.OpSetReady, rejection, nil)
	}
	return d.respond(p, protocol.OpSetReady, l.SetReady(p, req.Ready), nil)
}

func (d *Dispatcher) handleStartGame(p *peer.Peer) error {
	l, rejection := d.currentLobby(p)
	if rejection != nil {
		return d.respond(p, protocol.OpStartGame, rejection, nil)
	}
	return d.respond(p, protocol.OpStartGame, l.StartGame(p), nil)
}

func (d *Dispatcher) handleGetRoomAccess(p *peer.Peer, data []byte) error {
	var req protocol.GetRoomAccess
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpGetRoomAccess, failf("malformed get_room_access payload"), nil)
	}

	l, rejection := d.currentLobby(p)
	if rejection != nil {
		return d.respond(p, protocol.OpGetRoomAccess, rejection, nil)
	}
	r := l.BoundRoom()
	if r == nil {
		return d.respond(p, protocol.OpGetRoomAccess, failf("the game server is not running"), nil)
	}

	access, err := d.Rooms.RequestAccess(r, p.Username(), req.Properties)
	if err != nil {
		return d.respond(p, protocol.OpGetRoomAccess, failf("%s", err.Error()), nil)
	}
	return d.respond(p, protocol.OpGetRoomAccess, nil, protocol.RoomAccess{
		RoomID:  access.RoomID,
		Address: access.Address,
		Port:    access.Port,
		Token:   access.Token,
	})
}

func (d *Dispatcher) handleGetMemberData(p *peer.Peer, data []byte) error {
	var req protocol.GetMemberData
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpGetMemberData, failf("malformed get_member_data payload"), nil)
	}

	l := d.Lobby(req.LobbyID)
	if l == nil {
		return d.respond(p, protocol.OpGetMemberData, notFoundf("no lobby with id %d", req.LobbyID), nil)
	}
	snapshot, rejection := l.MemberData(req.PeerID)
	if rejection != nil {
		return d.respond(p, protocol.OpGetMemberData, rejection, nil)
	}
	return d.respond(p, protocol.OpGetMemberData, nil, snapshot)
}

func (d *Dispatcher) handleGetLobbyInfo(p *peer.Peer, data []byte) error {
	var req protocol.GetLobbyInfo
	if err := json.Unmarshal(data, &req); err != nil {
		return d.respond(p, protocol.OpGetLobbyInfo, failf("malformed get_lobby_info payload"), nil)
	}

	l := d.Lobby(req.LobbyID)
	if l == nil {
		return d.respond(p, protocol.OpGetLobbyInfo, notFoundf("no lobby with id %d", req.LobbyID), nil)
	}
	return d.respond(p, protocol.OpGetLobbyInfo, nil, l.Snapshot())
}
