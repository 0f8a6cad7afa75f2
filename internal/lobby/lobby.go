// Package lobby implements the lobby session engine and the dispatcher that
// routes peer requests into it. A lobby owns its members, teams, property
// bags, and state machine, and drives the spawn subsystem to provision a
// dedicated game server when a match starts.
package lobby

import (
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/arcadianet/arcadia/internal/peer"
	"github.com/arcadianet/arcadia/internal/protocol"
	"github.com/arcadianet/arcadia/internal/room"
	"github.com/arcadianet/arcadia/internal/spawn"
)

// State is the lobby's position in its lifecycle.
type State int

const (
	StatePreparations State = iota
	StateStartingGameServer
	StateGameInProgress
	StateGameOver
	StateFailedToStart
)

func (s State) String() string {
	switch s {
	case StatePreparations:
		return "preparations"
	case StateStartingGameServer:
		return "starting_game_server"
	case StateGameInProgress:
		return "game_in_progress"
	case StateGameOver:
		return "game_over"
	case StateFailedToStart:
		return "failed_to_start"
	default:
		return "unknown"
	}
}

func statusTextFor(s State) string {
	switch s {
	case StatePreparations:
		return "Waiting for players"
	case StateStartingGameServer:
		return "Starting the game server"
	case StateGameInProgress:
		return "Game is in progress"
	case StateGameOver:
		return "Game is over"
	case StateFailedToStart:
		return "Failed to start the game server"
	default:
		return ""
	}
}

// systemSender is the chat sender name used for server-originated messages.
const systemSender = "Server"

// spawn option and property keys shared with the spawner subsystem.
const (
	propPublic    = "public"
	propRegion    = "region"
	optLobbyID    = "lobbyId"
	optLobbyName  = "lobbyName"
	payloadRoomID = "roomId"
)

// MatchResult is the record handed to the match recorder when a game ends,
// one way or the other.
type MatchResult struct {
	LobbyID     uint32
	Name        string
	GameType    string
	MemberCount int
	Outcome     string
}

// Deps are the collaborators a lobby needs. OnDestroyed is the registry's
// signal to drop the lobby from its table; it fires exactly once.
type Deps struct {
	Logger      *logrus.Logger
	Spawner     spawn.Service
	Rooms       *room.Registry
	Recorder    func(MatchResult)
	OnDestroyed func(*Lobby)
}

// Lobby is one session grouping peers before and while a match runs. Every
// mutating entry point serializes on the lobby's lock; different lobbies
// share no state.
type Lobby struct {
	ID   uint32
	opts Options
	deps Deps

	mu          sync.Mutex
	members     map[string]*Member
	byPeerID    map[uint64]*Member
	order       []*Member
	teams       map[string]*Team
	teamOrder   []string
	properties  map[string]string
	subscribers map[uint64]*peer.Peer
	state       State
	statusText  string
	master      *Member
	task        *spawn.Task
	taskWatch   int
	boundRoom   *room.Room
	roomWatch   int
	gameAddress string
	gamePort    int
	destroyed   bool
}

// New builds a lobby in Preparations with its teams declared and empty.
func New(id uint32, opts Options, deps Deps) *Lobby {
	opts = opts.withDefaults()

	l := &Lobby{
		ID:          id,
		opts:        opts,
		deps:        deps,
		members:     map[string]*Member{},
		byPeerID:    map[uint64]*Member{},
		teams:       map[string]*Team{},
		properties:  map[string]string{},
		subscribers: map[uint64]*peer.Peer{},
		state:       StatePreparations,
		statusText:  statusTextFor(StatePreparations),
	}

	for k, v := range opts.Properties {
		l.properties[k] = v
	}

	teams := opts.Teams
	if len(teams) == 0 {
		teams = []TeamOptions{{Name: "players", MinPlayers: opts.MinPlayers, MaxPlayers: 16}}
	}
	for _, to := range teams {
		l.teams[to.Name] = &Team{Name: to.Name, MinPlayers: to.MinPlayers, MaxPlayers: to.MaxPlayers}
		l.teamOrder = append(l.teamOrder, to.Name)
	}
	return l
}

func (l *Lobby) Name() string     { return l.opts.Name }
func (l *Lobby) GameType() string { return l.opts.GameType }

func (l *Lobby) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lobby) Destroyed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.destroyed
}

// MemberCount returns the current lobby population.
func (l *Lobby) MemberCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.members)
}

// MaxPlayers is the lobby capacity, the sum of its teams' capacities.
func (l *Lobby) MaxPlayers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxPlayersLocked()
}

func (l *Lobby) maxPlayersLocked() int {
	total := 0
	for _, t := range l.teams {
		total += t.MaxPlayers
	}
	return total
}

// Master returns the current game master's username, or "".
func (l *Lobby) Master() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.master == nil {
		return ""
	}
	return l.master.Username
}

// Property reads a lobby-level property.
func (l *Lobby) Property(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.properties[key]
	return v, ok
}

// GameAddress returns the bound game server endpoint, or ("", 0) when no
// room is bound.
func (l *Lobby) GameAddress() (string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gameAddress, l.gamePort
}

// BoundRoom returns the room the lobby's running match is bound to, if any.
func (l *Lobby) BoundRoom() *room.Room {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.boundRoom
}

// SpawnTask returns the in-flight provisioning task, if any.
func (l *Lobby) SpawnTask() *spawn.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.task
}

// AddPlayer admits a peer into the lobby, assigns it a team, and makes it
// the game master if the seat is empty. The rejection cases leave the lobby
// untouched.
func (l *Lobby) AddPlayer(p *peer.Peer) *Error {
	username, err := l.opts.ExtractUsername(p)
	if err != nil {
		return failf("cannot resolve a username for this connection")
	}

	ps := stateFor(p)
	if !ps.claim(l) {
		return failf("already in a lobby")
	}

	l.mu.Lock()
	if rejection := l.admitLocked(username, p); rejection != nil {
		l.mu.Unlock()
		ps.release(l)
		return rejection
	}
	m := l.members[username]
	l.mu.Unlock()

	// Registered outside the lock: a peer that disconnected in the meantime
	// fires the handler immediately, which re-enters RemovePlayer.
	handle := p.OnClosed(func(pp *peer.Peer) { l.RemovePlayer(pp) })
	l.mu.Lock()
	if current := l.byPeerID[p.ID()]; current == m {
		m.watchHandle = handle
	}
	l.mu.Unlock()

	l.deps.Logger.Infof("[LOBBY] %s joined lobby %d (%s)", username, l.ID, l.opts.Name)
	return nil
}

func (l *Lobby) admitLocked(username string, p *peer.Peer) *Error {
	if l.destroyed {
		return failf("this lobby no longer exists")
	}
	if _, taken := l.members[username]; taken {
		return failf("a member named %s is already in this lobby", username)
	}
	if l.opts.AllowJoin != nil {
		if err := l.opts.AllowJoin(l, p); err != nil {
			return failf("%s", err.Error())
		}
	}
	if len(l.members) >= l.maxPlayersLocked() {
		return failf("this lobby is full")
	}
	if !l.opts.AllowJoiningMidGame && l.state != StatePreparations {
		return failf("the game is already underway")
	}

	m := newMember(username, p)
	team := l.opts.PickTeam(l, m)
	if team == nil {
		return failf("no team has room for another player")
	}
	team.addMember(m)

	l.members[username] = m
	l.byPeerID[p.ID()] = m
	l.order = append(l.order, m)
	l.subscribers[p.ID()] = p

	if l.opts.EnableGameMasters && l.master == nil {
		l.master = m
		l.broadcastLocked(protocol.MasterChanged{Type: protocol.NoticeMasterChanged, Username: username})
	}

	l.broadcastLocked(protocol.MemberJoined{
		Type:   protocol.NoticeMemberJoined,
		Member: m.snapshot(l.master == m),
	})
	return nil
}

// RemovePlayer takes a peer out of the lobby. Removing a peer that is not a
// member is a no-op. An empty lobby destroys itself unless configured to
// stay alive.
func (l *Lobby) RemovePlayer(p *peer.Peer) {
	l.mu.Lock()
	m := l.byPeerID[p.ID()]
	if m == nil {
		l.mu.Unlock()
		return
	}
	l.evictLocked(m)
	empty := len(l.members) == 0
	l.mu.Unlock()

	l.deps.Logger.Infof("[LOBBY] %s left lobby %d", m.Username, l.ID)

	if empty && !l.opts.KeepAliveWhenEmpty {
		l.Destroy()
	}
}

// evictLocked removes a member from every structure it appears in and
// notifies both the lobby and the departing peer.
func (l *Lobby) evictLocked(m *Member) {
	delete(l.members, m.Username)
	delete(l.byPeerID, m.Peer.ID())
	for i, member := range l.order {
		if member == m {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	if m.Team != nil {
		m.Team.removeMember(m)
	}

	delete(l.subscribers, m.Peer.ID())
	m.Peer.RemoveOnClosed(m.watchHandle)
	stateFor(m.Peer).release(l)

	if l.master == m {
		l.master = nil
		if len(l.order) > 0 {
			l.master = l.order[0]
		}
		name := ""
		if l.master != nil {
			name = l.master.Username
		}
		l.broadcastLocked(protocol.MasterChanged{Type: protocol.NoticeMasterChanged, Username: name})
	}

	_ = m.Peer.Send(protocol.LeftLobby{Type: protocol.NoticeLeftLobby, LobbyID: l.ID})
	l.broadcastLocked(protocol.MemberLeft{Type: protocol.NoticeMemberLeft, Username: m.Username})
}

// SetLobbyProperties applies lobby-level property writes. With game masters
// enabled only the current master may write; otherwise anyone can.
func (l *Lobby) SetLobbyProperties(p *peer.Peer, props map[string]string) *Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.destroyed {
		return failf("this lobby no longer exists")
	}
	if l.opts.EnableGameMasters {
		m := l.byPeerID[p.ID()]
		if m == nil || m != l.master {
			return unauthorizedf("only the game master can change lobby settings")
		}
	}

	for k, v := range props {
		l.properties[k] = v
		l.broadcastLocked(protocol.LobbyPropertyChanged{
			Type: protocol.NoticeLobbyPropertyChanged, Key: k, Value: v,
		})
	}
	return nil
}

// SetMemberProperties applies per-member property writes subject to the
// configured allow-check.
func (l *Lobby) SetMemberProperties(p *peer.Peer, props map[string]string) *Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.byPeerID[p.ID()]
	if m == nil {
		return notFoundf("you are not a member of this lobby")
	}

	for k, v := range props {
		if !l.opts.AllowMemberProperty(l, m, k, v) {
			return unauthorizedf("changing property %s is not allowed", k)
		}
		m.properties[k] = v
		l.broadcastLocked(protocol.MemberPropertyChanged{
			Type:    protocol.NoticeMemberPropertyChanged,
			LobbyID: l.ID, Username: m.Username, Key: k, Value: v,
		})
	}
	return nil
}

// JoinTeam moves the requesting member to another team. A full target team
// is reported privately to the requester instead of broadcast.
func (l *Lobby) JoinTeam(p *peer.Peer, teamName string) *Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.opts.EnableTeamSwitching {
		return failf("team switching is disabled in this lobby")
	}
	m := l.byPeerID[p.ID()]
	if m == nil {
		return notFoundf("you are not a member of this lobby")
	}
	if m.Team == nil {
		return failf("you are not on a team")
	}
	target := l.teams[teamName]
	if target == nil {
		return notFoundf("there is no team named %s", teamName)
	}
	if target == m.Team {
		return failf("you are already on team %s", teamName)
	}
	if target.IsFull() {
		return failf("team %s is full", teamName)
	}

	m.Team.removeMember(m)
	target.addMember(m)
	l.broadcastLocked(protocol.MemberTeamChanged{
		Type: protocol.NoticeMemberTeamChanged, Username: m.Username, TeamName: teamName,
	})
	return nil
}

// SetReady flips the requesting member's readiness flag. With automatic
// start enabled, the flip that completes the start preconditions kicks off
// provisioning.
func (l *Lobby) SetReady(p *peer.Peer, ready bool) *Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.byPeerID[p.ID()]
	if m == nil {
		return notFoundf("you are not a member of this lobby")
	}
	if m.Ready == ready {
		return nil
	}
	m.Ready = ready
	l.broadcastLocked(protocol.MemberReadyChanged{
		Type: protocol.NoticeMemberReadyChanged, Username: m.Username, Ready: ready,
	})

	if ready && l.opts.StartWhenAllReady && l.startChecksLocked() == nil {
		l.startGameServerLocked()
	}
	return nil
}

// SendChat relays a chat line from a member to the whole lobby. Broadcast
// only; there is no direct response.
func (l *Lobby) SendChat(p *peer.Peer, message string) *Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.byPeerID[p.ID()]
	if m == nil {
		return notFoundf("you are not a member of this lobby")
	}
	l.broadcastChatLocked(m.Username, message, false)
	return nil
}

// StartGame is the manual start trigger. The checks run in a fixed order
// and the first failure is returned privately to the requester.
func (l *Lobby) StartGame(p *peer.Peer) *Error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.opts.EnableManualStart {
		return failf("manual game start is disabled in this lobby")
	}
	m := l.byPeerID[p.ID()]
	if m == nil {
		return notFoundf("you are not a member of this lobby")
	}
	if l.opts.EnableGameMasters && m != l.master {
		return unauthorizedf("only the game master can start the game")
	}
	if rejection := l.startChecksLocked(); rejection != nil {
		return rejection
	}

	l.startGameServerLocked()
	return nil
}

// startChecksLocked validates the start preconditions shared by the manual
// and automatic triggers, in order: lobby state, destruction, readiness,
// lobby minimum, per-team minimums.
func (l *Lobby) startChecksLocked() *Error {
	if l.state != StatePreparations {
		return failf("the game has already been started")
	}
	if l.destroyed {
		return failf("this lobby no longer exists")
	}

	if l.opts.EnableReadySystem {
		var notReady []string
		for _, m := range l.order {
			if l.opts.EnableGameMasters && m == l.master {
				continue
			}
			if !m.Ready {
				notReady = append(notReady, m.Username)
			}
		}
		if len(notReady) > 0 {
			return failf("not everyone is ready: %s", strings.Join(notReady, ", "))
		}
	}

	if len(l.members) < l.opts.MinPlayers {
		return failf("not enough players: %d of %d", len(l.members), l.opts.MinPlayers)
	}
	for _, name := range l.teamOrder {
		t := l.teams[name]
		if t.Count() < t.MinPlayers {
			return failf("team %s needs at least %d players", t.Name, t.MinPlayers)
		}
	}
	return nil
}

// startGameServerLocked submits the provisioning request. A rejected
// request is reported to the whole lobby over chat since provisioning
// outcomes are not tied to a single requester.
func (l *Lobby) startGameServerLocked() {
	l.properties[propPublic] = "false"
	region := l.properties[propRegion]

	properties := make(map[string]string, len(l.properties))
	for k, v := range l.properties {
		properties[k] = v
	}
	options := map[string]string{
		optLobbyID:   strconv.FormatUint(uint64(l.ID), 10),
		optLobbyName: l.opts.Name,
	}

	task := l.deps.Spawner.SubmitSpawnRequest(properties, region, options)
	if task == nil {
		l.broadcastChatLocked(systemSender, "All the servers are busy, please try again later", true)
		return
	}

	l.task = task
	l.taskWatch = task.Subscribe(l.handleSpawnStatus)
	l.setStateLocked(StateStartingGameServer)

	// The task may have already settled before we subscribed (a spawner
	// that fails synchronously); catch up on the missed transition.
	if status := task.Status(); status.IsTerminal() {
		l.applySpawnStatusLocked(task, status)
	}
}

// handleSpawnStatus consumes status transitions from the spawn subsystem.
// A callback from a task that is no longer the lobby's current task is
// stale and dropped.
func (l *Lobby) handleSpawnStatus(t *spawn.Task, status spawn.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.task != t || l.destroyed {
		return
	}
	l.applySpawnStatusLocked(t, status)
}

func (l *Lobby) applySpawnStatusLocked(t *spawn.Task, status spawn.Status) {
	// A late callback can arrive before the lobby knew the spawn was
	// underway; any active status forces the starting state first.
	if status.IsActive() && l.state != StateStartingGameServer && l.state != StateGameInProgress {
		l.setStateLocked(StateStartingGameServer)
	}

	switch {
	case status.IsFinalized():
		l.setStateLocked(StateGameInProgress)
		l.bindRoomLocked(t)

	case status.IsFailure():
		wasStarting := l.state == StateStartingGameServer
		t.Unsubscribe(l.taskWatch)
		l.task = nil

		next := StateGameOver
		outcome := "completed"
		if wasStarting {
			next = StateFailedToStart
			outcome = "failed_to_start"
			l.broadcastChatLocked(systemSender, "The game server failed to start", true)
		}
		if l.opts.PlayAgain {
			next = StatePreparations
		}
		l.recordMatchLocked(outcome)
		l.setStateLocked(next)
	}
}

// bindRoomLocked resolves the finalization payload's room against the
// registry and binds the lobby to the running server's address.
func (l *Lobby) bindRoomLocked(t *spawn.Task) {
	payload := t.Finalization()
	idStr, ok := payload[payloadRoomID]
	if !ok {
		l.broadcastChatLocked(systemSender, "The game server did not report a room", true)
		return
	}
	roomID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		l.broadcastChatLocked(systemSender, "The game server reported an invalid room", true)
		return
	}
	r := l.deps.Rooms.Lookup(uint32(roomID))
	if r == nil {
		l.broadcastChatLocked(systemSender, "The game server's room could not be found", true)
		return
	}

	l.boundRoom = r
	l.gameAddress = r.Address
	l.gamePort = r.Port
	l.roomWatch = r.OnDestroyed(l.handleRoomDestroyed)

	l.deps.Logger.Infof("[LOBBY] lobby %d bound to room %d at %s:%d", l.ID, r.ID, r.Address, r.Port)
}

// handleRoomDestroyed reacts to the bound game server going away: the
// binding and the spawn task are cleared and the lobby winds down the match.
func (l *Lobby) handleRoomDestroyed(r *room.Room) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.boundRoom != r || l.destroyed {
		return
	}
	l.boundRoom = nil
	l.gameAddress = ""
	l.gamePort = 0

	if l.task != nil {
		l.task.Unsubscribe(l.taskWatch)
		l.task = nil
	}

	next := StateGameOver
	if l.opts.PlayAgain {
		next = StatePreparations
	}
	l.recordMatchLocked("completed")
	l.setStateLocked(next)
}

// setStateLocked performs a state transition: readiness flags reset, status
// text updates, and the new state and status are broadcast.
func (l *Lobby) setStateLocked(next State) {
	if l.state == next {
		return
	}
	l.state = next
	l.statusText = statusTextFor(next)

	for _, m := range l.order {
		if m.Ready {
			m.Ready = false
			l.broadcastLocked(protocol.MemberReadyChanged{
				Type: protocol.NoticeMemberReadyChanged, Username: m.Username, Ready: false,
			})
		}
	}

	l.broadcastLocked(protocol.StateChanged{Type: protocol.NoticeStateChanged, State: next.String()})
	l.broadcastLocked(protocol.StatusChanged{Type: protocol.NoticeStatusChanged, Status: l.statusText})
}

func (l *Lobby) recordMatchLocked(outcome string) {
	if l.deps.Recorder == nil {
		return
	}
	result := MatchResult{
		LobbyID:     l.ID,
		Name:        l.opts.Name,
		GameType:    l.opts.GameType,
		MemberCount: len(l.members),
		Outcome:     outcome,
	}
	// Persistence runs off the lobby's critical path.
	go l.deps.Recorder(result)
}

// Destroy tears the lobby down: members are evicted through the normal
// removal path, any in-flight spawn is aborted, and the destroyed signal
// fires exactly once. Idempotent.
func (l *Lobby) Destroy() {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	l.destroyed = true

	for len(l.order) > 0 {
		l.evictLocked(l.order[0])
	}

	var task *spawn.Task
	if l.task != nil {
		task = l.task
		task.Unsubscribe(l.taskWatch)
		l.task = nil
	}
	if l.boundRoom != nil {
		l.boundRoom.RemoveOnDestroyed(l.roomWatch)
		l.boundRoom = nil
	}
	l.mu.Unlock()

	if task != nil {
		task.Abort()
	}

	l.deps.Logger.Infof("[LOBBY] destroyed lobby %d (%s)", l.ID, l.opts.Name)
	if l.deps.OnDestroyed != nil {
		l.deps.OnDestroyed(l)
	}
}

// broadcastLocked delivers a notice to a snapshot of the current
// subscribers. Sends never block; slow peers drop messages instead.
func (l *Lobby) broadcastLocked(v interface{}) {
	for _, p := range l.subscribers {
		_ = p.Send(v)
	}
}

func (l *Lobby) broadcastChatLocked(sender, message string, isError bool) {
	l.broadcastLocked(protocol.Chat{
		Type: protocol.NoticeChat, Sender: sender, Message: message, IsError: isError,
	})
}

// Snapshot builds the wire representation of the lobby.
func (l *Lobby) Snapshot() protocol.LobbySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	props := make(map[string]string, len(l.properties))
	for k, v := range l.properties {
		props[k] = v
	}

	teams := make([]protocol.TeamSnapshot, 0, len(l.teamOrder))
	for _, name := range l.teamOrder {
		t := l.teams[name]
		names := make([]string, 0, t.Count())
		for _, m := range t.members {
			names = append(names, m.Username)
		}
		teams = append(teams, protocol.TeamSnapshot{
			Name: t.Name, MinPlayers: t.MinPlayers, MaxPlayers: t.MaxPlayers, Members: names,
		})
	}

	members := make([]protocol.MemberSnapshot, 0, len(l.order))
	for _, m := range l.order {
		members = append(members, m.snapshot(m == l.master))
	}

	master := ""
	if l.master != nil {
		master = l.master.Username
	}

	return protocol.LobbySnapshot{
		LobbyID:    l.ID,
		Name:       l.opts.Name,
		GameType:   l.opts.GameType,
		State:      l.state.String(),
		StatusText: l.statusText,
		Master:     master,
		Address:    l.gameAddress,
		Port:       l.gamePort,
		Properties: props,
		Controls:   l.opts.Controls,
		Teams:      teams,
		Members:    members,
	}
}

// MemberData returns the wire representation of one member by peer id.
func (l *Lobby) MemberData(peerID uint64) (protocol.MemberSnapshot, *Error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := l.byPeerID[peerID]
	if m == nil {
		return protocol.MemberSnapshot{}, notFoundf("no member with peer id %d", peerID)
	}
	return m.snapshot(m == l.master), nil
}

// GameEntry is the read-only listing projection for the server browser.
func (l *Lobby) GameEntry() protocol.GameEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	props := make(map[string]string, len(l.properties))
	for k, v := range l.properties {
		props[k] = v
	}

	address := ""
	if l.gameAddress != "" {
		address = l.gameAddress + ":" + strconv.Itoa(l.gamePort)
	}

	return protocol.GameEntry{
		LobbyID:    l.ID,
		Name:       l.opts.Name,
		GameType:   l.opts.GameType,
		Address:    address,
		Occupancy:  len(l.members),
		Capacity:   l.maxPlayersLocked(),
		InProgress: l.state == StateGameInProgress,
		Properties: props,
	}
}
