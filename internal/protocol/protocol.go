// Package protocol defines the JSON message surface shared between the
// lobby server and its peers. Every inbound message is an Envelope whose
// Type selects one of the Op* payloads; every request produces exactly one
// Response unless the op is documented as broadcast-only.
package protocol

import "encoding/json"

// Inbound message types.
const (
	OpHello          = "hello"
	OpCreateLobby    = "create_lobby"
	OpJoinLobby      = "join_lobby"
	OpLeaveLobby     = "leave_lobby"
	OpSetLobbyProps  = "set_lobby_properties"
	OpSetMemberProps = "set_member_properties"
	OpJoinTeam       = "join_team"
	OpSendChat       = "send_chat"
	OpSetReady       = "set_ready"
	OpStartGame      = "start_game"
	OpGetRoomAccess  = "get_room_access"
	OpGetMemberData  = "get_member_data"
	OpGetLobbyInfo   = "get_lobby_info"
)

// Outbound notification types.
const (
	NoticeMemberJoined          = "member_joined"
	NoticeMemberLeft            = "member_left"
	NoticeStateChanged          = "state_changed"
	NoticeStatusChanged         = "status_changed"
	NoticeLobbyPropertyChanged  = "lobby_property_changed"
	NoticeMemberPropertyChanged = "member_property_changed"
	NoticeMemberTeamChanged     = "member_team_changed"
	NoticeMemberReadyChanged    = "member_ready_changed"
	NoticeMasterChanged         = "master_changed"
	NoticeChat                  = "chat"
	NoticeLeftLobby             = "left_lobby"
)

// Response statuses. A response carries exactly one of these; anything other
// than StatusOK includes a human-readable Reason.
const (
	StatusOK           = "ok"
	StatusFailed       = "failed"
	StatusUnauthorized = "unauthorized"
	StatusNotFound     = "not_found"
)

// Envelope is the framing common to all inbound messages. The payload fields
// ride alongside Type in the same JSON object and are decoded a second time
// into the op-specific struct.
type Envelope struct {
	Type string `json:"type"`
}

type Response struct {
	Type    string          `json:"type"`
	Op      string          `json:"op"`
	Status  string          `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Hello struct {
	Username string `json:"username"`
}

type CreateLobby struct {
	FactoryID  string            `json:"factory_id"`
	Properties map[string]string `json:"properties"`
}

type CreateLobbyResult struct {
	LobbyID uint32 `json:"lobby_id"`
}

type JoinLobby struct {
	LobbyID uint32 `json:"lobby_id"`
}

type LeaveLobby struct {
	LobbyID uint32 `json:"lobby_id"`
}

type SetLobbyProperties struct {
	LobbyID    uint32            `json:"lobby_id"`
	Properties map[string]string `json:"properties"`
}

type SetMemberProperties struct {
	Properties map[string]string `json:"properties"`
}

type JoinTeam struct {
	TeamName string `json:"team_name"`
}

type SendChat struct {
	Message string `json:"message"`
}

type SetReady struct {
	Ready bool `json:"ready"`
}

type GetRoomAccess struct {
	Properties map[string]string `json:"properties"`
}

type RoomAccess struct {
	RoomID  uint32 `json:"room_id"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Token   string `json:"token"`
}

type GetMemberData struct {
	LobbyID uint32 `json:"lobby_id"`
	PeerID  uint64 `json:"peer_id"`
}

type GetLobbyInfo struct {
	LobbyID uint32 `json:"lobby_id"`
}

// MemberSnapshot is the wire representation of a lobby member.
type MemberSnapshot struct {
	Username   string            `json:"username"`
	PeerID     uint64            `json:"peer_id"`
	Team       string            `json:"team"`
	Ready      bool              `json:"ready"`
	IsMaster   bool              `json:"is_master"`
	Properties map[string]string `json:"properties"`
}

// TeamSnapshot is the wire representation of a lobby team.
type TeamSnapshot struct {
	Name       string   `json:"name"`
	MinPlayers int      `json:"min_players"`
	MaxPlayers int      `json:"max_players"`
	Members    []string `json:"members"`
}

// PropertyControl describes a lobby setting the game master is allowed to
// change from the lobby screen, in declaration order.
type PropertyControl struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Options []string `json:"options,omitempty"`
}

// LobbySnapshot is the wire representation of a lobby returned by join and
// get_lobby_info.
type LobbySnapshot struct {
	LobbyID    uint32            `json:"lobby_id"`
	Name       string            `json:"name"`
	GameType   string            `json:"game_type"`
	State      string            `json:"state"`
	StatusText string            `json:"status_text"`
	Master     string            `json:"master,omitempty"`
	Address    string            `json:"address,omitempty"`
	Port       int               `json:"port,omitempty"`
	Properties map[string]string `json:"properties"`
	Controls   []PropertyControl `json:"controls,omitempty"`
	Teams      []TeamSnapshot    `json:"teams"`
	Members    []MemberSnapshot  `json:"members"`
}

// GameEntry is the read-only listing projection exposed to the matchmaking
// and server browser surface.
type GameEntry struct {
	LobbyID    uint32            `json:"lobby_id"`
	Name       string            `json:"name"`
	GameType   string            `json:"game_type"`
	Address    string            `json:"address,omitempty"`
	Occupancy  int               `json:"occupancy"`
	Capacity   int               `json:"capacity"`
	InProgress bool              `json:"in_progress"`
	Properties map[string]string `json:"properties"`
}

// Notice payloads.

type MemberJoined struct {
	Type   string         `json:"type"`
	Member MemberSnapshot `json:"member"`
}

type MemberLeft struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type StateChanged struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type StatusChanged struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type LobbyPropertyChanged struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type MemberPropertyChanged struct {
	Type     string `json:"type"`
	LobbyID  uint32 `json:"lobby_id"`
	Username string `json:"username"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

type MemberTeamChanged struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	TeamName string `json:"team_name"`
}

type MemberReadyChanged struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

type MasterChanged struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type Chat struct {
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
}

type LeftLobby struct {
	Type    string `json:"type"`
	LobbyID uint32 `json:"lobby_id"`
}
