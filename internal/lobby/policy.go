package lobby

import (
	"fmt"

	"github.com/arcadianet/arcadia/internal/peer"
	"github.com/arcadianet/arcadia/internal/protocol"
)

// TeamOptions declares one team of a lobby.
type TeamOptions struct {
	Name       string
	MinPlayers int
	MaxPlayers int
}

// Options configures a lobby. The strategy fields let a factory swap out
// individual policies (team picking, username resolution, join and property
// checks) without subclassing the engine; any left nil get the defaults.
type Options struct {
	Name     string
	GameType string

	// MinPlayers is the lobby-wide floor for starting a game; per-team
	// floors are declared on the teams themselves.
	MinPlayers int
	Teams      []TeamOptions

	// Properties seeds the lobby-level property bag at creation.
	Properties map[string]string

	// Controls are the lobby settings advertised to clients as changeable
	// from the lobby screen, in declaration order.
	Controls []protocol.PropertyControl

	EnableManualStart   bool
	EnableReadySystem   bool
	EnableTeamSwitching bool
	EnableGameMasters   bool

	// PlayAgain routes GameOver and FailedToStart back to Preparations so
	// the same lobby can host another match.
	PlayAgain bool

	KeepAliveWhenEmpty  bool
	AllowJoiningMidGame bool

	// StartWhenAllReady starts the game automatically once every start
	// precondition holds, without waiting for the master.
	StartWhenAllReady bool

	// PickTeam selects the team for a joining member. The default picks the
	// least populated team that can still accept, ties broken by
	// declaration order.
	PickTeam func(l *Lobby, m *Member) *Team
	// ExtractUsername resolves a peer's lobby identity. The default uses
	// the name from the peer's hello.
	ExtractUsername func(p *peer.Peer) (string, error)
	// AllowJoin vets a peer before membership is created. The default
	// admits everyone.
	AllowJoin func(l *Lobby, p *peer.Peer) error
	// AllowMemberProperty vets a member-level property write. The default
	// permits everything.
	AllowMemberProperty func(l *Lobby, m *Member, key, value string) bool
}

func (o Options) withDefaults() Options {
	if o.PickTeam == nil {
		o.PickTeam = pickLeastPopulatedTeam
	}
	if o.ExtractUsername == nil {
		o.ExtractUsername = extractPeerUsername
	}
	if o.AllowMemberProperty == nil {
		o.AllowMemberProperty = func(*Lobby, *Member, string, string) bool { return true }
	}
	return o
}

func pickLeastPopulatedTeam(l *Lobby, _ *Member) *Team {
	var best *Team
	for _, name := range l.teamOrder {
		t := l.teams[name]
		if !t.CanAccept() {
			continue
		}
		if best == nil || t.Count() < best.Count() {
			best = t
		}
	}
	return best
}

func extractPeerUsername(p *peer.Peer) (string, error) {
	name := p.Username()
	if name == "" {
		return "", fmt.Errorf("peer %d has not identified itself", p.ID())
	}
	return name, nil
}
