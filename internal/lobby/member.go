package lobby

import (
	"github.com/arcadianet/arcadia/internal/peer"
	"github.com/arcadianet/arcadia/internal/protocol"
)

// Member is one peer's participation record within a lobby. It is created
// on join and discarded on leave; it never outlives the membership. All
// fields are guarded by the owning lobby's lock.
type Member struct {
	Username string
	Peer     *peer.Peer
	Team     *Team
	Ready    bool

	properties  map[string]string
	watchHandle int
}

func newMember(username string, p *peer.Peer) *Member {
	return &Member{
		Username:   username,
		Peer:       p,
		properties: map[string]string{},
	}
}

func (m *Member) Property(key string) (string, bool) {
	v, ok := m.properties[key]
	return v, ok
}

func (m *Member) snapshot(isMaster bool) protocol.MemberSnapshot {
	props := make(map[string]string, len(m.properties))
	for k, v := range m.properties {
		props[k] = v
	}

	teamName := ""
	if m.Team != nil {
		teamName = m.Team.Name
	}

	return protocol.MemberSnapshot{
		Username:   m.Username,
		PeerID:     m.Peer.ID(),
		Team:       teamName,
		Ready:      m.Ready,
		IsMaster:   isMaster,
		Properties: props,
	}
}
