package lobby

// Team is a capacity-bounded slot group within a lobby. Teams are created
// with the lobby and live for its whole lifetime; only membership changes.
// All mutation happens under the owning lobby's lock.
type Team struct {
	Name       string
	MinPlayers int
	MaxPlayers int

	members []*Member
}

func (t *Team) Count() int {
	return len(t.members)
}

func (t *Team) IsFull() bool {
	return len(t.members) >= t.MaxPlayers
}

// CanAccept reports whether the team has a free slot for another member.
func (t *Team) CanAccept() bool {
	return !t.IsFull()
}

// Members returns a copy of the team's member list in join order.
func (t *Team) Members() []*Member {
	out := make([]*Member, len(t.members))
	copy(out, t.members)
	return out
}

func (t *Team) addMember(m *Member) {
	t.members = append(t.members, m)
	m.Team = t
}

func (t *Team) removeMember(m *Member) {
	for i, member := range t.members {
		if member == m {
			t.members = append(t.members[:i], t.members[i+1:]...)
			break
		}
	}
	if m.Team == t {
		m.Team = nil
	}
}
