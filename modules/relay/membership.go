package relay

import "sort"

// Membership associates one live connection with a username and a room.
type Membership struct {
	ConnID   string `json:"conn_id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id"`
	seq      uint64
}

// MembershipTable maps connection ids to memberships. Like Registry, it relies on
// the Relay for serialization.
type MembershipTable struct {
	byConn map[string]Membership
	seq    uint64
}

// NewMembershipTable creates an empty table.
func NewMembershipTable() *MembershipTable {
	return &MembershipTable{
		byConn: make(map[string]Membership),
	}
}

// Add records that connID joined roomID as username, replacing any previous
// membership of the same connection. The replaced record is returned.
func (t *MembershipTable) Add(connID, username, roomID string) (Membership, bool) {
	prev, replaced := t.byConn[connID]
	t.seq++
	t.byConn[connID] = Membership{
		ConnID:   connID,
		Username: username,
		RoomID:   roomID,
		seq:      t.seq,
	}
	return prev, replaced
}

// Remove deletes the membership of connID and returns it.
func (t *MembershipTable) Remove(connID string) (Membership, bool) {
	m, ok := t.byConn[connID]
	if ok {
		delete(t.byConn, connID)
	}
	return m, ok
}

// Get returns the membership of connID.
func (t *MembershipTable) Get(connID string) (Membership, bool) {
	m, ok := t.byConn[connID]
	return m, ok
}

// inRoom scans the table for the room's members in join order.
func (t *MembershipTable) inRoom(roomID string) []Membership {
	var members []Membership
	for _, m := range t.byConn {
		if m.RoomID == roomID {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })
	return members
}

// MembersOf returns the usernames in roomID in join order. Duplicates are kept.
func (t *MembershipTable) MembersOf(roomID string) []string {
	members := t.inRoom(roomID)
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Username
	}
	return names
}

// ConnsOf returns the connection ids in roomID in join order.
func (t *MembershipTable) ConnsOf(roomID string) []string {
	members := t.inRoom(roomID)
	conns := make([]string, len(members))
	for i, m := range members {
		conns[i] = m.ConnID
	}
	return conns
}

// CountIn returns the number of connections in roomID.
func (t *MembershipTable) CountIn(roomID string) int {
	n := 0
	for _, m := range t.byConn {
		if m.RoomID == roomID {
			n++
		}
	}
	return n
}

// Len returns the number of live memberships.
func (t *MembershipTable) Len() int {
	return len(t.byConn)
}
