package realtime

type audienceKind int

const (
	audienceConnection audienceKind = iota
	audienceUser
	audienceWorkspace
)

// Audience is the computed set of connections an outbound event reaches.
// It is resolved against registry and tracker state at emit time, so the
// fan-out logic is independent of the transport.
type Audience struct {
	kind        audienceKind
	connID      string
	userID      string
	workspaceID string
	exceptConn  string
}

// ToConnection addresses a single connection.
func ToConnection(connID string) Audience {
	return Audience{kind: audienceConnection, connID: connID}
}

// ToUser addresses every connection of one user.
func ToUser(userID string) Audience {
	return Audience{kind: audienceUser, userID: userID}
}

// ToWorkspace addresses every connection of every user present in a
// workspace.
func ToWorkspace(workspaceID string) Audience {
	return Audience{kind: audienceWorkspace, workspaceID: workspaceID}
}

// ToWorkspaceExcept is ToWorkspace minus the sending connection.
func ToWorkspaceExcept(workspaceID, exceptConn string) Audience {
	return Audience{kind: audienceWorkspace, workspaceID: workspaceID, exceptConn: exceptConn}
}

// resolve computes the target connection ids. Tracker and registry are
// snapshotted in turn; neither lock is held while the other is read.
func (h *Hub) resolve(aud Audience) []string {
	switch aud.kind {
	case audienceConnection:
		return []string{aud.connID}
	case audienceUser:
		return h.registry.ConnectionsOf(aud.userID)
	case audienceWorkspace:
		var out []string
		for _, user := range h.tracker.PresentUsers(aud.workspaceID) {
			for _, connID := range h.registry.ConnectionsOf(user.ID) {
				if connID == aud.exceptConn {
					continue
				}
				out = append(out, connID)
			}
		}
		return out
	default:
		return nil
	}
}
