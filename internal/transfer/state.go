package transfer

import "skwrap/internal/mesh"

// stateGuard holds the object state borrowed while a target is written.
type stateGuard struct {
	m     *mesh.Mesh
	saved mesh.ObjectState
}

// borrowState pins the target to its basis with show-only-key enabled so
// that no blended pose is observed mid-write. The returned guard must be
// released on every exit path.
func borrowState(m *mesh.Mesh) *stateGuard {
	g := &stateGuard{m: m, saved: m.State}
	m.State = mesh.ObjectState{ShowOnlyKey: true, ActiveKey: 0}
	return g
}

func (g *stateGuard) release() {
	g.m.State = g.saved
	if n := g.m.Keys.Len(); g.m.State.ActiveKey >= n {
		// The key it pointed at may have been pruned.
		g.m.State.ActiveKey = max(n-1, 0)
	}
}
