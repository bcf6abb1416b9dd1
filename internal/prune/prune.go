// Package prune deletes shape keys that do not move any vertex noticeably
// away from the basis.
package prune

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"skwrap/internal/logging"
	"skwrap/internal/mathutil"
	"skwrap/internal/mesh"
)

// DefaultThreshold is the displacement at or below which a key counts as empty.
const DefaultThreshold = 1e-4

// ErrNoBasis is returned for meshes without shape keys.
var ErrNoBasis = errors.New("prune: mesh has no basis key")

// Options configures a prune pass.
type Options struct {
	Threshold float64
}

// KeyStats summarises a key's per-vertex displacement from the basis.
type KeyStats struct {
	Max  float64
	Mean float64
}

// Result lists deleted keys in their original order plus the statistics of
// every inspected key.
type Result struct {
	Deleted []string
	Stats   map[string]KeyStats
}

// Prune inspects the keys named in names and removes those whose largest
// displacement does not exceed threshold. A key is kept only if some vertex
// moved strictly more than threshold. The basis and keys outside names are
// never touched; unknown names are ignored.
func Prune(m *mesh.Mesh, names []string, threshold float64) (Result, error) {
	res := Result{Stats: make(map[string]KeyStats, len(names))}
	if !m.HasKeys() {
		return res, fmt.Errorf("%w: %s", ErrNoBasis, m.Name)
	}
	basis := m.Keys.Basis()

	var empty []string
	for _, name := range names {
		i := m.Keys.Index(name)
		if i <= 0 {
			continue
		}
		k := m.Keys.Blocks[i]
		if len(k.Positions) != len(basis.Positions) {
			return res, fmt.Errorf("prune: %s: key %q has %d vertices, basis has %d",
				m.Name, k.Name, len(k.Positions), len(basis.Positions))
		}

		st := Displacement(basis.Positions, k.Positions)
		res.Stats[k.Name] = st
		if st.Max <= threshold {
			empty = append(empty, k.Name)
		}
	}

	for _, name := range empty {
		if m.Keys.Remove(name) {
			res.Deleted = append(res.Deleted, name)
			logging.Logger().Debug("prune: removed empty key", "mesh", m.Name, "key", name)
		}
	}
	return res, nil
}

// Displacement returns max and mean of |key[i] - basis[i]|.
func Displacement(basis, key []mathutil.Vec3) KeyStats {
	if len(key) == 0 {
		return KeyStats{}
	}
	d := make([]float64, len(key))
	for i := range key {
		d[i] = key[i].Sub(basis[i]).Len()
	}
	return KeyStats{Max: floats.Max(d), Mean: stat.Mean(d, nil)}
}
