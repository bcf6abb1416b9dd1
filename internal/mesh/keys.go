package mesh

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tiendc/go-deepcopy"
	"golang.org/x/text/unicode/norm"

	"skwrap/internal/mathutil"
)

// KeySet is the ordered shape-key storage of a mesh. Blocks[0] is the basis.
type KeySet struct {
	Blocks []*ShapeKey
}

// NameKey returns the comparison form of a key name. Names coming from
// different tools may differ only in Unicode normalization (common with
// Japanese morph names), so lookups compare NFC forms.
func NameKey(name string) string {
	return norm.NFC.String(name)
}

func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Blocks)
}

// Basis returns the zeroth key, or nil when empty.
func (s *KeySet) Basis() *ShapeKey {
	if s.Len() == 0 {
		return nil
	}
	return s.Blocks[0]
}

// Index returns the position of the named key, or -1. An exact match wins;
// otherwise a key whose NFC form matches is used only if it is the single
// such key, so Remove and overwrite never pick one of several keys that
// differ only in normalization.
func (s *KeySet) Index(name string) int {
	if s == nil {
		return -1
	}
	for i, k := range s.Blocks {
		if k.Name == name {
			return i
		}
	}
	want := NameKey(name)
	found := -1
	for i, k := range s.Blocks {
		if NameKey(k.Name) == want {
			if found >= 0 {
				return -1
			}
			found = i
		}
	}
	return found
}

// taken reports whether any key matches name exactly or by NFC form.
func (s *KeySet) taken(name string) bool {
	want := NameKey(name)
	for _, k := range s.Blocks {
		if k.Name == name || NameKey(k.Name) == want {
			return true
		}
	}
	return false
}

// Find returns the named key or nil.
func (s *KeySet) Find(name string) *ShapeKey {
	i := s.Index(name)
	if i < 0 {
		return nil
	}
	return s.Blocks[i]
}

// Names returns all key names in order, basis included.
func (s *KeySet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Blocks))
	for i, k := range s.Blocks {
		names[i] = k.Name
	}
	return names
}

// UniqueName returns name, or name with a ".NNN" suffix if it is taken.
func (s *KeySet) UniqueName(name string) string {
	if !s.taken(name) {
		return name
	}
	base := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil && len(name)-i-1 == 3 {
			base = name[:i]
		}
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s.%03d", base, n)
		if !s.taken(candidate) {
			return candidate
		}
	}
}

// Add appends a new key with a unique name derived from name.
// The positions slice is stored as-is.
func (s *KeySet) Add(name string, positions []mathutil.Vec3) *ShapeKey {
	k := &ShapeKey{Name: s.UniqueName(name), Positions: positions, SliderMax: 1}
	s.Blocks = append(s.Blocks, k)
	return k
}

// Insert places k at index i (clamped to [1, Len]) so the basis stays first.
func (s *KeySet) Insert(i int, k *ShapeKey) {
	if i < 1 {
		i = 1
	}
	if i > len(s.Blocks) {
		i = len(s.Blocks)
	}
	s.Blocks = append(s.Blocks, nil)
	copy(s.Blocks[i+1:], s.Blocks[i:])
	s.Blocks[i] = k
}

// Remove deletes the named key. The basis cannot be removed.
func (s *KeySet) Remove(name string) bool {
	i := s.Index(name)
	if i <= 0 {
		return false
	}
	s.Blocks = append(s.Blocks[:i], s.Blocks[i+1:]...)
	return true
}

// Clone returns a deep copy of the key set, positions and drivers included.
func (s *KeySet) Clone() (*KeySet, error) {
	if s == nil {
		return nil, nil
	}
	out := &KeySet{}
	if err := deepcopy.Copy(out, *s); err != nil {
		return nil, fmt.Errorf("mesh: clone key set: %w", err)
	}
	return out, nil
}
