package transfer

import "skwrap/internal/mesh"

// BindValues drives each target key named in names from the same-named key
// on source: the target key gets a Driver and copies the source's current
// value and slider range. It returns the number of keys bound.
func BindValues(source, target *mesh.Mesh, names []string) int {
	n := 0
	for _, name := range names {
		tk := target.Keys.Find(name)
		sk := source.Keys.Find(name)
		if tk == nil || sk == nil || tk == target.Keys.Basis() {
			continue
		}
		tk.Driver = &mesh.Driver{SourceObject: source.Name, SourceKey: sk.Name}
		tk.Value = sk.Value
		tk.SliderMin = sk.SliderMin
		tk.SliderMax = sk.SliderMax
		n++
	}
	return n
}

// RemoveDrivers clears drivers from the named keys of m, or from every key
// when names is nil. It returns the number of drivers removed.
func RemoveDrivers(m *mesh.Mesh, names []string) int {
	if m.Keys == nil {
		return 0
	}
	var want map[string]bool
	if names != nil {
		want = make(map[string]bool, len(names))
		for _, name := range names {
			want[mesh.NameKey(name)] = true
		}
	}
	n := 0
	for _, k := range m.Keys.Blocks {
		if k.Driver == nil || (want != nil && !want[mesh.NameKey(k.Name)]) {
			continue
		}
		k.Driver = nil
		n++
	}
	return n
}

// SyncDrivers copies value and slider range from each driver's source key
// into the driven key. Objects are looked up by name among objs; drivers
// whose source is missing are left as they are. It returns the number of
// keys updated.
func SyncDrivers(objs []*mesh.Mesh) int {
	byName := make(map[string]*mesh.Mesh, len(objs))
	for _, o := range objs {
		byName[o.Name] = o
	}
	n := 0
	for _, o := range objs {
		if o.Keys == nil {
			continue
		}
		for _, k := range o.Keys.Blocks {
			if k.Driver == nil {
				continue
			}
			src := byName[k.Driver.SourceObject]
			if src == nil {
				continue
			}
			sk := src.Keys.Find(k.Driver.SourceKey)
			if sk == nil {
				continue
			}
			k.Value, k.SliderMin, k.SliderMax = sk.Value, sk.SliderMin, sk.SliderMax
			n++
		}
	}
	return n
}
