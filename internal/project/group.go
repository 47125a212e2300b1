package project

import (
	"hotproxy/internal/output"
	"hotproxy/internal/pathmodel"
	"hotproxy/internal/target"
)

// Group is the ordered mapping OutputPath -> *output.State for a single
// manifest, per spec.md §3 "Project.groups". Insertion order is
// preserved (a slice alongside the lookup map) the same way the
// teacher's dag.TaskGraph keeps a canonical node order alongside its
// index map, so iteration is deterministic without re-sorting on every
// access.
type Group struct {
	Manifest target.ManifestPath

	order       []pathmodel.AbsolutePath
	byPath      map[pathmodel.AbsolutePath]*output.State
	targetNames map[pathmodel.AbsolutePath]string
}

func newGroup(manifest target.ManifestPath) *Group {
	return &Group{
		Manifest:    manifest,
		byPath:      make(map[pathmodel.AbsolutePath]*output.State),
		targetNames: make(map[pathmodel.AbsolutePath]string),
	}
}

func (g *Group) add(path pathmodel.AbsolutePath, name string, st *output.State) {
	if _, exists := g.byPath[path]; !exists {
		g.order = append(g.order, path)
	}
	g.byPath[path] = st
	g.targetNames[path] = name
}

// Outputs returns the output paths in insertion order.
func (g *Group) Outputs() []pathmodel.AbsolutePath {
	out := make([]pathmodel.AbsolutePath, len(g.order))
	copy(out, g.order)
	return out
}

// State returns the OutputState for a path within this group.
func (g *Group) State(path pathmodel.AbsolutePath) (*output.State, bool) {
	st, ok := g.byPath[path]
	return st, ok
}

// TargetName returns the configured target name that produces path.
func (g *Group) TargetName(path pathmodel.AbsolutePath) string {
	return g.targetNames[path]
}

// Project is the immutable-once-built resolution result of spec.md §3.
type Project struct {
	WatchRoot           pathmodel.AbsolutePath
	DisabledOutputs     map[pathmodel.AbsolutePath]struct{}
	DisabledTargetNames []string
	ResolutionErrors    []ResolutionError
	MaxParallel         int
	Postprocess         PostprocessConfig

	groupOrder []target.ManifestPath
	groups     map[target.ManifestPath]*Group
}

func (p *Project) groupFor(manifest target.ManifestPath) *Group {
	if g, ok := p.groups[manifest]; ok {
		return g
	}
	g := newGroup(manifest)
	p.groups[manifest] = g
	p.groupOrder = append(p.groupOrder, manifest)
	return g
}

// Groups returns every manifest group in insertion order.
func (p *Project) Groups() []*Group {
	out := make([]*Group, len(p.groupOrder))
	for i, m := range p.groupOrder {
		out[i] = p.groups[m]
	}
	return out
}

// Group looks up a manifest's group directly.
func (p *Project) Group(manifest target.ManifestPath) (*Group, bool) {
	g, ok := p.groups[manifest]
	return g, ok
}

// FindOutput searches every group for path, returning its State and the
// manifest that owns it.
func (p *Project) FindOutput(path pathmodel.AbsolutePath) (*output.State, target.ManifestPath, bool) {
	for _, m := range p.groupOrder {
		g := p.groups[m]
		if st, ok := g.State(path); ok {
			return st, m, true
		}
	}
	return nil, "", false
}

// FindByTargetName searches every group for the target named name,
// returning its output path, State and owning manifest.
func (p *Project) FindByTargetName(name string) (pathmodel.AbsolutePath, *output.State, target.ManifestPath, bool) {
	for _, m := range p.groupOrder {
		g := p.groups[m]
		for _, out := range g.Outputs() {
			if g.TargetName(out) == name {
				st, _ := g.State(out)
				return out, st, m, true
			}
		}
	}
	return "", nil, "", false
}

// EnabledTargetNames returns every enabled target's name across all
// groups, in group-then-insertion order.
func (p *Project) EnabledTargetNames() []string {
	var names []string
	for _, m := range p.groupOrder {
		g := p.groups[m]
		for _, out := range g.Outputs() {
			names = append(names, g.TargetName(out))
		}
	}
	return names
}
