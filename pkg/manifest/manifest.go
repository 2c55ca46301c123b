// Package manifest models an Xcode project manifest as a graph of groups,
// file references, targets and build phases, and implements the idempotent
// mutations pbxmend applies to that graph.
//
// Entities carry the object identifier they were loaded with. Entities created
// by this package start with an empty ID; the store that saves the manifest
// assigns one.
package manifest

// Node is an entry in a group's children list.
type Node interface {
	DisplayName() string
	Parent() *Group
	setParent(g *Group)
}

// Manifest is the in-memory project graph.
type Manifest struct {
	Main    *Group
	Targets []*Target
}

// New returns a manifest with an empty main group.
func New() *Manifest {
	return &Manifest{Main: NewGroup("", "", "")}
}

// TopLevelGroup returns the immediate child group of the main group with the given display name.
func (m *Manifest) TopLevelGroup(name string) (*Group, bool) {
	if m == nil || m.Main == nil {
		return nil, false
	}
	n, ok := FindChild(m.Main, name)
	if !ok {
		return nil, false
	}
	g, ok := n.(*Group)
	return g, ok
}

// Target returns the first target with the given name.
func (m *Manifest) Target(name string) (*Target, bool) {
	if m == nil {
		return nil, false
	}
	for _, t := range m.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Group is a named container in the project's source hierarchy.
type Group struct {
	ID         string
	Name       string
	Path       string
	SourceTree string

	children []Node
	parent   *Group
}

// NewGroup returns a detached group.
func NewGroup(id, name, p string) *Group {
	return &Group{ID: id, Name: name, Path: p, SourceTree: "<group>"}
}

func (g *Group) DisplayName() string { return displayName(g.Name, g.Path) }
func (g *Group) Parent() *Group      { return g.parent }
func (g *Group) setParent(p *Group)  { g.parent = p }

// Children returns a copy of the group's children in order.
func (g *Group) Children() []Node {
	out := make([]Node, len(g.children))
	copy(out, g.children)
	return out
}

// Files returns the file references among the group's immediate children.
func (g *Group) Files() []*FileReference {
	var out []*FileReference
	for _, n := range g.children {
		if f, ok := n.(*FileReference); ok {
			out = append(out, f)
		}
	}
	return out
}

// Adopt appends an already-built node to the group and takes ownership of it.
// Stores use it to materialize a loaded manifest; it does not enforce name
// uniqueness because on-disk manifests are not guaranteed to honor it.
// Adopt panics if the node already has a parent.
func (g *Group) Adopt(n Node) {
	if n.Parent() != nil {
		panic("manifest: node " + n.DisplayName() + " already has a parent")
	}
	n.setParent(g)
	g.children = append(g.children, n)
}

// FileReference is a leaf entry pointing at one file.
type FileReference struct {
	ID         string
	SourceTree string
	FileType   string

	name   string
	path   string
	kind   SourceKind
	parent *Group
}

// NewFileReference returns a detached file reference. name may be empty, in
// which case the display name is the last element of p.
func NewFileReference(id, name, p string) *FileReference {
	f := &FileReference{ID: id, SourceTree: "<group>", name: name, path: p}
	f.kind = KindOf(f.DisplayName())
	return f
}

func (f *FileReference) DisplayName() string { return displayName(f.name, f.path) }
func (f *FileReference) Parent() *Group      { return f.parent }
func (f *FileReference) setParent(p *Group)  { f.parent = p }

// ExplicitName is the stored name attribute, empty when the display name derives from the path.
func (f *FileReference) ExplicitName() string { return f.name }

// Path is the stored path, relative to the owning group.
func (f *FileReference) Path() string { return f.path }

// Kind is the SourceKind derived from the display name at construction.
func (f *FileReference) Kind() SourceKind { return f.kind }

// ForeignNode is a child whose object type the mutation engine does not model
// (variant groups, version groups, reference proxies). It takes part in name
// lookups and keeps its position.
type ForeignNode struct {
	ID   string
	Isa  string
	Name string
	Path string

	parent *Group
}

func (n *ForeignNode) DisplayName() string { return displayName(n.Name, n.Path) }
func (n *ForeignNode) Parent() *Group      { return n.parent }
func (n *ForeignNode) setParent(p *Group)  { n.parent = p }

// Target is a named build unit.
type Target struct {
	ID     string
	Name   string
	Phases []*BuildPhase
}

// Phase returns the first phase with the given name.
func (t *Target) Phase(name string) (*BuildPhase, bool) {
	for _, p := range t.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// BuildPhase is an ordered membership list of file references. Membership is
// a relation: the phase never owns the references.
type BuildPhase struct {
	ID   string
	Name string

	members []*FileReference
}

// NewBuildPhase returns an empty phase.
func NewBuildPhase(id, name string) *BuildPhase {
	return &BuildPhase{ID: id, Name: name}
}

// Members returns a copy of the membership list in order.
func (p *BuildPhase) Members() []*FileReference {
	out := make([]*FileReference, len(p.members))
	copy(out, p.members)
	return out
}

// Contains reports whether ref is a member, by identity.
func (p *BuildPhase) Contains(ref *FileReference) bool {
	for _, m := range p.members {
		if m == ref {
			return true
		}
	}
	return false
}

// Adopt records an existing membership while a store materializes a manifest.
// Duplicates are ignored.
func (p *BuildPhase) Adopt(ref *FileReference) {
	if !p.Contains(ref) {
		p.members = append(p.members, ref)
	}
}
