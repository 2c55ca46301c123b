package manifest

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FindChild returns the immediate child of g whose display name equals name.
// The match is exact and case-sensitive; subgroups are not searched.
func FindChild(g *Group, name string) (Node, bool) {
	if g == nil {
		return nil, false
	}
	for _, n := range g.children {
		if n.DisplayName() == name {
			return n, true
		}
	}
	return nil, false
}

// FindOrCreateGroup returns the child group of parent named name, appending a
// new empty group when there is none. Repeated calls return the same group.
// It fails when name is already taken by a child that is not a group.
func FindOrCreateGroup(parent *Group, name string) (*Group, error) {
	if n, ok := FindChild(parent, name); ok {
		g, isGroup := n.(*Group)
		if !isGroup {
			return nil, fmt.Errorf("%q in group %q is not a group", name, parent.DisplayName())
		}
		return g, nil
	}
	g := NewGroup("", name, "")
	parent.Adopt(g)
	return g, nil
}

// EnsureGroupPath walks a slash-separated subgroup path below root, creating
// missing groups. An empty path returns root.
func EnsureGroupPath(root *Group, subpath string) (*Group, error) {
	g := root
	for _, seg := range strings.Split(subpath, "/") {
		if seg == "" || seg == "." {
			continue
		}
		next, err := FindOrCreateGroup(g, seg)
		if err != nil {
			return nil, err
		}
		g = next
	}
	return g, nil
}

// AddOutcome is the result of an add-file operation.
type AddOutcome int

const (
	Created AddOutcome = iota
	AlreadyExists
)

func (o AddOutcome) String() string {
	if o == Created {
		return "created"
	}
	return "already-exists"
}

// AddResult reports what AddFile did. Ref is the new or existing reference;
// it is nil when the name is held by a child that is not a file reference.
type AddResult struct {
	Outcome AddOutcome
	Ref     *FileReference
}

// AddFile adds a file reference named name with the given stored path to g,
// unless a child with that display name already exists.
func AddFile(g *Group, name, p string) AddResult {
	if n, ok := FindChild(g, name); ok {
		ref, _ := n.(*FileReference)
		return AddResult{Outcome: AlreadyExists, Ref: ref}
	}
	explicit := ""
	if displayName("", p) != name {
		explicit = name
	}
	ref := NewFileReference("", explicit, p)
	ref.FileType = FileTypeOf(name)
	g.Adopt(ref)
	return AddResult{Outcome: Created, Ref: ref}
}

// PhaseOutcome is the result of registering a reference in a build phase.
type PhaseOutcome int

const (
	Registered PhaseOutcome = iota
	AlreadyMember
	NotApplicable
)

func (o PhaseOutcome) String() string {
	switch o {
	case Registered:
		return "registered"
	case AlreadyMember:
		return "already-member"
	default:
		return "not-applicable"
	}
}

// Register appends ref to phase when it is compilable and not yet a member.
func Register(ref *FileReference, phase *BuildPhase) PhaseOutcome {
	if ref == nil || ref.Kind() != KindCompilable {
		return NotApplicable
	}
	if phase.Contains(ref) {
		return AlreadyMember
	}
	phase.members = append(phase.members, ref)
	return Registered
}

// FixOutcome is the result of a fix-path operation.
type FixOutcome int

const (
	Fixed FixOutcome = iota
	NotFound
)

func (o FixOutcome) String() string {
	if o == Fixed {
		return "fixed"
	}
	return "not-found"
}

// FixResult reports what FixPath did.
type FixResult struct {
	Outcome FixOutcome
	Ref     *FileReference
	OldPath string
	NewPath string
}

// CanonicalPath is the path a reference gets when it sits directly under its
// owning group: the bare display name.
func CanonicalPath(name string) string { return name }

// FixPath overwrites the stored path of the file reference named name in g
// with its canonical value. Only the path changes.
func FixPath(g *Group, name string) FixResult {
	n, ok := FindChild(g, name)
	if !ok {
		return FixResult{Outcome: NotFound}
	}
	ref, ok := n.(*FileReference)
	if !ok {
		return FixResult{Outcome: NotFound}
	}
	return fixRef(ref)
}

func fixRef(ref *FileReference) FixResult {
	name := ref.DisplayName()
	old := ref.path
	ref.path = CanonicalPath(name)
	// the display name must survive the rewrite when it came from the path
	if ref.name == "" && displayName("", ref.path) != name {
		ref.name = name
	}
	return FixResult{Outcome: Fixed, Ref: ref, OldPath: old, NewPath: ref.path}
}

// IsPattern reports whether name contains glob metacharacters.
func IsPattern(name string) bool {
	return strings.ContainsAny(name, "*?[{")
}

// MatchFiles returns the file references directly in g whose display names match pattern.
func MatchFiles(g *Group, pattern string) ([]*FileReference, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}
	var out []*FileReference
	for _, f := range g.Files() {
		if ok, _ := doublestar.Match(pattern, f.DisplayName()); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// FixPaths applies FixPath to the file reference named pattern, or, when no
// child has that exact name, to every file reference in g matching pattern.
// A pattern that matches nothing yields a single NotFound result.
func FixPaths(g *Group, pattern string) ([]FixResult, error) {
	if res := FixPath(g, pattern); res.Outcome == Fixed || !IsPattern(pattern) {
		return []FixResult{res}, nil
	}
	refs, err := MatchFiles(g, pattern)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return []FixResult{{Outcome: NotFound}}, nil
	}
	out := make([]FixResult, 0, len(refs))
	for _, ref := range refs {
		out = append(out, fixRef(ref))
	}
	return out, nil
}
