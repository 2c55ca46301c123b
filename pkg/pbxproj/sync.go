package pbxproj

import (
	"fmt"
	"slices"

	"github.com/fulmenhq/pbxmend/pkg/manifest"
	"github.com/fulmenhq/pbxmend/pkg/plist"
)

// apply writes the state of m back into the raw document. It validates the
// whole manifest before touching the document, so a failed apply leaves the
// document as it was.
func (doc *document) apply(m *manifest.Manifest) error {
	reachable, err := doc.check(m)
	if err != nil {
		return err
	}

	assigned := make(map[string]bool)
	taken := func(id string) bool {
		if assigned[id] {
			return true
		}
		_, exists := doc.objects.Get(id)
		return exists
	}
	newID := func() string {
		id := newObjectID(taken)
		assigned[id] = true
		return id
	}

	doc.writeGroup(m.Main, newID)

	for _, t := range m.Targets {
		for _, phase := range t.Phases {
			obj, _ := doc.objects.Dict(phase.ID)
			known := doc.buildFiles[phase.ID]
			if known == nil {
				known = make(map[string]string)
				doc.buildFiles[phase.ID] = known
			}
			files, _ := obj.Get("files")
			list, _ := files.(plist.Array)
			changed := false
			for _, ref := range phase.Members() {
				if !reachable[ref] {
					continue
				}
				if _, ok := known[ref.ID]; ok {
					continue
				}
				bf := plist.NewDict()
				bf.Set("isa", plist.String("PBXBuildFile"))
				bf.Set("fileRef", plist.String(ref.ID))
				id := newID()
				doc.objects.Set(id, bf)
				known[ref.ID] = id
				list = append(list, plist.String(id))
				changed = true
			}
			if changed {
				obj.Set("files", list)
			}
		}
	}
	return nil
}

// check validates m against the document and returns the set of file
// references reachable from the main group.
func (doc *document) check(m *manifest.Manifest) (map[*manifest.FileReference]bool, error) {
	if m.Main == nil || m.Main.ID == "" {
		return nil, fmt.Errorf("main group is not part of the loaded document")
	}
	reachable := make(map[*manifest.FileReference]bool)
	seen := make(map[manifest.Node]bool)

	var walk func(g *manifest.Group) error
	walk = func(g *manifest.Group) error {
		if err := doc.checkKnown(g.ID, "PBXGroup"); err != nil {
			return err
		}
		for _, child := range g.Children() {
			if seen[child] {
				return fmt.Errorf("%q appears in more than one group", child.DisplayName())
			}
			seen[child] = true
			if child.Parent() != g {
				return fmt.Errorf("%q is listed under %q but owned by another group", child.DisplayName(), g.DisplayName())
			}
			switch n := child.(type) {
			case *manifest.Group:
				if err := walk(n); err != nil {
					return err
				}
			case *manifest.FileReference:
				if err := doc.checkKnown(n.ID, "PBXFileReference"); err != nil {
					return err
				}
				reachable[n] = true
			case *manifest.ForeignNode:
				if _, ok := doc.objects.Get(n.ID); !ok {
					return fmt.Errorf("object %s (%s) does not exist", n.ID, n.DisplayName())
				}
			}
		}
		return nil
	}
	if err := walk(m.Main); err != nil {
		return nil, err
	}

	for _, t := range m.Targets {
		if t.ID == "" {
			return nil, fmt.Errorf("target %q is not part of the loaded document", t.Name)
		}
		for _, phase := range t.Phases {
			if _, ok := doc.objects.Dict(phase.ID); !ok || phase.ID == "" {
				return nil, fmt.Errorf("phase %q of target %q is not part of the loaded document", phase.Name, t.Name)
			}
			for _, ref := range phase.Members() {
				if !reachable[ref] {
					return nil, fmt.Errorf("phase %q of target %q references %q, which is not in the group tree",
						phase.Name, t.Name, ref.DisplayName())
				}
			}
		}
	}
	return reachable, nil
}

// checkKnown accepts new entities (empty ID) and existing objects of the right type.
func (doc *document) checkKnown(id, isa string) error {
	if id == "" {
		return nil
	}
	_, err := doc.object(id, isa)
	return err
}

func (doc *document) writeGroup(g *manifest.Group, newID func() string) {
	obj, exists := doc.objects.Dict(g.ID)
	if !exists {
		g.ID = newID()
		obj = plist.NewDict()
		obj.Set("isa", plist.String("PBXGroup"))
		obj.Set("children", plist.Array{})
		if g.Name != "" {
			obj.Set("name", plist.String(g.Name))
		}
		if g.Path != "" {
			obj.Set("path", plist.String(g.Path))
		}
		obj.Set("sourceTree", plist.String(sourceTreeOr(g.SourceTree)))
		doc.objects.Set(g.ID, obj)
	}

	var ids []string
	for _, child := range g.Children() {
		switch n := child.(type) {
		case *manifest.Group:
			doc.writeGroup(n, newID)
			ids = append(ids, n.ID)
		case *manifest.FileReference:
			doc.writeFile(n, newID)
			ids = append(ids, n.ID)
		case *manifest.ForeignNode:
			ids = append(ids, n.ID)
		}
	}
	if !slices.Equal(obj.Strings("children"), ids) {
		obj.Set("children", plist.StringArray(ids))
	}
}

func (doc *document) writeFile(ref *manifest.FileReference, newID func() string) {
	obj, exists := doc.objects.Dict(ref.ID)
	if !exists {
		ref.ID = newID()
		obj = plist.NewDict()
		obj.Set("isa", plist.String("PBXFileReference"))
		fileType := ref.FileType
		if fileType == "" {
			fileType = manifest.FileTypeOf(ref.DisplayName())
		}
		obj.Set("lastKnownFileType", plist.String(fileType))
		if ref.ExplicitName() != "" {
			obj.Set("name", plist.String(ref.ExplicitName()))
		}
		obj.Set("path", plist.String(ref.Path()))
		obj.Set("sourceTree", plist.String(sourceTreeOr(ref.SourceTree)))
		doc.objects.Set(ref.ID, obj)
		return
	}
	if obj.String("path") != ref.Path() {
		obj.Set("path", plist.String(ref.Path()))
	}
	if ref.ExplicitName() != "" && obj.String("name") != ref.ExplicitName() {
		obj.Set("name", plist.String(ref.ExplicitName()))
	}
}

func sourceTreeOr(tree string) string {
	if tree == "" {
		return "<group>"
	}
	return tree
}
