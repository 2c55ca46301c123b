package pbxproj

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/pbxmend/pkg/manifest"
	"github.com/fulmenhq/pbxmend/pkg/plist"
)

type encoding int

const (
	encodingASCII encoding = iota
	encodingXML
)

// phaseNames maps build phase object types to the names Xcode displays when
// the phase carries no explicit name.
var phaseNames = map[string]string{
	"PBXSourcesBuildPhase":     "Sources",
	"PBXFrameworksBuildPhase":  "Frameworks",
	"PBXResourcesBuildPhase":   "Resources",
	"PBXHeadersBuildPhase":     "Headers",
	"PBXCopyFilesBuildPhase":   "CopyFiles",
	"PBXShellScriptBuildPhase": "ShellScript",
	"PBXRezBuildPhase":         "Rez",
}

// document is the raw plist a manifest was decoded from. The store keeps it
// so that untouched objects are written back exactly as they were read.
type document struct {
	location string
	encoding encoding
	root     *plist.Dict
	objects  *plist.Dict

	// buildFiles maps phase ID -> file reference ID -> PBXBuildFile ID.
	buildFiles map[string]map[string]string
}

type decoder struct {
	doc      *document
	refs     map[string]*manifest.FileReference
	visiting map[string]bool
	placed   map[string]bool
}

func decode(location string, data []byte) (*manifest.Manifest, *document, error) {
	var (
		v   plist.Value
		err error
		enc = encodingASCII
	)
	if plist.IsXML(data) {
		enc = encodingXML
		v, err = plist.ParseXML(data)
	} else {
		v, err = plist.ParseASCII(data)
	}
	if err != nil {
		return nil, nil, err
	}

	root, ok := v.(*plist.Dict)
	if !ok {
		return nil, nil, errors.New("top-level value is not a dictionary")
	}
	objects, ok := root.Dict("objects")
	if !ok {
		return nil, nil, errors.New("missing objects dictionary")
	}
	doc := &document{
		location:   location,
		encoding:   enc,
		root:       root,
		objects:    objects,
		buildFiles: make(map[string]map[string]string),
	}

	rootID := root.String("rootObject")
	project, err := doc.object(rootID, "PBXProject")
	if err != nil {
		return nil, nil, fmt.Errorf("rootObject: %w", err)
	}

	d := &decoder{
		doc:      doc,
		refs:     make(map[string]*manifest.FileReference),
		visiting: make(map[string]bool),
		placed:   make(map[string]bool),
	}
	mainID := project.String("mainGroup")
	main, err := d.group(mainID)
	if err != nil {
		return nil, nil, fmt.Errorf("mainGroup: %w", err)
	}

	m := &manifest.Manifest{Main: main}
	for _, id := range project.Strings("targets") {
		t, err := d.target(id)
		if err != nil {
			return nil, nil, err
		}
		m.Targets = append(m.Targets, t)
	}
	return m, doc, nil
}

// object returns the object dictionary for id, checking its isa when want is set.
func (doc *document) object(id, want string) (*plist.Dict, error) {
	if id == "" {
		return nil, errors.New("empty object reference")
	}
	obj, ok := doc.objects.Dict(id)
	if !ok {
		return nil, fmt.Errorf("object %s does not exist", id)
	}
	if want != "" && obj.String("isa") != want {
		return nil, fmt.Errorf("object %s is %s, want %s", id, obj.String("isa"), want)
	}
	return obj, nil
}

func (d *decoder) group(id string) (*manifest.Group, error) {
	obj, err := d.doc.object(id, "PBXGroup")
	if err != nil {
		return nil, err
	}
	d.visiting[id] = true
	defer delete(d.visiting, id)

	g := manifest.NewGroup(id, obj.String("name"), obj.String("path"))
	g.SourceTree = obj.String("sourceTree")
	for _, childID := range obj.Strings("children") {
		if d.visiting[childID] {
			return nil, fmt.Errorf("group %s contains itself through %s", id, childID)
		}
		if d.placed[childID] {
			return nil, fmt.Errorf("object %s has more than one parent group", childID)
		}
		child, err := d.node(childID)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", id, err)
		}
		d.placed[childID] = true
		g.Adopt(child)
	}
	return g, nil
}

func (d *decoder) node(id string) (manifest.Node, error) {
	obj, err := d.doc.object(id, "")
	if err != nil {
		return nil, err
	}
	switch isa := obj.String("isa"); isa {
	case "PBXGroup":
		return d.group(id)
	case "PBXFileReference":
		ref := manifest.NewFileReference(id, obj.String("name"), obj.String("path"))
		ref.SourceTree = obj.String("sourceTree")
		ref.FileType = obj.String("lastKnownFileType")
		if ref.FileType == "" {
			ref.FileType = obj.String("explicitFileType")
		}
		d.refs[id] = ref
		return ref, nil
	case "":
		return nil, fmt.Errorf("object %s has no isa", id)
	default:
		return &manifest.ForeignNode{ID: id, Isa: isa, Name: obj.String("name"), Path: obj.String("path")}, nil
	}
}

func (d *decoder) target(id string) (*manifest.Target, error) {
	obj, err := d.doc.object(id, "")
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	t := &manifest.Target{ID: id, Name: obj.String("name")}
	for _, phaseID := range obj.Strings("buildPhases") {
		phaseObj, err := d.doc.object(phaseID, "")
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Name, err)
		}
		name := phaseObj.String("name")
		if name == "" {
			name = phaseNames[phaseObj.String("isa")]
		}
		phase := manifest.NewBuildPhase(phaseID, name)
		members := make(map[string]string)
		for _, bfID := range phaseObj.Strings("files") {
			bf, err := d.doc.object(bfID, "PBXBuildFile")
			if err != nil {
				return nil, fmt.Errorf("phase %s: %w", phaseID, err)
			}
			refID := bf.String("fileRef")
			ref, ok := d.refs[refID]
			if !ok {
				// product references, variant groups and package products stay opaque
				continue
			}
			if _, dup := members[refID]; !dup {
				members[refID] = bfID
			}
			phase.Adopt(ref)
		}
		d.doc.buildFiles[phaseID] = members
		t.Phases = append(t.Phases, phase)
	}
	return t, nil
}
