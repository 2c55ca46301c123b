package pbxproj

import (
	"bytes"
	"fmt"
	"path"

	"github.com/fulmenhq/pbxmend/pkg/plist"
)

const utf8Header = "// !$*UTF8*$!\n"

// inlineTypes are the object types Xcode writes on a single line.
var inlineTypes = map[string]bool{
	"PBXBuildFile":     true,
	"PBXFileReference": true,
}

// unannotatedKeys hold identifiers of objects in other projects.
var unannotatedKeys = map[string]bool{
	"remoteGlobalIDString": true,
	"TestTargetID":         true,
}

func (doc *document) encode() ([]byte, error) {
	if doc.encoding == encodingXML {
		return plist.EncodeXML(doc.root)
	}
	return doc.encodeASCII()
}

// encodeASCII writes the document in Xcode's layout: objects grouped into
// per-type sections and object references annotated with display names.
func (doc *document) encodeASCII() ([]byte, error) {
	var buf bytes.Buffer
	enc := plist.NewEncoder(&buf)
	names := doc.annotations()
	enc.Annotate = func(key, value string) string {
		if unannotatedKeys[key] {
			return ""
		}
		return names[value]
	}
	enc.Inline = func(d *plist.Dict) bool {
		return inlineTypes[d.String("isa")]
	}

	enc.WriteString(utf8Header)
	enc.WriteString("{\n")
	for _, key := range doc.root.Keys() {
		v, _ := doc.root.Get(key)
		if key != "objects" {
			enc.Indent(1)
			enc.WriteEntry(key, v, 1, false)
			continue
		}
		enc.WriteString("\tobjects = {\n")
		for _, section := range doc.sections() {
			enc.WriteString(fmt.Sprintf("\n/* Begin %s section */\n", section.isa))
			for _, id := range section.ids {
				obj, _ := doc.objects.Get(id)
				enc.Indent(2)
				enc.WriteObject(id, obj, 2)
			}
			enc.WriteString(fmt.Sprintf("/* End %s section */\n", section.isa))
		}
		enc.WriteString("\t};\n")
	}
	enc.WriteString("}\n")
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type section struct {
	isa string
	ids []string
}

// sections groups object IDs by type, keeping the order in which types and
// objects first appear.
func (doc *document) sections() []section {
	var out []section
	index := make(map[string]int)
	for _, id := range doc.objects.Keys() {
		obj, _ := doc.objects.Dict(id)
		isa := ""
		if obj != nil {
			isa = obj.String("isa")
		}
		i, ok := index[isa]
		if !ok {
			i = len(out)
			index[isa] = i
			out = append(out, section{isa: isa})
		}
		out[i].ids = append(out[i].ids, id)
	}
	return out
}

// annotations returns the comment Xcode prints next to each object ID.
func (doc *document) annotations() map[string]string {
	names := make(map[string]string)
	phaseOf := make(map[string]string)
	owners := make(map[string]*plist.Dict)

	for _, id := range doc.objects.Keys() {
		obj, ok := doc.objects.Dict(id)
		if !ok {
			continue
		}
		if _, isPhase := phaseNames[obj.String("isa")]; isPhase {
			for _, bf := range obj.Strings("files") {
				phaseOf[bf] = phaseName(obj)
			}
		}
		if list := obj.String("buildConfigurationList"); list != "" {
			owners[list] = obj
		}
	}

	for _, id := range doc.objects.Keys() {
		obj, ok := doc.objects.Dict(id)
		if !ok {
			continue
		}
		isa := obj.String("isa")
		switch {
		case isa == "PBXProject":
			names[id] = "Project object"
		case isa == "PBXBuildFile":
			ref := obj.String("fileRef")
			if ref == "" {
				ref = obj.String("productRef")
			}
			name := "(null)"
			if target, ok := doc.objects.Dict(ref); ok {
				name = nodeName(target)
			}
			names[id] = fmt.Sprintf("%s in %s", name, phaseOf[id])
		case isa == "XCConfigurationList":
			if owner, ok := owners[id]; ok {
				label := owner.String("name")
				if owner.String("isa") == "PBXProject" {
					label = doc.projectName()
				}
				names[id] = fmt.Sprintf("Build configuration list for %s %q", owner.String("isa"), label)
			}
		case phaseNames[isa] != "":
			names[id] = phaseName(obj)
		default:
			if n := nodeName(obj); n != "" {
				names[id] = n
			} else if isa == "PBXContainerItemProxy" || isa == "PBXTargetDependency" {
				names[id] = isa
			}
		}
	}
	return names
}

func phaseName(obj *plist.Dict) string {
	if n := obj.String("name"); n != "" {
		return n
	}
	return phaseNames[obj.String("isa")]
}

func nodeName(obj *plist.Dict) string {
	if n := obj.String("name"); n != "" {
		return n
	}
	if n := obj.String("productName"); n != "" {
		return n
	}
	if p := obj.String("path"); p != "" {
		return path.Base(p)
	}
	return ""
}

// projectName is the name Xcode derives from the .xcodeproj bundle.
func (doc *document) projectName() string {
	dir := path.Dir(doc.location)
	base := path.Base(dir)
	if ext := path.Ext(base); ext == ".xcodeproj" {
		return base[:len(base)-len(ext)]
	}
	return base
}
