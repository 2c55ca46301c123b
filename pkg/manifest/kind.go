package manifest

import (
	"path"
	"strings"
)

// SourceKind classifies a file reference by the suffix of its display name.
type SourceKind int

const (
	KindOther SourceKind = iota
	KindCompilable
	KindHeader
)

// String returns the string representation of the kind
func (k SourceKind) String() string {
	switch k {
	case KindCompilable:
		return "compilable"
	case KindHeader:
		return "header"
	default:
		return "other"
	}
}

type suffixInfo struct {
	kind     SourceKind
	fileType string
}

// suffixTable is the single suffix -> kind mapping. fileType is the Xcode
// lastKnownFileType written for new references with that suffix.
var suffixTable = map[string]suffixInfo{
	".m":     {KindCompilable, "sourcecode.c.objc"},
	".mm":    {KindCompilable, "sourcecode.cpp.objcpp"},
	".c":     {KindCompilable, "sourcecode.c.c"},
	".cc":    {KindCompilable, "sourcecode.cpp.cpp"},
	".cpp":   {KindCompilable, "sourcecode.cpp.cpp"},
	".cxx":   {KindCompilable, "sourcecode.cpp.cpp"},
	".swift": {KindCompilable, "sourcecode.swift"},
	".s":     {KindCompilable, "sourcecode.asm"},
	".h":     {KindHeader, "sourcecode.c.h"},
	".hh":    {KindHeader, "sourcecode.cpp.h"},
	".hpp":   {KindHeader, "sourcecode.cpp.h"},
	".pch":   {KindHeader, "sourcecode.c.h"},
	".plist": {KindOther, "text.plist.xml"},
	".py":    {KindOther, "text.script.python"},
	".md":    {KindOther, "net.daringfireball.markdown"},
}

// KindOf returns the SourceKind for a display name. Suffix matching is case-sensitive.
func KindOf(name string) SourceKind {
	if info, ok := suffixTable[path.Ext(name)]; ok {
		return info.kind
	}
	return KindOther
}

// FileTypeOf returns the Xcode file type for a display name, or "text" when the suffix is unknown.
func FileTypeOf(name string) string {
	if info, ok := suffixTable[path.Ext(name)]; ok {
		return info.fileType
	}
	return "text"
}

// displayName implements the Xcode rule shared by every node kind: an explicit
// name wins, otherwise the last element of the path.
func displayName(name, p string) string {
	if name != "" {
		return name
	}
	if p == "" {
		return ""
	}
	return path.Base(strings.TrimSuffix(p, "/"))
}
