package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/pbxmend/pkg/exitcode"
	"github.com/fulmenhq/pbxmend/pkg/manifest"
	"github.com/fulmenhq/pbxmend/pkg/pbxproj"
	"github.com/fulmenhq/pbxmend/pkg/requests"
)

const manifestFile = "iSH.xcodeproj/project.pbxproj"

func fixtureFS(t *testing.T, edit func(string) string) billy.Filesystem {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "iSH.xcodeproj", "project.pbxproj"))
	require.NoError(t, err)
	text := string(data)
	if edit != nil {
		text = edit(text)
	}
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, manifestFile, []byte(text), 0o644))
	return fs
}

func readManifest(t *testing.T, fs billy.Filesystem) string {
	t.Helper()
	data, err := util.ReadFile(fs, manifestFile)
	require.NoError(t, err)
	return string(data)
}

func defaultOptions() Options {
	return Options{Location: "iSH.xcodeproj", Group: "app", Target: "iSH", Phase: "Sources"}
}

// snapshot flattens the parts of a manifest a run can change.
func snapshot(m *manifest.Manifest) []string {
	var out []string
	var walk func(prefix string, g *manifest.Group)
	walk = func(prefix string, g *manifest.Group) {
		for _, n := range g.Children() {
			switch c := n.(type) {
			case *manifest.Group:
				out = append(out, fmt.Sprintf("group %s%s", prefix, c.DisplayName()))
				walk(prefix+c.DisplayName()+"/", c)
			case *manifest.FileReference:
				out = append(out, fmt.Sprintf("file %s%s path=%s", prefix, c.DisplayName(), c.Path()))
			}
		}
	}
	walk("", m.Main)
	for _, t := range m.Targets {
		for _, p := range t.Phases {
			var names []string
			for _, ref := range p.Members() {
				names = append(names, ref.DisplayName())
			}
			out = append(out, fmt.Sprintf("phase %s/%s: %s", t.Name, p.Name, strings.Join(names, ",")))
		}
	}
	return out
}

func loadSnapshot(t *testing.T, fs billy.Filesystem) []string {
	t.Helper()
	m, err := pbxproj.NewStore(fs).Load("iSH.xcodeproj")
	require.NoError(t, err)
	return snapshot(m)
}

func flatAddList() *requests.List {
	names := []string{
		"XREFManager.h", "XREFManager.m",
		"SyntaxHighlighter.h", "SyntaxHighlighter.m",
		"MachOParser.h", "MachOParser.m",
		"SymbolResolver.h", "SymbolResolver.m",
		"StackFrameTracker.h", "StackFrameTracker.m",
		"BasicBlock.h", "BasicBlock.m",
		"CFGBuilder.h", "CFGBuilder.m",
	}
	l := requests.AddList(names, "", "")
	l.Source = "add-files.yaml"
	return l
}

func tags(recs []Record) []string {
	var out []string
	for _, r := range recs {
		out = append(out, fmt.Sprintf("%s %s", r.Tag, r.Name))
	}
	return out
}

func TestRun_EndToEndAndRerun(t *testing.T) {
	fs := fixtureFS(t, nil)

	d := New(pbxproj.NewStore(fs), defaultOptions())
	res, err := d.Run([]*requests.List{flatAddList()})
	require.NoError(t, err)
	assert.Equal(t, StateSaved, res.State)
	assert.Equal(t, StateSaved, d.State())
	assert.True(t, res.Saved)

	assert.Equal(t, []string{
		"Already-exists XREFManager.h", "Already-exists XREFManager.m",
		"Added-to-project SyntaxHighlighter.h", "Added-to-sources SyntaxHighlighter.m",
		"Added-to-project MachOParser.h", "Added-to-sources MachOParser.m",
		"Added-to-project SymbolResolver.h", "Added-to-sources SymbolResolver.m",
		"Added-to-project StackFrameTracker.h", "Added-to-sources StackFrameTracker.m",
		"Added-to-project BasicBlock.h", "Added-to-sources BasicBlock.m",
		"Added-to-project CFGBuilder.h", "Added-to-sources CFGBuilder.m",
	}, tags(res.Records))
	assert.Equal(t, 6, res.Count(TagAddedToSources))
	assert.Equal(t, 6, res.Count(TagAddedToProject))
	assert.Equal(t, 2, res.Count(TagAlreadyExists))

	afterFirst := readManifest(t, fs)
	snap := loadSnapshot(t, fs)
	assert.Contains(t, snap, "phase iSH/Sources: main.m,AppDelegate.m,XREFManager.m,SyntaxHighlighter.m,MachOParser.m,SymbolResolver.m,StackFrameTracker.m,BasicBlock.m,CFGBuilder.m")
	assert.Contains(t, snap, "file app/CFGBuilder.h path=CFGBuilder.h")

	again, err := New(pbxproj.NewStore(fs), defaultOptions()).Run([]*requests.List{flatAddList()})
	require.NoError(t, err)
	assert.Equal(t, 14, again.Count(TagAlreadyExists))
	assert.Equal(t, afterFirst, readManifest(t, fs), "re-run must not change the manifest")
}

func TestRun_SubgroupAdd(t *testing.T) {
	fs := fixtureFS(t, nil)
	list := &requests.List{Source: "subgroups.yaml", Requests: []requests.Request{
		{Op: requests.OpAdd, Name: "MachOParser.h", Path: "app/MachOParser.h", Group: "Disassembler"},
		{Op: requests.OpAdd, Name: "MachOParser.m", Path: "app/MachOParser.m", Group: "Disassembler"},
		{Op: requests.OpAdd, Name: "CFGBuilder.m", Path: "app/CFGBuilder.m", Group: "Analysis"},
	}}

	res, err := New(pbxproj.NewStore(fs), defaultOptions()).Run([]*requests.List{list})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "app/Disassembler", res.Records[0].Group)
	assert.Equal(t, TagAddedToProject, res.Records[0].Tag)
	assert.Equal(t, TagAddedToSources, res.Records[1].Tag)
	assert.Equal(t, "app/Analysis", res.Records[2].Group)

	snap := loadSnapshot(t, fs)
	assert.Contains(t, snap, "group app/Disassembler")
	assert.Contains(t, snap, "file app/Disassembler/MachOParser.m path=app/MachOParser.m")
	assert.Contains(t, snap, "file app/Analysis/CFGBuilder.m path=app/CFGBuilder.m")
}

func TestRun_Fix(t *testing.T) {
	fs := fixtureFS(t, nil)
	list := requests.FixList([]string{"XREFManager.h", "SyntaxHighlighter.h"}, "")
	glob := requests.FixList([]string{"XREF*.m"}, "")
	missingGroup := requests.FixList([]string{"X.h"}, "Nowhere")

	res, err := New(pbxproj.NewStore(fs), defaultOptions()).Run([]*requests.List{list, glob, missingGroup})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Fixed XREFManager.h", "Not-found SyntaxHighlighter.h", "Fixed XREFManager.m", "Not-found X.h",
	}, tags(res.Records))
	assert.Equal(t, "app/XREFManager.h", res.Records[0].OldPath)
	assert.Equal(t, "XREFManager.h", res.Records[0].NewPath)

	snap := loadSnapshot(t, fs)
	assert.Contains(t, snap, "file app/XREFManager.h path=XREFManager.h")
	assert.Contains(t, snap, "file app/XREFManager.m path=XREFManager.m")
	assert.NotContains(t, snap, "group app/Nowhere")
}

func TestRun_ExistingReferenceJoinsPhase(t *testing.T) {
	fs := fixtureFS(t, func(s string) string {
		return strings.Replace(s, "\t\t\t\tBB00000000000000000000B3 /* XREFManager.m in Sources */,\n", "", 1)
	})
	list := requests.AddList([]string{"XREFManager.m"}, "", "")

	res, err := New(pbxproj.NewStore(fs), defaultOptions()).Run([]*requests.List{list})
	require.NoError(t, err)
	assert.Equal(t, []string{"Added-to-sources XREFManager.m"}, tags(res.Records))
	assert.Contains(t, loadSnapshot(t, fs), "phase iSH/Sources: main.m,AppDelegate.m,XREFManager.m")
}

func TestRun_PlannedGroupHoldsName(t *testing.T) {
	fs := fixtureFS(t, nil)
	list := &requests.List{Source: "g", Requests: []requests.Request{
		{Op: requests.OpAdd, Name: "y.m", Group: "Sub"},
		{Op: requests.OpAdd, Name: "Sub"},
	}}

	res, err := New(pbxproj.NewStore(fs), defaultOptions()).Run([]*requests.List{list})
	require.NoError(t, err)
	assert.Equal(t, []string{"Added-to-sources y.m", "Already-exists Sub"}, tags(res.Records))

	snap := loadSnapshot(t, fs)
	assert.Contains(t, snap, "group app/Sub")
	assert.Contains(t, snap, "file app/Sub/y.m path=y.m")
	assert.NotContains(t, snap, "file app/Sub path=Sub")
}

func TestRun_FixExactNameThatIsNotAPattern(t *testing.T) {
	fs := fixtureFS(t, nil)
	list := &requests.List{Source: "h", Requests: []requests.Request{
		{Op: requests.OpAdd, Name: "a[b.m", Path: "old/a[b.m"},
		{Op: requests.OpFix, Name: "a[b.m"},
	}}

	res, err := New(pbxproj.NewStore(fs), defaultOptions()).Run([]*requests.List{list})
	require.NoError(t, err)
	assert.Equal(t, []string{"Added-to-sources a[b.m", "Fixed a[b.m"}, tags(res.Records))
	assert.Equal(t, "old/a[b.m", res.Records[1].OldPath)
	assert.Contains(t, loadSnapshot(t, fs), "file app/a[b.m path=a[b.m")
}

func TestRun_FailFastOnLookup(t *testing.T) {
	tests := []struct {
		name  string
		lists []*requests.List
		opts  func(*Options)
	}{
		{"missing target", []*requests.List{flatAddList()}, func(o *Options) { o.Target = "Nope" }},
		{"missing group", []*requests.List{flatAddList()}, func(o *Options) { o.Group = "Sources" }},
		{"missing phase", []*requests.List{flatAddList()}, func(o *Options) { o.Phase = "Resources" }},
		{"second list bad", []*requests.List{flatAddList(), {Source: "b", Target: "Nope", Requests: flatAddList().Requests}}, nil},
		{"subgroup is a file", []*requests.List{{Source: "c", Requests: []requests.Request{
			{Op: requests.OpAdd, Name: "A.m"},
			{Op: requests.OpAdd, Name: "B.m", Group: "main.m"},
		}}}, nil},
		{"subgroup added as a file", []*requests.List{{Source: "d", Requests: []requests.Request{
			{Op: requests.OpAdd, Name: "Sub"},
			{Op: requests.OpAdd, Name: "x.m", Group: "Sub"},
		}}}, nil},
		{"subgroup added as a file by an earlier list", []*requests.List{
			{Source: "e", Requests: []requests.Request{{Op: requests.OpAdd, Name: "Sub", Group: "Outer"}}},
			{Source: "f", Requests: []requests.Request{{Op: requests.OpAdd, Name: "x.m", Group: "Outer/Sub/Deeper"}}},
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := fixtureFS(t, nil)
			before := readManifest(t, fs)
			opts := defaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}

			d := New(pbxproj.NewStore(fs), opts)
			pristine := loadSnapshot(t, fs)
			res, err := d.Run(tt.lists)
			require.Error(t, err)

			var derr *Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, KindLookup, derr.Kind)
			assert.Equal(t, StateLoaded, derr.Stage)
			assert.Equal(t, StateAborted, res.State)
			assert.Equal(t, exitcode.GeneralError, exitcode.ForError(err))
			assert.Empty(t, res.Records)

			if diff := cmp.Diff(pristine, snapshot(d.Manifest())); diff != "" {
				t.Errorf("manifest mutated before abort (-want +got):\n%s", diff)
			}
			assert.Equal(t, before, readManifest(t, fs))
		})
	}
}

func TestRun_InvalidPatternIsConfigError(t *testing.T) {
	fs := fixtureFS(t, nil)
	_, err := New(pbxproj.NewStore(fs), defaultOptions()).Run([]*requests.List{requests.FixList([]string{"[X.h"}, "")})
	require.Error(t, err)
	var rerr *requests.Error
	assert.ErrorAs(t, err, &rerr)
	assert.Equal(t, exitcode.ConfigError, exitcode.ForError(err))
}

func TestRun_LoadFailures(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		fs := memfs.New()
		require.NoError(t, util.WriteFile(fs, manifestFile, []byte("{ objects = "), 0o644))
		_, err := New(pbxproj.NewStore(fs), defaultOptions()).Run(nil)
		var derr *Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, KindParse, derr.Kind)
		assert.Equal(t, StateStart, derr.Stage)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := New(pbxproj.NewStore(memfs.New()), defaultOptions()).Run(nil)
		var derr *Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, KindIO, derr.Kind)
		assert.True(t, pbxproj.IsNotExist(err))
	})
}

// failingStore loads for real and fails every save.
type failingStore struct {
	*pbxproj.Store
	err   error
	saves int
}

func (s *failingStore) Save(*manifest.Manifest) error {
	s.saves++
	return s.err
}

func TestRun_SaveFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"io", errors.New("disk full"), KindIO},
		{"serialization", &pbxproj.SerializationError{Location: manifestFile, Err: errors.New("dangling")}, KindSerialization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := fixtureFS(t, nil)
			before := readManifest(t, fs)
			store := &failingStore{Store: pbxproj.NewStore(fs), err: tt.err}

			res, err := New(store, defaultOptions()).Run([]*requests.List{flatAddList()})
			require.Error(t, err)
			var derr *Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.kind, derr.Kind)
			assert.Equal(t, StateMutating, derr.Stage)
			assert.Equal(t, StateAborted, res.State)
			assert.False(t, res.Saved)
			assert.Equal(t, 1, store.saves)
			assert.Equal(t, before, readManifest(t, fs))
		})
	}
}

func TestRun_DryRun(t *testing.T) {
	fs := fixtureFS(t, nil)
	before := readManifest(t, fs)
	opts := defaultOptions()
	opts.DryRun = true

	res, err := New(pbxproj.NewStore(fs), opts).Run([]*requests.List{flatAddList()})
	require.NoError(t, err)
	assert.Equal(t, StateMutating, res.State)
	assert.False(t, res.Saved)
	assert.Equal(t, 6, res.Count(TagAddedToSources))
	assert.Equal(t, before, readManifest(t, fs))
}

// orphanStore loads for real, then registers a file reference in the Sources
// phase that no group owns, so the manifest can no longer be serialized.
type orphanStore struct {
	*pbxproj.Store
	saves int
}

func (s *orphanStore) Load(location string) (*manifest.Manifest, error) {
	m, err := s.Store.Load(location)
	if err != nil {
		return nil, err
	}
	t, _ := m.Target("iSH")
	phase, _ := t.Phase("Sources")
	phase.Adopt(manifest.NewFileReference("", "Orphan.m", "Orphan.m"))
	return m, nil
}

func (s *orphanStore) Save(m *manifest.Manifest) error {
	s.saves++
	return s.Store.Save(m)
}

func TestRun_DryRunReportsSerializationError(t *testing.T) {
	fs := fixtureFS(t, nil)
	before := readManifest(t, fs)
	opts := defaultOptions()
	opts.DryRun = true
	store := &orphanStore{Store: pbxproj.NewStore(fs)}

	res, err := New(store, opts).Run([]*requests.List{flatAddList()})
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindSerialization, derr.Kind)
	assert.Equal(t, StateMutating, derr.Stage)
	assert.Equal(t, StateAborted, res.State)
	assert.False(t, res.Saved)
	assert.Zero(t, store.saves)
	assert.Contains(t, err.Error(), "Orphan.m")
	assert.Equal(t, before, readManifest(t, fs))
}

func TestRun_Twice(t *testing.T) {
	fs := fixtureFS(t, nil)
	d := New(pbxproj.NewStore(fs), defaultOptions())
	_, err := d.Run(nil)
	require.NoError(t, err)
	_, err = d.Run(nil)
	assert.Error(t, err)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "mutating", StateMutating.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.Equal(t, "serialization", KindSerialization.String())
	err := &Error{Kind: KindLookup, Stage: StateLoaded, Err: errors.New(`could not find target "Nope"`)}
	assert.Equal(t, `lookup error while loaded: could not find target "Nope"`, err.Error())
}

// memStore serves one in-memory manifest and counts saves.
type memStore struct {
	m     *manifest.Manifest
	saves int
}

func (s *memStore) Load(string) (*manifest.Manifest, error) { return s.m, nil }
func (s *memStore) Save(*manifest.Manifest) error           { s.saves++; return nil }

func TestRun_InMemoryEndToEnd(t *testing.T) {
	m := manifest.New()
	app := manifest.NewGroup("", "app", "")
	m.Main.Adopt(app)
	app.Adopt(manifest.NewFileReference("", "", "sub/old/X.h"))
	sources := manifest.NewBuildPhase("", "Sources")
	m.Targets = append(m.Targets, &manifest.Target{Name: "T", Phases: []*manifest.BuildPhase{sources}})
	store := &memStore{m: m}
	opts := Options{Group: "app", Target: "T"}

	list := requests.AddList([]string{"Foo.h", "Foo.m"}, "", "")
	fix := requests.FixList([]string{"X.h"}, "")

	res, err := New(store, opts).Run([]*requests.List{list, fix})
	require.NoError(t, err)
	assert.Equal(t, []string{"Added-to-project Foo.h", "Added-to-sources Foo.m", "Fixed X.h"}, tags(res.Records))
	assert.Equal(t, 1, store.saves)

	var children []string
	for _, n := range app.Children() {
		children = append(children, n.DisplayName())
	}
	assert.Equal(t, []string{"X.h", "Foo.h", "Foo.m"}, children)
	require.Len(t, sources.Members(), 1)
	assert.Equal(t, "Foo.m", sources.Members()[0].DisplayName())
	assert.Equal(t, "X.h", app.Files()[0].Path())
	assert.Same(t, app, app.Files()[0].Parent())

	again, err := New(store, opts).Run([]*requests.List{list})
	require.NoError(t, err)
	assert.Equal(t, []string{"Already-exists Foo.h", "Already-exists Foo.m"}, tags(again.Records))
	assert.Len(t, sources.Members(), 1)
	assert.Equal(t, 2, store.saves)
}
