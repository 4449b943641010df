package gentest

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/mod/modfile"

	"alma.local/roundtrip/internal/targets"
)

const generatedSrc = `package user

import (
	"io"

	"github.com/TarsCloud/TarsGo/tars/protocol/codec"
)

type User struct {
	ID   uint32
	Name string
}

func (st *User) WriteTo(_os *codec.Buffer) error  { return nil }
func (st *User) ReadFrom(_is *codec.Reader) error { return nil }

type Block struct{ Slot uint64 }

func (b *Block) MarshalSSZ() ([]byte, error) { return nil, nil }
func (b *Block) UnmarshalSSZ(buf []byte) error { return nil }

type Plain struct{ A int }

type Box[T any] struct{ V T }

type Alias = Plain

type hidden struct{}

type Stream struct{}

func (s *Stream) WriteTo(w io.Writer) (int64, error) { return 0, nil }
`

const messageSrc = `package user

type Msg struct{ state int }

func (x *Msg) ProtoReflect() protoreflect.Message { return nil }
`

func writePackage(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
}

func newModule(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePackage(t, root, map[string]string{"go.mod": "module example.com/gen\n\ngo 1.22\n"})
	writePackage(t, filepath.Join(root, "user"), map[string]string{
		"user.go":      generatedSrc,
		"message.go":   messageSrc,
		"user_test.go": "package user\n\ntype Ignored struct{}\n",
	})
	writePackage(t, filepath.Join(root, "plain"), map[string]string{
		"plain.go": "package plain\n\ntype Config struct{ Name string }\n",
	})
	writePackage(t, filepath.Join(root, "testdata", "user"), map[string]string{"user.go": generatedSrc})
	return root
}

func typeNames(u Unit) []string {
	names := make([]string, len(u.Types))
	for i, t := range u.Types {
		names[i] = t.Name
	}
	return names
}

func TestScan(t *testing.T) {
	root := newModule(t)
	unit, err := Scan(filepath.Join(root, "user"))
	require.NoError(t, err)

	assert.Equal(t, "user", unit.Package)
	assert.Equal(t, []string{"Block", "Msg", "User"}, typeNames(unit))
	assert.Equal(t, CapSSZ, unit.Types[0].Capability)
	assert.Equal(t, CapProtobuf, unit.Types[1].Capability)
	assert.Equal(t, CapTARS, unit.Types[2].Capability)
	for _, typ := range unit.Types {
		assert.Empty(t, typ.Codec)
	}
}

func TestScanFallback(t *testing.T) {
	root := newModule(t)
	unit, err := Scan(filepath.Join(root, "user"), WithFallback("msgpack"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Block", "Msg", "Plain", "Stream", "User"}, typeNames(unit))
	assert.Equal(t, CapFallback, unit.Types[2].Capability)
	assert.Equal(t, "msgpack", unit.Types[2].Codec)
}

func TestScanNoTypes(t *testing.T) {
	root := newModule(t)
	_, err := Scan(filepath.Join(root, "plain"))
	require.ErrorIs(t, err, ErrNoTypes)

	_, err = Scan(filepath.Join(root, "missing"))
	require.Error(t, err)
}

func TestScanRejectsBrokenSource(t *testing.T) {
	dir := t.TempDir()
	writePackage(t, dir, map[string]string{"bad.go": "package bad\n\nfunc {"})
	_, err := Scan(dir)
	require.ErrorContains(t, err, "failed to parse")
}

func TestRender(t *testing.T) {
	unit := Unit{
		Dir:     "user",
		Package: "user",
		Types: []Type{
			{Name: "Block", GoType: "Block", Capability: CapSSZ},
			{Name: "Plain", GoType: "Plain", Capability: CapFallback, Codec: "msgpack"},
			{Name: "User", GoType: "User", Capability: CapTARS},
		},
	}
	src, err := Render(unit)
	require.NoError(t, err)
	out := string(src)

	assert.True(t, strings.HasPrefix(out, "// Code generated by roundtrip -gentest. DO NOT EDIT."))
	assert.Contains(t, out, "func TestRoundTrip(t *testing.T)")
	assert.Contains(t, out, `rtmsgpack "alma.local/roundtrip/codec/msgpack"`)
	assert.Contains(t, out, "r := rtregistry.New()")
	assert.Contains(t, out, "rtregistry.WithCodec(rtmsgpack.NewCodec())")
	assert.Contains(t, out, "new(Block)")
	assert.Contains(t, out, "rtharness.Run(t, r)")

	block := strings.Index(out, `MustRegister("Block"`)
	plain := strings.Index(out, `MustRegister("Plain"`)
	user := strings.Index(out, `MustRegister("User"`)
	require.Positive(t, block)
	assert.Less(t, block, plain)
	assert.Less(t, plain, user)
	assert.Less(t, user, strings.Index(out, "rtharness.Run"))

	f, err := parser.ParseFile(token.NewFileSet(), "gen_test.go", src, parser.ImportsOnly)
	require.NoError(t, err)
	assert.Equal(t, "user", f.Name.Name)
	assert.Len(t, f.Imports, 4)
}

func TestRenderRejectsEmptyUnits(t *testing.T) {
	_, err := Render(Unit{Package: "user"})
	require.ErrorIs(t, err, ErrNoTypes)

	_, err = Render(Unit{Types: []Type{{Name: "A", GoType: "A"}}})
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	root := newModule(t)
	units, err := Generate(root)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, filepath.Join(root, "user"), units[0].Dir)

	src, err := os.ReadFile(filepath.Join(root, "user", FileName))
	require.NoError(t, err)
	assert.Contains(t, string(src), `MustRegister("Msg"`)

	assert.NoFileExists(t, filepath.Join(root, "plain", FileName))
	assert.NoFileExists(t, filepath.Join(root, "testdata", "user", FileName))

	gomod, err := os.ReadFile(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	assert.NotContains(t, string(gomod), moduleImport, "go.mod is left alone without a tool module")
}

func TestGenerateWiresToolModule(t *testing.T) {
	root := newModule(t)
	tool := t.TempDir()
	_, err := Generate(root, WithToolModule(tool))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	f, err := modfile.Parse("go.mod", data, nil)
	require.NoError(t, err)
	assert.Equal(t, "example.com/gen", f.Module.Mod.Path)

	require.Len(t, f.Require, 1)
	assert.Equal(t, moduleImport, f.Require[0].Mod.Path)
	require.Len(t, f.Replace, 1)
	assert.Equal(t, moduleImport, f.Replace[0].Old.Path)
	assert.Equal(t, tool, f.Replace[0].New.Path)

	// A second run leaves a single require and replace.
	_, err = Generate(root, WithToolModule(tool))
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(root, "go.mod"))
	require.NoError(t, err)
	f, err = modfile.Parse("go.mod", data, nil)
	require.NoError(t, err)
	assert.Len(t, f.Require, 1)
	assert.Len(t, f.Replace, 1)
}

func TestWireModuleSkipsToolItself(t *testing.T) {
	dir := t.TempDir()
	src := "module " + moduleImport + "\n\ngo 1.22\n"
	writePackage(t, dir, map[string]string{"go.mod": src})
	require.NoError(t, WireModule(dir, t.TempDir()))
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	require.NoError(t, err)
	assert.Equal(t, src, string(data))
}

func TestGenerateToolModuleNeedsGoMod(t *testing.T) {
	root := t.TempDir()
	writePackage(t, filepath.Join(root, "user"), map[string]string{"user.go": generatedSrc})
	_, err := Generate(root, WithToolModule(t.TempDir()))
	require.ErrorContains(t, err, "no go.mod")
}

func TestGenerateWithTargets(t *testing.T) {
	root := newModule(t)
	units, err := Generate(root, WithTargets([]targets.RoundTripTarget{
		{Name: "Settings", ImportPath: "example.com/gen/plain", Type: "Config", Codec: "msgpack"},
		{Name: "Account", ImportPath: "example.com/gen/user", Type: "User"},
	}))
	require.NoError(t, err)
	require.Len(t, units, 2)

	byPkg := map[string]Unit{}
	for _, u := range units {
		byPkg[u.Package] = u
	}
	assert.Equal(t, []string{"Settings"}, typeNames(byPkg["plain"]))
	assert.Equal(t, "msgpack", byPkg["plain"].Types[0].Codec)
	assert.Equal(t, []string{"Account"}, typeNames(byPkg["user"]))
	assert.Equal(t, "User", byPkg["user"].Types[0].GoType)
}

func TestGenerateTargetErrors(t *testing.T) {
	root := newModule(t)

	_, err := Generate(root, WithTargets([]targets.RoundTripTarget{
		{Name: "Ghost", ImportPath: "example.com/gen/user", Type: "Ghost"},
	}))
	require.ErrorContains(t, err, "type Ghost not found")

	_, err = Generate(root, WithTargets([]targets.RoundTripTarget{
		{Name: "Config", ImportPath: "example.com/gen/plain", Type: "Config"},
	}))
	require.ErrorContains(t, err, "no encoder")

	_, err = Generate(root, WithFallback("xml"))
	require.ErrorContains(t, err, `unknown codec "xml"`)
}

func TestGenerateNothing(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]string{"plain.go": "package plain\n\ntype Config struct{}\n"})
	_, err := Generate(root)
	require.ErrorIs(t, err, ErrNoTypes)
}
