// Package gentest writes one round-trip test unit per generated package.
//
// Scan finds the candidate types in a package directory, Render turns them
// into a _test.go file that registers each type and hands the registry to
// harness.Run, and Generate does both for every package under a root.
package gentest

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"go.uber.org/zap"

	"alma.local/roundtrip/internal/targets"
)

// ErrNoTypes is returned when a scan finds nothing to check.
var ErrNoTypes = errors.New("gentest: no candidate types")

// Capabilities a scanned type can carry.
const (
	CapTARS     = "tars"
	CapSSZ      = "ssz"
	CapProtobuf = "protobuf"
	// CapFallback marks plain structs checked through the fallback codec.
	CapFallback = "fallback"
)

// Type is one candidate found by Scan.
type Type struct {
	// Name labels the subtest. It defaults to the Go type name.
	Name string
	// GoType is the type identifier in the scanned package.
	GoType     string
	Capability string
	// Codec names a codec that overrides detection, or is empty.
	Codec string
}

// Unit is the input to Render.
type Unit struct {
	Dir     string
	Package string
	Types   []Type
}

type Option func(*options)

type options struct {
	fallback string
	targets  []targets.RoundTripTarget
	toolDir  string
	logger   *zap.Logger
}

// WithFallback includes every exported struct, checking those without a
// generated encoder through the named codec.
func WithFallback(codecName string) Option {
	return func(o *options) { o.fallback = codecName }
}

// WithTargets restricts Generate to the listed types.
func WithTargets(ts []targets.RoundTripTarget) Option {
	return func(o *options) { o.targets = ts }
}

// WithToolModule points the generated module's go.mod at the roundtrip
// checkout in dir so the emitted test units build.
func WithToolModule(dir string) Option {
	return func(o *options) { o.toolDir = dir }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// methodSet maps a method name to the type name of its first parameter.
type methodSet map[string]string

// Scan parses the non-test Go files in dir and returns its candidate types
// sorted by name.
func Scan(dir string, opts ...Option) (Unit, error) {
	return scan(dir, newOptions(opts), false)
}

// scan with all set keeps every exported struct, leaving Capability empty
// for those without an encoder.
func scan(dir string, o *options, all bool) (Unit, error) {
	unit := Unit{Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return unit, fmt.Errorf("gentest: %w", err)
	}

	var structs []string
	methods := make(map[string]methodSet)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		src, err := os.ReadFile(path)
		if err != nil {
			return unit, fmt.Errorf("gentest: %w", err)
		}
		f, err := decorator.Parse(src)
		if err != nil {
			return unit, fmt.Errorf("gentest: failed to parse %s: %w", path, err)
		}
		switch {
		case unit.Package == "":
			unit.Package = f.Name.Name
		case unit.Package != f.Name.Name:
			return unit, fmt.Errorf("gentest: %s: found packages %s and %s", dir, unit.Package, f.Name.Name)
		}
		collect(f, &structs, methods)
	}

	for _, name := range structs {
		capability := classify(methods[name])
		t := Type{Name: name, GoType: name, Capability: capability}
		switch {
		case capability != "":
		case o.fallback != "":
			t.Capability, t.Codec = CapFallback, o.fallback
		case all:
		default:
			o.logger.Debug("skipping type without encoder", zap.String("dir", dir), zap.String("type", name))
			continue
		}
		unit.Types = append(unit.Types, t)
	}
	sort.Slice(unit.Types, func(i, j int) bool { return unit.Types[i].Name < unit.Types[j].Name })

	if len(unit.Types) == 0 {
		return unit, fmt.Errorf("%w in %s", ErrNoTypes, dir)
	}
	return unit, nil
}

func collect(f *dst.File, structs *[]string, methods map[string]methodSet) {
	dst.Inspect(f, func(n dst.Node) bool {
		switch n := n.(type) {
		case *dst.TypeSpec:
			if _, ok := n.Type.(*dst.StructType); !ok {
				return false
			}
			if token.IsExported(n.Name.Name) && n.TypeParams == nil && !n.Assign {
				*structs = append(*structs, n.Name.Name)
			}
			return false
		case *dst.FuncDecl:
			recv := receiverName(n)
			if recv == "" {
				return false
			}
			if methods[recv] == nil {
				methods[recv] = make(methodSet)
			}
			methods[recv][n.Name.Name] = firstParamType(n.Type)
			return false
		}
		return true
	})
}

// receiverName returns T for methods on T or *T, and "" otherwise.
func receiverName(fn *dst.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) != 1 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	if star, ok := expr.(*dst.StarExpr); ok {
		expr = star.X
	}
	if id, ok := expr.(*dst.Ident); ok {
		return id.Name
	}
	return ""
}

func firstParamType(ft *dst.FuncType) string {
	if ft.Params == nil || len(ft.Params.List) == 0 {
		return ""
	}
	expr := ft.Params.List[0].Type
	if star, ok := expr.(*dst.StarExpr); ok {
		expr = star.X
	}
	switch e := expr.(type) {
	case *dst.Ident:
		return e.Name
	case *dst.SelectorExpr:
		return e.Sel.Name
	case *dst.ArrayType:
		if id, ok := e.Elt.(*dst.Ident); ok && e.Len == nil {
			return "[]" + id.Name
		}
	}
	return ""
}

func classify(ms methodSet) string {
	if ms == nil {
		return ""
	}
	if _, ok := ms["ProtoReflect"]; ok {
		return CapProtobuf
	}
	if ms["WriteTo"] == "Buffer" && ms["ReadFrom"] == "Reader" {
		return CapTARS
	}
	if _, ok := ms["MarshalSSZ"]; ok && ms["UnmarshalSSZ"] == "[]byte" {
		return CapSSZ
	}
	return ""
}
