package gentest

import (
	"bytes"
	"fmt"
	"go/token"
	"sort"
	"strconv"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/dstutil"
)

// FileName is the name of the generated test unit in each package.
const FileName = "roundtrip_gen_test.go"

const (
	moduleImport   = "alma.local/roundtrip"
	harnessAlias   = "rtharness"
	registryAlias  = "rtregistry"
	codecAliasBase = "rt"
	registryVar    = "r"
)

func call(pkg, fn string, args ...dst.Expr) *dst.CallExpr {
	return &dst.CallExpr{
		Fun:  &dst.SelectorExpr{X: dst.NewIdent(pkg), Sel: dst.NewIdent(fn)},
		Args: args,
	}
}

func str(s string) *dst.BasicLit {
	return &dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func importSpec(alias, path string) *dst.ImportSpec {
	spec := &dst.ImportSpec{Path: str(path)}
	if alias != "" {
		spec.Name = dst.NewIdent(alias)
	}
	return spec
}

// registration builds r.MustRegister("Name", func() any { return new(T) }, ...).
func registration(t Type) dst.Stmt {
	factory := &dst.FuncLit{
		Type: &dst.FuncType{
			Params:  &dst.FieldList{},
			Results: &dst.FieldList{List: []*dst.Field{{Type: dst.NewIdent("any")}}},
		},
		Body: &dst.BlockStmt{List: []dst.Stmt{
			&dst.ReturnStmt{Results: []dst.Expr{
				&dst.CallExpr{Fun: dst.NewIdent("new"), Args: []dst.Expr{dst.NewIdent(t.GoType)}},
			}},
		}},
	}
	args := []dst.Expr{str(t.Name), factory}
	if t.Codec != "" {
		args = append(args, call(registryAlias, "WithCodec", call(codecAliasBase+t.Codec, "NewCodec")))
	}
	stmt := &dst.ExprStmt{X: call(registryVar, "MustRegister", args...)}
	stmt.Decs.Before = dst.NewLine
	return stmt
}

// Render returns the gofmt'ed source of u's test unit.
func Render(u Unit) ([]byte, error) {
	if u.Package == "" {
		return nil, fmt.Errorf("gentest: unit for %s has no package name", u.Dir)
	}
	if len(u.Types) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTypes, u.Dir)
	}

	codecs := map[string]bool{}
	for _, t := range u.Types {
		if t.Codec != "" {
			codecs[t.Codec] = true
		}
	}
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := []dst.Spec{importSpec("", "testing")}
	first := importSpec(harnessAlias, moduleImport+"/harness")
	first.Decs.Before = dst.EmptyLine
	specs = append(specs, first)
	for _, name := range names {
		specs = append(specs, importSpec(codecAliasBase+name, moduleImport+"/codec/"+name))
	}
	specs = append(specs, importSpec(registryAlias, moduleImport+"/registry"))

	body := &dst.BlockStmt{List: []dst.Stmt{
		&dst.AssignStmt{
			Lhs: []dst.Expr{dst.NewIdent(registryVar)},
			Tok: token.DEFINE,
			Rhs: []dst.Expr{call(registryAlias, "New")},
		},
		&dst.ExprStmt{X: call(harnessAlias, "Run", dst.NewIdent("t"), dst.NewIdent(registryVar))},
	}}
	body.List[1].Decorations().Before = dst.EmptyLine

	f := &dst.File{
		Name: dst.NewIdent(u.Package),
		Decls: []dst.Decl{
			&dst.GenDecl{Tok: token.IMPORT, Lparen: true, Specs: specs},
			&dst.FuncDecl{
				Name: dst.NewIdent("TestRoundTrip"),
				Type: &dst.FuncType{
					Params: &dst.FieldList{List: []*dst.Field{{
						Names: []*dst.Ident{dst.NewIdent("t")},
						Type:  &dst.StarExpr{X: &dst.SelectorExpr{X: dst.NewIdent("testing"), Sel: dst.NewIdent("T")}},
					}}},
				},
				Body: body,
			},
		},
	}
	f.Decs.Start.Append("// Code generated by roundtrip -gentest. DO NOT EDIT.", "\n")

	// Registrations go right after the registry is created. Inserting in
	// reverse keeps them in name order.
	dstutil.Apply(f, nil, func(c *dstutil.Cursor) bool {
		assign, ok := c.Node().(*dst.AssignStmt)
		if !ok || c.Index() < 0 || len(assign.Lhs) != 1 {
			return true
		}
		if id, ok := assign.Lhs[0].(*dst.Ident); !ok || id.Name != registryVar {
			return true
		}
		for i := len(u.Types) - 1; i >= 0; i-- {
			c.InsertAfter(registration(u.Types[i]))
		}
		return false
	})

	var buf bytes.Buffer
	if err := decorator.Fprint(&buf, f); err != nil {
		return nil, fmt.Errorf("gentest: render %s: %w", u.Dir, err)
	}
	return buf.Bytes(), nil
}
