package gentest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"alma.local/roundtrip/codec/detect"
	"alma.local/roundtrip/internal/targets"
)

// Generate writes a test unit into every package under root that has
// candidate types. With targets configured, only the listed types of the
// listed packages are emitted.
func Generate(root string, opts ...Option) ([]Unit, error) {
	o := newOptions(opts)
	if err := validateCodecs(o); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("gentest: %w", err)
	}
	modDir, modPath, err := findModule(root)
	if err != nil {
		return nil, err
	}
	byImport := targets.ByImportPath(o.targets)

	var units []Unit
	err = filepath.WalkDir(root, func(dir string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if dir != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}

		importPath := importPathOf(modDir, modPath, dir)
		var unit Unit
		if len(o.targets) > 0 {
			want, ok := byImport[importPath]
			if !ok {
				return nil
			}
			unit, err = selectTargets(dir, o, want)
		} else {
			unit, err = scan(dir, o, false)
		}
		if errors.Is(err, ErrNoTypes) {
			return nil
		}
		if err != nil {
			return err
		}

		src, err := Render(unit)
		if err != nil {
			return err
		}
		out := filepath.Join(dir, FileName)
		if err := os.WriteFile(out, src, 0o644); err != nil {
			return fmt.Errorf("gentest: write %s: %w", out, err)
		}
		o.logger.Info("wrote test unit",
			zap.String("package", importPath),
			zap.Int("types", len(unit.Types)),
			zap.String("file", out))
		units = append(units, unit)
		return nil
	})
	if err != nil {
		return units, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoTypes, root)
	}
	if o.toolDir != "" {
		if modPath == "" {
			return units, fmt.Errorf("gentest: no go.mod above %s to wire %s into", root, moduleImport)
		}
		if err := WireModule(modDir, o.toolDir); err != nil {
			return units, err
		}
		o.logger.Info("wired tool module", zap.String("module", modPath), zap.String("tool", o.toolDir))
	}
	return units, nil
}

func selectTargets(dir string, o *options, want []targets.RoundTripTarget) (Unit, error) {
	scanned, err := scan(dir, o, true)
	if err != nil {
		return scanned, err
	}
	unit := Unit{Dir: scanned.Dir, Package: scanned.Package}
	for _, t := range want {
		i := slices.IndexFunc(scanned.Types, func(st Type) bool { return st.GoType == t.Type })
		if i < 0 {
			return unit, fmt.Errorf("gentest: target %s: type %s not found in %s", t.Name, t.Type, dir)
		}
		typ := scanned.Types[i]
		typ.Name = t.Name
		if t.Codec != "" {
			typ.Codec = t.Codec
		}
		if typ.Capability == "" && typ.Codec == "" {
			return unit, fmt.Errorf("gentest: target %s: type %s has no encoder and no codec is configured", t.Name, t.Type)
		}
		unit.Types = append(unit.Types, typ)
	}
	slices.SortFunc(unit.Types, func(a, b Type) int { return strings.Compare(a.Name, b.Name) })
	return unit, nil
}

func validateCodecs(o *options) error {
	known := detect.Names()
	check := func(name, where string) error {
		if name != "" && !slices.Contains(known, name) {
			return fmt.Errorf("gentest: %s: unknown codec %q (known: %s)", where, name, strings.Join(known, ", "))
		}
		return nil
	}
	if err := check(o.fallback, "fallback"); err != nil {
		return err
	}
	for _, t := range o.targets {
		if err := check(t.Codec, "target "+t.Name); err != nil {
			return err
		}
	}
	return nil
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// findModule walks up from dir to the nearest go.mod. Without one, import
// paths are the slash-separated paths relative to dir.
func findModule(dir string) (modDir, modPath string, err error) {
	for cur := dir; ; {
		data, err := os.ReadFile(filepath.Join(cur, "go.mod"))
		if err == nil {
			return cur, modfile.ModulePath(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("gentest: %w", err)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir, "", nil
		}
		cur = parent
	}
}

func importPathOf(modDir, modPath, dir string) string {
	rel, err := filepath.Rel(modDir, dir)
	if err != nil || rel == "." {
		return modPath
	}
	if modPath == "" {
		return filepath.ToSlash(rel)
	}
	return path.Join(modPath, filepath.ToSlash(rel))
}
