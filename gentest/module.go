package gentest

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// toolVersion is the pseudo-version required for the tool module. The
// replace directive makes the version itself irrelevant.
const toolVersion = "v0.0.0-00010101000000-000000000000"

// WireModule makes the generated module at modDir resolve the harness
// imports of its test units: it requires the tool module and replaces it
// with the local checkout at toolDir.
func WireModule(modDir, toolDir string) error {
	toolDir, err := filepath.Abs(toolDir)
	if err != nil {
		return fmt.Errorf("gentest: %w", err)
	}
	path := filepath.Join(modDir, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("gentest: %w", err)
	}
	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		return fmt.Errorf("gentest: parse %s: %w", path, err)
	}
	if f.Module != nil && f.Module.Mod.Path == moduleImport {
		return nil
	}
	if err := f.AddRequire(moduleImport, toolVersion); err != nil {
		return fmt.Errorf("gentest: require %s: %w", moduleImport, err)
	}
	if err := f.AddReplace(moduleImport, "", toolDir, ""); err != nil {
		return fmt.Errorf("gentest: replace %s: %w", moduleImport, err)
	}
	f.Cleanup()
	out, err := f.Format()
	if err != nil {
		return fmt.Errorf("gentest: format %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("gentest: write %s: %w", path, err)
	}
	return nil
}
