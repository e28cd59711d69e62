// Package python provides the Python runtime descriptor for runcell.
package python

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/runcell/runcell/language"
)

//go:embed bootstrap.py
var bootstrap string

// Python implements language.Runtime backed by a RustPython WASI build.
// The interpreter binary is loaded from the runtime directory (see
// internal/tools/download), not embedded.
type Python struct {
	dir string
}

// New returns a Python runtime descriptor loading python.wasm from dir.
func New(dir string) *Python {
	return &Python{dir: dir}
}

func (p *Python) Language() language.Language {
	return language.Python
}

// Module reads the RustPython WASM binary from the runtime directory.
func (p *Python) Module() ([]byte, error) {
	path := filepath.Join(p.dir, "python.wasm")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("python runtime module: %w (run the download tool to fetch runtime bundles)", err)
	}
	return data, nil
}

// Args returns the argv that starts the interpreter in the worker loop.
func (p *Python) Args(bootstrap string) []string {
	return []string{"python", "-c", bootstrap}
}

// Bootstrap returns the Python worker-loop source.
func (p *Python) Bootstrap() string {
	return bootstrap
}

// VersionConstraint bounds the interpreter version reported at ready.
func (p *Python) VersionConstraint() string {
	return ">= 3.11"
}
