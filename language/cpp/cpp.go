// Package cpp provides the C++ runtime descriptor for runcell.
package cpp

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/runcell/runcell/language"
)

// CPP implements language.Runtime backed by a WASI build of an
// interpreting C++ toolchain. The worker loop is compiled into the
// module itself, so there is no bootstrap source to inject.
type CPP struct {
	dir string
}

// New returns a C++ runtime descriptor loading cpp.wasm from dir.
func New(dir string) *CPP {
	return &CPP{dir: dir}
}

func (c *CPP) Language() language.Language {
	return language.CPP
}

// Module reads the C++ toolchain WASM binary from the runtime directory.
func (c *CPP) Module() ([]byte, error) {
	path := filepath.Join(c.dir, "cpp.wasm")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cpp runtime module: %w (run the download tool to fetch runtime bundles)", err)
	}
	return data, nil
}

// Args starts the toolchain in worker mode; the bootstrap is unused.
func (c *CPP) Args(bootstrap string) []string {
	return []string{"cpprun", "--worker"}
}

// Bootstrap is empty: the worker loop ships inside the module.
func (c *CPP) Bootstrap() string {
	return ""
}

func (c *CPP) VersionConstraint() string {
	return ""
}
