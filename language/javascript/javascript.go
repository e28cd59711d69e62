// Package javascript provides the JavaScript runtime descriptor for runcell.
package javascript

import (
	_ "embed"

	quickjswasi "github.com/paralin/go-quickjs-wasi"

	"github.com/runcell/runcell/language"
)

//go:embed bootstrap.js
var bootstrap string

// JavaScript implements language.Runtime backed by QuickJS compiled to
// WASI. Unlike Python and C++, the interpreter binary ships with the
// module, so no runtime bundle download is needed.
type JavaScript struct{}

// New returns a JavaScript runtime descriptor.
func New() *JavaScript {
	return &JavaScript{}
}

func (j *JavaScript) Language() language.Language {
	return language.JavaScript
}

// Module returns the QuickJS WASM binary.
func (j *JavaScript) Module() ([]byte, error) {
	return quickjswasi.QuickJSWASM, nil
}

// Args returns the argv that starts QuickJS in the worker loop.
func (j *JavaScript) Args(bootstrap string) []string {
	return []string{"qjs", "--std", "-e", bootstrap}
}

// Bootstrap returns the JavaScript worker-loop source.
func (j *JavaScript) Bootstrap() string {
	return bootstrap
}

// VersionConstraint is empty: QuickJS reports date-based versions.
func (j *JavaScript) VersionConstraint() string {
	return ""
}
