// Package language defines the set of languages the playground can run
// and the runtime descriptors the worker engine hosts them with.
package language

import (
	"fmt"
	"strings"
)

// Language identifies which runtime a request targets.
type Language string

const (
	Python     Language = "python"
	CPP        Language = "cpp"
	JavaScript Language = "javascript"
)

// All returns the supported languages in a stable order.
func All() []Language {
	return []Language{Python, CPP, JavaScript}
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	switch l {
	case Python, CPP, JavaScript:
		return true
	}
	return false
}

func (l Language) String() string {
	return string(l)
}

// Parse resolves a language name or alias.
func Parse(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "py":
		return Python, nil
	case "cpp", "c++", "cxx":
		return CPP, nil
	case "javascript", "js":
		return JavaScript, nil
	}
	return "", fmt.Errorf("unknown language %q: use python, cpp, or javascript", s)
}

// ParseExt resolves a language from a file extension (with or without
// the leading dot). Returns false when the extension is not recognized.
func ParseExt(ext string) (Language, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "py":
		return Python, true
	case "cpp", "cc", "cxx":
		return CPP, true
	case "js", "mjs":
		return JavaScript, true
	}
	return "", false
}

// Runtime describes one language's WASI interpreter module. The worker
// engine compiles Module once per language and instantiates it with
// Args; Bootstrap is the in-interpreter source that enters the worker
// loop (empty when the module ships with the loop built in).
type Runtime interface {
	Language() Language

	// Module returns the interpreter WASM binary.
	Module() ([]byte, error)

	// Args returns the argv the module is instantiated with.
	Args(bootstrap string) []string

	// Bootstrap returns the worker-loop source injected at startup.
	Bootstrap() string

	// VersionConstraint returns the semver range the interpreter
	// reported at ready must satisfy. Empty means any version.
	VersionConstraint() string
}
