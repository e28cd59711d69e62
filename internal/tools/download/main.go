// Command download fetches language runtime bundles into the runtime
// directory. Without arguments it fetches every known bundle; passing
// names limits the fetch.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

var bundles = map[string]string{
	"python.wasm": "https://github.com/vmware-labs/webassembly-language-runtimes/releases/download/python%2F3.12.0%2B20231211-040d5a6/python-3.12.0.wasm",
	"cpp.wasm":    "https://github.com/runcell/runtimes/releases/latest/download/cpp.wasm",
}

func main() {
	dir := os.Getenv("RUNCELL_RUNTIME_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		dir = filepath.Join(home, ".local", "share", "runcell", "runtimes")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	names := os.Args[1:]
	if len(names) == 0 {
		for name := range bundles {
			names = append(names, name)
		}
	}

	for _, name := range names {
		url, ok := bundles[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown bundle %q\n", name)
			os.Exit(1)
		}
		if err := fetch(url, filepath.Join(dir, name)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func fetch(url, output string) error {
	if _, err := os.Stat(output); err == nil {
		return nil
	}

	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	// Write to a temp file first so a partial download never shadows
	// a usable bundle.
	tmp, err := os.CreateTemp(filepath.Dir(output), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), output)
}
