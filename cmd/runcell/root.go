package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/runcell/runcell/config"
	"github.com/runcell/runcell/history"
	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/language/cpp"
	"github.com/runcell/runcell/language/javascript"
	"github.com/runcell/runcell/language/python"
	"github.com/runcell/runcell/playground"
	"github.com/runcell/runcell/registry"
	"github.com/runcell/runcell/runner"
	"github.com/runcell/runcell/worker"
)

var rootCmd = &cobra.Command{
	Use:   "runcell [file]",
	Short: "Multi-language code playground runtime",
	Long: `runcell - Run Python, C++, and JavaScript in sandboxed WASI runtimes.

Each language runs inside an isolated WebAssembly interpreter that is
initialized lazily and reused across runs. Code can come from files,
inline strings, or stdin.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

var errColor = color.New(color.FgRed, color.Bold)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("lang", "l", "", "Language: python, cpp, js (default: auto-detect)")
	rootCmd.PersistentFlags().String("runtime-dir", "", "Runtime bundle directory (overrides config)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")

	addRunFlags(rootCmd)
}

func fatal(err error) {
	errColor.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// loadConfig reads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if dir, _ := cmd.Flags().GetString("runtime-dir"); dir != "" {
		cfg.RuntimeDir = dir
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.DiskCache = false
	}
	logrus.SetLevel(cfg.GetLogLevel())
	return cfg
}

// buildPlayground assembles the orchestration stack from configuration.
func buildPlayground(cfg *config.Config, opts ...playground.Option) (*playground.Playground, *worker.Engine, error) {
	runtimes := []language.Runtime{
		python.New(cfg.RuntimeDir),
		cpp.New(cfg.RuntimeDir),
		javascript.New(),
	}

	engineOpts := []worker.EngineOption{
		worker.WithInitTimeout(cfg.InitTimeout),
	}
	if cfg.DiskCache {
		engineOpts = append(engineOpts, worker.WithDiskCache())
	}
	if cfg.MemoryLimitPages > 0 {
		engineOpts = append(engineOpts, worker.WithMemoryLimit(cfg.MemoryLimitPages))
	}

	engine, err := worker.NewEngine(runtimes, engineOpts...)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New(engine.Factory(), engine.Languages())
	hist := history.NewStore(cfg.HistoryCapacity)
	run := runner.New(reg, hist,
		runner.WithTimeout(cfg.RunTimeout),
		runner.WithRecycleOnTimeout(cfg.RecycleOnTimeout))

	opts = append([]playground.Option{
		playground.WithPollInterval(cfg.PollInterval),
		playground.WithPreload(cfg.PreloadLanguages()...),
	}, opts...)

	return playground.New(reg, run, hist, opts...), engine, nil
}

// getLanguage resolves the target language from the flag or filename.
func getLanguage(langFlag, filename string) (language.Language, error) {
	if langFlag != "" {
		return language.Parse(langFlag)
	}
	if filename != "" {
		if lang, ok := language.ParseExt(filepath.Ext(filename)); ok {
			return lang, nil
		}
	}
	return "", fmt.Errorf("language required: use --lang python, cpp, or js")
}
