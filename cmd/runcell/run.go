package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runcell/runcell/history"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a piece of code once",
	Long: `Execute code in a sandboxed language runtime.

Code can be provided via:
  - File argument: runcell run script.py
  - Inline flag: runcell run -c 'print(1+1)' --lang python
  - Stdin: echo 'print(1+1)' | runcell run --lang python`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
}

func runRun(cmd *cobra.Command, args []string) {
	code, _ := cmd.Flags().GetString("code")
	langFlag, _ := cmd.Flags().GetString("lang")

	var source string
	var filename string

	switch {
	case code != "":
		source = code
	case len(args) > 0:
		filename = args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			fatal(err)
		}
		source = string(data)
	default:
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			cmd.Help()
			return
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatal(err)
		}
		source = string(data)
		if source == "" {
			cmd.Help()
			return
		}
	}

	lang, err := getLanguage(langFlag, filename)
	if err != nil {
		fatal(err)
	}

	cfg := loadConfig(cmd)
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		cfg.RunTimeout = timeout
	}

	pg, engine, err := buildPlayground(cfg)
	if err != nil {
		fatal(err)
	}
	defer engine.Close()
	defer pg.Close()

	rec, err := pg.RunCode(context.Background(), source, lang)
	if err != nil {
		fatal(err)
	}

	fmt.Print(rec.Output)
	if rec.Status == history.StatusError {
		errColor.Fprintf(os.Stderr, "Error: %s\n", rec.Error)
		os.Exit(1)
	}
}
