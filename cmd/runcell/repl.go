package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/runcell/runcell/history"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive run loop against a live runtime",
	Long: `Start an interactive loop that sends each line to the language
runtime and prints the result.

Features:
  - Command history (up/down arrows)
  - Line editing and history search (Ctrl+R)
  - Multi-line input (end line with \)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Run: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.runcell_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	langFlag, _ := cmd.Flags().GetString("lang")
	historyFile, _ := cmd.Flags().GetString("history")

	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".runcell_history")
	}

	lang, err := getLanguage(langFlag, "")
	if err != nil {
		fatal(err)
	}

	cfg := loadConfig(cmd)
	pg, engine, err := buildPlayground(cfg)
	if err != nil {
		fatal(err)
	}
	defer engine.Close()
	defer pg.Close()

	fmt.Printf("Initializing %s runtime...\n", lang)
	if err := pg.InitRuntime(context.Background(), lang); err != nil {
		fatal(err)
	}
	status := pg.RuntimeStatus()[lang]
	color.Green("Ready (%s %s). Type 'exit' to quit.", lang, status.Version)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          color.CyanString("%s> ", lang),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fatal(err)
	}
	defer rl.Close()

	var pending strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			pending.Reset()
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fatal(err)
		}

		trimmed := strings.TrimSpace(line)
		if pending.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			return
		}

		// Backslash continuation collects a multi-line block.
		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteString("\n")
			rl.SetPrompt("... ")
			continue
		}
		pending.WriteString(line)
		source := pending.String()
		pending.Reset()
		rl.SetPrompt(color.CyanString("%s> ", lang))

		if strings.TrimSpace(source) == "" {
			continue
		}

		rec, err := pg.RunCode(context.Background(), source, lang)
		if err != nil {
			errColor.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Print(rec.Output)
		if rec.Status == history.StatusError {
			errColor.Fprintf(os.Stderr, "%s\n", rec.Error)
		}
	}
}
