package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/runcell/runcell/language"
)

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs"},
	Short:   "List supported languages",
	Run: func(cmd *cobra.Command, args []string) {
		bold := color.New(color.Bold)
		bold.Println("Supported languages:")
		for _, lang := range language.All() {
			fmt.Printf("  %s\n", lang)
		}
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
