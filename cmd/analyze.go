package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/reputato/internal/analyzer"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <company name>",
	Short: "Run a one-shot analysis and print the verdict",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		verdict, err := env.Analyzer.Analyze(cmd.Context(), name)
		if err != nil {
			if analyzer.IsTimeout(err) {
				return fmt.Errorf("analysis of %q timed out: %w", name, err)
			}
			return err
		}

		fmt.Printf("%s\n\n", verdict.Summary)
		fmt.Printf("Rating: %s (%d/5)\n", strings.Repeat("★", verdict.Rating)+strings.Repeat("☆", 5-verdict.Rating), verdict.Rating)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
