package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ashureev/voice-coach/internal/traits"
	"github.com/spf13/cobra"
)

var traitsCmd = &cobra.Command{
	Use:   "traits [id...]",
	Short: "List the trait catalog or show the profile a selection resolves to",
	Args:  cobra.MaximumNArgs(traits.MaxSelected),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := traits.Default()
		out := cmd.OutOrStdout()

		if len(args) > 0 {
			for _, id := range args {
				if !catalog.Known(id) {
					return fmt.Errorf("unknown trait %q", id)
				}
			}
			p := catalog.Resolve(args)
			_, err := fmt.Fprintf(out, "tone: %s\nquestion ratio: %.2f\nstructure: %s\nframeworks: %t\npacing: %s\n",
				p.Tone, p.QuestionRatio, p.StructureLevel, p.FrameworkUsage, p.Pacing)
			return err
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, cat := range catalog.Categories {
			fmt.Fprintf(tw, "%s\n", strings.ToUpper(cat.Name))
			for _, t := range cat.Traits {
				fmt.Fprintf(tw, "  %s\t%s\n", t.ID, t.Label)
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(traitsCmd)
}
