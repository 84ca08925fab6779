package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tahcohcat/monument-narrator/internal/permission"
	"github.com/tahcohcat/monument-narrator/internal/voice"
)

func newVoicesCommand(load configLoader) *cobra.Command {
	var search string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the narrator voices, best first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, permission.LogAlerter{})
			if err != nil {
				return err
			}
			defer a.Close()

			voices := a.registry.AvailableVoices()
			if search != "" {
				voices = a.registry.Search(search, limit)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(voices)
			}
			return printVoices(cmd.OutOrStdout(), voices)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Fuzzy search by display name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum search results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func printVoices(w io.Writer, voices []voice.Option) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tNAME\tLANGUAGE\tQUALITY\tPROVIDER")
	for _, v := range voices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Language, v.Quality, v.Provider)
	}
	return tw.Flush()
}
