package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tahcohcat/monument-narrator/internal/database"
	"github.com/tahcohcat/monument-narrator/internal/services"
)

func newCacheCommand(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and trim the narration audio cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	// withCache opens the cache database for the duration of fn.
	withCache := func(fn func(cmd *cobra.Command, cache *services.AudioCache) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			return fn(cmd, services.NewAudioCache(db))
		}
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and hit count",
		Args:  cobra.NoArgs,
		RunE: withCache(func(cmd *cobra.Command, cache *services.AudioCache) error {
			s, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\nBytes:   %d\nHits:    %d\n", s.Entries, s.Bytes, s.Hits)
			return nil
		}),
	}

	var keep int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Keep only the most recently used clips",
		Args:  cobra.NoArgs,
		RunE: withCache(func(cmd *cobra.Command, cache *services.AudioCache) error {
			removed, err := cache.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d clips\n", removed)
			return nil
		}),
	}
	pruneCmd.Flags().IntVarP(&keep, "keep", "k", 200, "Number of clips to keep")

	var provider string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached clips",
		Args:  cobra.NoArgs,
		RunE: withCache(func(cmd *cobra.Command, cache *services.AudioCache) error {
			if err := cache.Clear(cmd.Context(), provider); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		}),
	}
	clearCmd.Flags().StringVar(&provider, "provider", "", "Only clear clips from this provider")

	cmd.AddCommand(statsCmd, pruneCmd, clearCmd)
	return cmd
}
