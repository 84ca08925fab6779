package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tahcohcat/monument-narrator/internal/guide"
	"github.com/tahcohcat/monument-narrator/internal/narration"
	"github.com/tahcohcat/monument-narrator/internal/permission"
)

func newSayCommand(load configLoader) *cobra.Command {
	var opts narration.SpeakOptions
	var monument, location string

	cmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Narrate text, or a monument description, on this machine",
		Example: `  monument-narrator say "Welcome to the Acropolis."
  monument-narrator say --monument "Big Ben" --location London`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" && monument == "" {
				return fmt.Errorf("nothing to say: pass text or --monument")
			}

			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, cfg, permission.LogAlerter{})
			if err != nil {
				return err
			}
			defer a.Close()

			if monument != "" {
				if text, err = describe(ctx, a, monument, location); err != nil {
					return err
				}
			}

			go func() {
				<-ctx.Done()
				a.coordinator.Stop()
			}()

			out := cmd.OutOrStdout()
			return a.coordinator.Speak(ctx, text, opts, narration.ObserverFuncs{
				Start: func() { fmt.Fprintln(out, "▶ narrating") },
				Done:  func() { fmt.Fprintln(out, "■ done") },
				Error: func(err error) {
					if !narration.IsBenign(err) {
						fmt.Fprintf(cmd.ErrOrStderr(), "narration failed: %v\n", err)
					}
				},
			})
		},
	}

	cmd.Flags().StringVar(&opts.Voice, "voice", "", "Voice identifier (default: best available)")
	cmd.Flags().StringVar(&opts.Language, "language", "", "Language tag for the device voice")
	cmd.Flags().Float64Var(&opts.Rate, "rate", 0, "Speech rate multiplier (default: platform tuned)")
	cmd.Flags().Float64Var(&opts.Pitch, "pitch", 0, "Pitch multiplier (default: platform tuned)")
	cmd.Flags().Float64Var(&opts.Volume, "volume", 0, "Volume between 0 and 1")
	cmd.Flags().StringVar(&monument, "monument", "", "Describe this monument with the guide and narrate it")
	cmd.Flags().StringVar(&location, "location", "", "Where the monument is, used with --monument")

	return cmd
}

func describe(ctx context.Context, a *app, monument, location string) (string, error) {
	if a.llm == nil {
		return "", fmt.Errorf("monument guide is not configured")
	}

	desc, err := guide.NewGuide(a.llm).Describe(ctx, monument, location)
	if err != nil {
		return "", err
	}
	return guide.NarrationText(desc), nil
}
