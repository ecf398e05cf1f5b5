package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/qareports/internal/core"
)

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Replace all data with the five-sheet sample report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close(cfg.Server.ShutdownTimeout)

			if err := a.service.LoadSample(cmd.Context()); err != nil {
				return err
			}
			st := a.service.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "loaded sample report: %d parts, %d pending, %d corrected\n",
				st.TotalParts, st.PendingParts, st.CorrectedParts)
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every report and record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close(cfg.Server.ShutdownTimeout)

			if err := a.service.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared all reports")

			if !purge {
				return nil
			}
			// The cleared state is queued for upload; wait so the purge does
			// not race it, then remove everything including artifacts.
			if err := a.sync.Flush(cmd.Context()); err != nil {
				return err
			}
			n, err := a.sync.PurgeRemote(cmd.Context())
			if errors.Is(err, core.ErrRemoteDisabled) {
				return fmt.Errorf("--purge-remote: %s", core.FormatUserError(err))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d remote objects\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge-remote", false, "also delete every object in the remote bucket")
	return cmd
}
