package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/qareports/internal/core"
)

func newIngestCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Parse and classify one or more QA export files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close(cfg.Server.ShutdownTimeout)

			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				b, err := a.service.Ingest(cmd.Context(), filepath.Base(path), data)
				var ce *core.CacheError
				if err != nil && !errors.As(err, &ce) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, core.FormatUserError(err))
					failed++
					continue
				}
				if ce != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: warning: %s\n", path, core.FormatUserError(err))
				}

				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(core.NewWireReport(b.Report, b.Records)); err != nil {
						return err
					}
					continue
				}
				st := core.ComputeStats(b.Records)
				fmt.Fprintf(out, "%s  %s  %d parts, %d pending, %d corrected, %d invalid\n",
					b.Report.ID, b.Report.Filename, st.TotalParts, st.PendingParts, st.CorrectedParts, st.InvalidParts)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print each ingested report as JSON")
	return cmd
}
