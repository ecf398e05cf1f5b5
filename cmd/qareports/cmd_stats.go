package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/qareports/internal/core"
)

type statsOutput struct {
	Stats  core.Stats   `json:"stats" yaml:"stats"`
	Charts *core.Charts `json:"charts,omitempty" yaml:"charts,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var (
		format string
		charts bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print record statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close(cfg.Server.ShutdownTimeout)

			out := statsOutput{Stats: a.service.Stats()}
			if charts {
				c := a.service.Charts()
				out.Charts = &c
			}
			return writeStats(cmd.OutOrStdout(), format, out)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&charts, "charts", false, "include chart series")
	return cmd
}

func writeStats(w io.Writer, format string, out statsOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return writeStatsText(w, out)
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

func writeStatsText(w io.Writer, out statsOutput) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	s := out.Stats
	fmt.Fprintf(tw, "Total parts\t%d\n", s.TotalParts)
	fmt.Fprintf(tw, "Missing extensions\t%d\n", s.MissingExtensions)
	fmt.Fprintf(tw, "Surface bodies\t%d\n", s.SurfaceBodies)
	fmt.Fprintf(tw, "Pending\t%d\n", s.PendingParts)
	fmt.Fprintf(tw, "Corrected\t%d\n", s.CorrectedParts)
	fmt.Fprintf(tw, "Invalid\t%d\n", s.InvalidParts)

	if c := out.Charts; c != nil {
		fmt.Fprintln(tw, "\nIssue\tCount")
		for _, ic := range c.IssueDistribution {
			fmt.Fprintf(tw, "%s\t%d\n", ic.Name, ic.Count)
		}
		fmt.Fprintln(tw, "\nMonth\tNew\tResolved")
		for _, m := range c.ResolutionTrends {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", m.Month, m.NewIssues, m.Resolved)
		}
		fmt.Fprintln(tw, "\nSheet\tRows\tWith issues")
		for _, sc := range c.SheetDistribution {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", sc.SheetName, sc.TotalRows, sc.IssueRows)
		}
	}
	return tw.Flush()
}
