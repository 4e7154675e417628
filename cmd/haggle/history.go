package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/FranksOps/haggle/internal/config"
	"github.com/FranksOps/haggle/internal/storage"
	"github.com/spf13/cobra"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		title  string
		limit  int
		offset int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved searches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			store, err := openBackend(cmd.Context(), cfg.Storage)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			if store == nil {
				return fmt.Errorf("no storage backend configured (set storage.backend)")
			}
			defer store.Close()

			records, err := store.Query(cmd.Context(), storage.Filter{Title: title, Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tTITLE\tRESULTS\tAVERAGE\tSUGGESTED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%v\t%v - %v\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Title,
					r.Count,
					r.Statistics.Average,
					r.Statistics.SuggestedMin,
					r.Statistics.SuggestedMax,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "only searches whose title contains this text")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of searches")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of searches to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full records as JSON")
	return cmd
}
