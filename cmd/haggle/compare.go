package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/haggle/internal/report"
	"github.com/FranksOps/haggle/internal/storage"
	"github.com/spf13/cobra"
)

func newCompareCmd(configPath *string) *cobra.Command {
	var (
		format string
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "compare <title...>",
		Short: "Compare prices for one product title and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := report.Format(strings.ToLower(format))
			switch f {
			case report.FormatText, report.FormatJSON, report.FormatYAML, report.FormatHTML:
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.pipeline.Compare(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if save {
				store, err := openBackend(cmd.Context(), a.cfg.Storage)
				if err != nil {
					return fmt.Errorf("storage: %w", err)
				}
				if store != nil {
					defer store.Close()
					if err := store.Save(cmd.Context(), storage.NewRecord(result, time.Now())); err != nil {
						a.logger.Error("saving search failed", "err", err)
					}
				}
			}

			return report.Write(cmd.OutOrStdout(), f, result)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, yaml or html")
	cmd.Flags().BoolVar(&save, "save", false, "record the search in the configured storage backend")
	return cmd
}
