package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

var errAttributeRequired = errors.New("--attribute is required")

func newRenderCommand() *cobra.Command {
	var (
		attribute    string
		minSeverity  int
		since, until string
		hourFrom     int
		hourTo       int
		out          string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one map view from the existing export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if attribute == "" {
				return errAttributeRequired
			}
			a, err := loadApp(cmd, nil, observability.NewMetrics())
			if err != nil {
				return err
			}

			spec := domain.ViewSpec{Attribute: attribute, MinSeverity: a.cfg.MinSeverity}
			if cmd.Flags().Changed("min-severity") {
				spec.MinSeverity = minSeverity
			}
			if spec.Since, err = parseDate("since", since); err != nil {
				return err
			}
			if spec.Until, err = parseDate("until", until); err != nil {
				return err
			}
			if cmd.Flags().Changed("hour-from") || cmd.Flags().Changed("hour-to") {
				spec.Hours = &domain.HourRange{From: hourFrom, To: hourTo}
			}

			path, err := a.renderer().Render(cmd.Context(), a.cfg.ExportPath(), spec, out)
			if err != nil {
				return fmt.Errorf("%s: %w", domain.StageRender, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&attribute, "attribute", "", "attribute to colour by")
	f.IntVar(&minSeverity, "min-severity", 1, "lowest severity level (0-4) shown")
	f.StringVar(&since, "since", "", "first date shown (YYYY-MM-DD)")
	f.StringVar(&until, "until", "", "last date shown (YYYY-MM-DD)")
	f.IntVar(&hourFrom, "hour-from", 0, "first hour shown (0-23)")
	f.IntVar(&hourTo, "hour-to", 23, "last hour shown (0-23); below hour-from wraps past midnight")
	f.StringVar(&out, "out", "", "file to write (default derived from the attribute and window under MAP_DIR)")
	return cmd
}

func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return t, nil
}
