package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/crash-data-etl/internal/observability"
	"github.com/couchcryptid/crash-data-etl/internal/pipeline"
)

func newRunCommand() *cobra.Command {
	var (
		o        overrides
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, &o, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer a.close()

			var onStage func(string)
			if progress {
				s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				onStage = func(stage string) {
					s.Lock()
					s.Suffix = " " + stage
					s.Unlock()
				}
				s.Start()
				defer s.Stop()
			}

			report, err := a.newPipeline(onStage).Run(cmd.Context())
			printSummary(cmd.OutOrStdout(), report)
			return err
		},
	}
	o.register(cmd)
	cmd.Flags().BoolVar(&progress, "progress", false, "show a spinner with the current stage")
	return cmd
}

// printSummary writes the run report as two tables: row accounting and
// per-stage timings.
func printSummary(w io.Writer, r pipeline.Report) {
	s := r.Stats

	rows := table.NewWriter()
	rows.SetOutputMirror(w)
	rows.SetStyle(table.StyleLight)
	rows.SetTitle("Run " + r.RunID)
	rows.AppendHeader(table.Row{"Metric", "Value"})
	rows.AppendRows([]table.Row{
		{"Files", s.Files},
		{"Raw rows", s.RawRows},
		{"Kept", s.Kept},
		{"Filtered (outside region)", s.Filtered},
		{"Dropped", s.DroppedTotal()},
		{"Values coerced to null", s.Coerced},
		{"Null values", s.NullValues},
		{"Unknown location", s.UnknownLocation},
		{"Out of bounds", s.OutOfBounds},
		{"Swapped coordinates", s.SwappedCoordinates},
		{"Geocoded", s.Geocoded},
	})
	for _, reason := range slices.Sorted(maps.Keys(s.Dropped)) {
		rows.AppendRow(table.Row{"  dropped: " + reason, s.Dropped[reason]})
	}
	if r.ExportPath != "" {
		rows.AppendSeparator()
		rows.AppendRow(table.Row{"Export", fmt.Sprintf("%s (%d bytes)", r.ExportPath, r.ExportBytes)})
	}
	for _, a := range r.Artifacts {
		rows.AppendRow(table.Row{"Map", a})
	}
	if r.Published > 0 {
		rows.AppendRow(table.Row{"Published", r.Published})
	}
	rows.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	rows.Render()

	stages := table.NewWriter()
	stages.SetOutputMirror(w)
	stages.SetStyle(table.StyleLight)
	stages.AppendHeader(table.Row{"Stage", "Duration", "Result"})
	for _, st := range r.Stages {
		result := text.FgGreen.Sprint("ok")
		if st.Error != "" {
			result = text.FgRed.Sprint(st.Error)
		}
		stages.AppendRow(table.Row{st.Stage, st.Duration.Round(time.Millisecond), result})
	}
	stages.Render()
}
