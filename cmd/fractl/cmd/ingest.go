package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RMahshie/unifra/internal/export"
	"github.com/RMahshie/unifra/internal/processing"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		normalizeFlag bool
		out           string
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Decode one file into a canonical record",
		Long: `Detect, decode and validate one FRA file. With --normalize the sweep is
resampled onto the common log grid. With --out the result is written as
JSON (.json) or an Excel workbook (.xlsx); otherwise a summary is printed.

Example:
  fractl ingest T1.frx --normalize --out T1.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := a.pipeline(normalizeFlag, 1)
			if err != nil {
				return err
			}

			res, err := pipeline.ProcessFile(cmd.Context(), args[0], processing.Options{Normalize: normalizeFlag})
			if err != nil {
				return err
			}

			if out != "" {
				if err := export.ToFile(out, res.Record, res.Normalized); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
				return nil
			}
			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&normalizeFlag, "normalize", false, "Resample onto the common grid")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the result to a .json or .xlsx file")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		concurrency   int
		normalizeFlag bool
	)

	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Decode many files concurrently",
		Long: `Run the pipeline over many files. A failing file is reported and
does not stop the others.

Example:
  fractl batch exports/*.csv --concurrency 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				concurrency = a.cfg.Batch.Concurrency
			}
			pipeline, err := a.pipeline(normalizeFlag, concurrency)
			if err != nil {
				return err
			}

			results := pipeline.ProcessBatch(cmd.Context(), args, processing.Options{Normalize: normalizeFlag})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tFORMAT\tASSET\tPOINTS\tSTATUS")
			var failed int
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(w, "%s\t%s\t-\t-\t%v\n", res.Filename, orDash(res.Format), res.Err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\tok\n", res.Filename, res.Format,
					res.Record.AssetMetadata.AssetID, res.Record.Measurement.Resolution)
			}
			w.Flush()

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Files processed at once (default BATCH_CONCURRENCY)")
	cmd.Flags().BoolVar(&normalizeFlag, "normalize", false, "Resample onto the common grid")
	return cmd
}

func printSummary(out io.Writer, res *processing.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	rec := res.Record
	m := rec.Measurement
	fmt.Fprintf(w, "File:\t%s\n", res.Filename)
	fmt.Fprintf(w, "Format:\t%s (%s)\n", res.Format, res.Detection.Rule)
	fmt.Fprintf(w, "Asset:\t%s\n", rec.AssetMetadata.AssetID)
	fmt.Fprintf(w, "Manufacturer:\t%s\n", rec.AssetMetadata.Manufacturer)
	fmt.Fprintf(w, "Test:\t%s on %s\n", rec.TestInfo.TestID, rec.TestInfo.Date)
	fmt.Fprintf(w, "Instrument:\t%s\n", rec.TestInfo.Instrument)
	fmt.Fprintf(w, "Points:\t%d\n", m.Resolution)
	fmt.Fprintf(w, "Range:\t%g - %g Hz\n", m.FreqStart, m.FreqEnd)
	fmt.Fprintf(w, "Phases:\t%t\n", len(m.Phases) > 0)

	if res.Normalized != nil && res.Normalized.ProcessingMetadata != nil {
		pm := res.Normalized.ProcessingMetadata
		fmt.Fprintf(w, "Normalized:\t%d points, %s\n", pm.TargetPoints, pm.InterpolationStrategy)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
