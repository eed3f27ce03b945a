package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RMahshie/unifra/internal/codec"
	"github.com/RMahshie/unifra/internal/detect"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>...",
		Short: "Classify files by format",
		Long: `Classify each file by extension, vendor signature or content
and report which rule decided.

Example:
  fractl detect sweep.csv capture`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "FILE\tFORMAT\tRULE")
			var failed int
			for _, path := range args {
				d, err := detect.File(path)
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s\t-\t%v\n", path, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", path, d.Format, d.Rule)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be classified", failed, len(args))
			}
			return nil
		},
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported formats and extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "EXTENSION\tFORMAT")
			for _, ext := range detect.Extensions() {
				fmt.Fprintf(w, "%s\t%s\n", ext.Ext, ext.Format)
			}
			fmt.Fprintf(w, "\nDecoders:\t%v\n", codec.Default().Formats())
			return nil
		},
	}
}
