package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/skypulse/internal/classify"
)

func newClassifyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "classify [ids...]",
		Short: "Print the detected naming convention of each identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := collectIDs(args, file, false)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, id := range ids {
				fmt.Fprintf(tw, "%s\t%s\n", id, strings.ToUpper(string(classify.Detect(id))))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read identifiers from a .txt, .csv, or .pdf file")
	return cmd
}
