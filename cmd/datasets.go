package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/bankquery/internal/executor"
	"github.com/sells-group/bankquery/internal/model"
	"github.com/sells-group/bankquery/internal/ontology"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the available datasets and their sizes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := executor.LoadData()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATASET\tROWS")
		for _, ds := range model.Datasets {
			fmt.Fprintf(tw, "%s\t%d\n", ds, len(data.Rows(ds)))
		}
		return tw.Flush()
	},
}

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Show the metric vocabulary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		vocab, err := ontology.Load()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "METRIC\tDATASET\tFORMULA")
		for _, def := range vocab.Glossary() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", def.ID, def.Dataset, def.Formula)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(glossaryCmd)
}
