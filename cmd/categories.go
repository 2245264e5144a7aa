package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var categoriesFile string

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories in a vote spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		tbl, err := readTable(cmd.Context(), categoriesFile)
		if err != nil {
			return err
		}
		for _, c := range tbl.Categories(cfg.Columns.Address) {
			fmt.Fprintln(os.Stdout, c)
		}
		return nil
	},
}

func init() {
	categoriesCmd.Flags().StringVar(&categoriesFile, "file", "", "vote spreadsheet (.xlsx or .csv, required)")
	_ = categoriesCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(categoriesCmd)
}
