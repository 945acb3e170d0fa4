package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "annotation-worker",
	Short: "Workers of the genomic annotation pipeline",
}

func init() {
	rootCmd.AddCommand(dispatcherCmd)
	rootCmd.AddCommand(archiverCmd)
	rootCmd.AddCommand(restorerCmd)
	rootCmd.AddCommand(thawerCmd)
	rootCmd.AddCommand(migrateCmd)
}
