/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toothbrush/tml-sync/internal/termfmt"
	"github.com/toothbrush/tml-sync/migrate"
)

var mappingsUsage = strings.TrimSpace(`
Print the GUID mapping table for an org pair.

This is the durable record linking source objects to the objects they became
in the target org; it's what makes re-imports update instead of duplicate.
`)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Print the GUID mapping table for an org pair",
	Long:  mappingsUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMappings()
	},
}

var (
	MappingSourceOrg string
	MappingTargetOrg string
)

func init() {
	rootCmd.AddCommand(mappingsCmd)

	mappingsCmd.Flags().StringVar(&MappingSourceOrg, "source-org", "", "source org of the mapping file (required)")
	mappingsCmd.Flags().StringVar(&MappingTargetOrg, "target-org", "", "target org of the mapping file (required)")

	mappingsCmd.MarkFlagRequired("source-org")
	mappingsCmd.MarkFlagRequired("target-org")
}

func runMappings() error {
	storePath, err := resolveStorePath()
	if err != nil {
		return err
	}

	store, err := migrate.LoadMappingStore(migrate.MappingFilePath(storePath, MappingSourceOrg, MappingTargetOrg))
	if err != nil {
		return fmt.Errorf("mappings: %w", err)
	}

	entries := store.All()
	if len(entries) == 0 {
		fmt.Printf("No mappings recorded for %s -> %s yet.\n", MappingSourceOrg, MappingTargetOrg)
		return nil
	}

	fmt.Printf("%v  %v  %v  %v\n",
		termfmt.Bold().V(fmt.Sprintf("%-36s", MappingSourceOrg+" GUID")),
		termfmt.Bold().V(fmt.Sprintf("%-36s", MappingTargetOrg+" GUID")),
		termfmt.Bold().V(fmt.Sprintf("%-13s", "type")),
		termfmt.Bold().V("last synced"))

	for _, entry := range entries {
		fmt.Printf("%-36s  %-36s  %-13s  %s\n",
			entry.SourceGUID,
			entry.TargetGUID,
			entry.Type,
			entry.SyncedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}
