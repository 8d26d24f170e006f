/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toothbrush/tml-sync/internal/termfmt"
	"github.com/toothbrush/tml-sync/migrate"
)

var importUsage = strings.TrimSpace(`
Replay an exported manifest into a target org, dependencies first.

Every cross-object reference is rewritten through the GUID mapping file for
the org pair; objects whose references can't be resolved are not imported,
and neither are their dependents.  The mapping file is updated as objects
are created, so re-running with update-existing is idempotent.
`)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an exported manifest into a target org",
	Long:  importUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		debugLog("  Policy: %v\n", Policy)
		return runImport(cmd)
	},
}

var (
	SourceOrg       string
	TargetOrg       string
	Policy          string
	ImportTags      []string
	SharePrincipals []string
	ImportWorkers   int
	ImportWithVCR   bool
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&SourceOrg, "source-org", "", "org the manifest was exported from (defaults to what the manifest records)")
	importCmd.Flags().StringVar(&TargetOrg, "target-org", "", "org to import into (required)")
	importCmd.Flags().StringVar(&Policy, "policy", "update-existing", "conflict policy: create-new, update-existing, skip-if-exists, fail-if-exists")
	importCmd.Flags().StringSliceVar(&ImportTags, "tag", []string{}, "tag to apply to imported content (repeatable)")
	importCmd.Flags().StringSliceVar(&SharePrincipals, "share-with", []string{}, "user or group to share imported content with (repeatable)")
	importCmd.Flags().IntVar(&ImportWorkers, "workers", 4, "number of concurrent API calls within a dependency rank")
	importCmd.Flags().BoolVar(&ImportWithVCR, "with-vcr", false, "use go-vcr to cache responses")

	importCmd.MarkFlagRequired("target-org")
}

func runImport(cmd *cobra.Command) error {
	ctx := cmd.Context()

	storePath, err := resolveStorePath()
	if err != nil {
		return err
	}

	manifest, err := migrate.ReadManifest(storePath)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	sourceOrg := SourceOrg
	if sourceOrg == "" {
		sourceOrg = manifest.SourceOrg
	}

	policy, err := migrate.ParseConflictPolicy(Policy)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	store, err := migrate.LoadMappingStore(migrate.MappingFilePath(storePath, sourceOrg, TargetOrg))
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	log.Printf("Loaded %d existing mapping(s) for %s -> %s.\n", store.Len(), sourceOrg, TargetOrg)

	api, err := newPlatformAPI()
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	if ImportWithVCR {
		stop, err := withVCR(api, "fixtures/import")
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		defer stop()
	}

	if err := verifyLogin(ctx, api); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	importer := migrate.Importer{
		StorePath:       storePath,
		Workers:         ImportWorkers,
		API:             api,
		Store:           store,
		SourceOrg:       sourceOrg,
		TargetOrg:       TargetOrg,
		Policy:          policy,
		Tags:            ImportTags,
		SharePrincipals: SharePrincipals,
		Logger:          log.New(os.Stderr, "", log.LstdFlags),
		Progress:        os.Stderr,
	}

	report, err := importer.ImportManifest(ctx, manifest)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	printImportReport(report)

	if n := report.FailureCount(); n > 0 {
		return fmt.Errorf("import: finished with %d failure(s)", n)
	}

	return nil
}

func printImportReport(report *migrate.ImportReport) {
	fmt.Printf("%v  %v  %v\n",
		termfmt.Bold().V(fmt.Sprintf("%-36s", "object")),
		termfmt.Bold().V(fmt.Sprintf("%-13s", "type")),
		termfmt.Bold().V("outcome"))

	for _, result := range report.Results {
		outcome := result.Outcome.String()
		switch result.Outcome {
		case migrate.OutcomeFailed:
			outcome = fmt.Sprintf("failed (%s): %v", result.Reason, result.Err)
		case migrate.OutcomeSkippedBlocked:
			outcome = fmt.Sprintf("skipped (blocked on %s)", result.BlockedOn)
		case migrate.OutcomeCreated, migrate.OutcomeUpdated:
			outcome = fmt.Sprintf("%s -> %s", outcome, result.TargetGUID)
		}
		fmt.Printf("%-36s  %-13s  %s  (%s)\n", result.GUID, result.Type, outcome, result.Name)
	}

	for _, err := range report.PostImportErrors {
		fmt.Printf("%v post-import: %v\n", termfmt.Bold().V("warning:"), err)
	}
}
