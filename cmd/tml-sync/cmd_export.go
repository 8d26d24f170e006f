/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/tml-sync/migrate"
	"github.com/toothbrush/tml-sync/platform"
)

var exportUsage = strings.TrimSpace(`
Export content objects and their full dependency closure to the local store.

Give explicit roots with --guid, or sweep a whole type with --object-type.
Dependencies are discovered transitively and written dependencies-first; the
resulting manifest.yaml is what 'import' replays.
`)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export content and its dependencies to the local store",
	Long:  exportUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		debugLog("  Strict: %v\n", Strict)
		return runExport(cmd)
	},
}

var (
	RootGUIDs  []string
	ObjectType string
	Strict     bool
	Workers    int
	WithVCR    bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringSliceVar(&RootGUIDs, "guid", []string{}, "GUID of a root object to export (repeatable)")
	exportCmd.Flags().StringVar(&ObjectType, "object-type", "", "export every object of this type (connection, table, worksheet, answer, liveboard)")
	exportCmd.Flags().BoolVar(&Strict, "strict", false, "abort the whole run on any unreachable dependency")
	exportCmd.Flags().IntVar(&Workers, "workers", 4, "number of concurrent API calls")
	exportCmd.Flags().BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to cache responses")
}

func runExport(cmd *cobra.Command) error {
	ctx := cmd.Context()

	storePath, err := resolveStorePath()
	if err != nil {
		return err
	}

	if len(RootGUIDs) == 0 && ObjectType == "" {
		return fmt.Errorf("export: give at least one --guid, or an --object-type to sweep")
	}
	if len(RootGUIDs) > 0 && ObjectType != "" {
		return fmt.Errorf("export: --guid and --object-type are mutually exclusive")
	}

	api, err := newPlatformAPI()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if WithVCR {
		stop, err := withVCR(api, "fixtures/export")
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer stop()
	}

	if err := verifyLogin(ctx, api); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	roots := []migrate.GUID{}
	if ObjectType != "" {
		objectType, err := platform.ParseObjectType(ObjectType)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		log.Printf("Listing all %s objects...\n", objectType)
		headers, err := api.ListAllObjects(ctx, objectType)
		if err != nil {
			return fmt.Errorf("export: couldn't list objects: %w", err)
		}
		log.Printf("...found %d object(s).\n", len(headers))

		for _, header := range headers {
			roots = append(roots, migrate.GUID(header.ID))
		}
	} else {
		for _, guid := range RootGUIDs {
			roots = append(roots, migrate.GUID(guid))
		}
	}

	exporter := migrate.Exporter{
		StorePath: storePath,
		Workers:   Workers,
		Strict:    Strict,
		SourceOrg: Org,
		API:       api,
		Logger:    log.New(os.Stderr, "", log.LstdFlags),
		Progress:  os.Stderr,
	}

	report, err := exporter.ExportObjects(ctx, roots)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if n := report.FailureCount(); n > 0 {
		return fmt.Errorf("export: finished with %d failure(s)", n)
	}

	fmt.Printf("Exported %d object(s) to %s.\n", len(report.Manifest.Objects), storePath)
	return nil
}

func resolveStorePath() (string, error) {
	if LocalStore == "" {
		return "", fmt.Errorf("no location set for the local TML store.  Use --store or set it in your config file")
	}

	storePath, err := homedir.Expand(LocalStore)
	if err != nil {
		return "", fmt.Errorf("couldn't expand homedir: %w", err)
	}

	if err := os.MkdirAll(storePath, 0755); err != nil {
		return "", fmt.Errorf("couldn't create directory %s: %w", storePath, err)
	}

	return storePath, nil
}
