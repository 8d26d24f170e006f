/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"

	"github.com/fatih/structs"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var (
	// Store the result of binding cobra flags
	Config string
	Debug  bool

	// Command to run to retrieve API access token
	AuthTokenCmd []string

	AuthUsername string
	LocalStore   string
	Instance     string
	Org          string

	ParsedConfig YamlConfig
)

// Build the cobra command that handles our command line tool.
var rootCmd = &cobra.Command{
	Use:   "tml-sync",
	Short: "Migrate TML content between orgs, keeping references intact",
	Long: `
Moving liveboards, answers and worksheets to another org usually breaks every
cross-object reference, because GUIDs differ between environments.  This tool
exports content with its full dependency graph and re-imports it with every
reference rewritten via a durable GUID mapping file.
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// You can bind cobra and viper in a few locations, but PersistentPreRunE on the root command works well
		if err := initializeConfig(cmd); err != nil {
			return fmt.Errorf("tml-sync: failed to initialise config: %w", err)
		}

		return nil
	},
}

func init() {
	// Define cobra flags, the default value has the lowest (least significant) precedence
	rootCmd.PersistentFlags().StringVar(&Config, "config", "", "config file location (default: ~/.config/tml-sync.yaml, respects TML_SYNC_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "display debug output")
	rootCmd.PersistentFlags().StringSliceVar(&AuthTokenCmd, "auth-token-cmd", []string{}, "shell command to retrieve an API access token")
	rootCmd.PersistentFlags().StringVar(&LocalStore, "store", "", "location of the local TML store")
	rootCmd.PersistentFlags().StringVar(&AuthUsername, "auth-username", "", "your platform username")
	rootCmd.PersistentFlags().StringVar(&Instance, "instance", "", "your instance name, e.g. ORG in ORG.thoughtspot.cloud")
	rootCmd.PersistentFlags().StringVar(&Org, "org", "", "org to operate in (instance default if empty)")
}

func initializeConfig(cmd *cobra.Command) error {
	if Config == "" {
		// Did the user provide an ENV?
		envConfig := os.Getenv("TML_SYNC_CONFIG")
		if envConfig != "" {
			Config = envConfig
		} else {
			// As fallback, search for config in home XDG-ish directory
			Config = "~/.config/tml-sync.yaml"
		}
	}
	config, err := homedir.Expand(Config)
	if err != nil {
		return fmt.Errorf("tml-sync: unable to expand homedir: %w", err)
	}
	Config = config

	// Use config file from the flag.
	if _, err := os.Stat(Config); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Couldn't read config file %s, does it exist?  Override with --config.\n", Config)
		return fmt.Errorf("tml-sync: specified config file does not exist: %w", err)
	}

	yamlFile, err := os.ReadFile(Config)
	if err != nil {
		return fmt.Errorf("tml-sync: error reading config file: %w", err)
	}

	// I'd like to bark if a user sets a flag we don't recognise:
	if err := yaml.UnmarshalStrict(yamlFile, &ParsedConfig); err != nil {
		return fmt.Errorf("tml-sync: issue parsing config file: %w", err)
	}

	// Bind the current command's flags to the parsed YAML config
	if err := bindFlags(cmd, ParsedConfig); err != nil {
		return fmt.Errorf("tml-sync: failed to bind flags: %w", err)
	}

	return nil
}

type YamlConfig struct {
	Strict  *bool `yaml:"strict"`
	WithVCR *bool `yaml:"with-vcr"`

	StorePath    string   `yaml:"store"`
	Instance     string   `yaml:"instance"`
	Org          string   `yaml:"org"`
	AuthUsername string   `yaml:"auth-username"`
	AuthTokenCmd []string `yaml:"auth-token-cmd"`
	Workers      int      `yaml:"workers"`
}

// Bind each cobra flag to its associated YAML configuration field
func bindFlags(cmd *cobra.Command, v YamlConfig) error {
	for _, field := range structs.Fields(v) {
		key := field.Tag("yaml")
		if key == "" {
			return fmt.Errorf("tml-sync: could not retrieve struct tag 'yaml'")
		}
		if flag := cmd.Flag(key); flag == nil {
			// hmm... the flag is unknown.  but that can legitimately happen if you're running
			// e.g. `mappings` which has no `workers` flag but your YAML file does define it...
			continue
		}
		if !cmd.Flags().Changed(key) {
			switch field.Kind() {
			case reflect.Ptr:
				// err, this is crappy, but i know YamlConfig only uses pointers for bools.....
				b, ok := field.Value().(*bool)
				if !ok {
					return fmt.Errorf("tml-sync: found unrecognised field: %+v", field)
				}
				if b != nil {
					cmd.Flags().Set(key, fmt.Sprintf("%v", *b))
				}

			case reflect.String:
				s, ok := field.Value().(string)
				if !ok {
					return fmt.Errorf("tml-sync: found unrecognised field: %+v", field)
				}
				if s != "" {
					cmd.Flags().Set(key, s)
				}

			case reflect.Int:
				n, ok := field.Value().(int)
				if !ok {
					return fmt.Errorf("tml-sync: found unrecognised field: %+v", field)
				}
				if n != 0 {
					cmd.Flags().Set(key, strconv.Itoa(n))
				}

			case reflect.Slice:
				ss, ok := field.Value().([]string)
				if !ok {
					return fmt.Errorf("tml-sync: found unrecognised field: %+v", field)
				}
				for _, s := range ss {
					// yes, repeatedly calling Set() appends to the slice...
					cmd.Flags().Set(key, s)
				}

			default:
				return fmt.Errorf("tml-sync: found unrecognised field: %+v", field)
			}
		}
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Flags are only available after (or inside, presumably) the .Execute() thing.
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("tml-sync: execution error: %w", err)
	}

	return nil
}
