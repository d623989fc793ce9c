package main

import (
	"fmt"
	"os"

	"github.com/2beens/wodcareer/internal/catalog"
	"github.com/2beens/wodcareer/internal/config"

	"github.com/spf13/cobra"
)

var (
	envFlag         string
	configPathFlag  string
	catalogFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the wodcareer reference catalog",
	Long: `Catalog manages the reference rows the engine reads: physical
capacities, achievements and missions, plus the fixed level curve.

EXAMPLES:

  catalog validate                      # check the embedded catalog
  catalog validate -f ./catalog.yaml    # check a custom catalog file
  catalog seed -e production            # upsert the catalog in postgres
  catalog levels --to 10                # print the first 10 levels
  catalog session open 7                # issue a session for athlete 7`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "development", "config environment [dev | development | prod | production]")
	rootCmd.PersistentFlags().StringVarP(&configPathFlag, "config", "c", "./config.toml", "path for the TOML config file")
	rootCmd.PersistentFlags().StringVarP(&catalogFileFlag, "file", "f", "", "catalog YAML file (the embedded catalog when empty)")

	rootCmd.AddCommand(validateCmd, seedCmd, levelsCmd, sessionCmd)
}

// loadCatalog reads --file, falling back to the embedded catalog.
func loadCatalog() (*catalog.Catalog, error) {
	if catalogFileFlag == "" {
		return catalog.Default(), nil
	}
	f, err := os.Open(catalogFileFlag)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return catalog.Read(f)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFlag, configPathFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
