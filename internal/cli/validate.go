package cli

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"streamgen/internal/config"
	"streamgen/internal/keys"
	"streamgen/internal/schema"
)

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file without running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := config.Load(configPath)
			if err != nil {
				return err
			}

			dicts, err := loadDictionaries(app.Dictionaries)
			if err != nil {
				return err
			}

			// Compile the schema and key strategy exactly as a running
			// producer would; this is the whole point of the verb.
			pcfg := app.ProducerConfig()
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			if _, err := schema.Compile(pcfg.Fields, dicts, rng, time.Now); err != nil {
				return err
			}
			if _, err := keys.Compile(pcfg.Key, pcfg.Fields, time.Now); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "configuration is valid\n")
			fmt.Fprintf(os.Stdout, "producer: %s (%s, %s)\n", pcfg.Name, pcfg.Sink.Type, pcfg.Cadence)
			fmt.Fprintf(os.Stdout, "fields: %d, dictionaries: %d\n", len(pcfg.Fields), len(app.Dictionaries))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	cmd.MarkFlagRequired("config")
	return cmd
}
