package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		done, err := setupLogging()
		if err != nil {
			return err
		}
		defer done()

		store, err := openStore(context.Background())
		if err != nil {
			return err
		}
		defer store.Close()
		log.WithField("driver", viper.GetString("database_driver")).Info("schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
