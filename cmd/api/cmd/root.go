package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd runs serve when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "ShipOrbit API server",
	Long: `api serves the ShipOrbit shipper, accounts and payments API.
Configuration comes from environment variables, for example:

export DATABASE_DRIVER=postgres
export POSTGRES_DB=shiporbit POSTGRES_USER=shiporbit POSTGRES_PASSWORD=secret
export FRONTEND_URL=https://shiporbit.ahmedelbilal.com
export STRIPE_SECRET_KEY=sk_live_...
api serve --listen 0.0.0.0:8000 --workers 3
`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("listen", "0.0.0.0:8000", "<ip>:<port> to listen on")
	rootCmd.PersistentFlags().Int("workers", 3, "number of listener processes")
	_ = viper.BindPFlag("listen", rootCmd.PersistentFlags().Lookup("listen"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
}

// initConfig reads everything from the environment, no config file.
func initConfig() {
	viper.AutomaticEnv()

	viper.SetDefault("database_driver", "postgres")
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", "5432")
	viper.SetDefault("sqlite_path", "shiporbit.db")
	viper.SetDefault("db_connect_timeout", "30s")
	viper.SetDefault("allowed_host", "")
	viper.SetDefault("frontend_url", "http://127.0.0.1:5173")
	viper.SetDefault("resend_api_key", "")
	viper.SetDefault("default_from_email", "ShipOrbit <shiporbit@ahmedelbilal.com>")
	viper.SetDefault("geodb_api_key", "")
	viper.SetDefault("geodb_api_host", "wft-geo-db.p.rapidapi.com")
	viper.SetDefault("geodb_base_url", "https://wft-geo-db.p.rapidapi.com/v1/geo")
	viper.SetDefault("stripe_secret_key", "")
	viper.SetDefault("stripe_webhook_secret", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("log_file", "stdout")
}
