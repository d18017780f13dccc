package cmd

import (
	"context"
	"errors"

	"github.com/spf13/viper"

	"github.com/shiporbit/shiporbit/internal/adapters/logging"
	"github.com/shiporbit/shiporbit/internal/adapters/sqlstore"
)

func setupLogging() (func(), error) {
	closer, err := logging.Setup(logging.Config{
		Level:  viper.GetString("log_level"),
		Format: viper.GetString("log_format"),
		File:   viper.GetString("log_file"),
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = closer.Close() }, nil
}

func openStore(ctx context.Context) (*sqlstore.Store, error) {
	cfg := sqlstore.Config{
		Driver:         viper.GetString("database_driver"),
		ConnectTimeout: viper.GetDuration("db_connect_timeout"),
	}
	switch cfg.Driver {
	case sqlstore.Postgres:
		name, user := viper.GetString("postgres_db"), viper.GetString("postgres_user")
		if name == "" || user == "" {
			return nil, errors.New("POSTGRES_DB and POSTGRES_USER must be set")
		}
		cfg.DSN = sqlstore.PostgresDSN(
			viper.GetString("postgres_host"),
			viper.GetString("postgres_port"),
			name, user,
			viper.GetString("postgres_password"),
		)
	case sqlstore.SQLite:
		cfg.DSN = viper.GetString("sqlite_path")
	}
	return sqlstore.Open(ctx, cfg)
}
