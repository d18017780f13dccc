package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shiporbit/shiporbit/internal/adapters/geodb"
	httpapi "github.com/shiporbit/shiporbit/internal/adapters/http"
	"github.com/shiporbit/shiporbit/internal/adapters/resend"
	"github.com/shiporbit/shiporbit/internal/adapters/stripe"
	"github.com/shiporbit/shiporbit/internal/core/ports"
	"github.com/shiporbit/shiporbit/internal/core/services"
	"github.com/shiporbit/shiporbit/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		done, err := setupLogging()
		if err != nil {
			return err
		}
		defer done()

		listen := viper.GetString("listen")
		workers := viper.GetInt("workers")
		if workers < 1 {
			return fmt.Errorf("--workers must be at least 1, not %d", workers)
		}
		// Prefork starts one child per GOMAXPROCS; each child runs on a single core.
		if workers > 1 && !fiber.IsChild() {
			runtime.GOMAXPROCS(workers)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		frontend := strings.TrimSuffix(viper.GetString("frontend_url"), "/")

		var mailer ports.Mailer = resend.LogMailer{}
		if key := viper.GetString("resend_api_key"); key != "" {
			mailer = resend.NewMailer(key, viper.GetString("default_from_email"))
		} else {
			log.Warn("RESEND_API_KEY not set, emails are logged instead of sent")
		}

		geo := geodb.NewClient(geodb.Config{
			BaseURL: viper.GetString("geodb_base_url"),
			APIKey:  viper.GetString("geodb_api_key"),
			APIHost: viper.GetString("geodb_api_host"),
		})
		gateway := stripe.New(viper.GetString("stripe_secret_key"), viper.GetString("stripe_webhook_secret"), nil)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		app := httpapi.NewApp(httpapi.Config{
			AllowedHosts:   []string{viper.GetString("allowed_host")},
			AllowedOrigins: []string{frontend},
			Prefork:        workers > 1,
			Registry:       reg,
			Version:        version.Version,
		}, httpapi.Services{
			Accounts: services.NewAccountService(store, mailer, frontend),
			Shipper:  services.NewShipperService(store, store, geo),
			Billing:  services.NewBillingService(store, store, store, gateway, frontend),
		})

		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(sctx); err != nil {
				log.WithError(err).Error("shutdown")
			}
		}()

		if !fiber.IsChild() {
			log.WithFields(log.Fields{
				"listen":   listen,
				"workers":  workers,
				"version":  version.Version,
				"database": viper.GetString("database_driver"),
				"frontend": frontend,
			}).Info("api starting")
		}
		if err := app.Listen(listen); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
