package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shiporbit/shiporbit/internal/adapters/builder"
	"github.com/shiporbit/shiporbit/internal/adapters/deployhook"
	"github.com/shiporbit/shiporbit/internal/adapters/docker"
	"github.com/shiporbit/shiporbit/internal/adapters/git"
	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
	"github.com/shiporbit/shiporbit/internal/core/services"
)

var (
	repoURL       string
	branchFromEnv bool
	smoke         bool
	smokeTimeout  time.Duration
	dryRun        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the release pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dryRun {
			var missing []string
			for name, v := range map[string]string{
				"DOCKERHUB_USERNAME":     env.Username,
				"DOCKERHUB_TOKEN":        env.Token,
				"RENDER_DEPLOY_HOOK_URL": env.HookURL,
			} {
				if v == "" {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.ErrOrStderr()
		var (
			imageBuilder ports.ImageBuilder
			containers   ports.ContainerService
		)
		if !dryRun {
			b, err := builder.NewBuilderAdapter(out)
			if err != nil {
				return err
			}
			imageBuilder = b
		}
		if smoke && !dryRun {
			d, err := docker.NewAdapter()
			if err != nil {
				return err
			}
			containers = d
		}

		cfg := services.ReleaseConfig{
			Account:     env.Username,
			ImageName:   env.ImageName,
			Branch:      env.Branch,
			VersionFile: env.VersionFile,
			ContextDir:  env.BuildContext,
			Dockerfile:  env.Dockerfile,
			Credentials: domain.RegistryCredentials{
				Username:      env.Username,
				Password:      env.Token,
				ServerAddress: env.Server,
			},
			RepoURL:      repoURL,
			Smoke:        smoke,
			SmokeTimeout: smokeTimeout,
			DryRun:       dryRun,
		}
		if branchFromEnv {
			cfg.BranchOverride = env.RefName
		}

		p := services.NewReleasePipeline(git.NewSource(out), imageBuilder, containers, deployhook.New(env.HookURL, 0), cfg)
		defer func() {
			if err := p.Cleanup(); err != nil {
				log.WithError(err).Warn("failed to remove clone")
			}
		}()

		report, err := p.Run(ctx)
		printReport(cmd.OutOrStdout(), report)
		if errors.Is(err, domain.ErrBranchNotTriggered) {
			log.WithField("branch", env.Branch).Info("not the release branch, nothing to do")
			return nil
		}
		return err
	},
}

func printReport(w io.Writer, r *services.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Step", "Result", "Status"})
	for _, s := range r.Steps {
		status := "ok"
		if s.Err != nil {
			status = "failed: " + s.Err.Error()
		}
		t.AppendRow(table.Row{s.Step, s.Duration.Round(time.Millisecond), status})
	}
	if r.Release.Version != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"tags", strings.Join(r.Release.Tags(), "\n"), ""})
	}
	if r.HookStatus != 0 {
		t.AppendRow(table.Row{"hook", r.HookStatus, ""})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func init() {
	runCmd.Flags().StringVar(&repoURL, "repo", "", "clone this repository instead of using BUILD_CONTEXT")
	runCmd.Flags().BoolVar(&branchFromEnv, "branch-from-env", false, "take the branch of a detached checkout from GITHUB_REF_NAME")
	runCmd.Flags().BoolVar(&smoke, "smoke", false, "start the built image on sqlite and wait for /healthz before pushing")
	runCmd.Flags().DurationVar(&smokeTimeout, "smoke-timeout", 30*time.Second, "how long the smoke test waits")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve the checkout and version only")
	rootCmd.AddCommand(runCmd)
}
