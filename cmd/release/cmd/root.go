package cmd

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/shiporbit/shiporbit/internal/adapters/logging"
)

// Env is read from the CI environment; secrets never come from flags.
type Env struct {
	Username     string `envconfig:"DOCKERHUB_USERNAME"`
	Token        string `envconfig:"DOCKERHUB_TOKEN"`
	Server       string `envconfig:"REGISTRY_SERVER" default:"https://index.docker.io/v1/"`
	ImageName    string `envconfig:"IMAGE_NAME" default:"shiporbit-api"`
	HookURL      string `envconfig:"RENDER_DEPLOY_HOOK_URL"`
	Branch       string `envconfig:"RELEASE_BRANCH" default:"main"`
	VersionFile  string `envconfig:"VERSION_FILE" default:"VERSION"`
	BuildContext string `envconfig:"BUILD_CONTEXT" default:"."`
	Dockerfile   string `envconfig:"DOCKERFILE" default:"Dockerfile"`
	RefName      string `envconfig:"GITHUB_REF_NAME"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogFile   string `envconfig:"LOG_FILE" default:"stderr"`
}

var env Env

var rootCmd = &cobra.Command{
	Use:   "release",
	Short: "Build, tag, push and deploy the API image",
	Long: `release builds the API image from the checkout, tags it with latest and the
content of the VERSION file, pushes both tags and calls the deploy hook.
Configuration comes from the environment, for example:

export DOCKERHUB_USERNAME=shiporbit
export DOCKERHUB_TOKEN=dckr_pat_...
export RENDER_DEPLOY_HOOK_URL=https://api.render.com/deploy/srv-...
release run --branch-from-env
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := envconfig.Process("", &env); err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
		_, err := logging.Setup(logging.Config{Level: env.LogLevel, Format: env.LogFormat, File: env.LogFile})
		return err
	},
}

// Execute is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
