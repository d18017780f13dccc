package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Print the image references a release would push",
	RunE: func(cmd *cobra.Command, args []string) error {
		if env.Username == "" {
			return errors.New("DOCKERHUB_USERNAME must be set")
		}
		raw, err := os.ReadFile(filepath.Join(env.BuildContext, env.VersionFile))
		if err != nil {
			return fmt.Errorf("failed to read version file: %w", err)
		}
		version, err := domain.ParseVersion(string(raw))
		if err != nil {
			return err
		}
		rel := domain.Release{Repository: domain.Repository(env.Username, env.ImageName), Version: version}
		for _, ref := range rel.Tags() {
			fmt.Fprintln(cmd.OutOrStdout(), ref)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}
