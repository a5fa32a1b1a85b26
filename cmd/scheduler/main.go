package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/studio-scheduler/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, envFile string

	root := &cobra.Command{
		Use:           "scheduler",
		Short:         "Studio session scheduling API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile == "" {
				return nil
			}
			return config.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with SCHEDULER_* overrides")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context(), *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Serve(cmd.Context())
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore(cmd.Context(), *configPath, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := store.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore(cmd.Context(), *configPath, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer store.Close()

			status, err := store.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			current := status.CurrentVersion
			if current == "" {
				current = "none"
			}
			_, _ = fmt.Fprintf(out, "current version: %s\n", current)
			for _, m := range status.Applied {
				_, _ = fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			for _, m := range status.Pending {
				_, _ = fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Description)
			}
			return nil
		},
	})
	return migrate
}
