package main

import (
	"errors"
	"os"

	"github.com/MarcoPoloResearchLab/register/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	exportPath string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serveRun := func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	}

	rootCmd := &cobra.Command{
		Use:   "register-api",
		Short: "Appointment register service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE:         serveRun,
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the register over HTTP",
		RunE:  serveRun,
	}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the register as a fixed-width sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrint(cmd.Context(), cmd.OutOrStdout())
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export every appointment as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd.OutOrStdout(), exportPath)
		},
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Write the export to a file instead of stdout")

	setupFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, printCmd, exportCmd)
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-name", defaults.GetString("database.name"), "Register database name")
	cmd.PersistentFlags().Int("database-version", defaults.GetInt("database.version"), "Register schema version")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("bulk-max-parallel", defaults.GetInt("bulk.max_parallel"), "Concurrent deletes during bulk delete")
	cmd.PersistentFlags().Int("heartbeat-seconds", defaults.GetInt("stream.heartbeat_seconds"), "Event stream heartbeat interval in seconds")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.name", "database-name")
	bindFlag(cmd, "database.version", "database-version")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "bulk.max_parallel", "bulk-max-parallel")
	bindFlag(cmd, "stream.heartbeat_seconds", "heartbeat-seconds")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}
