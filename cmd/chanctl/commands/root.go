package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chanctl/chanctl/internal/config"
	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/output"
	"github.com/chanctl/chanctl/internal/snapshot"
	"github.com/chanctl/chanctl/internal/source"
)

var (
	cfgFile  string
	settings *config.Settings
	log      logger.Logger
	renderer *output.Renderer

	connCache = config.NewCache()
)

var rootCmd = &cobra.Command{
	Use:   "chanctl",
	Short: "Reconcile gateway channel records against declared state",
	Long: `chanctl reads the channel list of an AI gateway, selects records with
declarative filters, computes the minimal set of field changes, and applies
them after a preview and confirmation. Every run snapshots the records it is
about to touch so it can be undone.

Supported gateway flavors: newapi and voapi.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the CLI and returns its terminal error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && log != nil {
		log.Error("run failed", err)
		if errors.IsKind(err, errors.KindConfig) && renderer != nil {
			renderer.Warn("configuration problem, check the connection and rules documents")
		}
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is $HOME/.chanctl/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "skip interactive confirmations")
	rootCmd.PersistentFlags().Bool("dry-run", false, "preview changes without applying them")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newUndoCommand())
	rootCmd.AddCommand(newTestCommand())
	rootCmd.AddCommand(newFindKeyCommand())
	rootCmd.AddCommand(newSnapshotsCommand())
	rootCmd.AddCommand(newCrossCommand())
	rootCmd.AddCommand(newVersionCommand())
}

func initConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home + "/.chanctl")
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			// A missing default settings file is fine.
			_ = v.ReadInConfig()
		}
	}

	var err error
	settings, err = config.LoadSettings(v)
	if err != nil {
		return err
	}

	log = logger.New(settings.LogLevel)
	renderer = output.NewRenderer(os.Stdout, settings.NoColor)
	return nil
}

// buildSource creates the vendor client for a loaded connection.
func buildSource(conn *config.Connection) (source.Source, error) {
	client := source.NewClient(settings.RequestInterval(), log)
	return source.New(conn.APIType, source.Options{
		BaseURL:  conn.SiteURL,
		Token:    conn.APIToken,
		UserID:   conn.UserID,
		PageSize: settings.PageSize(conn.APIType),
		MaxPages: settings.MaxPages,
	}, client, log)
}

// buildSnapshotManager creates the snapshot store over the configured
// state directories.
func buildSnapshotManager() (*snapshot.Manager, error) {
	if err := settings.EnsureDirs(); err != nil {
		return nil, err
	}
	return snapshot.NewManager(settings.SnapshotDir(), settings.BackupDir(), log), nil
}
