package client

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/taskboard/internal/config"
	logpkg "github.com/rzbill/taskboard/pkg/log"
)

// NewRoot constructs the root command. Its pre-run loads configuration into
// env; the channel and board command groups are registered on it.
func NewRoot(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskboard",
		Short:         "Collaborative task board",
		Long:          "taskboard keeps a shared task board in sync between participants over a relay, Redis or an in-process channel.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.load(cmd)
		},
	}
	root.PersistentFlags().String("config", os.Getenv("TASKBOARD_CONFIG"), "Config file (JSON or YAML)")
	root.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error (default log.level)")
	root.PersistentFlags().String("log-format", "", "Log format: text|json (default log.format)")
	root.AddCommand(NewChannelCommand(env), NewBoardCommand(env))
	return root
}

func (e *Env) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	e.Config = cfg
	if e.Participant == "" {
		e.Participant = uuid.NewString()
	}
	if e.Logger == nil {
		logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return err
		}
		// pebble and grpc log through the standard logger
		logpkg.RedirectStdLog(logger)
		e.Logger = logger
	}
	return nil
}
