package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WelcomerTeam/Toast"
	"github.com/WelcomerTeam/Toast/mqclients"
	"github.com/WelcomerTeam/Toast/rest"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	envPaths   []string
)

var rootCmd = &cobra.Command{
	Use:           "toast",
	Short:         "Toast runs the gateway shards of a Discord bot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect every configured shard and publish dispatches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, logger, err := setup(cmd.Context())
		if err != nil {
			return err
		}

		return run(cmd.Context(), config, logger)
	},
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Print the gateway and session start limit of the token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, logger, err := setup(cmd.Context())
		if err != nil {
			return err
		}

		restOptions, err := config.RESTOptions()
		if err != nil {
			return err
		}

		restOptions.Logger = logger

		gateway, err := rest.NewClient(restOptions).GetGatewayBot(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get gateway: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "url: %s\nshards: %d\nsession start limit: %d/%d (max concurrency %d, resets in %s)\n",
			gateway.URL,
			gateway.Shards,
			gateway.SessionStartLimit.Remaining,
			gateway.SessionStartLimit.Total,
			gateway.SessionStartLimit.MaxConcurrency,
			time.Duration(gateway.SessionStartLimit.ResetAfter)*time.Millisecond,
		)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), toast.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "toast.yaml", "path to the yaml configuration")
	rootCmd.PersistentFlags().StringSliceVar(&envPaths, "env-file", nil, "dotenv files to load before reading the environment")

	rootCmd.AddCommand(runCmd, gatewayCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)

		stop()
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*toast.Configuration, zerolog.Logger, error) {
	if err := toast.LoadDotEnv(envPaths...); err != nil {
		return nil, zerolog.Nop(), err
	}

	path := configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// Environment only.
		path = ""
	}

	config, err := toast.NewConfigProviderFromPath(path).GetConfig(ctx)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	logger, err := newLogger(config.Logging)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	return config, logger, nil
}

func newLogger(config toast.LoggingConfiguration) (zerolog.Logger, error) {
	level := zerolog.InfoLevel

	if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to parse log level: %w", err)
		}
	}

	var writer io.Writer = os.Stdout

	if config.Console {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.StampMilli}
	}

	if config.FilePath != "" {
		writer = zerolog.MultiLevelWriter(writer, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		})
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}

func run(ctx context.Context, config *toast.Configuration, logger zerolog.Logger) error {
	bus := toast.NewEventBus()

	restOptions, err := config.RESTOptions()
	if err != nil {
		return err
	}

	restOptions.Logger = logger.With().Str("component", "rest").Logger()
	restOptions.Hooks = bus.RESTHooks()

	client := rest.NewClient(restOptions)

	managerOptions, err := config.ManagerOptions()
	if err != nil {
		return err
	}

	managerOptions.Logger = logger

	if config.Identify.URL != "" {
		managerOptions.IdentifyProvider = toast.NewIdentifyViaURL(config.Identify.URL, config.Identify.Headers)
	} else {
		managerOptions.IdentifyProvider = toast.NewIdentifyViaBuckets()
	}

	manager := toast.NewManager(managerOptions, client, bus)

	logEvents(logger, bus)

	var producer *toast.Producer

	if config.Producer.Type != "" {
		mqClient, err := mqclients.NewMQClient(config.Producer.Type)
		if err != nil {
			return err
		}

		if err := mqClient.Connect(ctx, config.Identifier, config.Producer.ProducerArgs()); err != nil {
			return fmt.Errorf("failed to connect producer: %w", err)
		}

		producer = toast.NewProducer(logger, mqClient, config.Producer.Channel, manager.ShardCount, config.Producer.Blacklist)
		producer.Attach(bus)

		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close producer")
			}
		}()
	}

	var statusServer *toast.StatusServer

	if config.HTTP.Address != "" {
		statusServer = toast.NewStatusServer(logger, manager, client, producer)

		go func() {
			if err := statusServer.ListenAndServe(config.HTTP.Address); err != nil {
				logger.Error().Err(err).Msg("Status api stopped")
			}
		}()
	}

	if err := manager.Connect(ctx); err != nil {
		manager.Destroy()

		return fmt.Errorf("failed to connect: %w", err)
	}

	<-ctx.Done()

	logger.Info().Msg("Shutting down")

	manager.Destroy()

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to shut down status api")
		}
	}

	return nil
}

func logEvents(logger zerolog.Logger, bus *toast.EventBus) {
	bus.On(toast.EventClientReady, func(toast.Event) {
		logger.Info().Msg("Client is ready")
	})

	bus.On(toast.EventShardDisconnect, func(event toast.Event) {
		logger.Warn().Int32("shard_id", event.ShardID).Int("code", event.Code).Msg("Shard disconnected")
	})

	bus.On(toast.EventInvalidated, func(toast.Event) {
		logger.Error().Msg("Session was invalidated")
	})

	bus.On(toast.EventInvalidRequestWarning, func(event toast.Event) {
		logger.Warn().Int("count", event.Warning.Count).Dur("remaining", event.Warning.RemainingTime).Msg("Invalid request warning")
	})
}
