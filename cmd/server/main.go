package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var version = "dev"

type rootOptions struct {
	configFile string
	envFile    string
	viper      *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{viper: viper.New()}

	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Voice interview service",
		Long: `Runs the voice interview service: recruiters publish interviews, candidates
answer recorded questions, and answers are transcribed and scored in the
background.`,
		Version:      version,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Optional YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	_ = opts.viper.BindPFlag("log.level", flags.Lookup("log-level"))

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	return cmd
}

// load reads the dotenv file, configuration and builds the logger.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load %s: %w", o.envFile, err)
		}
	}
	if o.configFile != "" {
		o.viper.SetConfigFile(o.configFile)
	}

	cfg, err := config.LoadConfig(o.viper)
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
