// Package main provides the gemchat CLI application entry point.
// gemchat is a terminal chat client for hosted large-language-model APIs.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gemchat/internal/config"
	"gemchat/internal/logger"
	"gemchat/internal/output"
	"gemchat/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		newPrinter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	v      *viper.Viper
	loader *config.Loader
	cfg    *config.Config
}

func newRootCmd() *cobra.Command {
	return newCommand(config.NewLoader())
}

// newCommand builds the command tree. Each call gets its own viper instance so
// tests can run commands side by side.
func newCommand(loader *config.Loader) *cobra.Command {
	c := &cli{v: viper.New(), loader: loader}

	rootCmd := &cobra.Command{
		Use:   "gemchat",
		Short: "gemchat - chat with Gemini from the terminal",
		Long: `gemchat is a conversational chat client for hosted large-language-model APIs.
Conversations are kept as sessions and persisted between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig(cmd)
		},
		RunE: c.runChat, // Default behavior is the interactive chat screen
	}

	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyLogLevel, "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String(config.KeyLogFile, "", "Write logs to file instead of stderr")
	flags.String(config.KeyProvider, "", fmt.Sprintf("Model provider (%s) [default: %s]", joinProviders(), config.DefaultProvider))
	flags.String(config.KeyModel, "", "Model id [default: the provider's default model]")
	flags.String(config.KeyStore, "", "Session store (sqlite|file|memory) [default: sqlite]")
	flags.String(config.KeyDataDir, "", "Directory for stored sessions [default: user config dir]")

	for _, key := range []string{config.KeyLogLevel, config.KeyLogFile, config.KeyProvider, config.KeyModel, config.KeyStore, config.KeyDataDir} {
		if err := c.v.BindPFlag(key, flags.Lookup(key)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", key, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(c.newChatCmd())
	rootCmd.AddCommand(c.newAskCmd())
	rootCmd.AddCommand(c.newSessionsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version of gemchat.`,
		// version needs neither configuration nor a log file
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			if detailed {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Show build details")
	return cmd
}

// initConfig resolves configuration and configures the logger before any command runs.
func (c *cli) initConfig(cmd *cobra.Command) error {
	cfg, err := c.loader.Load(c.v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}
	logger.Debug("Configuration loaded",
		"command", cmd.Name(),
		"provider", cfg.Provider,
		"store", cfg.Store,
		"config_env", cfg.Paths.ConfigEnvLoaded,
		"local_env", cfg.Paths.LocalEnvLoaded)
	return nil
}

func joinProviders() string {
	return strings.Join(config.SupportedProviders(), "|")
}

// newPrinter returns a message printer that styles only real color terminals.
func newPrinter(w io.Writer) *output.Printer {
	return output.NewPrinter(output.WithWriter(w), output.WithStyles(output.NewLipglossStyleProvider(w)))
}

// quietLogs keeps log lines off the terminal while the alternate screen owns it,
// unless the user asked for a log file.
func quietLogs(cfg *config.Config) {
	if cfg.LogFile == "" {
		logger.SetOutput(io.Discard)
	}
}
