package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loganalyzer/logview/pkg/config"
	"github.com/loganalyzer/logview/pkg/highlighter"
	"github.com/loganalyzer/logview/pkg/logging"
	"github.com/loganalyzer/logview/pkg/models"
	"github.com/loganalyzer/logview/pkg/ui"
	"github.com/loganalyzer/logview/pkg/viewer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const version = "v1.0.0"

var (
	// Global flags
	configFile string
	debug      bool

	// Stream flags
	streamURL  string
	account    string
	cluster    string
	trackingID string
	theme      string
	savedQuery string
	regexQuery bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "logview",
	Short: "logview - real-time log stream viewer",
	Long: `logview subscribes to a log stream over WebSocket and shows it live in the
terminal, with fuzzy and regex search, syntax highlighting and tail following.

Examples:
  logview --account acme --cluster prod --tracking-id web
  logview --url wss://logs.example.com/logs --tracking-id web --query "timeout"
  logview serve --dir ./logs                  # development log server`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runViewer,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/logview/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	rootCmd.Flags().StringVar(&streamURL, "url", "", "log stream endpoint (ws:// or wss://)")
	rootCmd.Flags().StringVar(&account, "account", "", "account of the stream")
	rootCmd.Flags().StringVar(&cluster, "cluster", "", "cluster of the stream")
	rootCmd.Flags().StringVar(&trackingID, "tracking-id", "", "tracking id of the stream")
	rootCmd.Flags().StringVar(&theme, "theme", "", "color theme (dark, light, monochrome or a chroma style)")
	rootCmd.Flags().StringVar(&savedQuery, "query", "", "start with a search query")
	rootCmd.Flags().BoolVar(&regexQuery, "regex", false, "match the query as a regular expression")

	rootCmd.AddCommand(versionCmd, configCmd, validateCmd, serveCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configThemesCmd)
}

// loadConfig loads the configuration and applies the command line flags
func loadConfig(cmd *cobra.Command) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(configFile)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Stream.URL = streamURL
	}
	if flags.Changed("account") {
		cfg.Stream.Account = account
	}
	if flags.Changed("cluster") {
		cfg.Stream.Cluster = cluster
	}
	if flags.Changed("tracking-id") {
		cfg.Stream.TrackingID = trackingID
	}
	if flags.Changed("theme") {
		cfg.UI.Theme = theme
	}
	if regexQuery {
		cfg.Search.Mode = string(models.SearchRegex)
	}
	if debug {
		cfg.General.LogLevel = "debug"
	}
	return loader, cfg, nil
}

// runViewer is the main execution function
func runViewer(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := logging.Setup(cfg.General, true)
	if err != nil {
		return err
	}
	defer closer.Close()
	hook := logging.NewStatusHook(64)
	logger.AddHook(hook)

	opts := viewer.OptionsFromConfig(cfg)
	opts.Logger = logger
	opts.Query.Text = savedQuery
	v := viewer.New(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, v, cfg, hook.Entries())
	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	loader.Watch(func(c *config.Config, err error) {
		if err == nil {
			logger.WithField("path", loader.Path()).Info("configuration reloaded")
		}
		program.Send(ui.ConfigMsg{Config: c, Err: err})
	})

	logger.WithFields(logrus.Fields{
		"url": opts.URL,
		"key": opts.Key.String(),
	}).Info("starting viewer")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return v.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		program.Quit()
		return nil
	})

	err = g.Wait()
	model.Stop()
	return err
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("logview %s\n", version)
		fmt.Println("Built with Go and Bubble Tea")
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

// configShowCmd prints the effective configuration as YAML
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Printf("# Configuration loaded from: %s\n", loader.Path())
		fmt.Print(string(out))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := config.NewLoader(configFile)
		if err != nil {
			return err
		}
		fmt.Println(loader.Path())
		return nil
	},
}

var configThemesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List the built-in themes",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range highlighter.ThemeNames() {
			fmt.Println(name)
		}
		fmt.Println("(any chroma style name is accepted as well)")
	},
}

// validateCmd validates the configuration
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			var joined interface{ Unwrap() []error }
			if errors.As(err, &joined) {
				for _, e := range joined.Unwrap() {
					fmt.Fprintf(os.Stderr, "✗ %v\n", e)
				}
			} else {
				fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			}
			return fmt.Errorf("%s is invalid", loader.Path())
		}

		fmt.Printf("✓ Configuration %s is valid\n", loader.Path())
		fmt.Printf("Theme: %s\n", cfg.UI.Theme)
		fmt.Printf("Stream: %s (%s)\n", cfg.Stream.URL, cfg.Key())
		fmt.Printf("Highlight Rules: %d\n", len(cfg.HighlightRules))
		return nil
	},
}
