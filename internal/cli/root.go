package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/normware/internal/config"
)

// RootOptions holds global flags for all commands, resolved against the
// config file and NORMWARE_* environment before any command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	LogLevel   string
	Schemas    string // CUE schema directory
	Journal    string // SQLite journal path, empty for none

	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the normware CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "normware",
		Short: "normware - normalizing action middleware",
		Long: `Dispatch actions through a normalizing middleware.

Actions whose meta names a schema have their nested payload flattened into
an entities map keyed by id; every other action passes through untouched.
Schemas are written in CUE.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./normware.yaml or ~/.normware/normware.yaml)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.Schemas, "schemas", "", "CUE schema directory")
	flags.StringVar(&opts.Journal, "journal", "", "SQLite action journal")

	// Add subcommands
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// resolve merges flags over environment over config file, then installs
// the logger. Only flags set on the command line override the other sources.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	v := config.NewViper(o.ConfigFile)
	if err := bindFlags(v, cmd); err != nil {
		return WrapExitError(ExitCommandError, "failed to bind flags", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Format = cfg.Format
	o.LogLevel = cfg.LogLevel
	o.Schemas = cfg.Schemas
	o.Journal = cfg.Journal
	o.Logger = newLogger(cmd.ErrOrStderr(), cfg, o.Verbose)
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	for key, name := range map[string]string{
		"format":    "format",
		"log_level": "log-level",
		"schemas":   "schemas",
		"journal":   "journal",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// newLogger writes logs to w (stderr) so they never mix with command output.
// --verbose lowers the level to debug.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// logger returns the resolved logger, or a discarding one when commands
// are run without the root command (as in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
