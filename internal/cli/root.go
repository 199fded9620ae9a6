// Package cli implements the enquote command line.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/enquote/internal/app"
	"github.com/dshills/enquote/internal/project/vfs"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// ValidLogFormats are the accepted values of --log-format.
var ValidLogFormats = []string{"", "text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Workspace  string
	Verbose    bool
	LogFormat  string

	// fs, environ and userConfigDir replace the process environment in
	// tests.
	fs            vfs.VFS
	environ       func() []string
	userConfigDir string
}

// NewRootCommand creates the root command for the enquote CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "enquote",
		Short:   "Replace typed quotes with csquotes commands",
		Long:    "enquote turns a typed \" into \\enquote{ or } in LaTeX documents that use csquotes.",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidLogFormat(opts.LogFormat) {
				return NewExitError(ExitUsage, fmt.Sprintf("invalid log format %q: must be text or json", opts.LogFormat))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetFlagErrorFunc(usageFlagError)

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to the user configuration file")
	cmd.PersistentFlags().StringVarP(&opts.Workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewDetectCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewNvimCommand(opts))

	return cmd
}

// appOptions builds application options from the global flags. Logs go
// to logOutput.
func (o *RootOptions) appOptions(workspace string, logOutput io.Writer) app.Options {
	if workspace == "" {
		workspace = o.Workspace
	}
	return app.Options{
		ConfigFile:    o.ConfigFile,
		UserConfigDir: o.userConfigDir,
		WorkspacePath: workspace,
		Verbose:       o.Verbose,
		LogFormat:     o.LogFormat,
		LogOutput:     logOutput,
		FS:            o.fs,
		Environ:       o.environ,
	}
}

// workspaceOrCwd returns the workspace flag, or "." when it is unset.
func (o *RootOptions) workspaceOrCwd() string {
	if o.Workspace == "" {
		return "."
	}
	return o.Workspace
}

func isValidLogFormat(format string) bool {
	for _, f := range ValidLogFormats {
		if f == format {
			return true
		}
	}
	return false
}
