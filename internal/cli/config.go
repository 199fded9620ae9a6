package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/enquote/internal/app"
	"github.com/dshills/enquote/internal/config"
)

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write enquote settings",
	}

	cmd.AddCommand(newConfigGetCommand(rootOpts))
	cmd.AddCommand(newConfigSetCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigFilesCommand(rootOpts))

	return cmd
}

func newConfigGetCommand(opts *RootOptions) *cobra.Command {
	var showSource bool
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the effective value of a setting",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(opts, cmd, func(cfg *config.Config) error {
				v, ok := cfg.Get(args[0])
				if !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("%s is not set", args[0]))
				}
				if showSource {
					src, _ := cfg.Source(args[0])
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "%v\t%s\n", v, src)
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), v)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&showSource, "source", false, "also print the layer the value comes from")
	return cmd
}

func newConfigSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Write a setting to the workspace .vscode/settings.json",
		Long: `Write KEY = VALUE to .vscode/settings.json in the workspace, next to
the other LaTeX Workshop settings. The value is validated first.

Examples:
  enquote config set enquote.active true
  enquote config set latex.rootFile thesis.tex`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(opts, cmd, func(cfg *config.Config) error {
				if err := cfg.WriteWorkspaceSetting(cmd.Context(), args[0], args[1]); err != nil {
					return WrapExitError(ExitFailure, "failed to write setting", err)
				}
				return nil
			})
		},
	}
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	var merged bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(opts, cmd, func(cfg *config.Config) error {
				var v any
				if merged {
					v = cfg.Merged()
				} else {
					sections, err := cfg.Sections()
					if err != nil {
						return WrapExitError(ExitFailure, "invalid configuration", err)
					}
					v = sections
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(v); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	}
	cmd.Flags().BoolVar(&merged, "merged", false, "include settings enquote does not know")
	return cmd
}

func newConfigFilesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List the configuration files that are read",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(opts, cmd, func(cfg *config.Config) error {
				for _, f := range cfg.Files() {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), f); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// withConfig loads the configuration without user scripts and calls fn.
func withConfig(opts *RootOptions, cmd *cobra.Command, fn func(*config.Config) error) error {
	appOpts := opts.appOptions(opts.workspaceOrCwd(), cmd.ErrOrStderr())
	appOpts.DisableScripts = true
	application, err := app.New(appOpts)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load configuration", err)
	}
	defer application.Close()
	return fn(application.Config())
}
