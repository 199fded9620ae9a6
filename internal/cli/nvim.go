package cli

import (
	"context"
	"io"
	"os"

	"github.com/neovim/go-client/nvim"
	"github.com/spf13/cobra"

	"github.com/dshills/enquote/internal/app"
	nvimhost "github.com/dshills/enquote/internal/host/nvim"
	"github.com/dshills/enquote/internal/logging"
)

// NewNvimCommand creates the nvim command.
func NewNvimCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "nvim",
		Short: "Serve Neovim over standard input and output",
		Long: `Run as a Neovim remote plugin on stdio. Start it from Neovim with

  call jobstart(['enquote', 'nvim'], {'rpc': v:true})

The host installs autocommands for *.tex buffers and replaces typed
quotes in insert mode. g:enquote_active overrides enquote.active.
Logs go to standard error or logging.file.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNvim(rootOpts, cmd, os.Stdin, os.Stdout)
		},
	}
}

func runNvim(opts *RootOptions, cmd *cobra.Command, in io.Reader, out io.WriteCloser) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rpcLog := logging.NewLogger("nvim-rpc")
	v, err := nvim.New(in, out, out, rpcLog.Debugf)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to connect to Neovim", err)
	}

	host := nvimhost.New(v)
	appOpts := opts.appOptions(opts.workspaceOrCwd(), cmd.ErrOrStderr())
	appOpts.ActiveEditor = host.ActiveEditor
	appOpts.ActiveDocument = host.ActiveDocument
	application, err := app.New(appOpts)
	if err != nil {
		_ = v.Close()
		return WrapExitError(ExitFailure, "failed to initialize", err)
	}
	defer application.Close()
	host.Bind(application.Bus(), application.Config())

	go func() {
		if err := application.Watch(ctx); err != nil {
			rpcLog.WithError(err).Warn("Watching configuration stopped")
		}
	}()

	if err := host.Serve(ctx, v); err != nil {
		return WrapExitError(ExitFailure, "Neovim connection failed", err)
	}
	return nil
}
