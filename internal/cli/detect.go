package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/enquote/internal/app"
	"github.com/dshills/enquote/internal/event/events"
)

// DetectOptions holds flags for the detect command.
type DetectOptions struct {
	*RootOptions
	Active string
	JSON   bool
}

// DetectResult is the outcome of the detect command.
type DetectResult struct {
	RootFile string            `json:"root_file"`
	Source   events.RootSource `json:"source"`
	Mode     string            `json:"mode"`
	Csquotes bool              `json:"csquotes"`
	Enquote  bool              `json:"enquote"`
}

// NewDetectCommand creates the detect command.
func NewDetectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DetectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Show the root file and whether quotes would be replaced",
		Long: `Resolve the root file of the workspace, report how it was found, and
check whether it imports csquotes.

With --active the given file is treated as the document being edited,
so magic root comments and root documents are honoured.

Examples:
  enquote detect
  enquote detect --workspace ./thesis --active chapters/intro.tex
  enquote detect --json`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Active, "active", "", "file to treat as the active document")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the result as JSON")

	return cmd
}

func runDetect(opts *DetectOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	application, err := app.New(opts.appOptions(opts.workspaceOrCwd(), cmd.ErrOrStderr()))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to initialize", err)
	}
	defer application.Close()

	if opts.Active != "" {
		if _, err := application.Open(ctx, opts.Active); err != nil {
			return WrapExitError(ExitFailure, "failed to open active file", err)
		}
	}

	var result DetectResult
	result.RootFile, result.Source = application.Project().Resolve(ctx)
	result.Mode = application.Substitutor().Mode()
	if result.Csquotes, err = application.Substitutor().EnquotePackageImported(); err != nil {
		return WrapExitError(ExitFailure, "failed to read root file", err)
	}
	if result.Enquote, err = application.Substitutor().ShallEnquote(); err != nil {
		return WrapExitError(ExitFailure, "failed to read root file", err)
	}

	if opts.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeDetectText(cmd.OutOrStdout(), result)
}

func writeDetectText(w io.Writer, r DetectResult) error {
	root := r.RootFile
	if root == "" {
		root = "(none)"
	}
	_, err := fmt.Fprintf(w, "root:     %s\nsource:   %s\nmode:     %s\ncsquotes: %t\nenquote:  %t\n",
		root, r.Source, r.Mode, r.Csquotes, r.Enquote)
	return err
}
