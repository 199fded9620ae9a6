package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/enquote/internal/app"
	"github.com/dshills/enquote/internal/config/registry"
	"github.com/dshills/enquote/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	At      string
	Type    string
	Mode    string
	Root    string
	InPlace bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Type text into a file and print the result",
		Long: `Load FILE, place the caret, and type TEXT one character at a time
through the same pipeline an editor uses. The resulting document is
printed to standard output, or written back with --in-place.

LINE and COL are 1-based; COL counts characters, not bytes. Without
--workspace the directory of FILE is the workspace.

Examples:
  enquote replay chapter.tex --at 3:9 --type '"Hallo"'
  enquote replay main.tex --at 1:1 --type '"' --mode true
  enquote replay chapter.tex --at 2:1 --type '"x"' --root thesis.tex`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "1:1", "caret position as LINE:COL")
	cmd.Flags().StringVar(&opts.Type, "type", "", "text to type (required)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "override enquote.active (auto|true|false)")
	cmd.Flags().StringVar(&opts.Root, "root", "", "override latex.rootFile")
	cmd.Flags().BoolVarP(&opts.InPlace, "in-place", "i", false, "write the result back to FILE")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, file string) error {
	ctx := cmd.Context()

	if !cmd.Flags().Changed("type") {
		return NewExitError(ExitUsage, "missing --type")
	}
	at, err := parsePosition(opts.At)
	if err != nil {
		return WrapExitError(ExitUsage, "invalid --at", err)
	}

	workspace := opts.Workspace
	if workspace == "" {
		workspace = filepath.Dir(file)
	}
	appOpts := opts.appOptions(workspace, cmd.ErrOrStderr())
	appOpts.Overrides = map[string]any{}
	if opts.Mode != "" {
		appOpts.Overrides[registry.EnquoteActive] = opts.Mode
	}
	if opts.Root != "" {
		appOpts.Overrides[registry.LatexRootFile] = opts.Root
	}

	application, err := app.New(appOpts)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to initialize", err)
	}
	defer application.Close()

	doc, err := application.Open(ctx, file)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open file", err)
	}
	if err := doc.Engine.SetCaret(at); err != nil {
		return WrapExitError(ExitUsage, fmt.Sprintf("position %s is outside %s", opts.At, doc.Path()), err)
	}
	for _, r := range opts.Type {
		if err := doc.Engine.Type(ctx, string(r)); err != nil {
			return WrapExitError(ExitFailure, "typing failed", err)
		}
	}

	for _, e := range application.Errors() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
	}

	if opts.InPlace {
		if err := application.Save(doc.ID()); err != nil {
			return WrapExitError(ExitFailure, "failed to save", err)
		}
		return nil
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), doc.Engine.EncodedText())
	return err
}

// parsePosition parses a 1-based "LINE:COL" into a 0-based point.
func parsePosition(s string) (engine.Point, error) {
	lineStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return engine.Point{}, fmt.Errorf("%q is not LINE:COL", s)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return engine.Point{}, fmt.Errorf("line %q: %w", lineStr, err)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return engine.Point{}, fmt.Errorf("column %q: %w", colStr, err)
	}
	if line < 1 || col < 1 {
		return engine.Point{}, fmt.Errorf("%q: line and column start at 1", s)
	}
	return engine.Point{Line: line - 1, Column: col - 1}, nil
}
