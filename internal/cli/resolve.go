package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaban-mb/wikilift/internal/config"
	"github.com/chaban-mb/wikilift/internal/pace"
	"github.com/chaban-mb/wikilift/internal/resolve"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	APIBase string // test override for the lookup endpoint
}

// ResolutionReport is the resolve command's output payload.
type ResolutionReport struct {
	Source string `json:"source"`
	Site   string `json:"site,omitempty"`
	Title  string `json:"title,omitempty"`
	Entity string `json:"entity"`
	Target string `json:"target"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolve a Wikipedia reference to its Wikidata entity",
		Long: `Resolve a Wikipedia article URL to its canonical Wikidata entity URI.

The lookup is paced on the configured "lookup" channel. An already
canonical Wikidata URI resolves without any network call.

Examples:
  wikilift resolve https://en.wikipedia.org/wiki/Douglas_Adams
  wikilift resolve https://www.wikidata.org/wiki/Q42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.APIBase, "api-base", "", "override the lookup API endpoint")
	_ = cmd.Flags().MarkHidden("api-base")

	return cmd
}

func runResolve(opts *ResolveOptions, cmd *cobra.Command, source string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	disp := pace.New(pace.WallClock{}, cfg.Channels)
	defer disp.Close()

	var resolverOpts []resolve.Option
	if opts.APIBase != "" {
		base := opts.APIBase
		resolverOpts = append(resolverOpts, resolve.WithAPIBase(func(string) string { return base }))
	}
	resolver := resolve.New(disp, resolverOpts...)

	res, err := resolver.Resolve(context.Background(), source)
	if err != nil {
		_ = formatter.Error(ErrCodeResolve, err.Error(), string(resolve.CodeOf(err)))
		return &ExitError{Code: ExitFailure, Message: "resolution failed"}
	}

	report := ResolutionReport{
		Source: res.Source,
		Site:   res.Site,
		Title:  res.Title,
		Entity: res.Entity,
		Target: res.Target,
	}
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	return formatter.Success(renderResolution(report))
}

// renderResolution formats the text report.
func renderResolution(r ResolutionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "source: %s\n", r.Source)
	if r.Site != "" {
		fmt.Fprintf(&b, "site:   %s\n", r.Site)
		fmt.Fprintf(&b, "title:  %s\n", r.Title)
	}
	fmt.Fprintf(&b, "entity: %s\n", r.Entity)
	fmt.Fprintf(&b, "target: %s", r.Target)
	return b.String()
}
