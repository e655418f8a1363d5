package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chaban-mb/wikilift/internal/config"
	"github.com/chaban-mb/wikilift/internal/convert"
	"github.com/chaban-mb/wikilift/internal/orchestrate"
	"github.com/chaban-mb/wikilift/internal/pace"
	"github.com/chaban-mb/wikilift/internal/resolve"
	"github.com/chaban-mb/wikilift/internal/store"
	"github.com/chaban-mb/wikilift/internal/surface"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Scenario string
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scripted conversion scenario",
		Long: `Execute the full conversion orchestration against a scripted
in-memory surface. Resolution is stubbed by the scenario, so runs are
offline and deterministic - useful for policy dry-runs and regression
checks.

With --db, each run is recorded to the audit store.

Examples:
  wikilift run --scenario scenarios/happy-path.yaml
  wikilift run --scenario scenarios/partial.yaml --db ./wikilift.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "path to scenario YAML (required)")
	_ = cmd.MarkFlagRequired("scenario")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this audit store")

	return cmd
}

func runScenario(opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := LoadScenario(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	formatter.VerboseLog("scenario %s: %s", scenario.Name, scenario.Description)

	// Build the scripted surface.
	fake := surface.NewFake()
	fake.SetPendingConflict(scenario.PendingConflict)
	ref := fake.NewReference(scenario.Reference)

	items := make([]*convert.Item, 0, len(scenario.Items))
	for _, si := range scenario.Items {
		script, err := itemScript(si, cfg.Canonical)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid scenario item", err)
		}
		scope := fmt.Sprintf("item/%d", len(items))
		items = append(items, convert.NewItem(fake.NewItem(scope, script), si.Classification))
	}

	driver := convert.New(fake, pace.WallClock{}, cfg.ConvertConfig())

	orchOpts := []orchestrate.Option{}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open audit store", err)
		}
		defer st.Close()
		orchOpts = append(orchOpts, orchestrate.WithJournal(st))
	}

	orch := orchestrate.New(fake, scriptedResolver{script: scenario.Resolution}, driver, fake.NewFinalizer(), orchOpts...)

	verdict, err := orch.Run(context.Background(), orchestrate.Request{
		Token:     scenario.Token,
		Reference: ref,
		Items:     items,
	})
	if orchestrate.IsPendingConflict(err) {
		_ = formatter.Error(ErrCodeConflict, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "conversion refused"}
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "conversion run failed", err)
	}

	report := buildVerdictReport(scenario.Reference, verdict, items)
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	return formatter.Success(renderVerdict(report))
}

// scriptedResolver answers with the scenario's scripted resolution.
type scriptedResolver struct {
	script ResolutionScript
}

var scriptedFailureCodes = map[string]resolve.Code{
	"invalid_reference": resolve.CodeInvalidReference,
	"not_found":         resolve.CodeNotFound,
	"no_mapping":        resolve.CodeNoMapping,
	"transport":         resolve.CodeTransport,
}

func (r scriptedResolver) Resolve(ctx context.Context, source string) (resolve.Resolution, error) {
	if r.script.Failure != "" {
		return resolve.Resolution{}, &resolve.Error{
			Code:    scriptedFailureCodes[r.script.Failure],
			Message: "scripted resolution failure",
			Source:  source,
		}
	}
	return resolve.Resolution{
		Source: source,
		Entity: r.script.Entity,
		Target: resolve.WikidataBase + r.script.Entity,
	}, nil
}
