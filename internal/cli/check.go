package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-unitboot"
)

// CheckResult is the json rendering of a bootstrap check.
type CheckResult struct {
	Unit      string       `json:"unit"`
	AttemptID string       `json:"attempt_id"`
	Phase     string       `json:"phase"`
	Error     string       `json:"error,omitempty"`
	Notices   []NoticeView `json:"notices,omitempty"`
}

// NewCheckCommand creates the check command: it runs both bootstrap phases
// against the unit and closes the runtime again.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &unitFlags{}
	var guards []string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Bootstrap a persistence unit and release it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, flags, guards, cmd)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&guards, "guard", nil, "settings guard as [engine:]expression, repeatable")
	return cmd
}

func runCheck(opts *RootOptions, flags *unitFlags, guardExprs []string, cmd *cobra.Command) error {
	overrides, err := flags.overrides()
	if err != nil {
		return err
	}
	logger := opts.logger(cmd)
	descriptor, unitOpts, err := flags.load(logger)
	if err != nil {
		return err
	}
	for _, raw := range guardExprs {
		guard, err := unitboot.ParseGuard(raw)
		if err != nil {
			return err
		}
		unitOpts = append(unitOpts, unitboot.WithSettingsGuard(guard))
	}
	diag := unitboot.NewDiagnostics(unitboot.DiagnosticsWithLogger(logger))
	unitOpts = append(unitOpts, unitboot.WithDiagnostics(diag))

	result := CheckResult{Unit: descriptor.Name, AttemptID: diag.AttemptID()}
	bootErr := bootstrap(cmd, descriptor, overrides, unitOpts, &result)
	if bootErr != nil {
		result.Error = bootErr.Error()
	}
	result.Notices = noticeViews(diag.Notices())

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "unit %s attempt %s: %s\n", result.Unit, result.AttemptID, result.Phase)
		printNotices(w, result.Notices)
	}
	return bootErr
}

func bootstrap(cmd *cobra.Command, descriptor *unitboot.Descriptor, overrides map[string]any, opts []unitboot.Option, result *CheckResult) error {
	builder, err := unitboot.NewBuilder(descriptor, overrides, opts...)
	if err != nil {
		result.Phase = unitboot.PhaseFailed.String()
		return err
	}
	factory, err := builder.Build(cmd.Context())
	result.Phase = builder.Phase().String()
	if err != nil {
		return err
	}
	return factory.Close()
}
