package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-unitboot"
	"github.com/goliatone/go-unitboot/layering"
)

// MergeResult is the json rendering of a merge.
type MergeResult struct {
	Unit         string                           `json:"unit"`
	Settings     map[string]string                `json:"settings"`
	Sources      map[string]string                `json:"sources"`
	CacheRegions []unitboot.CacheRegionDefinition `json:"cache_regions,omitempty"`
	Notices      []NoticeView                     `json:"notices,omitempty"`
}

// NoticeView is the json rendering of a diagnostics notice.
type NoticeView struct {
	Kind        string `json:"kind"`
	Key         string `json:"key,omitempty"`
	Replacement string `json:"replacement,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &unitFlags{}
	var levels []string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Print the merged settings of a persistence unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(rootOpts, flags, levels, cmd)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&levels, "level", nil, "only print settings last written by these source levels (ambient, baseline, descriptor, config-file, normalized, integration)")
	return cmd
}

func parseLevels(values []string) ([]layering.Level, error) {
	out := make([]layering.Level, 0, len(values))
	for _, value := range values {
		level := layering.ParseLevel(value)
		if level == layering.LevelUnknown {
			return nil, fmt.Errorf("unknown source level %q", value)
		}
		out = append(out, level)
	}
	return out, nil
}

func runMerge(opts *RootOptions, flags *unitFlags, levelNames []string, cmd *cobra.Command) error {
	overrides, err := flags.overrides()
	if err != nil {
		return err
	}
	levels, err := parseLevels(levelNames)
	if err != nil {
		return err
	}
	logger := opts.logger(cmd)
	descriptor, unitOpts, err := flags.load(logger)
	if err != nil {
		return err
	}
	diag := unitboot.NewDiagnostics(unitboot.DiagnosticsWithLogger(logger))
	settings, err := unitboot.Merge(descriptor, overrides, append(unitOpts, unitboot.WithDiagnostics(diag))...)
	if err != nil {
		return err
	}

	result := MergeResult{
		Unit:         descriptor.Name,
		Settings:     map[string]string{},
		Sources:      map[string]string{},
		CacheRegions: settings.CacheRegions(),
		Notices:      noticeViews(diag.Notices()),
	}
	for _, key := range settings.Keys() {
		if len(levels) > 0 && !slices.Contains(levels, settings.Level(key)) {
			continue
		}
		result.Settings[key] = settings.String(key)
		result.Sources[key] = settings.Source(key)
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printMerge(cmd.OutOrStdout(), result)
	return nil
}

func printMerge(w io.Writer, result MergeResult) {
	fmt.Fprintf(w, "unit %s: %d settings\n", result.Unit, len(result.Settings))
	for _, key := range slices.Sorted(maps.Keys(result.Settings)) {
		fmt.Fprintf(w, "  %s = %s  [%s]\n", key, result.Settings[key], result.Sources[key])
	}
	for _, region := range result.CacheRegions {
		fmt.Fprintf(w, "cache %s %s usage=%s region=%s lazy=%t\n", region.Kind, region.Role, region.Usage, region.Region, region.IncludeLazy)
	}
	printNotices(w, result.Notices)
}

func printNotices(w io.Writer, notices []NoticeView) {
	for _, notice := range notices {
		line := fmt.Sprintf("%s %s", notice.Kind, notice.Key)
		if notice.Message != "" {
			line += ": " + notice.Message
		}
		if notice.Error != "" {
			line += ": " + notice.Error
		}
		fmt.Fprintln(w, line)
	}
}

func noticeViews(notices []unitboot.Notice) []NoticeView {
	out := make([]NoticeView, 0, len(notices))
	for _, notice := range notices {
		if notice.Kind == unitboot.NoticePhaseEntered {
			continue
		}
		view := NoticeView{
			Kind:        string(notice.Kind),
			Key:         notice.Key,
			Replacement: notice.Replacement,
			Message:     notice.Message,
		}
		if notice.Err != nil {
			view.Error = notice.Err.Error()
		}
		out = append(out, view)
	}
	return out
}
