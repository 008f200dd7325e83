package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-unitboot"
	"github.com/goliatone/go-unitboot/cfgfile"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the unitboot command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "unitboot",
		Short: "Inspect and bootstrap persistence units",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log pipeline activity to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))
	return cmd
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// unitFlags are shared by commands that load a persistence unit.
type unitFlags struct {
	descriptor string
	unit       string
	configDir  string
	set        []string
}

func (f *unitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.descriptor, "descriptor", "", "descriptor file declaring persistence units")
	cmd.Flags().StringVar(&f.unit, "unit", "", "persistence unit name, required when the file declares several")
	cmd.Flags().StringVar(&f.configDir, "config-dir", ".", "directory descriptor and config files are read from")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "integration override as key=value, repeatable")
	_ = cmd.MarkFlagRequired("descriptor")
}

func (f *unitFlags) overrides() (map[string]any, error) {
	out := make(map[string]any, len(f.set))
	for _, pair := range f.set {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

// load reads the descriptor and returns the options wiring its directory
// as the config file source.
func (f *unitFlags) load(logger *slog.Logger) (*unitboot.Descriptor, []unitboot.Option, error) {
	loader := cfgfile.NewLoader(os.DirFS(f.configDir), logger)
	unit, err := loader.LoadUnit(f.descriptor, f.unit)
	if err != nil {
		return nil, nil, err
	}
	opts := []unitboot.Option{
		unitboot.WithConfigLoader(loader),
		unitboot.WithLogger(logger),
	}
	return unitboot.DescriptorFromUnit(unit), opts, nil
}
