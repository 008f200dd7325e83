package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-unitboot/keys"
)

// NewKeysCommand creates the keys command listing every known setting.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "keys [key]",
		Short: "List known settings and their spellings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := keys.All()
			if len(args) == 1 {
				setting, ok := keys.ForKey(args[0])
				if !ok {
					return fmt.Errorf("unknown setting key %q", args[0])
				}
				settings = []keys.Setting{setting}
			}
			var out []keys.Setting
			for _, setting := range settings {
				if category == "" || string(setting.Category) == category {
					out = append(out, setting)
				}
			}

			if rootOpts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCATEGORY\tPREFERRED\tLEGACY\tDESCRIPTION")
			for _, setting := range out {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", setting.Name, setting.Category, setting.Preferred(), setting.Legacy, setting.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list settings of this category")
	return cmd
}
