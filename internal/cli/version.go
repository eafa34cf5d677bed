package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/quantumwallet/qwallet/internal/version"
)

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print version information",
	Long:    `Print the qwallet version, commit, build date and platform.`,
	Example: `  qwallet version -o json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.Get()
		return GetCmdContext(cmd).Fmt.Emit(info, func(w io.Writer) error {
			out(w, "qwallet %s\n", info.Version)
			out(w, "  commit:   %s\n", info.Commit)
			out(w, "  built:    %s\n", info.Date)
			out(w, "  go:       %s\n", info.GoVersion)
			out(w, "  platform: %s\n", info.Platform)
			return nil
		})
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.GroupID = groupConfig
	rootCmd.AddCommand(versionCmd)
}
