package cmd

import (
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version string `yaml:"version" json:"version"`
	Commit  string `yaml:"commit" json:"commit"`
	Date    string `yaml:"date" json:"date"`
}

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of hlsinspect.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := versionInfo{Version: version, Commit: commit, Date: date}
		return render(cmd.OutOrStdout(), info, func(p *printer) {
			p.printf("hlsinspect %s (commit %s, built %s)\n", info.Version, info.Commit, info.Date)
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
