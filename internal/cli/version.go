package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/buildinfo"
	"github.com/aidanlsb/ferry/internal/ui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show ferry version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Read()
		if isJSONOutput() {
			outputSuccess(info, nil)
			return nil
		}

		fmt.Printf("ferry %s\n", info.Version)
		tbl := ui.NewTable(2)
		tbl.AddField("module", info.ModulePath)
		if info.Commit != "" {
			commit := info.Commit
			if info.Modified {
				commit += " (modified)"
			}
			tbl.AddField("commit", commit)
		}
		if info.CommitTime != "" {
			tbl.AddField("built", info.CommitTime)
		}
		tbl.AddField("go", info.GoVersion)
		tbl.AddField("platform", info.GOOS+"/"+info.GOARCH)
		fmt.Print(tbl.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
