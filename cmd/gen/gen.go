package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generators for xdrprobe documentation",
	Long:  `Generators for xdrprobe documentation`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd)
}
