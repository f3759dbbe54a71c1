package mount

import (
	"github.com/spf13/cobra"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mount",
		Aliases: []string{"mounts"},
		Short:   "Inspect the mount table and the file stores behind it.",
	}
	cmd.AddCommand(newListCmd())
	return cmd
}
