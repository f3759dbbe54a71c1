package views

import (
	"fmt"
	"strings"

	"github.com/driftfs/drift-go/common/filesystem"
	"github.com/driftfs/drift-go/ctl/internal/cmdfmt"
	iutil "github.com/driftfs/drift-go/ctl/internal/util"
	backend "github.com/driftfs/drift-go/ctl/pkg/ctl/mount"
	"github.com/spf13/cobra"
)

type viewsCfg struct {
	filter string
}

func NewViewsCmd() *cobra.Command {
	cfg := viewsCfg{}
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Show which metadata views each mounted file store supports.",
		Long: fmt.Sprintf(`Show which metadata views each mounted file store supports.

The views supported by this platform are: %s.
The basic, owner, and posix views are always available. The dos and user views depend on
extended attribute support on the individual file store, which is probed per mount.
`, strings.Join(filesystem.SupportedViews(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runViewsCmd(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.filter, "filter", "",
		`Only show mounts matching this expression (example: 'fstype == "ext4" && !readonly').`)
	return cmd
}

func runViewsCmd(cmd *cobra.Command, cfg viewsCfg) error {
	stores, err := backend.GetFileStores(cmd.Context(), backend.GetFileStores_Config{FilterExpr: cfg.filter})
	if err != nil {
		return err
	}

	views := filesystem.SupportedViews()
	allColumns := append([]string{"mount", "type"}, views...)
	tbl := cmdfmt.NewPrintomatic(allColumns, allColumns)
	defer tbl.PrintRemaining()

	statFailures := 0
	for _, s := range stores {
		row := make([]any, 0, len(allColumns))
		row = append(row, s.Entry.Target)
		if s.StatErr != nil {
			statFailures++
			row = append(row, s.Entry.FSType)
			for range views {
				row = append(row, "?")
			}
			tbl.AddItem(row...)
			continue
		}
		row = append(row, s.Store.Type())
		for _, view := range views {
			if s.Store.SupportsView(view) {
				row = append(row, "yes")
			} else {
				row = append(row, "no")
			}
		}
		tbl.AddItem(row...)
	}
	if statFailures > 0 {
		return iutil.NewCtlError(fmt.Errorf("unable to probe %d mount(s), their views are shown as '?'", statFailures), iutil.PartialSuccess)
	}
	return nil
}
