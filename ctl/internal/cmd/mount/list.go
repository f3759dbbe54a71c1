package mount

import (
	"fmt"
	"time"

	"github.com/driftfs/drift-go/ctl/internal/cmdfmt"
	"github.com/driftfs/drift-go/ctl/internal/util"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	backend "github.com/driftfs/drift-go/ctl/pkg/ctl/mount"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type listCfg struct {
	backend backend.GetFileStores_Config
	refresh time.Duration
}

func newListCmd() *cobra.Command {
	cfg := listCfg{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List mounted file systems.",
		Long: `List mounted file systems.

Entries are decoded from the configured mount table (see --` + config.MountTablePathKey + `) and combined with
live statfs information about each file store. The table is read best-effort: entries the kernel
removes mid-read are simply absent, the same as a later read would show.

Filtering:
Use --filter with an expression over the fields source, target, fstype, options, and readonly.
Examples:
  drift mount list --filter 'fstype == "ext4"'
  drift mount list --filter '!readonly && options contains "relatime"'
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.refresh > 0 {
				return runListRefreshing(cmd, cfg)
			}
			return runListCmd(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.backend.FilterExpr, "filter", "",
		"Only list entries matching this expression.")
	cmd.Flags().BoolVar(&cfg.backend.SkipStat, "no-stat", false,
		"Skip statting each mount target. Capacity columns will be empty. Useful when slow network mounts would stall the listing.")
	cmd.Flags().DurationVar(&cfg.refresh, "refresh", 0,
		"Refresh the listing at this interval until interrupted (e.g. 2s). Requires stdout to be a terminal.")
	return cmd
}

func runListCmd(cmd *cobra.Command, cfg listCfg) error {
	stores, err := backend.GetFileStores(cmd.Context(), cfg.backend)
	if err != nil {
		return err
	}

	raw := viper.GetBool(config.RawKey)
	allColumns := []string{"source", "target", "type", "total", "used", "available", "inodes_free", "options", "magic"}
	defaultColumns := []string{"source", "target", "type", "total", "used", "available"}
	if viper.GetBool(config.DebugKey) {
		defaultColumns = allColumns
	}

	tbl := cmdfmt.NewPrintomatic(allColumns, defaultColumns)
	defer tbl.PrintRemaining()

	statFailures := 0
	for _, s := range stores {
		total, used, avail, inodesFree, magic := "", "", "", "", ""
		fsType := s.Entry.FSType
		if s.StatErr != nil {
			statFailures++
			total = "error: " + s.StatErr.Error()
		} else if s.Store != nil {
			total = util.U64FormatBytes(s.Store.TotalBytes, raw)
			used = util.U64FormatBytes(s.Store.TotalBytes-s.Store.FreeBytes, raw)
			avail = util.U64FormatBytes(s.Store.AvailableBytes, raw)
			inodesFree = util.U64FormatCount(s.Store.FreeInodes, raw)
			magic = fmt.Sprintf("0x%x", s.Store.Magic)
			fsType = s.Store.Type()
		}
		tbl.AddItem(
			s.Entry.Source,
			s.Entry.Target,
			fsType,
			total,
			used,
			avail,
			inodesFree,
			s.Entry.Options,
			magic,
		)
	}

	if statFailures > 0 {
		return util.NewCtlError(fmt.Errorf("%d of %d file stores could not be statted", statFailures, len(stores)), util.PartialSuccess)
	}
	return nil
}

// runListRefreshing reruns the listing at the configured interval, similar to the Linux watch
// command, until the context is cancelled.
func runListRefreshing(cmd *cobra.Command, cfg listCfg) error {
	refresher := util.TermRefresher{}
	for {
		if err := refresher.StartRefresh(); err != nil {
			return err
		}
		listErr := runListCmd(cmd, cfg)
		footer := fmt.Sprintf("Refreshing every %s (press ctrl+c to exit). Last updated: %s", cfg.refresh, time.Now().Format(time.TimeOnly))
		if err := refresher.FinishRefresh(util.WithTermFooter(footer)); err != nil {
			return err
		}
		if listErr != nil {
			return listErr
		}
		select {
		case <-cmd.Context().Done():
			return nil
		case <-time.After(cfg.refresh):
		}
	}
}
