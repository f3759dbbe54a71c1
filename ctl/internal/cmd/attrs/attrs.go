package attrs

import (
	"fmt"
	"strings"

	cattrs "github.com/driftfs/drift-go/common/attrs"
	"github.com/driftfs/drift-go/ctl/internal/cmdfmt"
	iutil "github.com/driftfs/drift-go/ctl/internal/util"
	backend "github.com/driftfs/drift-go/ctl/pkg/ctl/attrs"
	"github.com/driftfs/drift-go/ctl/pkg/util"
	"github.com/spf13/cobra"
)

func NewAttrsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attrs",
		Short: "Inspect and modify extended file metadata.",
		Long: `Inspect and modify extended file metadata.

Covers the metadata beyond what 'ls -l' shows: user extended attributes, the emulated DOS
attribute view, and kernel inode flags such as immutable and append-only.`,
	}
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newSetCmd())
	return cmd
}

type showCfg struct {
	backend        backend.GetAttrs_Config
	recurse        bool
	stdinDelimiter string
}

func newShowCmd() *cobra.Command {
	cfg := showCfg{}
	cmd := &cobra.Command{
		Use:     "show <path> [<path>] ...",
		Aliases: []string{"get", "list"},
		Short:   "Show the extended metadata of one or more paths.",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := util.DeterminePathInputMethod(args, cfg.recurse, cfg.stdinDelimiter)
			if err != nil {
				return err
			}
			// Recursive listings read better in walk order.
			cfg.backend.SingleWorker = cfg.recurse
			return runShowCmd(cmd, cfg, method)
		},
	}
	cmd.Flags().BoolVarP(&cfg.recurse, "recurse", "r", false,
		"Show the single provided directory and everything under it.")
	cmd.Flags().StringVar(&cfg.backend.FilterExpr, "filter", "",
		`Only show entries matching this expression (examples: 'size > 1GiB', 'name =~ "*.log"').`)
	cmd.Flags().StringVar(&cfg.stdinDelimiter, "stdin-delimiter", "\\n",
		`Change the string delimiter used to determine individual paths when read from stdin.`)
	return cmd
}

func runShowCmd(cmd *cobra.Command, cfg showCfg, method util.PathInputMethod) error {
	results, errs, err := backend.GetAttrs(cmd.Context(), method, cfg.backend)
	if err != nil {
		return err
	}

	allColumns := []string{"path", "type", "dos", "flags", "xattrs"}
	tbl := cmdfmt.NewPrintomatic(allColumns, allColumns)
	defer tbl.PrintRemaining()

	for r := range results {
		dos := "n/a"
		if r.DOSSupported {
			dos = r.DOS.String()
		}
		flags := "n/a"
		if r.FlagsSupported {
			flags = formatFlags(r.Flags)
		}
		tbl.AddItem(r.Path, r.Type, dos, flags, strings.Join(r.XAttrs, ","))
	}
	select {
	case err := <-errs:
		if err != nil {
			return err
		}
	default:
	}
	return nil
}

func formatFlags(f cattrs.InodeFlags) string {
	var set []string
	for _, l := range []struct {
		on   bool
		name string
	}{
		{f.Immutable, "immutable"},
		{f.AppendOnly, "append-only"},
		{f.NoDump, "nodump"},
		{f.NoAtime, "noatime"},
		{f.Sync, "sync"},
	} {
		if l.on {
			set = append(set, l.name)
		}
	}
	if len(set) == 0 {
		return "-"
	}
	return strings.Join(set, ",")
}

type setCfg struct {
	backend        backend.SetAttrs_Config
	recurse        bool
	stdinDelimiter string
	setXAttrs      []string
}

func newSetCmd() *cobra.Command {
	cfg := setCfg{}
	dosBits := map[string]*bool{}
	flagBits := map[string]*bool{}
	cmd := &cobra.Command{
		Use:   "set <path> [<path>] ...",
		Short: "Modify the extended metadata of one or more paths.",
		Long: `Modify the extended metadata of one or more paths.

Only the attributes named on the command line are changed, everything else keeps its current
value. Example: 'drift attrs set --hidden=true --immutable=false /mnt/data/report.txt'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.backend.DOS = map[string]bool{}
			cfg.backend.Flags = map[string]bool{}
			for name, v := range dosBits {
				if cmd.Flags().Changed(name) {
					cfg.backend.DOS[name] = *v
				}
			}
			for name, v := range flagBits {
				if cmd.Flags().Changed(name) {
					cfg.backend.Flags[name] = *v
				}
			}
			cfg.backend.SetXAttrs = map[string]string{}
			for _, kv := range cfg.setXAttrs {
				name, value, found := strings.Cut(kv, "=")
				if !found || name == "" {
					return fmt.Errorf("invalid --xattr %q (expected name=value)", kv)
				}
				cfg.backend.SetXAttrs[name] = value
			}
			if len(cfg.backend.DOS) == 0 && len(cfg.backend.Flags) == 0 &&
				len(cfg.backend.SetXAttrs) == 0 && len(cfg.backend.RemoveXAttrs) == 0 {
				return fmt.Errorf("nothing to change (no attribute flags were specified)")
			}
			method, err := util.DeterminePathInputMethod(args, cfg.recurse, cfg.stdinDelimiter)
			if err != nil {
				return err
			}
			return runSetCmd(cmd, cfg, method)
		},
	}

	for _, name := range []string{"readonly", "hidden", "system", "archive"} {
		dosBits[name] = cmd.Flags().Bool(name, false, fmt.Sprintf("Set or clear the DOS %s attribute.", name))
	}
	for _, name := range []string{"immutable", "append-only", "nodump", "noatime", "sync"} {
		flagBits[name] = cmd.Flags().Bool(name, false, fmt.Sprintf("Set or clear the %s inode flag.", name))
	}
	cmd.Flags().StringArrayVar(&cfg.setXAttrs, "xattr", nil,
		"Set a user extended attribute, as name=value. Can be given multiple times.")
	cmd.Flags().StringArrayVar(&cfg.backend.RemoveXAttrs, "remove-xattr", nil,
		"Remove a user extended attribute by name. Can be given multiple times.")
	cmd.Flags().BoolVarP(&cfg.recurse, "recurse", "r", false,
		"Apply the changes to the single provided directory and everything under it.")
	cmd.Flags().StringVar(&cfg.stdinDelimiter, "stdin-delimiter", "\\n",
		`Change the string delimiter used to determine individual paths when read from stdin.`)
	return cmd
}

func runSetCmd(cmd *cobra.Command, cfg setCfg, method util.PathInputMethod) error {
	results, errs, err := backend.SetAttrs(cmd.Context(), method, cfg.backend)
	if err != nil {
		return err
	}

	updated := 0
	for r := range results {
		if r.Updated {
			updated++
		}
	}
	select {
	case err := <-errs:
		if err != nil {
			if updated > 0 {
				return iutil.NewCtlError(fmt.Errorf("updated %d entries before failing: %w", updated, err), iutil.PartialSuccess)
			}
			return err
		}
	default:
	}
	cmdfmt.Printf("Updated %d entries.\n", updated)
	return nil
}
