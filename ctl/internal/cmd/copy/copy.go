package copy

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/driftfs/drift-go/ctl/internal/cmdfmt"
	iutil "github.com/driftfs/drift-go/ctl/internal/util"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	backend "github.com/driftfs/drift-go/ctl/pkg/ctl/copy"
	"github.com/driftfs/drift-go/ctl/pkg/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type frontendCfg struct {
	backend        backend.CopyPaths_Config
	recurse        bool
	stdinDelimiter string
}

func NewCopyCmd() *cobra.Command {
	cfg := frontendCfg{}
	cmd := &cobra.Command{
		Use:     "copy <source> [<source>] <destination>",
		Args:    cobra.MinimumNArgs(2),
		Aliases: []string{"cp"},
		Short:   "Copy files and directories in parallel.",
		Long: fmt.Sprintf(`Copy files and directories in parallel.

Specifying Paths:
One or more <source> paths can be copied under a <destination> directory.
Extended globbing patterns including '**' are supported in each source path (quote them so the
shell does not expand them first, example: 'drift copy "/data/logs/**/*.gz" /backup').
Alternatively paths can be provided using stdin by using '-' as the <source>
(example: 'cat file_list.txt | drift copy - <destination>').

Parallelism:
Files are copied using multiple threads based on the --%s flag (by default the number of cores
on this machine). The contents of each file are moved with the fastest mechanism the kernel
offers, falling back to buffered copying on file systems without support.

IMPORTANT: The primary use case of the copy mode is staging data.
As such it does not validate after the copy completes that the source was not modified in the
meantime, and it does not perform any checksum verification comparing the source/destination.
If used as part of a backup or other workload where strict consistency guarantees are required,
users should take measures to perform additional verification the source and destination match
bit-for-bit.
`, config.NumWorkersKey),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[len(args)-1]
			sources := args[:len(args)-1]
			if sources[0] == "-" {
				if len(sources) != 1 {
					return fmt.Errorf("when reading source paths from stdin only '-' and the destination path should be specified")
				}
			} else {
				var err error
				sources, err = expandSources(sources)
				if err != nil {
					return err
				}
			}
			method, err := util.DeterminePathInputMethod(sources, cfg.recurse, cfg.stdinDelimiter)
			if err != nil {
				return err
			}
			return runCopyCmd(cmd, cfg, method, dest)
		},
	}

	cmd.Flags().BoolVarP(&cfg.recurse, "recurse", "r", false,
		"Copy the single provided source directory and everything under it.")
	cmd.Flags().BoolVar(&cfg.backend.Overwrite, "overwrite", false,
		"Zero and rewrite destination files that already exist (by default they are skipped).")
	cmd.Flags().StringVar(&cfg.backend.Pattern, "pattern", "",
		`Only copy files whose path matches this globbing pattern, '**' matches any number of directories (example: "**/*.log").`)
	cmd.Flags().BoolVar(&cfg.backend.PreserveAttrs, "xattrs", true,
		"Copy user extended attributes to the destination.")
	cmd.Flags().BoolVar(&cfg.backend.PreserveTimes, "times", true,
		"Copy access and modification timestamps to the destination.")
	cmd.Flags().StringVar(&cfg.stdinDelimiter, "stdin-delimiter", "\\n",
		`Change the string delimiter used to determine individual paths when read from stdin.
	For example use --stdin-delimiter="\x00" for NULL.`)
	return cmd
}

// expandSources applies doublestar globbing to each source so patterns work even when the shell
// did not expand them (quoted, or using '**' which most shells do not support).
func expandSources(sources []string) ([]string, error) {
	expanded := make([]string, 0, len(sources))
	for _, src := range sources {
		if !strings.ContainsAny(src, "*?[{") {
			expanded = append(expanded, src)
			continue
		}
		matches, err := doublestar.FilepathGlob(src)
		if err != nil {
			return nil, fmt.Errorf("invalid source pattern %q: %w", src, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source pattern %q does not match anything", src)
		}
		expanded = append(expanded, matches...)
	}
	return expanded, nil
}

func runCopyCmd(cmd *cobra.Command, cfg frontendCfg, method util.PathInputMethod, dest string) error {
	// An interrupt cancels in-flight copies through the engine's cancel token rather than killing
	// the process mid-write.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, errs, err := backend.CopyPaths(ctx, method, dest, cfg.backend)
	if err != nil {
		return err
	}

	allColumns := []string{"source", "dest", "type", "status", "bytes", "detail"}
	defaultColumns := []string{"source", "dest", "status"}
	if viper.GetBool(config.DebugKey) {
		defaultColumns = allColumns
	}
	tbl := cmdfmt.NewPrintomatic(allColumns, defaultColumns)
	defer tbl.PrintRemaining()

	raw := viper.GetBool(config.RawKey)
	var copied, failed int
	var totalBytes uint64
	for r := range results {
		detail := ""
		if r.Err != nil {
			detail = r.Err.Error()
		}
		switch r.Status {
		case backend.StatusFailed:
			failed++
		case backend.StatusCopied:
			copied++
			totalBytes += uint64(r.Bytes)
		}
		tbl.AddItem(r.Source, r.Dest, r.Type, string(r.Status), iutil.U64FormatBytes(uint64(r.Bytes), raw), detail)
	}
	select {
	case err := <-errs:
		if err != nil {
			return err
		}
	default:
	}

	cmdfmt.Printf("Copied %d file(s), %s total.\n", copied, iutil.U64FormatBytes(totalBytes, raw))
	if failed > 0 {
		return iutil.NewCtlError(fmt.Errorf("%d entries could not be copied (rerun with --debug or --columns all for details)", failed), iutil.PartialSuccess)
	}
	return nil
}
