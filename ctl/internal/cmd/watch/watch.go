package watch

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cwatch "github.com/driftfs/drift-go/common/watch"
	"github.com/driftfs/drift-go/ctl/internal/cmdfmt"
	iutil "github.com/driftfs/drift-go/ctl/internal/util"
	backend "github.com/driftfs/drift-go/ctl/pkg/ctl/watch"
	"github.com/spf13/cobra"
)

type watchCfg struct {
	backend backend.WatchPath_Config
	bell    bool
	replay  bool
	fromSeq uint64
}

func NewWatchCmd() *cobra.Command {
	cfg := watchCfg{}
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Stream file system change events for a directory.",
		Long: `Stream file system change events for a directory.

Events are printed as they arrive until interrupted with ctrl-c. Each event carries a sequence
number assigned in arrival order; a gap in the numbers means events arrived faster than they
were consumed and the oldest ones were dropped.

With --journal events are additionally persisted to an on-disk journal that survives restarts
and can be printed later using --replay (optionally starting --from a sequence number).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.backend.Path = args[0]
			if cfg.replay {
				if cfg.backend.JournalPath == "" {
					return fmt.Errorf("--replay requires --journal to locate the journal")
				}
				return runReplayCmd(cmd, cfg)
			}
			return runWatchCmd(cmd, cfg)
		},
	}
	cmd.Flags().BoolVarP(&cfg.backend.Recursive, "recursive", "r", false,
		"Watch all current and future subdirectories as well.")
	cmd.Flags().StringVar(&cfg.backend.JournalPath, "journal", "",
		"Persist events to a journal in this directory before printing them.")
	cmd.Flags().IntVar(&cfg.backend.BufferSize, "buffer-size", cwatch.DefaultBufferSize,
		"Number of events buffered for a slow consumer before the oldest are dropped.")
	cmd.Flags().BoolVar(&cfg.bell, "bell", false,
		"Ring the terminal bell whenever an event arrives.")
	cmd.Flags().BoolVar(&cfg.replay, "replay", false,
		"Print previously journaled events instead of watching live.")
	cmd.Flags().Uint64Var(&cfg.fromSeq, "from", 0,
		"With --replay, start at this sequence number instead of the beginning.")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, cfg watchCfg) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, errs, err := backend.WatchPath(ctx, cfg.backend)
	if err != nil {
		return err
	}
	cmdfmt.Printf("Watching %s (ctrl-c to stop)...\n", cfg.backend.Path)

	count := 0
	for event := range events {
		printEvent(event)
		if cfg.bell {
			iutil.FlashTerminal()
		}
		count++
	}
	cmdfmt.Printf("Saw %d events.\n", count)
	select {
	case err := <-errs:
		if err != nil {
			return iutil.NewCtlError(err, iutil.PartialSuccess)
		}
	default:
	}
	return nil
}

func runReplayCmd(cmd *cobra.Command, cfg watchCfg) error {
	count := 0
	err := backend.ReplayJournal(cfg.backend.JournalPath, cfg.fromSeq, func(event *cwatch.Event) error {
		printEvent(event)
		count++
		return nil
	})
	if err != nil {
		return err
	}
	cmdfmt.Printf("Replayed %d events.\n", count)
	return nil
}

// Events are a stream of unknown length so they are printed one per line as they arrive rather
// than buffered into a table.
func printEvent(event *cwatch.Event) {
	fmt.Printf("%d  %s  %s  %s\n", event.SeqID, event.Time.Format(time.RFC3339), event.Op, event.Path)
}
