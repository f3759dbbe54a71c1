// Package mount implements the backend for commands that enumerate the system mount table and
// inspect the file stores behind it.
package mount

import (
	"context"
	"fmt"

	"github.com/driftfs/drift-go/common/filesystem"
	"github.com/driftfs/drift-go/common/mounttable"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	"github.com/expr-lang/expr"
	"go.uber.org/zap"
)

// GetFileStores_Config controls what GetFileStores returns.
type GetFileStores_Config struct {
	// FilterExpr is an optional expression evaluated against each mount entry. See
	// compileStoreFilter for the available fields.
	FilterExpr string
	// SkipStat leaves the statfs derived fields (capacity, inodes, magic) zero. Useful when only
	// the decoded table is wanted, or when statting slow network mounts should be avoided.
	SkipStat bool
}

// GetFileStores_Store combines a decoded mount entry with the statfs snapshot of the file system
// behind it. Stat errors are reported per store rather than failing the whole enumeration since a
// mount can disappear between reading the table and statting it.
type GetFileStores_Store struct {
	Entry mounttable.MountEntry
	Store *filesystem.FileStore
	// StatErr is set when the store could not be statted. Entry is still valid.
	StatErr error
}

// storeFilterEnv is the environment a FilterExpr is evaluated in. Field names are lowercase to
// keep expressions readable (e.g. `fstype == "ext4" && !readonly`).
type storeFilterEnv map[string]any

// GetFileStores enumerates the configured mount table and returns one store per entry that passes
// the filter. Enumeration itself is best-effort: entries the kernel removed mid-read are simply
// absent, matching what a second read of the table would show.
func GetFileStores(ctx context.Context, cfg GetFileStores_Config) ([]GetFileStores_Store, error) {
	log, _ := config.GetLogger()

	var filter func(storeFilterEnv) (bool, error)
	if cfg.FilterExpr != "" {
		var err error
		filter, err = compileStoreFilter(cfg.FilterExpr)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", cfg.FilterExpr, err)
		}
	}

	entries := mounttable.EntriesFromFile(config.MountTablePath())
	log.Debug("enumerated mount table", zap.String("path", config.MountTablePath()), zap.Int("entries", len(entries)))

	stores := make([]GetFileStores_Store, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stores, err
		}
		if filter != nil {
			keep, err := filter(filterEnvFromEntry(entry))
			if err != nil {
				return nil, fmt.Errorf("filter eval %q on %s: %w", cfg.FilterExpr, entry.Target, err)
			}
			if !keep {
				continue
			}
		}
		s := GetFileStores_Store{Entry: entry}
		if !cfg.SkipStat {
			store, err := filesystem.NewFileStore(entry)
			if err != nil {
				s.StatErr = err
				log.Debug("unable to stat file store", zap.String("target", entry.Target), zap.Error(err))
			} else {
				s.Store = store
			}
		}
		stores = append(stores, s)
	}
	return stores, nil
}

func filterEnvFromEntry(entry mounttable.MountEntry) storeFilterEnv {
	return storeFilterEnv{
		"source":   entry.Source,
		"target":   entry.Target,
		"fstype":   entry.FSType,
		"options":  entry.Options,
		"readonly": entry.ReadOnly(),
	}
}

// compileStoreFilter compiles an expression over the mount entry fields source, target, fstype,
// options, and readonly. The expression must evaluate to a boolean.
func compileStoreFilter(query string) (func(storeFilterEnv) (bool, error), error) {
	// Compile against a populated sample environment so the field names and
	// their types are known to the type checker.
	prog, err := expr.Compile(query,
		expr.Env(filterEnvFromEntry(mounttable.MountEntry{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}
	return func(env storeFilterEnv) (bool, error) {
		out, err := expr.Run(prog, map[string]any(env))
		if err != nil {
			return false, err
		}
		return out.(bool), nil
	}, nil
}
