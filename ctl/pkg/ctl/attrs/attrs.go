// Package attrs implements the backend for inspecting and modifying the extended metadata of
// files: user extended attributes, the emulated DOS attribute view, and kernel inode flags.
package attrs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cattrs "github.com/driftfs/drift-go/common/attrs"
	"github.com/driftfs/drift-go/common/filesystem"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	"github.com/driftfs/drift-go/ctl/pkg/util"
	"golang.org/x/sys/unix"
)

type GetAttrs_Config struct {
	// FilterExpr optionally limits which entries are inspected, see the path filter DSL.
	FilterExpr string
	// SingleWorker disables parallel processing so results come back in walk order.
	SingleWorker bool
}

type GetAttrs_Result struct {
	Path string
	Type string
	DOS  cattrs.DOSAttributes
	// DOSSupported is false on file stores without extended attribute support.
	DOSSupported bool
	Flags        cattrs.InodeFlags
	// FlagsSupported is false on file systems that do not implement the flags ioctl, notably most
	// network and FUSE file systems.
	FlagsSupported bool
	XAttrs         []string
}

// GetAttrs reads the extended metadata of each input path. Views the underlying file store does
// not support are reported as unsupported rather than failing the entry.
func GetAttrs(ctx context.Context, method util.PathInputMethod, cfg GetAttrs_Config) (<-chan GetAttrs_Result, <-chan error, error) {
	return util.ProcessPaths(ctx, method, cfg.SingleWorker, getEntry,
		util.FilterExpr(cfg.FilterExpr), util.RecurseLexicographically(true))
}

func getEntry(searchPath string) (GetAttrs_Result, error) {
	provider, err := config.DriftClient(searchPath)
	if err != nil {
		return GetAttrs_Result{}, err
	}
	info, err := provider.Lstat(searchPath)
	if err != nil {
		return GetAttrs_Result{}, err
	}
	absPath := filepath.Join(provider.GetMountPath(), searchPath)
	result := GetAttrs_Result{
		Path: absPath,
		Type: filesystem.FileTypeToString(info.Mode()),
	}
	// Symlinks have no xattrs or flags of their own worth showing and the calls below would
	// follow the link target.
	if info.Mode()&os.ModeSymlink != 0 {
		return result, nil
	}

	names, err := cattrs.List(absPath)
	switch {
	case err == nil:
		result.XAttrs = names
	case errors.Is(err, unix.ENOTSUP):
		// no xattr support, leave the list empty
	default:
		return result, fmt.Errorf("listing extended attributes of %s: %w", absPath, err)
	}

	dos, err := cattrs.GetDOSAttributes(absPath)
	if err == nil {
		result.DOS = dos
		result.DOSSupported = true
	} else if !errors.Is(err, unix.ENOTSUP) {
		return result, fmt.Errorf("reading dos attributes of %s: %w", absPath, err)
	}

	flags, err := cattrs.GetInodeFlags(absPath)
	if err == nil {
		result.Flags = flags
		result.FlagsSupported = true
	} else if !errors.Is(err, unix.ENOTTY) && !errors.Is(err, unix.ENOTSUP) {
		return result, fmt.Errorf("reading inode flags of %s: %w", absPath, err)
	}
	return result, nil
}

type SetAttrs_Config struct {
	// DOS and Flags carry only the bits the user asked to change, keyed by bit name. Bits not in
	// the map keep their current value.
	DOS   map[string]bool
	Flags map[string]bool
	// SetXAttrs are user extended attributes to write, RemoveXAttrs names to delete.
	SetXAttrs    map[string]string
	RemoveXAttrs []string
	SingleWorker bool
}

type SetAttrs_Result struct {
	Path    string
	Updated bool
}

// SetAttrs applies the configured metadata changes to each input path. DOS bits and inode flags
// are read-modify-write so unmentioned bits are preserved.
func SetAttrs(ctx context.Context, method util.PathInputMethod, cfg SetAttrs_Config) (<-chan SetAttrs_Result, <-chan error, error) {
	s := setter{cfg: cfg}
	return util.ProcessPaths(ctx, method, cfg.SingleWorker, s.setEntry, util.RecurseLexicographically(true))
}

type setter struct {
	cfg SetAttrs_Config
}

func (s *setter) setEntry(searchPath string) (SetAttrs_Result, error) {
	provider, err := config.DriftClient(searchPath)
	if err != nil {
		return SetAttrs_Result{}, err
	}
	absPath := filepath.Join(provider.GetMountPath(), searchPath)
	result := SetAttrs_Result{Path: absPath}

	if len(s.cfg.DOS) > 0 {
		dos, err := cattrs.GetDOSAttributes(absPath)
		if err != nil {
			return result, fmt.Errorf("reading dos attributes of %s: %w", absPath, err)
		}
		applyBit(s.cfg.DOS, "readonly", &dos.ReadOnly)
		applyBit(s.cfg.DOS, "hidden", &dos.Hidden)
		applyBit(s.cfg.DOS, "system", &dos.System)
		applyBit(s.cfg.DOS, "archive", &dos.Archive)
		if err := cattrs.SetDOSAttributes(absPath, dos); err != nil {
			return result, fmt.Errorf("writing dos attributes of %s: %w", absPath, err)
		}
		result.Updated = true
	}

	if len(s.cfg.Flags) > 0 {
		flags, err := cattrs.GetInodeFlags(absPath)
		if err != nil {
			return result, fmt.Errorf("reading inode flags of %s: %w", absPath, err)
		}
		applyBit(s.cfg.Flags, "immutable", &flags.Immutable)
		applyBit(s.cfg.Flags, "append-only", &flags.AppendOnly)
		applyBit(s.cfg.Flags, "nodump", &flags.NoDump)
		applyBit(s.cfg.Flags, "noatime", &flags.NoAtime)
		applyBit(s.cfg.Flags, "sync", &flags.Sync)
		if err := cattrs.SetInodeFlags(absPath, flags); err != nil {
			return result, fmt.Errorf("writing inode flags of %s: %w", absPath, err)
		}
		result.Updated = true
	}

	for name, value := range s.cfg.SetXAttrs {
		if err := cattrs.Set(absPath, name, []byte(value)); err != nil {
			return result, fmt.Errorf("setting %s on %s: %w", name, absPath, err)
		}
		result.Updated = true
	}
	for _, name := range s.cfg.RemoveXAttrs {
		if err := cattrs.Remove(absPath, name); err != nil {
			return result, fmt.Errorf("removing %s from %s: %w", name, absPath, err)
		}
		result.Updated = true
	}
	return result, nil
}

func applyBit(changes map[string]bool, name string, bit *bool) {
	if v, ok := changes[name]; ok {
		*bit = v
	}
}
