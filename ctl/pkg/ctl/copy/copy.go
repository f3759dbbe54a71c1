// Package copy implements the backend of the copy command. Sources are processed in parallel and
// each file's contents go through the tiered copy engine, so a copy_file_range capable kernel
// copies without moving data through user space.
package copy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/driftfs/drift-go/common/attrs"
	"github.com/driftfs/drift-go/common/filecopy"
	"github.com/driftfs/drift-go/common/filesystem"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	"github.com/driftfs/drift-go/ctl/pkg/util"
)

type Status string

const (
	StatusCopied  Status = "copied"
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// CopyPaths_Config controls how the destination is written. The zero value copies nothing extra:
// existing files are left alone and only contents plus owner/mode are reproduced.
type CopyPaths_Config struct {
	// Overwrite zeroes and rewrites destination files that already exist.
	Overwrite bool
	// Pattern is an optional doublestar pattern matched against each file's path relative to the
	// source root (e.g. "**/*.log"). Non-matching files are skipped; directories are always
	// created so matching files deeper in the tree have somewhere to land.
	Pattern string
	// PreserveAttrs copies user extended attributes to the destination.
	PreserveAttrs bool
	// PreserveTimes copies atime/mtime to the destination.
	PreserveTimes bool
	// SingleWorker disables parallel processing so results come back in walk order.
	SingleWorker bool
}

// CopyPaths_Result reports the outcome for a single entry. Err is set when Status is failed; the
// rest of the run continues so one unreadable file does not abort a large copy.
type CopyPaths_Result struct {
	Source string
	Dest   string
	Type   string
	Bytes  int64
	Status Status
	Err    error
}

// CopyPaths copies every entry provided by the PathInputMethod under dest. The destination
// directory is created if needed. Cancelling the context stops in-flight content copies through
// the engine's cancel token; destination files already in progress hold an undefined prefix of
// their source afterwards.
func CopyPaths(ctx context.Context, method util.PathInputMethod, dest string, cfg CopyPaths_Config) (<-chan CopyPaths_Result, <-chan error, error) {
	if cfg.Pattern != "" && !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, nil, fmt.Errorf("invalid pattern %q", cfg.Pattern)
	}

	dstProvider, err := filesystem.NewFromPath(dest)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to initialize the destination: %w", err)
	}
	destRel, err := dstProvider.GetRelativePathWithinMount(dest)
	if err != nil {
		return nil, nil, err
	}
	if err := dstProvider.CreateDir(destRel, 0777); err != nil {
		return nil, nil, err
	}

	token := &filecopy.CancelToken{}
	context.AfterFunc(ctx, token.Cancel)

	c := &copier{
		dst:     dstProvider,
		destRel: destRel,
		engine:  filecopy.New(nil),
		token:   token,
		cfg:     cfg,
		root:    method.Root(),
	}

	return util.ProcessPaths(ctx, method, cfg.SingleWorker, c.copyEntry, util.RecurseLexicographically(true))
}

type copier struct {
	dst     filesystem.Provider
	destRel string
	engine  *filecopy.Engine
	token   *filecopy.CancelToken
	cfg     CopyPaths_Config
	// root is the single source path when recursing, "" otherwise.
	root string
}

// copyEntry reproduces one entry under the destination. searchPath is relative to the source
// mount. Only cancellation is returned as an error since that must stop the whole run; everything
// else is reported through the result so the remaining entries still get processed.
func (c *copier) copyEntry(searchPath string) (CopyPaths_Result, error) {
	// The provider singleton was initialized from the first source path before this is called.
	src, err := config.DriftClient(searchPath)
	if err != nil {
		return CopyPaths_Result{}, err
	}

	relDest, err := c.destFor(src, searchPath)
	if err != nil {
		return CopyPaths_Result{}, err
	}
	result := CopyPaths_Result{
		Source: searchPath,
		Dest:   filepath.Join(c.dst.GetMountPath(), relDest),
	}

	info, err := src.Lstat(searchPath)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}
	result.Type = filesystem.FileTypeToString(info.Mode())

	switch {
	case info.IsDir():
		return c.copyDir(src, searchPath, relDest, info, result)
	case info.Mode().IsRegular():
		if c.cfg.Pattern != "" {
			if match, _ := doublestar.Match(c.cfg.Pattern, strings.TrimPrefix(result.Source, "/")); !match {
				result.Status = StatusSkipped
				return result, nil
			}
		}
		return c.copyFile(src, searchPath, relDest, info, result)
	default:
		// Symlinks and special files are not reproduced. Following symlinks instead could loop
		// forever on a self-referencing tree.
		result.Status = StatusSkipped
		return result, nil
	}
}

func (c *copier) copyDir(src filesystem.Provider, searchPath, relDest string, info fs.FileInfo, result CopyPaths_Result) (CopyPaths_Result, error) {
	if err := c.dst.CreateDir(relDest, uint32(info.Mode().Perm())); err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}
	if err := c.finishEntry(src, searchPath, relDest, info); err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}
	result.Status = StatusCreated
	return result, nil
}

func (c *copier) copyFile(src filesystem.Provider, searchPath, relDest string, info fs.FileInfo, result CopyPaths_Result) (CopyPaths_Result, error) {
	// Workers process entries in parallel so a file may be reached before the walk got around to
	// its parent directory.
	if err := c.dst.CreateDir(filepath.Dir(relDest), 0777); err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}
	if err := c.dst.CreatePreallocatedFile(relDest, info.Size(), c.cfg.Overwrite); err != nil {
		if errors.Is(err, os.ErrExist) {
			result.Status = StatusSkipped
			result.Err = err
			return result, nil
		}
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}

	if err := c.copyContents(src, searchPath, relDest); err != nil {
		if errors.Is(err, filecopy.ErrCancelled) {
			return result, err
		}
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}

	if err := c.finishEntry(src, searchPath, relDest, info); err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result, nil
	}
	result.Status = StatusCopied
	result.Bytes = info.Size()
	return result, nil
}

// copyContents moves the file contents. When source and destination share a mount the provider's
// copy path is used directly. Across mounts the engine is driven with absolute paths instead;
// copy_file_range handles that fine on current kernels and the engine falls back for the rest.
func (c *copier) copyContents(src filesystem.Provider, searchPath, relDest string) error {
	if src.GetMountPath() == c.dst.GetMountPath() {
		return src.CopyContentsToFile(searchPath, relDest, c.token)
	}

	srcFile, err := os.Open(filepath.Join(src.GetMountPath(), searchPath))
	if err != nil {
		return fmt.Errorf("error opening source path: %w", err)
	}
	defer srcFile.Close()
	dstFile, err := os.OpenFile(filepath.Join(c.dst.GetMountPath(), relDest), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("error opening destination path: %w", err)
	}
	if err := c.engine.Copy(dstFile, srcFile, c.token); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// finishEntry applies the metadata preservation configured for the run.
func (c *copier) finishEntry(src filesystem.Provider, searchPath, relDest string, info fs.FileInfo) error {
	if c.cfg.PreserveAttrs {
		srcAbs := filepath.Join(src.GetMountPath(), searchPath)
		dstAbs := filepath.Join(c.dst.GetMountPath(), relDest)
		if err := attrs.CopyAll(srcAbs, dstAbs); err != nil {
			return err
		}
	}
	if err := c.dst.CopyOwnerAndMode(info, relDest); err != nil {
		return err
	}
	if c.cfg.PreserveTimes {
		if err := c.dst.CopyTimestamps(info, relDest); err != nil {
			return err
		}
	}
	return nil
}

// destFor maps a source path to its path relative to the destination mount. Recursion reproduces
// the source directory itself under dest (like cp -r), everything else lands flat under dest by
// base name.
func (c *copier) destFor(src filesystem.Provider, searchPath string) (string, error) {
	if c.root == "" {
		return filepath.Join(c.destRel, filepath.Base(searchPath)), nil
	}
	rootRel, err := src.GetRelativePathWithinMount(c.root)
	if err != nil {
		return "", err
	}
	under := strings.TrimPrefix(searchPath, rootRel)
	return filepath.Join(c.destRel, filepath.Base(rootRel), under), nil
}
