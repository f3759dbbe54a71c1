package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/driftfs/drift-go/common/mounttable"
	"github.com/driftfs/drift-go/ctl/internal/util"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// This package handles the global command line tool config - the global flags, environment
// variable bindings and config file handling.

// Defines all the global flags and binds them to the backends config singleton
func InitGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(config.DebugKey, false, "Print additional details that are normally hidden.")

	cmd.PersistentFlags().Bool(config.RawKey, false, "Print raw values without SI or IEC prefixes (except durations).")

	cmd.PersistentFlags().String(config.MountPointKey, "", `Generally the mount point is determined automatically from the provided path(s).
	Both absolute and relative paths are supported (e.g., "./myfile" or "/mnt/data/myfile").
	Optionally specify the absolute path of a mount point to also be able to use paths relative to its root directory.`)

	cmd.PersistentFlags().String(config.MountTablePathKey, mounttable.DefaultPath, `The mount table to enumerate.
	Point this at a saved table or the table of another mount namespace (e.g., /proc/<pid>/mounts) to inspect those instead.`)

	cmd.PersistentFlags().Int(config.NumWorkersKey, runtime.GOMAXPROCS(0), "The maximum number of workers to use when a command can complete work in parallel (default: number of CPUs).")

	cmd.PersistentFlags().Int8(config.LogLevelKey, 0, fmt.Sprintf(`By default all logging is disabled except for fatal errors.
	Optionally additional logging to stderr can be enabled to assist with debugging (0=Fatal, 1=Error, 2=Warn, 3=Info, 4+5=Debug).
	When enabling logging you may wish to set --%s=0 to ensure output and log messages are synchronized.`, config.PageSizeKey))

	cmd.PersistentFlags().Bool(config.LogDeveloperKey, false, "Enable logging at DebugLevel and above and print stack traces at WarnLevel and above.")
	cmd.PersistentFlags().MarkHidden(config.LogDeveloperKey)

	cmd.PersistentFlags().Var(util.ValidatedStringFlag(config.OutputOptions, config.OutputTable), config.OutputKey,
		fmt.Sprintf("How to print structured output (allowed: %v).", config.OutputOptions))

	cmd.PersistentFlags().StringSlice(config.ColumnsKey, []string{}, `The table columns to print. Specify 'all' to print all available columns.`)
	cmd.PersistentFlags().Uint(config.PageSizeKey, 100, `The number of table rows before the header is repeated and the output is flushed to stdout.
	If set to 0, prints no header and immediately flushes every row.`)

	// Environment variables should start with DRIFT_
	viper.SetEnvPrefix("drift")
	// Environment variables cannot use "-", replace with "_"
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	os.Setenv("DRIFT_BINARY_NAME", "drift")

	// Bind all persistent pflags to viper
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		viper.BindEnv(flag.Name)
		viper.BindPFlag(flag.Name, flag)
	})
}

func Cleanup() {
	config.Cleanup()
}
