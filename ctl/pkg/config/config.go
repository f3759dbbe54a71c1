package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/driftfs/drift-go/common/filesystem"
	"github.com/driftfs/drift-go/common/logger"
	"github.com/driftfs/drift-go/common/mounttable"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Viper keys for the global config. Should be used when accessing it instead of raw strings.
// Currently these are also used by the frontend for command line flag and env variable names.
const (
	// A mount point on the local file system commands should operate inside of. When unset the
	// mount point is derived from the paths given to each command.
	MountPointKey = "mount"
	// Path of the mount table to enumerate. Mostly useful to inspect a saved table or the table
	// of another mount namespace (e.g. /proc/<pid>/mounts).
	MountTablePathKey = "mount-table"
	// Prints values in their raw, base form, without adding units and SI/IEC prefixes. Durations
	// excluded.
	RawKey = "raw"
	// Tells the command to print additional, normally hidden info. An example would be the raw
	// statfs magic numbers which are only useful when debugging file system type detection.
	DebugKey = "debug"
	// The maximum number of workers to use when a command can complete work in parallel
	NumWorkersKey = "num-workers"
	// Set the log level (0 - least verbosity, 5 - highest verbosity).
	LogLevelKey = "log-level"
	// Sets up a reasonable default development logging configuration. Logging is enabled at
	// DebugLevel and above, and uses a console encoder. Logs are written to standard error.
	// Stacktraces are included on logs of WarnLevel and above. DPanicLevel logs will panic.
	LogDeveloperKey = "log-developer"
	// Print only the given columns of a table. Applied automatically when cmdfmt.NewTable() is used.
	// "all" prints all available columns, not only the default ones.
	ColumnsKey = "columns"
	// Determines the number of rows to be printed before the header is repeated. Also determines
	// how often output is actually flushed to stdout. Not applied automatically. If set to 0,
	// should not print a header at all and flush each row automatically (this requires NOT using
	// the go-pretty table printer and just print columns separated by spaces).
	PageSizeKey = "page-size"
	OutputKey   = "output"
)

// OutputType is used to control what type of structured output should be printed.
type OutputType string

const (
	OutputTable      OutputType = "table"
	OutputJSON       OutputType = "json"
	OutputJSONPretty OutputType = "json-pretty"
	OutputNDJSON     OutputType = "ndjson"
)

var (
	OutputOptions = []fmt.Stringer{OutputTable, OutputJSON, OutputJSONPretty, OutputNDJSON}
)

func (t OutputType) String() string {
	switch t {
	case OutputTable:
		return "table"
	case OutputJSON:
		return "json"
	case OutputJSONPretty:
		return "json-pretty"
	case OutputNDJSON:
		return "ndjson"
	default:
		return "unknown"
	}
}

// GlobalConfig is used with InitViperFromExternal when the CTL backend is consumed as a library.
// While not all global configuration is applicable in this mode, it and InitViperFromExternal()
// should be kept in sync with any global configuration needed to use CTL as a library.
type GlobalConfig struct {
	Mount      string
	MountTable string
	LogLevel   int8
	NumWorkers int
}

// InitViperFromExternal is used when the CTL backend is consumed as a library by applications
// other than the CTL CLI frontend. It is used to initialize the backend Viper config singleton
// from externally defined configuration. This approach gives callers flexibility in how they
// define equivalent configuration parameters (via flags, env variables, config files, etc) that
// are then passed through using the `GlobalConfig` struct.
//
// If the mount flag is empty then it will not be configured and is only needed when absolute
// paths are not used since DriftClient will derive the mount path.
func InitViperFromExternal(cfg GlobalConfig) {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = runtime.GOMAXPROCS(0)
	}
	if cfg.MountTable == "" {
		cfg.MountTable = mounttable.DefaultPath
	}

	globalFlagSet := pflag.FlagSet{}
	if cfg.Mount != "" {
		globalFlagSet.String(MountPointKey, cfg.Mount, "")
	}
	globalFlagSet.String(MountTablePathKey, cfg.MountTable, "")
	globalFlagSet.Int(NumWorkersKey, cfg.NumWorkers, "")
	globalFlagSet.Int8(LogLevelKey, cfg.LogLevel, "")

	viper.SetEnvPrefix("drift")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	os.Setenv("DRIFT_BINARY_NAME", "drift")
	globalFlagSet.VisitAll(func(flag *pflag.Flag) {
		viper.BindEnv(flag.Name)
		viper.BindPFlag(flag.Name, flag)
	})
}

// The global file system provider singleton
var globalMount filesystem.Provider

// DriftClient provides a standardized way to interact with a locally mounted file system through
// the globalMount.
//
// If MountPointKey is not set, it requires a path inside some mounted file system and will handle
// determining where that file system is mounted and initializing the globalMount the first time
// it is called.
//
// When MountPointKey is set it always initializes and returns the globalMount based on that mount
// point and will return an error if nothing is mounted there.
//
// Callers can always use relative paths inside the mount with the provider. If a caller does not
// know if it has a relative or absolute path, the Provider.GetRelativePathWithinMount(path)
// function can be used to get a sanitized relative path inside the mount.
//
// Note the behavior of GetRelativePathWithinMount() differs slightly depending if MountPointKey
// or the provided path is used to determine where the file system is mounted:
//
//   - If MountPointKey is specified, users can use absolute or relative paths from any cwd. Note
//     absolute paths only work if they are inside the same mount point as MountPointKey.
//   - If MountPointKey is NOT specified, users can only use relative paths when the cwd is
//     somewhere inside the file system they want to work with.
func DriftClient(path string) (filesystem.Provider, error) {
	if globalMount == nil {
		var err error
		if viper.IsSet(MountPointKey) && viper.GetString(MountPointKey) != "" {
			mp := viper.GetString(MountPointKey)
			if !filepath.IsAbs(mp) {
				return nil, fmt.Errorf("the specified value for %s does not appear to be an absolute path", MountPointKey)
			}
			globalMount, err = filesystem.NewFromPath(mp)
		} else {
			globalMount, err = filesystem.NewFromPath(path)
		}
		if err != nil {
			return nil, err
		}
	}
	return globalMount, nil
}

// MountTablePath returns the configured mount table path, falling back to the live kernel table
// when nothing was configured.
func MountTablePath() string {
	if p := viper.GetString(MountTablePathKey); p != "" {
		return p
	}
	return mounttable.DefaultPath
}

// Resets the global state and frees resources
func Cleanup() {
	globalMount = nil
	globalLogger = nil
}

var globalLogger *logger.Logger

// Returns a global logger that logs to stderr. Don't rely solely on the logger to communicate
// important information to the user since all non-fatal log messages may be disabled by default
// for some consumers of this functionality (such as CTL). The logger DOES NOT replace the need to
// return meaningful errors.
//
// IMPORTANT: Unless your code is what is responsible for exiting when an error is encountered,
// generally calling `log.Fatal()` is discouraged as this will immediately terminate the program.
//
// When logging keep in mind it is bad practice to both log and return an error. That generally
// results in the same error getting logged multiple times at different layers. Instead the logger
// should be used to add additional context, typically at the debug level, for what operations led
// up to some error being returned. Whatever is at the "top-level" can make the decision what to
// do with that error, such as log it and move on in the case of a long-running service, or
// immediately return it to the user in the case of an interactive/CLI tool.
//
// Note when getting the logger unless there is a bug in the logging implementation errors are
// unlikely and can usually be ignored for interactive tools where a panic due to the logger being
// unavailable is acceptable. However for long-running services errors should always be checked.
func GetLogger() (*logger.Logger, error) {
	var err error
	var invalidLogLevel = false
	if globalLogger == nil {
		logLevel := viper.GetInt(LogLevelKey)
		if logLevel < 0 || logLevel > 5 {
			// If the user gave an invalid log level ignore it and set logging to the highest
			// verbosity. This means we can generally always return a valid logger so most callers
			// don't need to check for an error from GetLogger().
			logLevel = 5
			invalidLogLevel = true
		}
		// The logger only distinguishes warn/info/debug, so collapse the 0-5 scale onto the
		// nearest level it knows.
		switch {
		case logLevel <= 2:
			logLevel = 1
		case logLevel <= 4:
			logLevel = 3
		default:
			logLevel = 5
		}
		globalLogger, err = logger.New(logger.Config{
			Level:     int8(logLevel),
			Type:      logger.StdErr,
			Developer: viper.GetBool(LogDeveloperKey),
		})
		if err != nil {
			return nil, err
		}
		if invalidLogLevel {
			globalLogger.Debug("enabling debug logging and ignoring user provided log level (was not in the range 0-5)")
		}
	}
	return globalLogger, nil
}
