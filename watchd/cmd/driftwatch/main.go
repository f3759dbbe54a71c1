package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftfs/drift-go/common/configmgr"
	"github.com/driftfs/drift-go/common/eventjournal"
	"github.com/driftfs/drift-go/common/logger"
	"github.com/driftfs/drift-go/watchd/internal/config"
	"github.com/driftfs/drift-go/watchd/internal/watchmgr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Set by the build process using ldflags.
var (
	binaryName = "driftwatch"
	version    = "unknown"
	commit     = "unknown"
	buildTime  = "unknown"
)

const envVarPrefix = "DRIFTWATCH_"

func main() {

	// The default values specified here will be used as configuration defaults. Note defaults for
	// configuration specified using a slice are not set here, notably there are no default
	// watches.
	pflag.Bool("version", false, "Print the version then exit.")
	pflag.String("cfg-file", "", "The path to the configuration file containing the list of watches and other configuration.")
	pflag.String("watches", "", "One or more watches separated by a semicolon, each as a list of key='value' pairs (example: \"path='/mnt/data',recursive=true\").")
	pflag.String("log.type", "stderr", "Where log messages should be sent ('stderr', 'stdout', 'syslog', 'logfile').")
	pflag.String("log.file", "/var/log/driftwatch.log", "The path to the desired log file when log.type is 'logfile' (if needed the directory and all parent directories will be created).")
	pflag.Int8("log.level", 3, "Adjust the logging level (0=Fatal, 1=Error, 2=Warn, 3=Info, 4+5=Debug).")
	pflag.Int("log.max-size", 1000, "When log.type is 'logfile' the maximum size of the log.file in megabytes before it is rotated.")
	pflag.Int("log.num-rotated-files", 5, "When log.type is 'logfile' the maximum number old log.file(s) to keep when log.max-size is reached and the log is rotated.")
	pflag.Bool("log.developer", false, "Enable developer logging including stack traces and setting the equivalent of log.level=5 and log.type=stdout (all other log settings are ignored).")
	pflag.String("journal.path", "/var/lib/driftwatch/journal", "The directory where events are persisted.")
	pflag.Uint64("journal.max-events", 0, "Cap how many journaled events are retained (0 keeps everything).")
	pflag.Int("journal.trim-frequency", 300, "How often in seconds the journal retention cap is enforced.")
	pflag.Int("event-buffer-size", 4096, "Number of events buffered per watch before the oldest are dropped.")
	// Hidden flags:
	pflag.Int("developer.perf-profiling-port", 0, "Specify a port where performance profiles will be made available on the localhost via pprof (0 disables performance profiling).")
	pflag.CommandLine.MarkHidden("developer.perf-profiling-port")
	pflag.Bool("developer.dump-config", false, "Dump the full configuration and immediately exit.")
	pflag.CommandLine.MarkHidden("developer.dump-config")

	pflag.CommandLine.SortFlags = false
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		pflag.PrintDefaults()
		helpText := `
Further info:
	Configuration may be set using a mix of flags, environment variables, and values from a TOML configuration file.
	Configuration will be merged using the following precedence order (highest->lowest): (1) flags (2) environment variables (3) configuration file (4) defaults.
	The list of watches can be updated without a restart by sending a hangup signal (SIGHUP).
Using environment variables:
	To specify configuration using environment variables specify %sKEY=VALUE where KEY is the flag name you want to specify in all capitals replacing dots (.) with double underscores (__) and hyphens (-) with an underscore (_).
	Examples:
	export %sLOG__DEVELOPER=true
	export %sCFG_FILE=/etc/driftwatch.toml
`
		fmt.Fprintf(os.Stderr, helpText, envVarPrefix, envVarPrefix, envVarPrefix)
		os.Exit(0)
	}

	pflag.Parse()

	if printVersion, _ := pflag.CommandLine.GetBool("version"); printVersion {
		fmt.Printf("%s %s (commit: %s, built: %s)\n", binaryName, version, commit, buildTime)
		os.Exit(0)
	}

	// We initialize ConfigManager first because all components require the initial config to
	// start up.
	cfgMgr, err := configmgr.New(pflag.CommandLine, envVarPrefix, &config.AppConfig{})
	if err != nil {
		log.Fatalf("unable to get initial configuration: %s", err)
	}
	c := cfgMgr.Get()
	initialCfg, ok := c.(*config.AppConfig)
	if !ok {
		log.Fatalf("configuration manager returned invalid configuration (expected watch daemon application configuration)")
	}

	if initialCfg.Developer.DumpConfig {
		fmt.Printf("Dumping AppConfig and exiting...\n\n")
		fmt.Printf("%+v\n", initialCfg)
		os.Exit(0)
	}

	logger, err := logger.New(initialCfg.Log)
	if err != nil {
		log.Fatalf("Unable to initialize logger: %s", err)
	}
	defer logger.Sync() // Flush any final messages before exiting.
	logger.Info("start-of-day", zap.String("application", binaryName), zap.String("version", version), zap.String("commit", commit), zap.String("built", buildTime))
	cfgMgr.AddListener(logger)

	if initialCfg.Developer.PerfProfilingPort != 0 {
		go func() {
			http.ListenAndServe(fmt.Sprintf(":%d", initialCfg.Developer.PerfProfilingPort), nil)
		}()
	}

	// Create a channel to receive OS signals to coordinate graceful shutdown:
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigs
		cancel()
	}()

	journal, err := eventjournal.Open(initialCfg.Journal.Path, logger.Logger)
	if err != nil {
		logger.Fatal("unable to open event journal", zap.Error(err))
	}
	defer journal.Close()

	watchMgr := watchmgr.New(logger.Logger, journal, initialCfg.EventBufferSize)
	cfgMgr.AddListener(watchMgr)

	// Enforce the journal retention cap in the background. Trimming is cheap enough that a
	// periodic sweep beats trimming on every append.
	if initialCfg.Journal.MaxEvents > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(initialCfg.Journal.TrimFrequency) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					lastSeq, err := journal.LastSeqID()
					if err != nil {
						logger.Warn("unable to determine journal size for trimming", zap.Error(err))
						continue
					}
					if lastSeq > initialCfg.Journal.MaxEvents {
						if err := journal.TrimUntil(lastSeq - initialCfg.Journal.MaxEvents); err != nil {
							logger.Warn("unable to trim journal", zap.Error(err))
						}
					}
				}
			}
		}()
	}

	// Start accepting dynamic configuration updates. The manage loop pushes the initial
	// configuration to all listeners, which starts the configured watches.
	configCtx, configCancel := context.WithCancel(context.Background())
	go cfgMgr.Manage(configCtx, logger.Logger)

	<-ctx.Done() // Block here and wait for a signal to shutdown.
	logger.Info("shutdown signal received, stopping all watches and flushing the journal")
	configCancel() // Stop accepting configuration updates.
	watchMgr.Stop()
	logger.Info("all components stopped, exiting")
}
