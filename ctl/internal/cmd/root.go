package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftfs/drift-go/ctl/internal/cmd/attrs"
	"github.com/driftfs/drift-go/ctl/internal/cmd/copy"
	"github.com/driftfs/drift-go/ctl/internal/cmd/mount"
	"github.com/driftfs/drift-go/ctl/internal/cmd/views"
	"github.com/driftfs/drift-go/ctl/internal/cmd/watch"
	cmdConfig "github.com/driftfs/drift-go/ctl/internal/config"
	util "github.com/driftfs/drift-go/ctl/internal/util"
	"github.com/driftfs/drift-go/ctl/pkg/config"
	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Main entry point of the tool
func Execute() int {
	// This is the first line of the root help message. This is generated/stored here to allow the
	// number of characters separating the header with the rest of the help text to be determined
	// dynamically since the version width may vary.
	longHelpHeader := fmt.Sprintf("DriftFS Command Line Tool: %s", Version)
	// The root command.
	cmd := &cobra.Command{
		Use:   BinaryName,
		Short: "The DriftFS command line tool.",
		Long: fmt.Sprintf(`%s
%s
%s

* View help for specific commands with "<command> help".
* Most commands operate on the file system mount containing the provided paths. Use the
  --mount flag to pin all operations to a specific mount instead.
`, longHelpHeader, strings.Repeat("=", len(longHelpHeader)),
			wordwrap.WrapString("This tool inspects and manipulates locally mounted file systems: "+
				"enumerating mounts and their capabilities, copying data in parallel using the fastest "+
				"mechanism each file system supports, managing extended file metadata, and streaming "+
				"change notifications.", 100)),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetInt(config.NumWorkersKey) < 1 {
				return fmt.Errorf("the number of workers must be at least 1")
			}
			return nil
		},
	}

	// Normalize flags to lowercase - makes the program accept case insensitive flags
	cmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		lowercaseFlagName := strings.ToLower(name)
		return pflag.NormalizedName(lowercaseFlagName)
	})

	// Initialize global config
	// Can be accessed at config.Config and passed to the ctl API
	cmdConfig.InitGlobalFlags(cmd)
	defer cmdConfig.Cleanup()

	// Add subcommands
	cmd.AddCommand(versionCmd)
	cmd.AddCommand(mount.NewCmd())
	cmd.AddCommand(copy.NewCopyCmd())
	cmd.AddCommand(views.NewViewsCmd())
	cmd.AddCommand(attrs.NewAttrsCmd())
	cmd.AddCommand(watch.NewWatchCmd())

	// Parse the given parameters and execute the selected command
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		// If the command returned a util.CtlError with an included exit code, use this to exit the
		// program
		ctlError, ok := err.(util.CtlError)
		if ok {
			return ctlError.GetExitCode()
		}

		return 1
	}

	return 0
}
