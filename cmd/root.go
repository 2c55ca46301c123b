/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/pbxmend/internal/ops"
	"github.com/fulmenhq/pbxmend/pkg/buildinfo"
	"github.com/fulmenhq/pbxmend/pkg/config"
	"github.com/fulmenhq/pbxmend/pkg/exitcode"
	"github.com/fulmenhq/pbxmend/pkg/logger"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pbxmend",
		Short: "Apply request lists to an Xcode project manifest",
		Long: `pbxmend adds source files to an Xcode project's group tree, registers
compilable sources in a target's Sources phase and repairs file reference
paths. Every run loads project.pbxproj once, applies all requests in memory
and writes the manifest back once. Re-running a list changes nothing.

Run without a subcommand, pbxmend applies the request lists named by
'requests' in pbxmend.yaml, so a bare run needs a config file that lists them
(see configs/pbxmend.yaml for a sample).

Examples:
   pbxmend                                # Apply the request lists named in pbxmend.yaml
   pbxmend apply configs/requests/add.yaml
   pbxmend add --subgroup Disassembler --dir app MachOParser.h MachOParser.m
   pbxmend fix 'XREF*.h' SyntaxHighlighter.m
   pbxmend inspect                        # Show the group tree and target phases
   pbxmend --no-op apply lists.yaml       # Report without writing`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initializeLogger(cmd)
		},
		Args: cobra.NoArgs,
		RunE: runApply,
	}

	cmd.PersistentFlags().String("root", "", "Directory to start repository discovery from (default: current directory)")
	cmd.PersistentFlags().String("config", "", "Config file (default: pbxmend.yaml in the repository root)")
	cmd.PersistentFlags().String("manifest", "", "Xcode project bundle or project.pbxproj, relative to the repository root")
	cmd.PersistentFlags().String("group", "", "Top-level group requests are applied in")
	cmd.PersistentFlags().String("target", "", "Target whose build phase receives compilable sources")
	cmd.PersistentFlags().String("phase", "", "Build phase compilable sources are registered in")
	cmd.PersistentFlags().String("report", "", "Write a markdown run report to this file")

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs and results in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("no-op", false, "Apply requests in memory and report without saving the manifest")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("pbxmend {{.Version}}\n")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.Error{Err: err}
	})

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
// This is called from init() for production and can be called explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	reg := ops.NewRegistry()
	for _, sub := range []struct {
		group ops.CommandGroup
		cmd   *cobra.Command
	}{
		{ops.GroupMutate, newApplyCommand()},
		{ops.GroupMutate, newAddCommand()},
		{ops.GroupMutate, newFixCommand()},
		{ops.GroupSupport, newInspectCommand()},
		{ops.GroupSupport, newVersionCommand()},
	} {
		cmd.AddCommand(sub.cmd)
		if err := reg.Register(sub.group, sub.cmd); err != nil {
			panic(err)
		}
	}

	// Grouped help by command group (Manifest -> Support)
	cmd.SetHelpFunc(reg.HelpFunc(cmd.HelpFunc()))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", logger.Err(err))
		os.Exit(exitcode.ForError(err))
	}
}

func init() {
	// Register all subcommands with the production rootCmd
	registerSubcommands(rootCmd)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) error {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	noOp, _ := cmd.Flags().GetBool("no-op")

	logLevel, err := logger.ParseLevel(logLevelStr)
	if err != nil {
		return &config.Error{Err: err}
	}

	cfg := logger.Config{
		Level:     logLevel,
		UseColor:  !noColor && os.Getenv("NO_COLOR") == "",
		JSON:      jsonLogs,
		Component: "pbxmend",
		NoOp:      noOp,
		Output:    cmd.ErrOrStderr(),
	}
	if err := logger.Initialize(cfg); err != nil {
		return &config.Error{Err: err}
	}
	return nil
}
