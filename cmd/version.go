/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/pbxmend/internal/gitctx"
	"github.com/fulmenhq/pbxmend/pkg/buildinfo"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show pbxmend version",
		Long: `Show the pbxmend version. With --extended, also show the Go toolchain,
platform and the git state of the repository pbxmend would run in.`,
		Args: cobra.NoArgs,
		RunE: runVersion,
	}
	cmd.Flags().Bool("extended", false, "Show detailed build and git information")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	out := cmd.OutOrStdout()
	version := buildinfo.Version()

	var gc *gitctx.Context
	if extended {
		start, _ := cmd.Flags().GetString("root")
		if start == "" {
			start = "."
		}
		// git details are best effort; version output must not fail on them
		gc, _ = gitctx.Discover(start)
	}

	if jsonOutput {
		versionInfo := map[string]interface{}{
			"version":   version,
			"goVersion": runtime.Version(),
			"platform":  runtime.GOOS,
			"arch":      runtime.GOARCH,
		}
		if gc != nil && gc.InRepo {
			versionInfo["gitBranch"] = gc.Branch
			versionInfo["gitCommit"] = shortSHA(gc.GitSHA)
		}
		jsonData, err := json.MarshalIndent(versionInfo, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(out, string(jsonData))
		return err
	}

	fmt.Fprintf(out, "pbxmend %s\n", version)
	if extended {
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		if gc != nil && gc.InRepo {
			fmt.Fprintf(out, "Git Branch: %s\n", gc.Branch)
			fmt.Fprintf(out, "Git Commit: %s\n", shortSHA(gc.GitSHA))
		}
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
