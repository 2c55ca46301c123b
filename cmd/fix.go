/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fulmenhq/pbxmend/pkg/requests"
)

func newFixCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <name-or-glob>...",
		Short: "Reset file reference paths to their bare names",
		Long: `Set the stored path of each named file reference to its bare display name,
so the file resolves relative to its group. Names may be glob patterns
(XREF*.h); a pattern rewrites every matching reference directly in the group.`,
		Example: `  pbxmend fix XREFManager.h XREFManager.m
  pbxmend fix --subgroup Disassembler '*.m'`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFix,
	}
	cmd.Flags().String("subgroup", "", "Slash-separated subgroup below the top-level group")
	return cmd
}

func runFix(cmd *cobra.Command, args []string) error {
	subgroup, _ := cmd.Flags().GetString("subgroup")

	list := requests.FixList(args, subgroup)
	if err := list.Validate(); err != nil {
		return err
	}
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	return env.run(cmd, []*requests.List{list})
}
