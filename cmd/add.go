/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fulmenhq/pbxmend/pkg/requests"
)

func newAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>...",
		Short: "Add files to the top-level group and register sources",
		Long: `Add each named file to the top-level group, or to a subgroup below it
created on demand. Compilable sources (.m, .mm, .c, .cpp, .swift) are also
registered in the target's Sources phase. Files already present are left
alone.`,
		Example: `  pbxmend add SyntaxHighlighter.h SyntaxHighlighter.m
  pbxmend add --subgroup Disassembler --dir app MachOParser.h MachOParser.m`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAdd,
	}
	cmd.Flags().String("subgroup", "", "Slash-separated subgroup below the top-level group")
	cmd.Flags().String("dir", "", "Directory joined in front of each name to form the stored path")
	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	subgroup, _ := cmd.Flags().GetString("subgroup")
	dir, _ := cmd.Flags().GetString("dir")

	list := requests.AddList(args, subgroup, dir)
	if err := list.Validate(); err != nil {
		return err
	}
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	return env.run(cmd, []*requests.List{list})
}
