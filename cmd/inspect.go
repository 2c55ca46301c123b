/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/pbxmend/pkg/manifest"
	"github.com/fulmenhq/pbxmend/pkg/pbxproj"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the manifest's group tree and target build phases",
		Long: `Load the manifest read-only and print its group tree, with stored paths
that differ from display names, followed by every target and the members of
each of its build phases.`,
		Args: cobra.NoArgs,
		RunE: runInspect,
	}
}

type inspectNode struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Path     string         `json:"path,omitempty"`
	Children []*inspectNode `json:"children,omitempty"`
}

type inspectPhase struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type inspectTarget struct {
	Name   string         `json:"name"`
	Phases []inspectPhase `json:"phases"`
}

type inspectOutput struct {
	Manifest string          `json:"manifest"`
	Groups   *inspectNode    `json:"groups"`
	Targets  []inspectTarget `json:"targets"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	m, err := pbxproj.NewStore(env.fs).Load(env.rel(env.cfg.Manifest))
	if err != nil {
		return err
	}
	out := inspectOutput{Manifest: env.cfg.Manifest, Groups: groupNode(m.Main)}
	for _, t := range m.Targets {
		it := inspectTarget{Name: t.Name}
		for _, p := range t.Phases {
			ip := inspectPhase{Name: p.Name, Members: []string{}}
			for _, ref := range p.Members() {
				ip.Members = append(ip.Members, ref.DisplayName())
			}
			it.Phases = append(it.Phases, ip)
		}
		out.Targets = append(out.Targets, it)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	return writeInspect(cmd.OutOrStdout(), out)
}

func groupNode(g *manifest.Group) *inspectNode {
	n := &inspectNode{Name: g.DisplayName(), Kind: "group", Path: g.Path}
	if n.Name == "" {
		n.Name = "<main>"
	}
	if n.Path == n.Name {
		n.Path = ""
	}
	for _, c := range g.Children() {
		switch c := c.(type) {
		case *manifest.Group:
			n.Children = append(n.Children, groupNode(c))
		case *manifest.FileReference:
			child := &inspectNode{Name: c.DisplayName(), Kind: c.Kind().String()}
			if c.Path() != c.DisplayName() {
				child.Path = c.Path()
			}
			n.Children = append(n.Children, child)
		case *manifest.ForeignNode:
			n.Children = append(n.Children, &inspectNode{Name: c.DisplayName(), Kind: c.Isa})
		}
	}
	return n
}

func writeInspect(w io.Writer, out inspectOutput) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Manifest: %s\n\nGroups:\n", out.Manifest)
	var walk func(n *inspectNode, depth int)
	walk = func(n *inspectNode, depth int) {
		indent := strings.Repeat("  ", depth+1)
		name := n.Name
		if n.Kind == "group" {
			name += "/"
		}
		if n.Path != "" {
			fmt.Fprintf(&sb, "%s%s (path: %s)\n", indent, name, n.Path)
		} else {
			fmt.Fprintf(&sb, "%s%s\n", indent, name)
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(out.Groups, 0)

	sb.WriteString("\nTargets:\n")
	for _, t := range out.Targets {
		fmt.Fprintf(&sb, "  %s\n", t.Name)
		for _, p := range t.Phases {
			fmt.Fprintf(&sb, "    %s: %s\n", p.Name, strings.Join(p.Members, ", "))
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
