/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package ops

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
)

// CommandGroup represents the operational classification of commands
type CommandGroup string

const (
	GroupMutate  CommandGroup = "mutate"  // apply, add, fix
	GroupSupport CommandGroup = "support" // inspect, version
)

// Groups lists the command groups in help order.
var Groups = []CommandGroup{GroupMutate, GroupSupport}

// Title is the heading a group is shown under in help output.
func (g CommandGroup) Title() string {
	switch g {
	case GroupMutate:
		return "Manifest Commands"
	case GroupSupport:
		return "Support Commands"
	default:
		return string(g)
	}
}

// CommandRegistration represents a registered command with its classification
type CommandRegistration struct {
	Name        string
	Group       CommandGroup
	Command     *cobra.Command
	Description string
}

// Registry manages command classifications and registrations
type Registry struct {
	mu         sync.RWMutex
	commands   map[string]*CommandRegistration
	groupIndex map[CommandGroup][]*CommandRegistration
}

// NewRegistry returns an empty registry. Each command tree owns one.
func NewRegistry() *Registry {
	return &Registry{
		commands:   make(map[string]*CommandRegistration),
		groupIndex: make(map[CommandGroup][]*CommandRegistration),
	}
}

// Register adds cmd under its name, described by its short help.
func (r *Registry) Register(group CommandGroup, cmd *cobra.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Name()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}
	registration := &CommandRegistration{
		Name:        name,
		Group:       group,
		Command:     cmd,
		Description: cmd.Short,
	}
	r.commands[name] = registration
	r.groupIndex[group] = append(r.groupIndex[group], registration)
	return nil
}

// GetCommandsByGroup returns the commands in a group in registration order.
func (r *Registry) GetCommandsByGroup(group CommandGroup) []*CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CommandRegistration, len(r.groupIndex[group]))
	copy(out, r.groupIndex[group])
	return out
}

// HelpFunc prints the root help with commands listed by group. Subcommands
// keep fallback, cobra's default help.
func (r *Registry) HelpFunc(fallback func(*cobra.Command, []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if cmd.HasParent() {
			fallback(cmd, args)
			return
		}
		cmd.Println(cmd.Long)
		for _, g := range Groups {
			regs := r.GetCommandsByGroup(g)
			if len(regs) == 0 {
				continue
			}
			cmd.Println()
			cmd.Printf("%s:\n", g.Title())
			for _, c := range regs {
				cmd.Printf("  %-12s %s\n", c.Name, c.Description)
			}
		}
		cmd.Println()
		cmd.Println("Flags:")
		cmd.Print(cmd.LocalFlags().FlagUsages())
	}
}
