package commands_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forcegrid/sfschema/internal/cli"
	"github.com/forcegrid/sfschema/internal/commands"
)

func TestCatalogMatchesRegisteredCommands(t *testing.T) {
	// Build root command with all subcommands (mirrors cli.Execute)
	root := cli.NewRootCmd()
	root.AddCommand(commands.NewAuthCmd())
	root.AddCommand(commands.NewObjectsCmd())
	root.AddCommand(commands.NewDescribeCmd())
	root.AddCommand(commands.NewEnvCmd())
	root.AddCommand(commands.NewConfigCmd())
	root.AddCommand(commands.NewAPICmd())
	root.AddCommand(commands.NewCommandsCmd())

	// Trigger Cobra's auto-added subcommands
	root.InitDefaultHelpCmd()
	root.InitDefaultCompletionCmd()

	registered := make(map[string]bool)
	for _, cmd := range root.Commands() {
		registered[cmd.Name()] = true
	}
	// version is accessed via --version flag, not as a subcommand, but it is
	// catalogued for documentation.
	registered["version"] = true

	catalog := make(map[string]bool)
	for _, name := range commands.CatalogCommandNames() {
		catalog[name] = true
	}

	var missingFromRegistered []string
	for name := range catalog {
		if !registered[name] {
			missingFromRegistered = append(missingFromRegistered, name)
		}
	}

	var missingFromCatalog []string
	for name := range registered {
		if !catalog[name] {
			missingFromCatalog = append(missingFromCatalog, name)
		}
	}

	sort.Strings(missingFromRegistered)
	sort.Strings(missingFromCatalog)

	assert.Empty(t, missingFromRegistered, "Commands in catalog but not registered: %v", missingFromRegistered)
	assert.Empty(t, missingFromCatalog, "Commands registered but not in catalog: %v", missingFromCatalog)
}
