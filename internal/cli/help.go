package cli

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Help text is finalized once per process
var enrichOnce sync.Once

// helpCmd replaces cobra's default help command so it carries an example
// and sits in the configuration group.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var helpCmd = &cobra.Command{
	Use:   "help [command]",
	Short: "Help about any command",
	Long: `Help provides help for any command in the application.
Type qwallet help [path to command] for full details.`,
	Example: `  qwallet help wallet create`,
	ValidArgsFunction: func(c *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cmd, _, err := c.Root().Find(args)
		if err != nil || cmd == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() && strings.HasPrefix(sub.Name(), toComplete) {
				names = append(names, sub.Name())
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(c *cobra.Command, args []string) error {
		cmd, _, err := c.Root().Find(args)
		if cmd == nil || err != nil {
			c.Printf("Unknown help topic %q\n", strings.Join(args, " "))
			return c.Root().Usage()
		}
		cmd.InitDefaultHelpFlag()
		return cmd.Help()
	},
}

// prepareHelp lists each parent's subcommands in its Long text. It runs once,
// after every init has registered its commands.
func prepareHelp() {
	enrichOnce.Do(func() {
		walkCommands(rootCmd, func(cmd *cobra.Command) {
			if cmd != rootCmd {
				enrichParentLong(cmd)
			}
		})
	})
}

// walkCommands visits every command in the tree depth-first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong appends a dynamically generated subcommand list to a parent
// command's Long description.
func enrichParentLong(cmd *cobra.Command) {
	if !cmd.HasSubCommands() {
		return
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString("\n\nSubcommands:\n")

	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			sb.WriteString(fmt.Sprintf("  %-16s %s\n", sub.Name(), sub.Short))
		}
	}

	cmd.Long = sb.String()
}
