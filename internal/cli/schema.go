package cli

import (
	"encoding/json"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpJSONFlag = "help-json"

// FlagSchema describes one flag of a command.
type FlagSchema struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Usage     string `json:"usage,omitempty"`
}

// CommandSchema is the machine-readable help of a command tree, printed by
// --help-json for scripts that drive kbased.
type CommandSchema struct {
	Name        string          `json:"name"`
	Use         string          `json:"use"`
	Short       string          `json:"short,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

func Schema(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Name:  cmd.Name(),
		Use:   cmd.Use,
		Short: cmd.Short,
	}
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		s.Flags = append(s.Flags, FlagSchema{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Default:   f.DefValue,
			Usage:     f.Usage,
		})
	})
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		s.Subcommands = append(s.Subcommands, Schema(sub))
	}
	return s
}

// AddHelpJSONFlag registers --help-json on root and all its children.
func AddHelpJSONFlag(root *cobra.Command) {
	root.PersistentFlags().Bool(helpJSONFlag, false, "Print the command schema as JSON")
}

// HelpJSON writes the schema of the command addressed by args when args
// contain --help-json. It runs before cobra parses args so required
// positional arguments do not get in the way.
func HelpJSON(root *cobra.Command, args []string, w io.Writer) (bool, error) {
	i := slices.Index(args, "--"+helpJSONFlag)
	if i < 0 {
		return false, nil
	}
	target, _, err := root.Find(args[:i])
	if err != nil || target == nil {
		target = root
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(Schema(target))
}
