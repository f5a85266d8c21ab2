package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tipo-sto/kbase/internal/cli"
	"github.com/tipo-sto/kbase/internal/cli/commands"
)

func main() {
	env := commands.DefaultEnv()
	root := commands.NewRootCmd(env)

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}

	if handled, err := cli.HelpJSON(root, args, os.Stdout); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
