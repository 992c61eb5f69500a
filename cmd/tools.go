package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/engageops/internal/config"
	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Tool-definition catalog utilities",
	}
	cmd.AddCommand(toolsValidateCmd())
	cmd.AddCommand(toolsListCmd())
	return cmd
}

func toolsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate the tool-definitions YAML without starting the server",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := toolsPath(args)
			reg, err := tooldefs.NewRegistry(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("ok: %d definitions loaded from %s\n", len(reg.List()), path)
		},
	}
}

func toolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "List the names of every registered tool definition",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := toolsPath(args)
			reg, err := tooldefs.NewRegistry(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
				os.Exit(1)
			}
			for _, d := range reg.List() {
				fmt.Printf("%-24s %s\n", d.Name, d.Binary)
			}
		},
	}
}

func toolsPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return "./data/tools.yaml"
	}
	return cfg.Tools.DefinitionsFile
}
