package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var asmCmd = &cobra.Command{
	Use:   "asm <file>",
	Short: "Assemble a program and list the decoded instructions",
	Long: `Assemble a program and print one instruction per line with its address
and the assembly line it came from. Source files are compiled first.`,
	Args: cobra.ExactArgs(1),
	RunE: listProgram,
}

func init() {
	rootCmd.AddCommand(asmCmd)
}

func listProgram(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := newDriver(cmd, cfg, nil)
	if err != nil {
		return err
	}
	program, err := d.Load(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for addr, in := range program {
		fmt.Fprintf(out, "%5d  %-16s ; line %d\n", addr, in, in.Line)
	}
	return nil
}
