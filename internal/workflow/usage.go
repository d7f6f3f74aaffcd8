package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"ptustress/internal/app"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// UsageFunc returns a cobra usage function that lists the command's flags by group,
// followed by the global flags.
func UsageFunc(flagGroups func() []app.FlagGroup) func(*cobra.Command) error {
	return func(cmd *cobra.Command) error {
		cmd.Printf("Usage: %s [flags]\n\n", cmd.CommandPath())
		cmd.Printf("Examples:\n%s\n\n", cmd.Example)
		cmd.Println("Flags:")
		for _, group := range flagGroups() {
			cmd.Printf("  %s:\n", group.GroupName)
			for _, flag := range group.Flags {
				cmd.Printf("    --%-20s %s%s\n", flag.Name, flag.Help, defaultSuffix(cmd.Flags().Lookup(flag.Name)))
			}
		}
		if cmd.HasParent() {
			cmd.Println("\nGlobal Flags:")
			cmd.Parent().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
				cmd.Printf("  --%-20s %s%s\n", pf.Name, pf.Usage, defaultSuffix(pf))
			})
		}
		return nil
	}
}

func defaultSuffix(f *pflag.Flag) string {
	if f == nil || f.DefValue == "" || f.DefValue == "[]" {
		return ""
	}
	return fmt.Sprintf(" (default: %s)", f.DefValue)
}
