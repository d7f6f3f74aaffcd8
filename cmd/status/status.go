// Package status is a subcommand of the root command. It reports whether the PTU stress
// tool is running on target(s).
package status

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"strings"

	"ptustress/internal/app"
	"ptustress/internal/report"
	"ptustress/internal/workflow"

	"github.com/spf13/cobra"
)

const cmdName = "status"

const tableName = "Stress Tool Status"

var examples = []string{
	fmt.Sprintf("  Check local host:          $ %s %s", app.Name, cmdName),
	fmt.Sprintf("  Check remote targets:      $ %s %s --targets targets.yaml --os windows --tool-dir 'C:\\ptu'", app.Name, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Aliases:       []string{"probe"},
	Short:         "Report whether the PTU stress tool is running on target(s)",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagProfile     string
	flagOS          string
	flagToolDir     string
	flagProcessName string
	flagElevate     bool
)

const (
	flagProfileName     = "profile"
	flagOSName          = "os"
	flagToolDirName     = "tool-dir"
	flagProcessNameName = "process-name"
	flagElevateName     = "elevate"
)

func init() {
	defaults := workflow.DefaultStressOptions()
	Cmd.Flags().StringVar(&flagProfile, flagProfileName, "", "")
	Cmd.Flags().StringVar(&flagOS, flagOSName, defaults.OS, "")
	Cmd.Flags().StringVar(&flagToolDir, flagToolDirName, defaults.ToolDir, "")
	Cmd.Flags().StringVar(&flagProcessName, flagProcessNameName, defaults.ProcessName, "")
	Cmd.Flags().BoolVar(&flagElevate, flagElevateName, false, "")

	workflow.AddTargetFlags(Cmd)

	Cmd.SetUsageFunc(workflow.UsageFunc(getFlagGroups))
}

func getFlagGroups() []app.FlagGroup {
	var groups []app.FlagGroup
	flags := []app.Flag{
		{
			Name: flagProfileName,
			Help: "YAML stress profile to take the options below from, flags override its values",
		},
		{
			Name: flagOSName,
			Help: "operating system of the target(s): linux or windows",
		},
		{
			Name: flagToolDirName,
			Help: "directory on the target(s) that holds the stress tool",
		},
		{
			Name: flagProcessNameName,
			Help: "name of the stress tool in the process table",
		},
		{
			Name: flagElevateName,
			Help: "use elevated privileges (Linux)",
		},
	}
	groups = append(groups, app.FlagGroup{
		GroupName: "Stress Tool Options",
		Flags:     flags,
	})
	groups = append(groups, workflow.GetTargetFlagGroup())
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return workflow.FlagValidationError(cmd, err.Error())
	}
	if err := opts.Validate(); err != nil {
		return workflow.FlagValidationError(cmd, err.Error())
	}
	// common target flags
	if err := workflow.ValidateTargetFlags(cmd); err != nil {
		return workflow.FlagValidationError(cmd, err.Error())
	}
	return nil
}

// resolveOptions takes the tool location from the profile, when given, and applies the
// flags given on the command line.
func resolveOptions(cmd *cobra.Command) (workflow.StressOptions, error) {
	opts := workflow.DefaultStressOptions()
	if flagProfile != "" {
		var err error
		if opts, err = workflow.LoadProfile(flagProfile); err != nil {
			return workflow.StressOptions{}, err
		}
	}
	changed := cmd.Flags().Changed
	if changed(flagOSName) || flagProfile == "" {
		opts.OS = flagOS
	}
	if changed(flagToolDirName) || flagProfile == "" {
		opts.ToolDir = flagToolDir
	}
	if changed(flagProcessNameName) || flagProfile == "" {
		opts.ProcessName = flagProcessName
	}
	if changed(flagElevateName) || flagProfile == "" {
		opts.Elevate = flagElevate
	}
	return opts, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	opts, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	orchestrators, err := workflow.GetOrchestrators(cmd, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	results := workflow.CheckTargets(orchestrators)
	out, err := report.Create(report.FormatTxt, []report.TableValues{workflow.ProbeTable(tableName, results)})
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	for _, result := range results {
		if result.Err != nil {
			return fmt.Errorf("failed to check %s: %w", result.TargetName, result.Err)
		}
	}
	return nil
}
