// Package stress is a subcommand of the root command. It runs the PTU stress tool on
// target(s) and reports the telemetry it logs.
package stress

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
	"time"

	"ptustress/internal/app"
	"ptustress/internal/ptu"
	"ptustress/internal/report"
	"ptustress/internal/sink"
	"ptustress/internal/workflow"

	"github.com/spf13/cobra"
)

const cmdName = "stress"

var examples = []string{
	fmt.Sprintf("  Stress all cores of local host for 60 seconds:      $ %s %s", app.Name, cmdName),
	fmt.Sprintf("  Stress 50%% of each socket's cores for 10 minutes:  $ %s %s --percent 50 --duration 600", app.Name, cmdName),
	fmt.Sprintf("  Stress remote target with an assertion:             $ %s %s --target 192.168.1.1 --user fred --key fred_key --assert \"CPU0:Power:max < 350\"", app.Name, cmdName),
	fmt.Sprintf("  Repeat a run described by a profile:                $ %s %s --targets targets.yaml --profile profile.yaml", app.Name, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Aliases:       []string{"run"},
	Short:         "Run the PTU stress tool on target(s)",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagProfile string

	flagPercent        int
	flagCPUMask        string
	flagDuration       int
	flagPoll           int
	flagCoresPerSocket int

	flagOS          string
	flagToolDir     string
	flagProcessName string
	flagSettle      int
	flagElevate     bool
	flagLogName     string
	flagLogFile     string
	flagTemplate    string
	flagCoreTest    int
	flagMemTest     int

	flagColumns        []string
	flagAssertions     []string
	flagFormat         []string
	flagSampleInterval int

	flagPrometheusServer string
	flagInfluxURL        string
	flagInfluxToken      string
	flagInfluxOrg        string
	flagInfluxBucket     string
)

const (
	flagProfileName = "profile"

	flagPercentName        = "percent"
	flagCPUMaskName        = "cpu-mask"
	flagDurationName       = "duration"
	flagPollName           = "poll"
	flagCoresPerSocketName = "cores-per-socket"

	flagOSName          = "os"
	flagToolDirName     = "tool-dir"
	flagProcessNameName = "process-name"
	flagSettleName      = "settle"
	flagElevateName     = "elevate"
	flagLogNameName     = "log-name"
	flagLogFileName     = "log-file"
	flagTemplateName    = "template"
	flagCoreTestName    = "ct"
	flagMemTestName     = "mt"

	flagSampleIntervalName = "sample-interval"

	flagPrometheusServerName = "prometheus-server"
	flagInfluxURLName        = "influx-url"
	flagInfluxTokenName      = "influx-token"
	flagInfluxOrgName        = "influx-org"
	flagInfluxBucketName     = "influx-bucket"
)

func init() {
	defaults := workflow.DefaultStressOptions()
	Cmd.Flags().StringVar(&flagProfile, flagProfileName, "", "")

	Cmd.Flags().IntVar(&flagPercent, flagPercentName, 0, "")
	Cmd.Flags().StringVar(&flagCPUMask, flagCPUMaskName, "", "")
	Cmd.Flags().IntVar(&flagDuration, flagDurationName, int(defaults.Duration.Seconds()), "")
	Cmd.Flags().IntVar(&flagPoll, flagPollName, int(defaults.Poll.Seconds()), "")
	Cmd.Flags().IntVar(&flagCoresPerSocket, flagCoresPerSocketName, 0, "")

	Cmd.Flags().StringVar(&flagOS, flagOSName, defaults.OS, "")
	Cmd.Flags().StringVar(&flagToolDir, flagToolDirName, defaults.ToolDir, "")
	Cmd.Flags().StringVar(&flagProcessName, flagProcessNameName, defaults.ProcessName, "")
	Cmd.Flags().IntVar(&flagSettle, flagSettleName, int(defaults.Settle.Seconds()), "")
	Cmd.Flags().BoolVar(&flagElevate, flagElevateName, false, "")
	Cmd.Flags().StringVar(&flagLogName, flagLogNameName, "", "")
	Cmd.Flags().StringVar(&flagLogFile, flagLogFileName, "", "")
	Cmd.Flags().StringVar(&flagTemplate, flagTemplateName, ptu.DefaultCommandTemplate, "")
	Cmd.Flags().IntVar(&flagCoreTest, flagCoreTestName, 0, "")
	Cmd.Flags().IntVar(&flagMemTest, flagMemTestName, 0, "")

	Cmd.Flags().StringArrayVar(&flagColumns, app.FlagColumnName, nil, "")
	Cmd.Flags().StringArrayVar(&flagAssertions, app.FlagAssertName, nil, "")
	Cmd.Flags().StringSliceVar(&flagFormat, app.FlagFormatName, defaults.Formats, "")
	Cmd.Flags().IntVar(&flagSampleInterval, flagSampleIntervalName, int(defaults.SampleInterval.Seconds()), "")

	Cmd.Flags().StringVar(&flagPrometheusServer, flagPrometheusServerName, "", "")
	Cmd.Flags().StringVar(&flagInfluxURL, flagInfluxURLName, "", "")
	Cmd.Flags().StringVar(&flagInfluxToken, flagInfluxTokenName, "", "")
	Cmd.Flags().StringVar(&flagInfluxOrg, flagInfluxOrgName, "", "")
	Cmd.Flags().StringVar(&flagInfluxBucket, flagInfluxBucketName, "", "")

	workflow.AddTargetFlags(Cmd)

	Cmd.SetUsageFunc(workflow.UsageFunc(getFlagGroups))
}

func getFlagGroups() []app.FlagGroup {
	var groups []app.FlagGroup
	flags := []app.Flag{
		{
			Name: flagPercentName,
			Help: "percentage of each socket's cores to stress (1-100)",
		},
		{
			Name: flagCPUMaskName,
			Help: fmt.Sprintf("sockets to stress, 0x1 through 0x%x or ALL", ptu.MaxCPUMaskSocket),
		},
		{
			Name: flagDurationName,
			Help: "number of seconds to run the stress tool",
		},
		{
			Name: flagPollName,
			Help: "number of seconds between checks that the stress tool is still running",
		},
		{
			Name: flagCoresPerSocketName,
			Help: "cores per socket, queried from the target when 0",
		},
		{
			Name: flagCoreTestName,
			Help: "core test number passed to the stress tool as -ct, 0 for none",
		},
		{
			Name: flagMemTestName,
			Help: "memory test number passed to the stress tool as -mt, 0 for none",
		},
	}
	groups = append(groups, app.FlagGroup{
		GroupName: "Stress Options",
		Flags:     flags,
	})
	flags = []app.Flag{
		{
			Name: app.FlagColumnName,
			Help: "telemetry column to report as device:column, may be repeated (default: all columns)",
		},
		{
			Name: app.FlagAssertName,
			Help: "threshold to assert as device:column:expression, e.g. \"CPU0:Power:max < 350\", may be repeated",
		},
		{
			Name: app.FlagFormatName,
			Help: fmt.Sprintf("choose output format(s) from: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")),
		},
		{
			Name: flagSampleIntervalName,
			Help: "number of seconds between samples in the telemetry log",
		},
	}
	groups = append(groups, app.FlagGroup{
		GroupName: "Telemetry Options",
		Flags:     flags,
	})
	flags = []app.Flag{
		{
			Name: flagPrometheusServerName,
			Help: "serve run state and telemetry as Prometheus metrics at this address, e.g. :9090",
		},
		{
			Name: flagInfluxURLName,
			Help: "write telemetry to the InfluxDB server at this URL",
		},
		{
			Name: flagInfluxTokenName,
			Help: "InfluxDB API token",
		},
		{
			Name: flagInfluxOrgName,
			Help: "InfluxDB organization",
		},
		{
			Name: flagInfluxBucketName,
			Help: "InfluxDB bucket",
		},
	}
	groups = append(groups, app.FlagGroup{
		GroupName: "Export Options",
		Flags:     flags,
	})
	groups = append(groups, workflow.GetTargetFlagGroup())
	flags = []app.Flag{
		{
			Name: flagProfileName,
			Help: "YAML file with stress options, flags override its values",
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
			Name: flagSettleName,
			Help: "number of seconds to wait after launch before the first check",
		},
		{
			Name: flagElevateName,
			Help: "run the stress tool with elevated privileges (Linux)",
		},
		{
			Name: flagLogNameName,
			Help: "log name passed to the stress tool (default: generated per run)",
		},
		{
			Name: flagLogFileName,
			Help: "path of the stress tool's CSV log on the target(s) (default: <tool-dir>/<log-name>.csv)",
		},
		{
			Name: flagTemplateName,
			Help: "template of the stress tool command line",
		},
	}
	groups = append(groups, app.FlagGroup{
		GroupName: "Advanced Options",
		Flags:     flags,
	})
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
	if opts.CPUMask != "" {
		if err := ptu.ValidateCPUMask(opts.CPUMask); err != nil {
			return workflow.FlagValidationError(cmd, err.Error())
		}
	}
	if influx := influxConfig(); influx.Enabled() {
		if err := influx.Validate(); err != nil {
			return workflow.FlagValidationError(cmd, err.Error())
		}
	}
	// common target flags
	if err := workflow.ValidateTargetFlags(cmd); err != nil {
		return workflow.FlagValidationError(cmd, err.Error())
	}
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	stressCommand := workflow.StressCommand{
		Cmd:            cmd,
		Options:        opts,
		PrometheusAddr: flagPrometheusServer,
		Influx:         influxConfig(),
	}
	return stressCommand.Run()
}

func influxConfig() sink.InfluxConfig {
	return sink.InfluxConfig{
		URL:    flagInfluxURL,
		Token:  flagInfluxToken,
		Org:    flagInfluxOrg,
		Bucket: flagInfluxBucket,
	}
}

// resolveOptions starts from the profile, or the defaults when there is none, and
// applies the flags given on the command line.
func resolveOptions(cmd *cobra.Command) (workflow.StressOptions, error) {
	opts := workflow.DefaultStressOptions()
	if flagProfile != "" {
		var err error
		if opts, err = workflow.LoadProfile(flagProfile); err != nil {
			return workflow.StressOptions{}, err
		}
	}
	changed := cmd.Flags().Changed
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	if changed(flagPercentName) {
		percent := flagPercent
		opts.Percent = &percent
	} else if flagProfile == "" {
		opts.Percent = nil
	}
	if changed(flagCPUMaskName) || flagProfile == "" {
		opts.CPUMask = flagCPUMask
	}
	if changed(flagDurationName) || flagProfile == "" {
		opts.Duration = seconds(flagDuration)
	}
	if changed(flagPollName) || flagProfile == "" {
		opts.Poll = seconds(flagPoll)
	}
	if changed(flagCoresPerSocketName) || flagProfile == "" {
		opts.CoresPerSocket = flagCoresPerSocket
	}
	if changed(flagOSName) || flagProfile == "" {
		opts.OS = flagOS
	}
	if changed(flagToolDirName) || flagProfile == "" {
		opts.ToolDir = flagToolDir
	}
	if changed(flagProcessNameName) || flagProfile == "" {
		opts.ProcessName = flagProcessName
	}
	if changed(flagSettleName) || flagProfile == "" {
		opts.Settle = seconds(flagSettle)
	}
	if changed(flagElevateName) || flagProfile == "" {
		opts.Elevate = flagElevate
	}
	if changed(flagLogNameName) || flagProfile == "" {
		opts.LogName = flagLogName
	}
	if changed(flagLogFileName) || flagProfile == "" {
		opts.LogFile = flagLogFile
	}
	if changed(flagTemplateName) || flagProfile == "" {
		opts.Template = flagTemplate
	}
	if changed(flagCoreTestName) || flagProfile == "" {
		opts.CoreTest = flagCoreTest
	}
	if changed(flagMemTestName) || flagProfile == "" {
		opts.MemTest = flagMemTest
	}
	if changed(app.FlagColumnName) || flagProfile == "" {
		opts.Columns = flagColumns
	}
	if changed(app.FlagAssertName) || flagProfile == "" {
		opts.Assertions = flagAssertions
	}
	if changed(app.FlagFormatName) || flagProfile == "" {
		opts.Formats = flagFormat
	}
	if changed(flagSampleIntervalName) || flagProfile == "" {
		opts.SampleInterval = seconds(flagSampleInterval)
	}
	return opts, nil
}
