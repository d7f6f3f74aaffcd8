package workflow

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"ptustress/internal/app"
	"ptustress/internal/target"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"
)

// target flags
var (
	flagTargetHost    string
	flagTargetPort    string
	flagTargetUser    string
	flagTargetKeyFile string
	flagTargetsFile   string
	flagSshPassPath   string
)

// target flag names
const (
	flagTargetsFileName = "targets"
	flagTargetHostName  = "target"
	flagTargetPortName  = "port"
	flagTargetUserName  = "user"
	flagTargetKeyName   = "key"
	flagSshPassName     = "sshpass"
)

var targetFlags = []app.Flag{
	{Name: flagTargetHostName, Help: "host name or IP address of remote target"},
	{Name: flagTargetPortName, Help: "port for SSH to remote target"},
	{Name: flagTargetUserName, Help: "user name for SSH to remote target"},
	{Name: flagTargetKeyName, Help: "private key file for SSH to remote target"},
	{Name: flagTargetsFileName, Help: "file with remote target(s) connection details. See targets.yaml for format."},
	{Name: flagSshPassName, Help: "path to the sshpass binary, used for password authentication (default: sshpass from PATH)"},
}

// AddTargetFlags adds the remote target flags to cmd.
func AddTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagTargetHost, flagTargetHostName, "", targetFlags[0].Help)
	cmd.Flags().StringVar(&flagTargetPort, flagTargetPortName, "", targetFlags[1].Help)
	cmd.Flags().StringVar(&flagTargetUser, flagTargetUserName, "", targetFlags[2].Help)
	cmd.Flags().StringVar(&flagTargetKeyFile, flagTargetKeyName, "", targetFlags[3].Help)
	cmd.Flags().StringVar(&flagTargetsFile, flagTargetsFileName, "", targetFlags[4].Help)
	cmd.Flags().StringVar(&flagSshPassPath, flagSshPassName, "", targetFlags[5].Help)

	cmd.MarkFlagsMutuallyExclusive(flagTargetHostName, flagTargetsFileName)
}

// GetTargetFlagGroup returns the target flags for a command's usage output.
func GetTargetFlagGroup() app.FlagGroup {
	return app.FlagGroup{
		GroupName: "Remote Target Options",
		Flags:     targetFlags,
	}
}

// ValidateTargetFlags checks the target flags for conflicts and malformed values.
func ValidateTargetFlags(cmd *cobra.Command) error {
	if flagTargetsFile != "" && flagTargetHost != "" {
		return fmt.Errorf("only one of --%s or --%s can be specified", flagTargetsFileName, flagTargetHostName)
	}
	if flagTargetsFile != "" && (flagTargetPort != "" || flagTargetUser != "" || flagTargetKeyFile != "") {
		return fmt.Errorf("if --%s is specified, --%s, --%s, and --%s must not be specified", flagTargetsFileName, flagTargetPortName, flagTargetUserName, flagTargetKeyName)
	}
	if (flagTargetPort != "" || flagTargetUser != "" || flagTargetKeyFile != "") && flagTargetHost == "" {
		return fmt.Errorf("if --%s, --%s, or --%s is specified, --%s must also be specified", flagTargetPortName, flagTargetUserName, flagTargetKeyName, flagTargetHostName)
	}
	// confirm that the targets file exists
	if flagTargetsFile != "" {
		if _, err := os.Stat(flagTargetsFile); os.IsNotExist(err) {
			return fmt.Errorf("targets file %s does not exist", flagTargetsFile)
		}
	}
	// confirm that port is a positive integer
	if flagTargetPort != "" {
		if port, err := strconv.Atoi(flagTargetPort); err != nil || port <= 0 {
			return fmt.Errorf("port %s is not a positive integer", flagTargetPort)
		}
	}
	// confirm that the key file exists
	if flagTargetKeyFile != "" {
		if _, err := os.Stat(flagTargetKeyFile); os.IsNotExist(err) {
			return fmt.Errorf("key file %s does not exist", flagTargetKeyFile)
		}
	}
	if flagTargetUser != "" && !validUserName.MatchString(flagTargetUser) {
		return fmt.Errorf("user name %s contains invalid characters", flagTargetUser)
	}
	if flagTargetHost != "" && !validHostName.MatchString(flagTargetHost) {
		return fmt.Errorf("host name %s is not a valid host name or IP address", flagTargetHost)
	}
	return nil
}

var (
	validUserName = regexp.MustCompile(`^([a-zA-Z0-9_-]+)$`)
	validHostName = regexp.MustCompile(`^([a-zA-Z0-9.-]+)$`)
)

// IsRemote reports whether the target flags select one or more remote targets.
func IsRemote() bool {
	return flagTargetHost != "" || flagTargetsFile != ""
}

// GetTargets resolves the targets selected by the command's flags. targetErrs holds one
// entry per target, nil when the target is usable. err is set when no target list could
// be produced at all.
func GetTargets(cmd *cobra.Command, needsElevatedPrivileges bool, failIfCantElevate bool) (targets []target.Target, targetErrs []error, err error) {
	targetsFile, _ := cmd.Flags().GetString(flagTargetsFileName)
	if targetsFile != "" {
		targets, targetErrs, err = getTargetsFromFile(targetsFile)
	} else {
		myTarget, targetErr, functionErr := getSingleTarget(cmd, needsElevatedPrivileges, failIfCantElevate)
		targets = []target.Target{myTarget}
		targetErrs = []error{targetErr}
		err = functionErr
	}
	if err != nil {
		slog.Error("failed to get targets", slog.String("error", err.Error()))
	}
	return
}

// getSingleTarget returns the local target, or the remote target named by --target.
func getSingleTarget(cmd *cobra.Command, needsElevatedPrivileges bool, failIfCantElevate bool) (target.Target, error, error) {
	targetHost, _ := cmd.Flags().GetString(flagTargetHostName)
	targetPort, _ := cmd.Flags().GetString(flagTargetPortName)
	targetUser, _ := cmd.Flags().GetString(flagTargetUserName)
	targetKey, _ := cmd.Flags().GetString(flagTargetKeyName)
	if targetHost != "" {
		return getRemoteTarget(targetHost, targetPort, targetUser, targetKey, needsElevatedPrivileges, failIfCantElevate)
	}
	return getLocalTarget(needsElevatedPrivileges, failIfCantElevate)
}

// getLocalTarget creates a new local target object, prompting for the sudo password
// when elevated privileges are needed and not already available.
func getLocalTarget(needsElevatedPrivileges bool, failIfCantElevate bool) (target.Target, error, error) {
	myTarget := target.NewLocalTarget()
	if !needsElevatedPrivileges || myTarget.CanElevatePrivileges() {
		return myTarget, nil, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		slog.Warn("can not prompt for sudo password because STDIN isn't coming from a terminal")
		if failIfCantElevate {
			return myTarget, fmt.Errorf("failed to elevate privileges on local target"), nil
		}
		slog.Warn("continuing without elevated privileges")
		return myTarget, nil, nil
	}
	fmt.Fprintf(os.Stderr, "WARNING: the stress tool is run with elevated privileges.\n")
	currentUser, err := user.Current()
	if err != nil {
		return myTarget, nil, err
	}
	slog.Info("prompting for sudo password")
	sudoPwd, err := getPassword(fmt.Sprintf("[sudo] password for %s", currentUser.Username))
	if err != nil {
		return myTarget, nil, err
	}
	myTarget.SetSudo(sudoPwd)
	if !myTarget.CanElevatePrivileges() {
		if failIfCantElevate {
			return myTarget, nil, fmt.Errorf("failed to elevate privileges on local target")
		}
		slog.Warn("failed to elevate privileges on local target, continuing without elevated privileges")
		fmt.Fprintf(os.Stderr, "WARNING: Not able to establish elevated privileges with provided password.\n")
	}
	return myTarget, nil, nil
}

// getRemoteTarget creates a new remote target object based on the provided parameters.
func getRemoteTarget(targetHost string, targetPort string, targetUser string, targetKey string, needsElevatedPrivileges bool, failIfCantElevate bool) (target.Target, error, error) {
	if targetPort == "" {
		targetPort = "22"
	}
	slog.Info("Creating remote target", slog.String("targetHost", targetHost), slog.String("targetPort", targetPort), slog.String("targetUser", targetUser))
	myTarget := target.NewRemoteTarget(targetHost, targetHost, targetPort, targetUser, targetKey)
	if !myTarget.CanConnect() {
		if targetKey != "" || targetUser == "" {
			return myTarget, nil, fmt.Errorf("failed to connect to target host (%s)", myTarget.GetName())
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			err := fmt.Errorf("can not prompt for SSH password because STDIN isn't coming from a terminal")
			slog.Error(err.Error())
			return myTarget, nil, err
		}
		slog.Info("Prompting for SSH password.", slog.String("targetHost", targetHost), slog.String("targetPort", targetPort), slog.String("targetUser", targetUser))
		sshPwd, err := getPassword(fmt.Sprintf("%s@%s's password", targetUser, targetHost))
		if err != nil {
			return myTarget, nil, err
		}
		sshPassPath, err := findSshPass()
		if err != nil {
			return myTarget, nil, err
		}
		myTarget.SetSshPassPath(sshPassPath)
		myTarget.SetSshPass(sshPwd)
		if !myTarget.CanConnect() {
			return myTarget, fmt.Errorf("failed to connect to target host (%s)", myTarget.GetName()), nil
		}
	}
	if needsElevatedPrivileges && !myTarget.CanElevatePrivileges() {
		if failIfCantElevate {
			return myTarget, fmt.Errorf("failed to elevate privileges on remote target"), nil
		}
		slog.Warn("failed to elevate privileges on remote target, continuing without elevated privileges", slog.String("targetHost", targetHost))
	}
	return myTarget, nil, nil
}

type targetFromYAML struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	User string `yaml:"user"`
	Key  string `yaml:"key"`
	Pwd  string `yaml:"pwd"`
}

type targetsFile struct {
	Targets []targetFromYAML `yaml:"targets"`
}

// sanitizeTargetName replaces every character other than letters, digits, underscores,
// periods, and dashes with an underscore. Target names become report file names.
func sanitizeTargetName(targetName string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || r == '.' {
			return r
		}
		if r >= 'a' && r <= 'z' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r
		}
		if r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, targetName)
}

// parseTargetsFile reads the targets file into remote targets without connecting to them.
func parseTargetsFile(yamlFile []byte) ([]*target.RemoteTarget, error) {
	var tf targetsFile
	if err := yaml.Unmarshal(yamlFile, &tf); err != nil {
		return nil, err
	}
	if len(tf.Targets) == 0 {
		return nil, fmt.Errorf("no targets found in targets file")
	}
	var targets []*target.RemoteTarget
	targetNameUsed := make(map[string]bool)
	for idx, t := range tf.Targets {
		if t.Host == "" {
			return nil, fmt.Errorf("target %d in targets file has no host", idx+1)
		}
		// target name is not required, but if it is provided there must not be duplicate names
		var targetName string
		if t.Name != "" {
			targetName = sanitizeTargetName(t.Name)
			if targetNameUsed[targetName] {
				return nil, fmt.Errorf("duplicate target name (after sanitized) found in targets file: original: %s, sanitized: %s", t.Name, targetName)
			}
			targetNameUsed[targetName] = true
		}
		port := t.Port
		if port == "" {
			port = "22"
		}
		newTarget := target.NewRemoteTarget(targetName, t.Host, port, t.User, t.Key)
		newTarget.SetSshPass(t.Pwd)
		targets = append(targets, newTarget)
	}
	return targets, nil
}

// getTargetsFromFile reads a targets file and returns the targets it lists, with one
// connection error entry per target.
func getTargetsFromFile(targetsFilePath string) (targets []target.Target, targetErrs []error, err error) {
	yamlFile, err := os.ReadFile(targetsFilePath)
	if err != nil {
		return
	}
	remoteTargets, err := parseTargetsFile(yamlFile)
	if err != nil {
		err = fmt.Errorf("failed to parse targets file %s: %w", targetsFilePath, err)
		return
	}
	for _, newTarget := range remoteTargets {
		if newTarget.UsesPassword() {
			var sshPassPath string
			sshPassPath, err = findSshPass()
			if err != nil {
				return
			}
			newTarget.SetSshPassPath(sshPassPath)
		}
		if !newTarget.CanConnect() {
			targetErrs = append(targetErrs, fmt.Errorf("failed to connect to target host (%s)", newTarget.GetName()))
		} else {
			targetErrs = append(targetErrs, nil)
		}
		targets = append(targets, newTarget)
	}
	return
}

// findSshPass returns the sshpass binary named by --sshpass or found on the PATH.
func findSshPass() (string, error) {
	if flagSshPassPath != "" {
		if _, err := os.Stat(flagSshPassPath); err != nil {
			return "", fmt.Errorf("sshpass not found at %s: %w", flagSshPassPath, err)
		}
		return flagSshPassPath, nil
	}
	path, err := exec.LookPath("sshpass")
	if err != nil {
		return "", fmt.Errorf("password authentication requires sshpass, install it or set --%s: %w", flagSshPassName, err)
	}
	return path, nil
}

// getPassword prompts the user for a password and returns it as a string.
// The user's input is hidden as they type.
func getPassword(prompt string) (string, error) {
	fmt.Fprintf(os.Stderr, "\n%s: ", prompt)
	pwd, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "\n") // newline after password
	return string(pwd), nil
}

// fieldFromDfpOutput parses the output of the `df -P <dir>` command and returns the specified field value.
// example output:
//
//	Filesystem     1024-blocks     Used  Available Capacity Mounted on
//	/dev/sda2       1858388360 17247372 1747419536       1% /
//
// Returns the value of the specified field from the second line of the output.
func fieldFromDfpOutput(dfOutput string, fieldName string) (string, error) {
	lines := strings.Split(dfOutput, "\n")
	if len(lines) < 2 {
		return "", fmt.Errorf("unexpected output from df command: %s", dfOutput)
	}
	fieldIndex := slices.Index(strings.Fields(lines[0]), fieldName)
	if fieldIndex == -1 {
		return "", fmt.Errorf("field %s not found in df output", fieldName)
	}
	dfFields := strings.Fields(lines[1])
	if len(dfFields) <= fieldIndex {
		return "", fmt.Errorf("unexpected output format from df command: %s", dfOutput)
	}
	return dfFields[fieldIndex], nil
}

type mountRecord struct {
	fileSystem string
	mountPoint string
	typeName   string
	options    []string
}

var mountLine = regexp.MustCompile(`^([^ ]+) on ([^ ]+) type ([^ ]+) \((.*)\)$`)

// parseMountOutput parses the output of the `mount` command and returns a slice of mountRecord structs.
// e.g., "sysfs on /sys type sysfs (rw,nosuid,nodev,noexec,relatime)"
func parseMountOutput(mountOutput string) ([]mountRecord, error) {
	var mounts []mountRecord
	for line := range strings.SplitSeq(mountOutput, "\n") {
		if line == "" {
			continue
		}
		matches := mountLine.FindStringSubmatch(line)
		if len(matches) != 5 {
			return nil, fmt.Errorf("unexpected output format from mount command: %s", line)
		}
		mounts = append(mounts, mountRecord{
			fileSystem: matches[1],
			mountPoint: matches[2],
			typeName:   matches[3],
			options:    strings.Split(matches[4], ","),
		})
	}
	return mounts, nil
}

// isDirNoExec checks if dir on the target is on a file system that is mounted with noexec.
// The stress tool can't be launched from such a directory.
func isDirNoExec(t target.Target, dir string) (bool, error) {
	dfOutput, _, _, err := t.RunCommand(exec.Command("df", "-P", dir), 10, true)
	if err != nil {
		return false, fmt.Errorf("failed to run df command: %w", err)
	}
	filesystem, err := fieldFromDfpOutput(dfOutput, "Filesystem")
	if err != nil {
		return false, err
	}
	mountedOn, err := fieldFromDfpOutput(dfOutput, "Mounted")
	if err != nil {
		return false, err
	}
	mountOutput, _, _, err := t.RunCommand(exec.Command("mount"), 10, true)
	if err != nil {
		return false, fmt.Errorf("failed to run mount command: %w", err)
	}
	mounts, err := parseMountOutput(mountOutput)
	if err != nil {
		return false, err
	}
	if len(mounts) == 0 {
		return false, fmt.Errorf("no mount records found")
	}
	for _, mount := range mounts {
		if mount.fileSystem == filesystem && mount.mountPoint == mountedOn {
			return slices.Contains(mount.options, "noexec"), nil
		}
	}
	return false, fmt.Errorf("filesystem %s mounted on %s is not found in mount records", filesystem, mountedOn)
}
