package ptu

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"ptustress/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	stdout   string
	exitCode int
	err      error
}

// fakeRunner answers commands by the first argument (program name) and records them.
type fakeRunner struct {
	mu        sync.Mutex
	name      string
	responses map[string][]response // consumed in order, the last one repeats
	commands  [][]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{name: "sut", responses: map[string][]response{}}
}

func (f *fakeRunner) on(program string, r ...response) *fakeRunner {
	f.responses[program] = append(f.responses[program], r...)
	return f
}

func (f *fakeRunner) RunCommand(cmd *exec.Cmd, _ int, _ bool) (string, string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd.Args)
	program := cmd.Args[0]
	if program == "sudo" {
		program = cmd.Args[2]
	}
	rs := f.responses[program]
	if len(rs) == 0 {
		return "", "", 0, nil
	}
	r := rs[0]
	if len(rs) > 1 {
		f.responses[program] = rs[1:]
	}
	return r.stdout, "", r.exitCode, r.err
}

func (f *fakeRunner) GetName() string { return f.name }

func (f *fakeRunner) count(program string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, args := range f.commands {
		if args[0] == program {
			n++
		}
	}
	return n
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ToolDir = "/opt/ptu"
	cfg.CoresPerSocket = 12
	cfg.SettleTime = 0
	cfg.KillInterval = 0
	return cfg
}

const psRunning = "/sbin/init\n./ptu -mon -log -csv -logname run1 -y\n-bash\n"
const psStopped = "/sbin/init\n-bash\nptustress stress --tool-dir /opt/ptu\n"

func TestCoreMask(t *testing.T) {
	tests := []struct {
		cores   int
		percent int
		want    string
	}{
		{12, 50, "0x3f"},
		{12, 100, "0xfff"},
		{12, 99, "0x7ff"}, // floor(11.88) = 11
		{56, 25, "0x3fff"},
		{1, 100, "0x1"},
		{128, 100, "0xffffffffffffffffffffffffffffffff"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d cores %d%%", tt.cores, tt.percent), func(t *testing.T) {
			got, err := CoreMask(tt.cores, tt.percent)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoreMaskWidthMatchesFloor(t *testing.T) {
	for cores := 1; cores <= 130; cores++ {
		for percent := 1; percent <= 100; percent++ {
			want := cores * percent / 100
			mask, err := CoreMask(cores, percent)
			if want == 0 {
				require.ErrorIs(t, err, ErrUnsupportedConfiguration)
				continue
			}
			require.NoError(t, err)
			require.True(t, util.IsValidHex(mask))
			bits, err := util.HexSetBits(mask)
			require.NoError(t, err)
			require.Equal(t, want, bits, "cores=%d percent=%d", cores, percent)
			// all set bits are low-order: mask+1 is a power of two
			v, ok := new(big.Int).SetString(strings.TrimPrefix(mask, "0x"), 16)
			require.True(t, ok)
			v.Add(v, big.NewInt(1))
			require.Equal(t, uint(want), v.TrailingZeroBits())
			require.Equal(t, want+1, v.BitLen())
		}
	}
}

func TestCoreMaskErrors(t *testing.T) {
	for _, tt := range []struct{ cores, percent int }{{0, 50}, {12, 0}, {12, 101}, {4, 10}} {
		_, err := CoreMask(tt.cores, tt.percent)
		assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
	}
}

func TestSetPercentCoresToStress(t *testing.T) {
	o, err := NewOrchestrator(newFakeRunner(), testConfig())
	require.NoError(t, err)
	for _, p := range []int{1, 50, 100} {
		assert.NoError(t, o.SetPercentCoresToStress(p))
		assert.Equal(t, p, o.PercentCoresToStress())
	}
	err = o.SetPercentCoresToStress(0)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
	assert.Contains(t, err.Error(), "at least 1")
	err = o.SetPercentCoresToStress(101)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
	assert.Contains(t, err.Error(), "at most 100")
	assert.Equal(t, 100, o.PercentCoresToStress())
}

func TestSetCPUMask(t *testing.T) {
	o, err := NewOrchestrator(newFakeRunner(), testConfig())
	require.NoError(t, err)
	tests := []struct {
		mask    string
		want    string
		wantErr bool
	}{
		{"0x1", "0x1", false},
		{"0X8", "0x8", false},
		{"all", "ALL", false},
		{"ALL", "ALL", false},
		{"0x9", "", true},
		{"0x0", "", true},
		{"1", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.mask, func(t *testing.T) {
			err := o.SetCPUMask(tt.mask)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.CPUMask())
		})
	}
}

func TestBuildCommand(t *testing.T) {
	base := "./ptu -mon -log -csv -logname run1"
	tests := []struct {
		name    string
		percent int
		mask    string
		yes     bool
		want    string
	}{
		{"percent and mask", 50, "0x2", true, base + " -cpucore 0x3f -cpu 0x2 -y"},
		{"percent only", 50, "", true, base + " -cpucore 0x3f -y"},
		{"mask only", 0, "ALL", true, base + " -cpu ALL -y"},
		{"full percent and mask", 100, "0x1", true, base + " -cpu 0x1 -y"},
		{"nothing", 0, "", false, base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.AssumeYes = tt.yes
			o, err := NewOrchestrator(newFakeRunner(), cfg)
			require.NoError(t, err)
			if tt.percent > 0 {
				require.NoError(t, o.SetPercentCoresToStress(tt.percent))
			}
			if tt.mask != "" {
				require.NoError(t, o.SetCPUMask(tt.mask))
			}
			got, err := o.BuildCommand(base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCommandZeroCores(t *testing.T) {
	cfg := testConfig()
	cfg.CoresPerSocket = 4
	o, err := NewOrchestrator(newFakeRunner(), cfg)
	require.NoError(t, err)
	require.NoError(t, o.SetPercentCoresToStress(10))
	_, err = o.BuildCommand("./ptu")
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestCoresPerSocketQueried(t *testing.T) {
	lscpu := "Architecture:        x86_64\nThread(s) per core:  2\nCore(s) per socket:  56\nSocket(s):           2\n"
	runner := newFakeRunner().on("lscpu", response{stdout: lscpu})
	cfg := testConfig()
	cfg.CoresPerSocket = 0
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	cores, err := o.CoresPerSocket()
	require.NoError(t, err)
	assert.Equal(t, 56, cores)
	_, err = o.CoresPerSocket()
	require.NoError(t, err)
	assert.Equal(t, 1, runner.count("lscpu"))
}

func TestCoresPerSocketWindows(t *testing.T) {
	wmic := "\r\n\r\nNumberOfCores=24\r\n\r\n\r\nNumberOfCores=24\r\n"
	runner := newFakeRunner().on("wmic", response{stdout: wmic})
	cfg := testConfig()
	cfg.OS = Windows
	cfg.CoresPerSocket = 0
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	cores, err := o.CoresPerSocket()
	require.NoError(t, err)
	assert.Equal(t, 24, cores)
}

func TestExecuteAsync(t *testing.T) {
	runner := newFakeRunner().on("ps", response{stdout: psRunning})
	o, err := NewOrchestrator(runner, testConfig())
	require.NoError(t, err)
	require.NoError(t, o.SetPercentCoresToStress(50))
	require.NoError(t, o.ExecuteAsync(context.Background(), "./ptu -mon -log -csv -logname run1", "/opt/ptu"))
	require.NotEmpty(t, runner.commands)
	launch := runner.commands[0]
	assert.Equal(t, []string{"bash", "-c", "cd /opt/ptu && nohup ./ptu -mon -log -csv -logname run1 -cpucore 0x3f -y >/dev/null 2>&1 &"}, launch)
	assert.Equal(t, 1, runner.count("ps"))
}

func TestExecuteAsyncNotRunning(t *testing.T) {
	runner := newFakeRunner().on("ps", response{stdout: psStopped})
	o, err := NewOrchestrator(runner, testConfig())
	require.NoError(t, err)
	err = o.ExecuteAsync(context.Background(), "./ptu -mon", "")
	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.Contains(t, err.Error(), "./ptu -mon -y")
}

func TestExecuteAsyncLaunchError(t *testing.T) {
	runner := newFakeRunner().on("bash", response{exitCode: 127, err: errors.New("exit status 127")})
	o, err := NewOrchestrator(runner, testConfig())
	require.NoError(t, err)
	err = o.ExecuteAsync(context.Background(), "./ptu -mon", "")
	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.Equal(t, 0, runner.count("ps"))
}

func TestExecuteAsyncInvalidConfigurationNeverLaunches(t *testing.T) {
	cfg := testConfig()
	cfg.CoresPerSocket = 2
	runner := newFakeRunner()
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	require.NoError(t, o.SetPercentCoresToStress(10))
	err = o.ExecuteAsync(context.Background(), "./ptu", "")
	require.ErrorIs(t, err, ErrUnsupportedConfiguration)
	assert.Empty(t, runner.commands)
}

func TestExecuteAsyncCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.SettleTime = DefaultConfig().SettleTime
	runner := newFakeRunner()
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = o.ExecuteAsync(ctx, "./ptu", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckRunning(t *testing.T) {
	runner := newFakeRunner().on("ps", response{stdout: psRunning}, response{stdout: psStopped}, response{err: errors.New("ssh: connect")})
	o, err := NewOrchestrator(runner, testConfig())
	require.NoError(t, err)
	running, err := o.CheckRunning()
	require.NoError(t, err)
	assert.True(t, running)
	running, err = o.CheckRunning()
	require.NoError(t, err)
	assert.False(t, running)
	_, err = o.CheckRunning()
	assert.Error(t, err)
}

func TestCheckRunningWindows(t *testing.T) {
	tasklist := `"PTU.exe","4242","Console","1","10,240 K"` + "\r\n"
	runner := newFakeRunner().on("tasklist", response{stdout: tasklist}, response{stdout: "INFO: No tasks are running which match the specified criteria.\r\n"})
	cfg := testConfig()
	cfg.OS = Windows
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	running, err := o.CheckRunning()
	require.NoError(t, err)
	assert.True(t, running)
	running, err = o.CheckRunning()
	require.NoError(t, err)
	assert.False(t, running)
	assert.Equal(t, []string{"tasklist", "/FI", "IMAGENAME eq ptu*", "/FO", "CSV", "/NH"}, runner.commands[0])
}

func TestKill(t *testing.T) {
	runner := newFakeRunner().on("ps", response{stdout: psStopped})
	o, err := NewOrchestrator(runner, testConfig())
	require.NoError(t, err)
	assert.True(t, o.Kill(context.Background()))
	assert.Equal(t, []string{"bash", "-c", "cd /opt/ptu && sh ./killptu.sh"}, runner.commands[0])
}

func TestKillTwiceNeverFails(t *testing.T) {
	runner := newFakeRunner().
		on("bash", response{}, response{exitCode: 1, err: errors.New("exit status 1")}).
		on("ps", response{stdout: psStopped})
	o, err := NewOrchestrator(runner, testConfig())
	require.NoError(t, err)
	assert.True(t, o.Kill(context.Background()))
	assert.True(t, o.Kill(context.Background()))
}

func TestKillRetriesUntilStopped(t *testing.T) {
	runner := newFakeRunner().on("ps", response{stdout: psRunning}, response{stdout: psRunning}, response{stdout: psStopped})
	o, err := NewOrchestrator(runner, testConfig())
	require.NoError(t, err)
	assert.True(t, o.Kill(context.Background()))
	assert.Equal(t, 3, runner.count("bash"))
}

func TestKillGivesUp(t *testing.T) {
	runner := newFakeRunner().on("ps", response{stdout: psRunning})
	cfg := testConfig()
	cfg.KillRetries = 2
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	assert.False(t, o.Kill(context.Background()))
	assert.Equal(t, 2, runner.count("bash"))
}

func TestKillWindows(t *testing.T) {
	runner := newFakeRunner().on("tasklist", response{stdout: "INFO: No tasks are running which match the specified criteria."})
	cfg := testConfig()
	cfg.OS = Windows
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	assert.True(t, o.Kill(context.Background()))
	assert.Equal(t, []string{"taskkill", "/F", "/IM", "ptu.exe"}, runner.commands[0])
}

func TestElevatedLaunch(t *testing.T) {
	runner := newFakeRunner().on("ps", response{stdout: psRunning})
	cfg := testConfig()
	cfg.Elevate = true
	o, err := NewOrchestrator(runner, cfg)
	require.NoError(t, err)
	require.NoError(t, o.ExecuteAsync(context.Background(), "./ptu", "/opt/ptu tools"))
	assert.Equal(t, []string{"sudo", "-S", "bash", "-c", `cd "/opt/ptu tools" && nohup ./ptu -y >/dev/null 2>&1 &`}, runner.commands[0])
}

func TestRenderCommand(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		params CommandParams
		want   string
	}{
		{"default", "", CommandParams{Executable: "./ptu", LogName: "run1"}, "./ptu -mon -log -csv -logname run1"},
		{"core and memory test", "", CommandParams{Executable: "ptu.exe", LogName: "run2", CoreTest: 3, MemTest: 2}, "ptu.exe -mon -log -csv -logname run2 -ct 3 -mt 2"},
		{"custom", "{{.Executable}} -ct {{.CoreTest}}", CommandParams{Executable: "./ptu", CoreTest: 1}, "./ptu -ct 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderCommand(tt.tmpl, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := RenderCommand("{{.Bogus}}", CommandParams{})
	assert.Error(t, err)
	_, err = RenderCommand("{{if .CoreTest}}x{{end}}", CommandParams{})
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestParseOperatingSystem(t *testing.T) {
	os, err := ParseOperatingSystem("Windows")
	require.NoError(t, err)
	assert.Equal(t, Windows, os)
	os, err = ParseOperatingSystem("")
	require.NoError(t, err)
	assert.Equal(t, Linux, os)
	_, err = ParseOperatingSystem("solaris")
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestNewOrchestratorDefaults(t *testing.T) {
	o, err := NewOrchestrator(newFakeRunner(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "ptu", o.Config().ProcessName)
	assert.Equal(t, "./ptu", o.Executable())
	assert.Equal(t, 1, o.Config().KillRetries)
	_, err = NewOrchestrator(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
	_, err = NewOrchestrator(newFakeRunner(), Config{OS: OperatingSystem(7)})
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestValidateCPUMask(t *testing.T) {
	for _, mask := range []string{"0x1", "0X8", "all", "ALL", " 0x4 "} {
		assert.NoError(t, ValidateCPUMask(mask), mask)
	}
	for _, mask := range []string{"", "0x0", "0x9", "0x10", "1", "socket0"} {
		assert.ErrorIs(t, ValidateCPUMask(mask), ErrUnsupportedConfiguration, mask)
	}
}
