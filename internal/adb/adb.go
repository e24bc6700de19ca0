// Package adb is a thin client over the Android Debug Bridge executable.
// It covers what the install tooling needs: listing attached devices,
// restarting the server and installing packages.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// StateDevice is the state of a device that is attached and usable.
const StateDevice = "device"

// Device is one line of `adb devices`.
type Device struct {
	Serial string
	State  string // "device", "offline", "unauthorized", ...
}

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Client talks to devices through the adb executable at Path.
type Client struct {
	Path   string
	Runner Runner
}

// New returns a Client for the adb executable at path ("adb" when empty).
func New(path string) *Client {
	if path == "" {
		path = "adb"
	}
	return &Client{Path: path, Runner: ExecRunner{}}
}

// Devices lists every device adb knows about, in adb's order.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.run(ctx, "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return ParseDevices(string(out)), nil
}

// AttachedSerials returns the serials of devices in the "device" state.
func (c *Client) AttachedSerials(ctx context.Context) ([]string, error) {
	devs, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}
	var serials []string
	for _, d := range devs {
		if d.State == StateDevice {
			serials = append(serials, d.Serial)
		}
	}
	return serials, nil
}

// KillServer stops the adb server; the next command starts a fresh one.
func (c *Client) KillServer(ctx context.Context) error {
	out, err := c.run(ctx, "kill-server")
	if err != nil {
		return fmt.Errorf("adb kill-server: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// InstallError reports a package install rejected by a device.
type InstallError struct {
	Serial string
	Reason string // e.g. INSTALL_FAILED_ALREADY_EXISTS
	Output string
	Err    error
}

func (e *InstallError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("install on %s failed: %s", e.Serial, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("install on %s failed: %v", e.Serial, e.Err)
	}
	return fmt.Sprintf("install on %s failed", e.Serial)
}

func (e *InstallError) Unwrap() error { return e.Err }

var reFailure = regexp.MustCompile(`Failure \[([^\]]+)\]`)

// Install pushes and installs apkPath on the device with the given serial.
// With reinstall the existing package data is kept (adb install -r).
//
// Older adb versions exit 0 even when the device rejects the package, so the
// output is checked for a "Failure [...]" line as well.
func (c *Client) Install(ctx context.Context, serial, apkPath string, reinstall bool) error {
	args := []string{"-s", serial, "install"}
	if reinstall {
		args = append(args, "-r")
	}
	args = append(args, apkPath)

	out, err := c.run(ctx, args...)
	text := string(out)
	if m := reFailure.FindStringSubmatch(text); m != nil {
		return &InstallError{Serial: serial, Reason: m[1], Output: text, Err: err}
	}
	if err != nil {
		return &InstallError{Serial: serial, Output: text, Err: err}
	}
	return nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	r := c.Runner
	if r == nil {
		r = ExecRunner{}
	}
	return r.Run(ctx, c.Path, args...)
}

// ParseDevices parses the output of `adb devices`. Header and daemon status
// lines are skipped.
func ParseDevices(out string) []Device {
	var devs []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devs = append(devs, Device{Serial: fields[0], State: fields[1]})
	}
	return devs
}
