// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openvon/vonwrap/lib/config"
	"github.com/openvon/vonwrap/lib/inifile"
)

// Options selects what to launch.
type Options struct {
	// Profile is the agent profile name. Required.
	Profile string

	// Mode overrides the configured launch mode when non-empty.
	Mode string

	// ExtraEnv entries are appended to the computed environment,
	// after the fixed variables. Used for decrypted seeds.
	ExtraEnv []string
}

// Launcher starts the wrapper server and supervises it until it exits
// or the context is cancelled.
type Launcher struct {
	Config *config.Config
	Logger *slog.Logger
}

// Launch runs the full lifecycle: validate the profile, check the
// wrapper is not already up, clear any stale run state left by a
// crashed launch (a run state with a live PID refuses the launch),
// report pool reachability, start the
// server command in the project root, wait for the bind address to
// accept connections, then block until the server exits. Cancelling
// ctx stops the server gracefully (SIGTERM to the process group, then
// SIGKILL after the stop timeout) and returns nil.
func (l *Launcher) Launch(ctx context.Context, opts Options) error {
	cfg := l.Config
	if l.Logger == nil {
		l.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Profile == "" {
		return errors.New("profile is required")
	}
	profilePath := cfg.ProfilePath(opts.Profile)
	if _, err := inifile.ParseFile(profilePath); err != nil {
		return fmt.Errorf("load profile %q: %w", opts.Profile, err)
	}

	mode := opts.Mode
	if mode == "" {
		mode = cfg.Launch.Mode
	}
	argvTemplate, ok := cfg.Launch.Commands[mode]
	if !ok {
		return fmt.Errorf("no command configured for mode %q", mode)
	}

	root, err := filepath.EvalSymlinks(cfg.Paths.Root)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	bind := cfg.Launch.BindAddress
	if IsUp(ProbeAddr(bind)) {
		return fmt.Errorf("a server is already listening on %s", bind)
	}

	statePath := l.runStatePath()
	if prev, err := ReadRunState(statePath); err == nil {
		stale, err := Stale(statePath)
		if err != nil {
			return fmt.Errorf("check previous run state: %w", err)
		}
		if !stale {
			return fmt.Errorf("a previous launch of %q (pid %d) is still running", prev.Profile, prev.PID)
		}
		// Left behind by a crash or power loss. Clear it and move on.
		l.Logger.Info("clearing stale run state",
			"profile", prev.Profile,
			"pid", prev.PID,
			"started_at", prev.StartedAt,
		)
		if err := ClearRunState(statePath); err != nil {
			return fmt.Errorf("clear stale run state: %w", err)
		}
	}

	env := Environ(os.Environ(), opts.Profile, cfg)
	env = append(env, opts.ExtraEnv...)

	poolIP := PoolIP(os.Environ(), cfg)
	poolAddr := net.JoinHostPort(poolIP, strconv.Itoa(cfg.Launch.PoolPort))
	if IsUp(poolAddr) {
		l.Logger.Info("ledger pool reachable", "pool", poolAddr)
	} else {
		l.Logger.Warn("ledger pool not reachable, agent registration may fail", "pool", poolAddr)
	}

	argv := expandCommand(argvTemplate, map[string]string{
		"BIND": bind,
		"ROOT": root,
	})
	if len(argv) == 0 {
		return fmt.Errorf("empty command for mode %q", mode)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = root
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Own process group so a graceful stop reaches the whole server
	// tree, not just the leader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = cfg.StopTimeout()

	l.Logger.Info("starting wrapper server",
		"profile", opts.Profile,
		"mode", mode,
		"bind", bind,
		"command", strings.Join(argv, " "),
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	state := RunState{
		Profile:     opts.Profile,
		Mode:        mode,
		PID:         cmd.Process.Pid,
		Command:     argv,
		BindAddress: bind,
		PoolIP:      poolIP,
		StartedAt:   time.Now().UTC(),
	}
	if err := WriteRunState(statePath, state); err != nil {
		l.Logger.Warn("run state not recorded", "error", err)
	}

	ready := make(chan error, 1)
	go func() {
		ready <- WaitTCP(ctx, ProbeAddr(bind), cfg.StartupTimeout())
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case err := <-ready:
		if err != nil && ctx.Err() == nil {
			l.Logger.Error("server never became ready, stopping it", "error", err)
			syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
			<-waitErr
			ClearRunState(statePath)
			return fmt.Errorf("server not ready: %w", err)
		}
		if err == nil {
			l.Logger.Info("wrapper server ready", "bind", bind, "pid", cmd.Process.Pid)
		}
	case err := <-waitErr:
		ClearRunState(statePath)
		if err != nil {
			return fmt.Errorf("server exited during startup: %w", err)
		}
		return errors.New("server exited during startup")
	}

	err = <-waitErr
	ClearRunState(statePath)
	if ctx.Err() != nil {
		// Operator-requested stop. The server may need a moment to
		// release its wallet before a relaunch.
		l.Logger.Info("wrapper server stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

// RunStatePath is where this launcher records its run state.
func (l *Launcher) RunStatePath() string {
	return l.runStatePath()
}

func (l *Launcher) runStatePath() string {
	return filepath.Join(l.Config.Paths.State, "run-state.cbor")
}

// expandCommand substitutes ${NAME} placeholders in each argv element.
func expandCommand(template []string, vars map[string]string) []string {
	argv := make([]string, len(template))
	for i, arg := range template {
		for name, value := range vars {
			arg = strings.ReplaceAll(arg, "${"+name+"}", value)
		}
		argv[i] = arg
	}
	return argv
}

// ProbeAddr rewrites a wildcard bind address into something dialable.
func ProbeAddr(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		return net.JoinHostPort("127.0.0.1", port)
	}
	return bind
}
