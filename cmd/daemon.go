package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/cxburn/internal/alerts"
	"github.com/theirongolddev/cxburn/internal/cli"
	"github.com/theirongolddev/cxburn/internal/config"
	"github.com/theirongolddev/cxburn/internal/daemon"
	"github.com/theirongolddev/cxburn/internal/store"
)

type daemonRuntimeState struct {
	PID         int       `json:"pid"`
	Addr        string    `json:"addr"`
	StartedAt   time.Time `json:"started_at"`
	SessionsDir string    `json:"sessions_dir"`
}

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDebounce     time.Duration
	flagDaemonNoWatch      bool
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a background usage daemon with HTTP/SSE endpoints",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	defaultPID := filepath.Join(config.CacheDir(), "cxburnd.pid")
	defaultLog := filepath.Join(config.CacheDir(), "cxburnd.log")
	defaults := config.DefaultConfig().Daemon

	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", defaults.Addr, "HTTP listen address")
	daemonCmd.PersistentFlags().DurationVar(&flagDaemonInterval, "interval", defaults.Interval.Duration, "Rescan interval")
	daemonCmd.PersistentFlags().DurationVar(&flagDaemonDebounce, "debounce", defaults.Debounce.Duration, "Delay before a triggered scan runs")
	daemonCmd.PersistentFlags().BoolVar(&flagDaemonNoWatch, "no-watch", false, "Disable file watching, rely on the interval only")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", defaultPID, "PID file path")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")
	daemonCmd.PersistentFlags().IntVar(&flagDaemonEventsBuffer, "events-buffer", defaults.EventsBuffer, "Max in-memory events retained")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	applyDaemonConfig(cmd)

	if flagDaemonDetach {
		return startDaemonDetached()
	}

	return runDaemonForeground()
}

// applyDaemonConfig fills daemon flags from the config file unless they were
// set explicitly.
func applyDaemonConfig(cmd *cobra.Command) {
	flags := cmd.Flags()
	d := appCfg.Daemon
	if !flags.Changed("addr") && d.Addr != "" {
		flagDaemonAddr = d.Addr
	}
	if !flags.Changed("interval") && d.Interval.Duration > 0 {
		flagDaemonInterval = d.Interval.Duration
	}
	if !flags.Changed("debounce") && d.Debounce.Duration > 0 {
		flagDaemonDebounce = d.Debounce.Duration
	}
	if !flags.Changed("no-watch") {
		flagDaemonNoWatch = !d.Watch
	}
	if !flags.Changed("events-buffer") && d.EventsBuffer > 0 {
		flagDaemonEventsBuffer = d.EventsBuffer
	}
}

func startDaemonDetached() error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := filterDetachArg(os.Args[1:])
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}

	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	cmd := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.Stdin = nil
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", flagDaemonPIDFile)
	fmt.Printf("  API: http://%s/v1/status\n", flagDaemonAddr)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground() error {
	if err := ensureDaemonNotRunning(flagDaemonPIDFile); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(flagDaemonPIDFile), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}

	pid := os.Getpid()
	if err := writePID(flagDaemonPIDFile, pid); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagDaemonPIDFile) }()

	loc, err := location()
	if err != nil {
		return err
	}
	sessionsDir := config.SessionsDir(appCfg)

	state := daemonRuntimeState{
		PID:         pid,
		Addr:        flagDaemonAddr,
		StartedAt:   time.Now(),
		SessionsDir: sessionsDir,
	}
	_ = writeState(statePath(flagDaemonPIDFile), state)
	defer func() { _ = os.Remove(statePath(flagDaemonPIDFile)) }()

	cachePath := config.ScanCachePath(appCfg)
	if flagNoCache {
		cachePath = ""
	}

	cfg := daemon.Config{
		SessionsDir:  sessionsDir,
		CachePath:    cachePath,
		Days:         flagDays,
		Scope:        flagProject,
		Workers:      appCfg.General.Workers,
		Interval:     flagDaemonInterval,
		Debounce:     flagDaemonDebounce,
		Watch:        !flagDaemonNoWatch,
		Addr:         flagDaemonAddr,
		EventsBuffer: flagDaemonEventsBuffer,
		Location:     loc,
		Pricing:      appCfg.PricingTable(),
	}

	if appCfg.Alerts.Enabled {
		ledger, err := store.OpenLedger(config.LedgerPath(appCfg))
		if err != nil {
			return err
		}
		defer func() { _ = ledger.Close() }()

		cfg.Alerts = &daemon.AlertsConfig{
			Policy:   alerts.NewPolicy(appCfg.Alerts.Thresholds),
			Ledger:   ledger,
			Notifier: alerts.LogNotifier{Logf: log.Printf, Loc: loc},
		}
	}
	svc := daemon.New(cfg)

	fmt.Printf("  cxburn daemon listening on http://%s\n", flagDaemonAddr)
	fmt.Printf("  Scanning %s every %s (watch: %v)\n", sessionsDir, flagDaemonInterval, !flagDaemonNoWatch)
	fmt.Printf("  Stop with: cxburn daemon stop --pid-file %s\n", flagDaemonPIDFile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		fmt.Printf("  Daemon: not running (pid file not found)\n")
		return nil
	}

	alive := processAlive(pid)
	if !alive {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := flagDaemonAddr
	if st, err := readState(statePath(flagDaemonPIDFile)); err == nil && st.Addr != "" {
		addr = st.Addr
	}

	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short status probe
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  API status: HTTP %d\n", resp.StatusCode)
		return nil
	}

	var st daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Printf("  API status: malformed response (%v)\n", err)
		return nil
	}

	if st.LastScanAt.IsZero() {
		fmt.Printf("  Last scan: pending\n")
	} else {
		fmt.Printf("  Last scan: %s (%s)\n", st.LastScanAt.Local().Format(time.RFC3339), cli.FormatRelative(st.LastScanAt, time.Now()))
	}
	fmt.Printf("  Scan count: %d\n", st.ScanCount)
	fmt.Printf("  Files: %d (%d rescanned, %d cached)\n", st.TotalFiles, st.ScannedFiles, st.CacheHits)
	fmt.Printf("  Sessions (%dd): %d\n", st.Days, st.Summary.Sessions)
	fmt.Printf("  Tokens: %s (today %s, last hour %s)\n",
		cli.FormatTokens(st.Summary.Tokens), cli.FormatTokens(st.Summary.TodayTokens), cli.FormatTokens(st.Summary.TokensLastHour))
	fmt.Printf("  Cost: %s\n", cli.FormatCost(st.Summary.EstimatedCostUSD))
	for _, rl := range st.Summary.RateLimits {
		fmt.Printf("  %s window: %s remaining\n", rl.Kind.Label(), cli.FormatPercent(rl.RemainingPercent))
	}
	fmt.Printf("  Rate limits: %s\n", st.Summary.Freshness)
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pid, err := readPID(flagDaemonPIDFile)
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			_ = os.Remove(flagDaemonPIDFile)
			_ = os.Remove(statePath(flagDaemonPIDFile))
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func filterDetachArg(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func ensureDaemonNotRunning(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	_ = os.Remove(pidFile)
	_ = os.Remove(statePath(pidFile))
	return nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600)
}

func readPID(path string) (int, error) {
	//nolint:gosec // daemon pid path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func statePath(pidFile string) string {
	return pidFile + ".json"
}

func writeState(path string, st daemonRuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func readState(path string) (daemonRuntimeState, error) {
	var st daemonRuntimeState
	//nolint:gosec // daemon state path is configured by the local user
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
