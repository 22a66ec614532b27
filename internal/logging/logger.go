// Package logging provides structured, colorful logging utilities for Lattice
// cluster operations, ensuring consistent log formatting across the daemon,
// the CLI and every internal component.
//
// Implements a unified logging interface over charmbracelet/log with
// color-coded levels and RFC3339 timestamps. INFO and SUCCESS go to stdout,
// WARN, ERROR and DEBUG go to stderr, unless a log file is configured.
//
// LOGGING FEATURES:
//   - Color-coded levels: DEBUG (purple), INFO (blue), WARN (yellow), ERROR (red), SUCCESS (green)
//   - Repeat suppression: Deduper folds identical messages into one line with a count
//   - Flexible output: Configurable log levels and output suppression for CLI tools
//   - Standard redirection: Routes standard library logs through the unified system
//
// INTEGRATION SUPPORT:
// LevelWriter adapts the logger to io.Writer for libraries that expect one
// (the gin HTTP server, the standard library logger).
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	stdlog "log"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	// Logger for INFO/SUCCESS messages (stdout by default, follows Unix conventions)
	stdoutLogger = newLogger(os.Stdout)

	// Logger for WARN/ERROR/DEBUG messages (stderr by default, follows Unix conventions)
	stderrLogger = newLogger(os.Stderr)

	// Track if logging has been explicitly configured by CLI tools
	cliConfigured = false

	// Track the current output destinations for different log levels
	currentStdoutOutput io.Writer = os.Stdout // For INFO/SUCCESS
	currentStderrOutput io.Writer = os.Stderr // For WARN/ERROR/DEBUG

	// Track if we're using a single log file (overrides stdout/stderr separation)
	usingLogFile  = false
	logFileHandle io.Writer
)

func newLogger(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	l.SetStyles(setupCustomStyles())
	return l
}

// setupCustomStyles creates custom color styling for log levels.
// Colors are chosen to stay readable on both light and dark terminals.
func setupCustomStyles() *log.Styles {
	styles := log.DefaultStyles()

	// DEBUG: light purple
	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Foreground(lipgloss.Color("#7F6DFF"))

	// INFO: light blue
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Foreground(lipgloss.Color("#42E7FF"))

	// WARN: light yellow
	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Foreground(lipgloss.Color("#FFE763"))

	// ERROR: light red/pink
	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Foreground(lipgloss.Color("#FF4473"))

	return styles
}

// getStdoutLoggerOutput returns the current output destination for stdout logger.
// Used by Success function to respect log file redirection.
func getStdoutLoggerOutput() io.Writer {
	if usingLogFile {
		return logFileHandle
	}
	return currentStdoutOutput
}

// Info logs informational messages for cluster operations and status updates.
// Uses stdout following Unix conventions (or log file when specified).
func Info(format string, v ...any) {
	stdoutLogger.Info(fmt.Sprintf(format, v...))
}

// Warn logs warning messages for non-critical issues requiring attention.
// Uses stderr following Unix conventions (or log file when specified).
func Warn(format string, v ...any) {
	stderrLogger.Warn(fmt.Sprintf(format, v...))
}

// Error logs error messages for failures and critical issues in cluster operations.
// Uses stderr following Unix conventions (or log file when specified).
func Error(format string, v ...any) {
	stderrLogger.Error(fmt.Sprintf(format, v...))
}

// Success logs successful operations in green using INFO level with custom styling.
// Implements a custom SUCCESS level that respects INFO level filtering.
func Success(format string, v ...any) {
	if stdoutLogger.GetLevel() > log.InfoLevel {
		return
	}

	// Override the INFO label with "SUCCESS" in light green
	styles := setupCustomStyles()
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("SUCCESS").
		Foreground(lipgloss.Color("#60F281"))

	tempLogger := log.NewWithOptions(getStdoutLoggerOutput(), log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	tempLogger.SetStyles(styles)
	tempLogger.Info(fmt.Sprintf(format, v...))
}

// Debug logs detailed debugging information for development and troubleshooting.
// Uses stderr following Unix conventions (or log file when specified).
func Debug(format string, v ...any) {
	stderrLogger.Debug(fmt.Sprintf(format, v...))
}

// IsDebugEnabled reports whether DEBUG messages are currently emitted.
func IsDebugEnabled() bool {
	return stderrLogger.GetLevel() <= log.DebugLevel
}

// SetLevel configures the minimum logging level across all cluster components.
// Accepts DEBUG, INFO, WARN and ERROR; anything else falls back to INFO.
func SetLevel(level string) {
	var logLevel log.Level
	switch level {
	case "DEBUG":
		logLevel = log.DebugLevel
	case "INFO":
		logLevel = log.InfoLevel
	case "WARN":
		logLevel = log.WarnLevel
	case "ERROR":
		logLevel = log.ErrorLevel
	default:
		logLevel = log.InfoLevel
	}

	stdoutLogger.SetLevel(logLevel)
	stderrLogger.SetLevel(logLevel)
}

// SetOutput configures log output destination for operational log management.
// When a file is specified, all logs go to the file (overriding Unix stdout/stderr separation).
// When nil, suppresses all output. When not called, uses Unix conventions (INFO/SUCCESS->stdout, others->stderr).
func SetOutput(w *os.File) {
	if w == nil {
		// Suppress output by setting level to a high value
		stdoutLogger.SetLevel(log.FatalLevel + 1)
		stderrLogger.SetLevel(log.FatalLevel + 1)
		usingLogFile = false
		return
	}

	usingLogFile = true
	logFileHandle = w
	stdoutLogger = newLogger(w)
	stderrLogger = newLogger(w)
}

// SuppressOutput disables INFO/WARN/DEBUG logs while keeping ERROR logs visible.
// Used by CLI tools to reduce output noise during normal operations.
func SuppressOutput() {
	stdoutLogger.SetLevel(log.ErrorLevel)
	stderrLogger.SetLevel(log.ErrorLevel)
	cliConfigured = true
}

// RestoreOutput restores normal logging with Unix conventions at INFO level and above.
// INFO/SUCCESS go to stdout, WARN/ERROR/DEBUG go to stderr.
func RestoreOutput() {
	usingLogFile = false

	stdoutLogger = newLogger(os.Stdout)
	stderrLogger = newLogger(os.Stderr)
	stdoutLogger.SetLevel(log.InfoLevel)
	stderrLogger.SetLevel(log.InfoLevel)

	currentStdoutOutput = os.Stdout
	currentStderrOutput = os.Stderr
	cliConfigured = true
}

// IsConfiguredByCLI returns true if logging has been explicitly configured by CLI tools.
func IsConfiguredByCLI() bool {
	return cliConfigured
}

// ============================================================================
// REPEAT SUPPRESSION - Fold identical messages emitted in a tight loop
// ============================================================================

// dedupEntry is one pending folded message
type dedupEntry struct {
	level   string
	message string
	count   int
}

// Deduper folds repeated log messages that share a key into a single line
// emitted once per flush window, suffixed with the repeat count. The first
// occurrence of a key is logged immediately so operators see failures
// without waiting for the window.
//
// Used by the reconnection custodian: an unreachable peer would otherwise
// log one dial failure per tick forever.
type Deduper struct {
	mu      sync.Mutex
	prefix  string
	pending map[string]*dedupEntry
	seen    map[string]bool
	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// NewDeduper starts a deduper that flushes every window.
func NewDeduper(prefix string, window time.Duration) *Deduper {
	if window <= 0 {
		window = 30 * time.Second
	}
	d := &Deduper{
		prefix:  prefix,
		pending: make(map[string]*dedupEntry),
		seen:    make(map[string]bool),
		ticker:  time.NewTicker(window),
		done:    make(chan struct{}),
	}
	go d.flushLoop()
	return d
}

// Log records a message under key at the given level.
func (d *Deduper) Log(key, level, format string, v ...any) {
	message := fmt.Sprintf(format, v...)

	d.mu.Lock()
	if !d.seen[key] {
		d.seen[key] = true
		d.mu.Unlock()
		d.output(level, message)
		return
	}
	if entry, ok := d.pending[key]; ok {
		entry.count++
		entry.message = message
	} else {
		d.pending[key] = &dedupEntry{level: level, message: message, count: 1}
	}
	d.mu.Unlock()
}

// Reset forgets key, so its next occurrence is logged immediately again.
// Called once the condition behind the key has cleared.
func (d *Deduper) Reset(key string) {
	d.mu.Lock()
	delete(d.seen, key)
	entry := d.pending[key]
	delete(d.pending, key)
	d.mu.Unlock()

	if entry != nil {
		d.output(entry.level, d.format(entry))
	}
}

// Close flushes pending messages and stops the flush loop.
func (d *Deduper) Close() {
	d.once.Do(func() {
		close(d.done)
		d.ticker.Stop()
		d.flush()
	})
}

func (d *Deduper) flushLoop() {
	for {
		select {
		case <-d.done:
			return
		case <-d.ticker.C:
			d.flush()
		}
	}
}

func (d *Deduper) flush() {
	d.mu.Lock()
	entries := make([]*dedupEntry, 0, len(d.pending))
	keys := make([]string, 0, len(d.pending))
	for key := range d.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entries = append(entries, d.pending[key])
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, entry := range entries {
		d.output(entry.level, d.format(entry))
	}
}

func (d *Deduper) format(entry *dedupEntry) string {
	if entry.count > 1 {
		return fmt.Sprintf("%s (x%d)", entry.message, entry.count)
	}
	return entry.message
}

func (d *Deduper) output(level, message string) {
	if d.prefix != "" {
		message = "(" + d.prefix + ") " + message
	}
	logAt(level, message)
}

// ============================================================================
// GENERIC LOG INTEGRATION - General purpose writers for third-party libraries
// ============================================================================

// LevelWriter forwards log lines to a specific log level with optional prefix.
// Useful for integrating third-party libraries that expect io.Writer interfaces.
type LevelWriter struct {
	level  string
	prefix string
}

// NewLevelWriter creates a writer that logs each line at the specified level with prefix.
// Valid levels: DEBUG, INFO, WARN, ERROR
func NewLevelWriter(level, prefix string) io.Writer {
	return &LevelWriter{level: strings.ToUpper(level), prefix: prefix}
}

// Write implements io.Writer by splitting input into lines and logging each at the configured level.
func (w *LevelWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if w.prefix != "" {
			line = w.prefix + ": " + line
		}
		logAt(w.level, line)
	}
	return len(p), nil
}

func logAt(level, message string) {
	switch level {
	case "DEBUG":
		Debug("%s", message)
	case "INFO":
		Info("%s", message)
	case "WARN", "WARNING":
		Warn("%s", message)
	case "ERR", "ERROR":
		Error("%s", message)
	default:
		Info("%s", message)
	}
}

// RedirectStandardLog redirects Go's standard library logger output to the provided writer.
// Captures logs from dependencies that use the global logger and routes them through
// the unified logging pipeline. Passing nil discards standard log output.
func RedirectStandardLog(w io.Writer) {
	if w == nil {
		stdlog.SetOutput(io.Discard)
		return
	}
	stdlog.SetOutput(w)
}
