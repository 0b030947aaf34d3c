package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"time"

	"github.com/Bandokii/fahrpc/internal/config"
	"github.com/Bandokii/fahrpc/internal/logging"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the diagnostic log",
	Long: `View and filter the FAHRPC diagnostic log.

By default, shows the last 50 entries of the runtime log. Exception
details and captured stderr lines are shown beneath their entry.

Examples:
  # Show the last 50 entries
  fahrpc logs

  # Show everything, including rotated backups
  fahrpc logs --all -n 0

  # Follow the log in real-time, across rotations
  fahrpc logs -f

  # Only warnings and worse from the main loop
  fahrpc logs --level warning --phase "main loop"

  # Show logs from the last hour
  fahrpc logs --since 1h

  # Search messages and exception text
  fahrpc logs --grep "refused|timed out"

  # Export as JSON
  fahrpc logs --all --format json -o fahrpc-log.json

  # Read the setup log instead
  fahrpc logs --setup`,
	RunE: runLogs,
}

var (
	logsTail       int
	logsFollow     bool
	logsLevel      string
	logsPhase      string
	logsSince      string
	logsGrep       string
	logsAll        bool
	logsFormat     string
	logsOutput     string
	logsFile       string
	logsSetup      bool
	logsInstallDir string
	logsNoColor    bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warning/error/critical)")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Filter by phase tag (e.g. startup, \"main loop\", shutdown)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries matching pattern (regex)")
	logsCmd.Flags().BoolVarP(&logsAll, "all", "a", false, "Include rotated backups")
	logsCmd.Flags().StringVar(&logsFormat, "format", "", "Export format instead of display (text/json/csv)")
	logsCmd.Flags().StringVarP(&logsOutput, "output", "o", "", "Write the export to a file instead of stdout")
	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file to read (default: the configured runtime log)")
	logsCmd.Flags().BoolVar(&logsSetup, "setup", false, "Read the setup log")
	logsCmd.Flags().StringVar(&logsInstallDir, "install-dir", "", "Install directory holding the setup log (default: executable directory)")
	logsCmd.Flags().BoolVar(&logsNoColor, "no-color", false, "Disable colored output")
}

// Display styles.
var (
	logsTimeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	logsOriginStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	logsDetailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	logsHeaderStyle = lipgloss.NewStyle().Bold(true)
)

// logSource locates a log file and the timestamp layout it was written with.
type logSource struct {
	path   string
	layout string
}

func resolveLogSource() logSource {
	cfg := config.Get()

	layout := logging.RuntimeTimeLayout
	if logsSetup {
		layout = logging.SetupTimeLayout
	}

	switch {
	case logsFile != "":
		return logSource{path: logsFile, layout: layout}
	case logsSetup:
		dir := logsInstallDir
		if dir == "" {
			dir = config.DefaultInstallDir()
		}
		return logSource{path: cfg.Setup.SetupLogPath(dir), layout: layout}
	default:
		return logSource{path: cfg.Logging.LogPath(config.ConfigDir()), layout: layout}
	}
}

func buildLogFilter() (logging.LogFilter, error) {
	var filter logging.LogFilter

	if logsLevel != "" {
		if _, ok := logging.LookupLevel(logsLevel); !ok {
			return filter, fmt.Errorf("invalid level %q (valid: %s)", logsLevel,
				strings.Join(config.ValidLogLevels(), ", "))
		}
		filter.Level = logsLevel
	}

	if logsPhase != "" {
		filter.Phase = logging.Phase(strings.ToUpper(strings.Trim(logsPhase, "[]")))
	}

	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}

	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return filter, fmt.Errorf("invalid grep pattern: %w", err)
		}
		filter.Pattern = re
	}

	return filter, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	src := resolveLogSource()
	filter, err := buildLogFilter()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color := !logsNoColor && isTerminalWriter(out)

	// Follow mode
	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, out, src, filter, color)
	}

	entries, err := logging.AggregateLogs(src.path, src.layout, logsAll)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_, _ = fmt.Fprintf(out, "No log file found at %s\n", src.path)
			return nil
		}
		return err
	}

	entries = logging.FilterLogs(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	if logsFormat != "" {
		return exportLogs(out, entries, src.layout)
	}
	return displayLogs(out, entries, src.layout, color)
}

func exportLogs(out io.Writer, entries []logging.LogEntry, layout string) error {
	if logsOutput == "" {
		return logging.ExportLogEntries(out, entries, logsFormat, layout)
	}

	f, err := os.Create(logsOutput)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := logging.ExportLogEntries(f, entries, logsFormat, layout); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d entries to %s\n", len(entries), logsOutput)
	return nil
}

// displayLogs prints entries for reading in a terminal
func displayLogs(out io.Writer, entries []logging.LogEntry, layout string, color bool) error {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}

	f := logging.Formatter{TimeLayout: layout}
	for _, e := range entries {
		if _, err := fmt.Fprintln(out, formatLogEntry(f, e, color)); err != nil {
			return err
		}
	}
	return nil
}

// formatLogEntry formats a parsed entry, one line per summary and detail line
func formatLogEntry(f logging.Formatter, e logging.LogEntry, color bool) string {
	ts := "[" + f.Timestamp(e.Timestamp) + "]"
	level := fmt.Sprintf("[%-8s]", e.Level)
	origin := e.Origin

	if color {
		ts = logsTimeStyle.Render(ts)
		level = logging.LevelStyle(e.LevelValue()).Render(level)
		origin = logsOriginStyle.Render(origin)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s - %s", ts, level, origin, e.Message)
	for _, d := range e.Detail {
		sb.WriteString("\n")
		if color {
			if strings.HasPrefix(d, "[EXCEPTION] ") {
				d = logsHeaderStyle.Render(d)
			} else {
				d = logsDetailStyle.Render(d)
			}
		}
		sb.WriteString(d)
	}
	return sb.String()
}

// followLogs prints new entries as they are appended. Detail lines follow
// the verdict of the summary line they belong to.
func followLogs(ctx context.Context, out io.Writer, src logSource, filter logging.LogFilter, color bool) error {
	_, _ = fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", src.path)

	f := logging.Formatter{TimeLayout: src.layout}
	show := false
	err := logging.NewFollower(src.path, true).Run(ctx, func(line string) {
		s, err := logging.ParseSummary(line, src.layout)
		if err != nil {
			if show {
				_, _ = fmt.Fprintln(out, line)
			}
			return
		}

		entry := logging.LogEntry{
			Timestamp: s.Time,
			Level:     s.Level.String(),
			Origin:    s.Origin,
			Message:   s.Message,
		}
		show = logging.MatchesFilter(entry, filter)
		if show {
			_, _ = fmt.Fprintln(out, formatLogEntry(f, entry, color))
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && logging.IsTerminal(f)
}
