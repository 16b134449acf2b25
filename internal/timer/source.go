package timer

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// DefaultCancelWord is the input line that stops the timer.
const DefaultCancelWord = "q"

// SourceStats summarizes what a SignalSource did before exiting.
type SourceStats struct {
	Resets    int
	Cancelled bool
	// InputClosed is true when the source exited because its input ended.
	InputClosed bool
}

// SignalSource turns lines of external input into timer signals: every
// line raises a reset, the cancel word raises a stop.
type SignalSource struct {
	timer      *Timer
	in         io.Reader
	cancelWord string
	logger     *slog.Logger
}

// NewSignalSource creates a source reading from in. An empty cancelWord
// selects DefaultCancelWord.
func NewSignalSource(t *Timer, in io.Reader, cancelWord string, logger *slog.Logger) *SignalSource {
	if cancelWord == "" {
		cancelWord = DefaultCancelWord
	}
	return &SignalSource{
		timer:      t,
		in:         in,
		cancelWord: cancelWord,
		logger:     logger.With("component", "signal_source"),
	}
}

// Run reads input until the timer stops, the cancel word arrives, or the
// input ends. It blocks on the reader, so callers run it on its own
// goroutine; a source stuck in a read never delays the timer.
func (s *SignalSource) Run() SourceStats {
	var stats SourceStats
	scanner := bufio.NewScanner(s.in)

	for !s.timer.StopRequested() {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				s.logger.Warn("input failed, no further signals", "error", err)
			} else {
				s.logger.Info("input closed, no further signals")
			}
			stats.InputClosed = true
			return stats
		}

		if strings.TrimSpace(scanner.Text()) == s.cancelWord {
			s.timer.SignalStop()
			stats.Cancelled = true
			return stats
		}

		if !s.timer.SignalReset() {
			break
		}
		stats.Resets++
	}

	s.logger.Debug("timer stopped, signal source exiting")
	return stats
}
