package readylog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TimeLayout is the timestamp prefix of every server log line.
const TimeLayout = "2006/01/02 15:04:05"

type Level string

const (
	Debug Level = "DEBUG"
	Info  Level = "INFO"
	Warn  Level = "WARN"
	Event Level = "EVENT"
	Error Level = "ERROR"
	Fatal Level = "FATAL"
)

var (
	ErrNotLogLine = errors.New("Line is not in the server log format")

	linePattern  = regexp.MustCompile(`^([0-9]{4}/[0-9]{2}/[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}) (DEBUG|INFO|WARN|EVENT|ERROR|FATAL) ?(.*)$`)
	eventPattern = regexp.MustCompile(`^\[([^\]]*)\] ?(.*)$`)
	stampPattern = regexp.MustCompile(`^2[0-9]{3}/[0-9]{2}/[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2} (.*)`)
)

// Entry is one parsed line of the server log, e.g.
//
//   2010/07/19 12:53:43 EVENT [SERVER_STARTED] listening on 6776
type Entry struct {
	Time    time.Time
	Level   Level
	Event   string
	Message string
}

func ParseLine(line string) (Entry, error) {
	m := linePattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Entry{}, fmt.Errorf("%q: %w", line, ErrNotLogLine)
	}

	ts, err := time.ParseInLocation(TimeLayout, m[1], time.Local)
	if err != nil {
		return Entry{}, fmt.Errorf("%q: %w", line, ErrNotLogLine)
	}

	entry := Entry{Time: ts, Level: Level(m[2]), Message: m[3]}

	if entry.Level == Event {
		if em := eventPattern.FindStringSubmatch(m[3]); em != nil {
			entry.Event = em[1]
			entry.Message = em[2]
		}
	}

	return entry, nil
}

// StripTimestamp removes the timestamp from a log line, which makes logs from
// different runs comparable. Lines without a timestamp are returned as is.
func StripTimestamp(line string) string {
	if m := stampPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}

	return line
}

// Follower reads a log file that another process is still writing.
type Follower struct {
	path     string
	interval time.Duration
	log      *zap.Logger
}

func NewFollower(path string, interval time.Duration, log *zap.Logger) *Follower {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Follower{path: path, interval: interval, log: log}
}

// WaitFor follows the log from its start until an EVENT line carrying marker
// appears, then returns that entry. The file does not need to exist yet.
func (f *Follower) WaitFor(ctx context.Context, marker string) (Entry, error) {
	log := f.log.With(zap.String("path", f.path), zap.String("marker", marker))

	file, err := f.open(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer file.Close()

	log.Debug("Following log")

	r := bufio.NewReader(file)
	var partial string

	for {
		chunk, err := r.ReadString('\n')
		partial += chunk

		if err != nil && !errors.Is(err, io.EOF) {
			return Entry{}, err
		}

		if err == nil {
			line := partial
			partial = ""

			entry, perr := ParseLine(line)
			if perr != nil {
				continue
			}

			if entry.Level == Event && entry.Event == marker {
				log.Info("Readiness marker seen", zap.Time("at", entry.Time))
				return entry, nil
			}
			continue
		}

		// At the end of what has been written so far, wait for more
		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-time.After(f.interval):
		}
	}
}

func (f *Follower) open(ctx context.Context) (*os.File, error) {
	for {
		file, err := os.Open(f.path)
		if err == nil {
			return file, nil
		}

		if !os.IsNotExist(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("Log %s never appeared: %w", f.path, ctx.Err())
		case <-time.After(f.interval):
		}
	}
}
