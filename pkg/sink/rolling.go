package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Rolling selects the time boundary on which file segments rotate.
type Rolling string

const (
	RollHourly Rolling = "hourly"
	RollDaily  Rolling = "daily"
)

func (r Rolling) layout() (string, error) {
	switch r {
	case RollHourly:
		return "20060102_15", nil
	case RollDaily:
		return "20060102", nil
	default:
		return "", fmt.Errorf("unsupported rolling type %q", r)
	}
}

// RollingWriter appends lines to time-boundary segments named
// <prefix>_<timestamp><ext>. When the clock crosses a boundary the current
// segment is closed and a new one opened. Old segments can be pruned by age.
type RollingWriter struct {
	dir    string
	prefix string
	ext    string
	layout string
	clock  func() time.Time

	mu      sync.Mutex
	file    *os.File
	segment string
}

// NewRollingWriter creates the target directory if needed. A nil clock
// defaults to time.Now.
func NewRollingWriter(dir, prefix, ext string, roll Rolling, clock func() time.Time) (*RollingWriter, error) {
	layout, err := roll.layout()
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &RollingWriter{
		dir:    dir,
		prefix: prefix,
		ext:    ext,
		layout: layout,
		clock:  clock,
	}, nil
}

// WriteLine appends one line to the active segment, rotating first if the
// clock has crossed a boundary.
func (w *RollingWriter) WriteLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	segment := w.clock().Format(w.layout)
	if w.file == nil || segment != w.segment {
		if w.file != nil {
			w.file.Close()
		}
		name := filepath.Join(w.dir, w.prefix+"_"+segment+w.ext)
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open segment %s: %w", name, err)
		}
		w.file = f
		w.segment = segment
	}

	if _, err := w.file.Write(line); err != nil {
		return err
	}
	_, err := w.file.Write([]byte{'\n'})
	return err
}

// CurrentSegment returns the path of the active segment file, if any.
func (w *RollingWriter) CurrentSegment() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.segment == "" {
		return ""
	}
	return filepath.Join(w.dir, w.prefix+"_"+w.segment+w.ext)
}

// SweepOlderThan deletes segments whose boundary timestamp is older than
// maxAge. Returns the number of files removed.
func (w *RollingWriter) SweepOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, err
	}
	cutoff := w.clock().Add(-maxAge)

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, w.prefix+"_") || !strings.HasSuffix(name, w.ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, w.prefix+"_"), w.ext)
		ts, err := time.ParseInLocation(w.layout, stamp, time.Local)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			if err := os.Remove(filepath.Join(w.dir, name)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (w *RollingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.segment = ""
	return err
}
