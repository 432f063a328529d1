package sink

import (
	"context"
	"time"
)

// File writes one record per line to a rolling file in the configured
// directory, one segment per hour or day.
type File struct {
	writer *RollingWriter
}

// NewFile creates a rolling file sink writing <prefix>_<timestamp>.jsonl
// segments under dir.
func NewFile(dir, prefix string, roll Rolling, clock func() time.Time) (*File, error) {
	w, err := NewRollingWriter(dir, prefix, ".jsonl", roll, clock)
	if err != nil {
		return nil, err
	}
	return &File{writer: w}, nil
}

func (f *File) Send(_ context.Context, _ string, payload []byte) error {
	return f.writer.WriteLine(payload)
}

// CurrentSegment returns the path of the active output file.
func (f *File) CurrentSegment() string {
	return f.writer.CurrentSegment()
}

func (f *File) Close() error {
	return f.writer.Close()
}
