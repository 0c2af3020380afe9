package traces

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/reusee/distill/logs"
)

// Recorder appends events to trace streams. Record never fails; a broken
// recorder stops recording.
type Recorder interface {
	Record(stream Stream, event any)
}

type nop struct{}

func (nop) Record(Stream, any) {}

var Nop Recorder = nop{}

// FileRecorder writes one JSON object per line, one file per stream, and syncs after each write.
type FileRecorder struct {
	dir    string
	logger logs.Logger

	mu     sync.Mutex
	files  map[Stream]*os.File
	failed bool
}

var _ Recorder = new(FileRecorder)

// Open returns Nop for an empty dir.
func Open(dir string, logger logs.Logger) Recorder {
	if dir == "" {
		return Nop
	}
	r := &FileRecorder{
		dir:    dir,
		logger: logger,
		files:  make(map[Stream]*os.File),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.fail(fmt.Errorf("create trace dir %q: %w", dir, err))
		return r
	}
	for _, stream := range Streams {
		path := filepath.Join(dir, stream.FileName())
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			r.fail(fmt.Errorf("open trace file %q: %w", path, err))
			return r
		}
		r.files[stream] = f
	}
	return r
}

func (r *FileRecorder) Dir() string {
	return r.dir
}

// Failed reports whether recording stopped after an error.
func (r *FileRecorder) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *FileRecorder) Record(stream Stream, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed {
		return
	}

	f, ok := r.files[stream]
	if !ok {
		r.fail(fmt.Errorf("unknown trace stream %q", stream))
		return
	}
	line, err := json.Marshal(event)
	if err != nil {
		r.fail(fmt.Errorf("marshal %s event: %w", stream, err))
		return
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		r.fail(fmt.Errorf("write %s: %w", f.Name(), err))
		return
	}
	if err := f.Sync(); err != nil {
		r.fail(fmt.Errorf("sync %s: %w", f.Name(), err))
		return
	}
}

// fail must be called with mu held, or before the recorder is shared.
func (r *FileRecorder) fail(err error) {
	r.failed = true
	if r.logger != nil {
		r.logger.Error("trace recording disabled", "dir", r.dir, "error", err)
	}
	for _, f := range r.files {
		_ = f.Close()
	}
	clear(r.files)
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, f := range r.files {
		errs = append(errs, f.Close())
	}
	clear(r.files)
	r.failed = true
	return errors.Join(errs...)
}
