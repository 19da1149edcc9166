package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bitsmakerde/planemirror/internal/security"
	"github.com/bitsmakerde/planemirror/internal/timeutil"
)

// FileExtension is the extension for recorded plane-event sessions.
const FileExtension = ".arlog"

// logVersion is bumped when the session file schema changes.
const logVersion = "1"

// LogHeader is the first line of a session file.
type LogHeader struct {
	Version   string `json:"version"`
	CreatedNs int64  `json:"created_ns"`
	Source    string `json:"source"`
}

// Recorder appends plane events to a session file: a JSON header line
// followed by one JSON event per line.
type Recorder struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	count uint64
}

// NewRecorder creates the session file and writes its header. source is a
// free-form label for where the events came from (e.g. the bridge address).
// The path must carry the session extension and stay within the working or
// temp directory.
func NewRecorder(path, source string) (*Recorder, error) {
	if ext := filepath.Ext(path); ext != FileExtension {
		return nil, fmt.Errorf("session file must have %s extension, got %q", FileExtension, ext)
	}
	if err := security.ValidateExportPath(path); err != nil {
		return nil, fmt.Errorf("session file path rejected: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create session file: %w", err)
	}
	w := bufio.NewWriter(f)
	hdr, err := json.Marshal(LogHeader{
		Version:   logVersion,
		CreatedNs: time.Now().UnixNano(),
		Source:    source,
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := w.Write(append(hdr, '\n')); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write session header: %w", err)
	}
	return &Recorder{f: f, w: w}, nil
}

// Record appends one event.
func (r *Recorder) Record(ev PlaneEvent) error {
	data, err := MarshalEvent(ev)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return fmt.Errorf("recorder is closed")
	}
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	r.count++
	return nil
}

// Count returns the number of recorded events.
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes and closes the session file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	ferr := r.w.Flush()
	cerr := r.f.Close()
	r.f = nil
	if ferr != nil {
		return ferr
	}
	return cerr
}

// Replayer reads a recorded session and feeds it to a handler, pacing events
// by their recorded timestamps. It is the offline stand-in for the UDP
// listener.
type Replayer struct {
	header LogHeader
	file   *os.File
	sc     *bufio.Scanner
	clock  timeutil.Clock
}

// OpenReplay opens a session file and reads its header.
func OpenReplay(path string) (*Replayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, maxDatagramSize), maxDatagramSize)
	if !sc.Scan() {
		_ = f.Close()
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read session header: %w", err)
		}
		return nil, fmt.Errorf("session file is empty")
	}
	var hdr LogHeader
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("parse session header: %w", err)
	}
	return &Replayer{header: hdr, file: f, sc: sc, clock: timeutil.RealClock{}}, nil
}

// Header returns the session metadata.
func (r *Replayer) Header() LogHeader { return r.header }

// Replay feeds every event to the handler in file order. speed scales the
// recorded inter-event gaps (1 = real time); speed <= 0 replays without
// pacing. Returns the number of events delivered.
func (r *Replayer) Replay(ctx context.Context, speed float64, handler Handler) (int, error) {
	var delivered int
	var prevNs int64
	for r.sc.Scan() {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := ParseEvent(line)
		if err != nil {
			log.Printf("[provider] skipping bad session line: %v", err)
			continue
		}
		if speed > 0 && prevNs != 0 && ev.UnixNanos > prevNs {
			gap := time.Duration(float64(ev.UnixNanos-prevNs) / speed)
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-r.clock.After(gap):
			}
		}
		prevNs = ev.UnixNanos
		handler(ev)
		delivered++
	}
	if err := r.sc.Err(); err != nil && err != io.EOF {
		return delivered, fmt.Errorf("read session file: %w", err)
	}
	return delivered, nil
}

// Close closes the session file.
func (r *Replayer) Close() error {
	return r.file.Close()
}
