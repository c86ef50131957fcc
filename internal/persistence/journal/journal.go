// Package journal keeps an append-only record of session events
// (connections, grants, deaths, goal) as compressed JSONL, rotated
// hourly. Useful for reconstructing what a session did after the fact.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Entry is one journaled event.
type Entry struct {
	ID     string         `json:"id"`
	Time   string         `json:"time"`
	Slot   string         `json:"slot"`
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}

type Journal struct {
	baseDir string
	slot    string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func New(dataDir, slot string) *Journal {
	return &Journal{
		baseDir: filepath.Join(dataDir, "journal"),
		slot:    slot,
	}
}

// Record appends one event. Errors are swallowed; journaling must never
// interfere with the sync pass.
func (j *Journal) Record(kind string, detail map[string]any) {
	_ = j.write(Entry{
		ID:     uuid.NewString(),
		Time:   time.Now().UTC().Format(time.RFC3339Nano),
		Slot:   j.slot,
		Kind:   kind,
		Detail: detail,
	})
}

func (j *Journal) write(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	path := j.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 128*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err1 error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err1 = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	return err1
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("session-%s.jsonl.zst", hour))
}
