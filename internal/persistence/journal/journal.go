// Package journal persists the per-tick record stream and the block audit
// trail as zstd-compressed JSONL files with hourly rotation. The tick journal
// is the source of truth for replay: a world rebuilt from genesis and fed the
// journal must reproduce every digest.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelbrush.dev/internal/sim/world"
)

type jsonlZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newJSONLZstdWriter(baseDir, prefix string) *jsonlZstdWriter {
	return &jsonlZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *jsonlZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *jsonlZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
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
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *jsonlZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *jsonlZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickJournal writes one compressed JSONL entry per tick.
type TickJournal struct{ w *jsonlZstdWriter }

func NewTickJournal(worldDir string) *TickJournal {
	return &TickJournal{w: newJSONLZstdWriter(filepath.Join(worldDir, "ticks"), "ticks")}
}

func (l *TickJournal) WriteTick(e world.TickLogEntry) error { return l.w.Write(e) }
func (l *TickJournal) Close() error                         { return l.w.Close() }

// AuditJournal writes compressed block-mutation audit entries.
type AuditJournal struct{ w *jsonlZstdWriter }

func NewAuditJournal(worldDir string) *AuditJournal {
	return &AuditJournal{w: newJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditJournal) WriteAudit(e world.AuditEntry) error { return l.w.Write(e) }
func (l *AuditJournal) Close() error                        { return l.w.Close() }
