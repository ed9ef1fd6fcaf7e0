package security

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ironbank/internal/domain"
	"ironbank/internal/infra/tracer"
)

// RetentionPolicy controls how much of the audit journal is kept.
type RetentionPolicy struct {
	MaxAge  time.Duration // 0 = no limit
	MaxSize int64         // bytes; 0 = no limit
}

// FileAuditLogger implements domain.AuditLogger as an append-only JSONL file.
type FileAuditLogger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	retention *RetentionPolicy
	now       func() time.Time
}

// NewFileAuditLogger opens (or creates, mode 0600) the journal at path.
func NewFileAuditLogger(path string) (*FileAuditLogger, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileAuditLogger{file: f, path: path, now: time.Now}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// SetRetention configures the policy applied by EnforceRetention.
func (a *FileAuditLogger) SetRetention(policy RetentionPolicy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retention = &policy
}

// Path returns the journal location.
func (a *FileAuditLogger) Path() string { return a.path }

// Log appends event as one JSON line and mirrors it onto the active span.
func (a *FileAuditLogger) Log(ctx context.Context, event domain.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrIO, err.Error())
	}

	a.mu.Lock()
	_, err = a.file.Write(append(data, '\n'))
	a.mu.Unlock()
	if err != nil {
		return domain.NewDomainError("FileAuditLogger.Log", domain.ErrIO, err.Error())
	}

	mirrorToSpan(ctx, event)
	return nil
}

// mirrorToSpan records event on the active span, if any.
func mirrorToSpan(ctx context.Context, event domain.AuditEvent) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(event.Detail)+1)
	if event.Resource != "" {
		attrs = append(attrs, tracer.StringAttr("audit.resource", event.Resource))
	}
	for k, v := range event.Detail {
		attrs = append(attrs, tracer.StringAttr("audit."+k, v))
	}
	span.AddEvent("audit."+string(event.Type), trace.WithAttributes(attrs...))
}

// Recent scans the journal and returns matching entries, newest first.
// Lines that do not decode are skipped.
func (a *FileAuditLogger) Recent(_ context.Context, q domain.AuditQuery) ([]domain.AuditEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if err != nil {
		return nil, domain.FromOSError("FileAuditLogger.Recent", err)
	}
	defer f.Close()

	var out []domain.AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e domain.AuditEvent
		if json.Unmarshal(scanner.Bytes(), &e) != nil {
			continue
		}
		if matchesQuery(e, q) {
			out = append(out, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.NewDomainError("FileAuditLogger.Recent", domain.ErrIO, err.Error())
	}

	slices.Reverse(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchesQuery(e domain.AuditEvent, q domain.AuditQuery) bool {
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	return q.Since.IsZero() || !e.Timestamp.Before(q.Since)
}

// Close closes the journal file.
func (a *FileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// EnforceRetention rewrites the journal keeping only entries within the
// policy: entries older than MaxAge go first, then the oldest lines until the
// file fits MaxSize. It returns the number of entries removed.
func (a *FileAuditLogger) EnforceRetention(_ context.Context) (removed int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	policy := a.retention
	if policy == nil || (policy.MaxAge == 0 && policy.MaxSize == 0) {
		return 0, nil
	}

	if policy.MaxAge == 0 {
		info, err := os.Stat(a.path)
		if err != nil {
			return 0, fmt.Errorf("stat audit log: %w", err)
		}
		if info.Size() <= policy.MaxSize {
			return 0, nil
		}
	}

	var cutoff time.Time
	if policy.MaxAge > 0 {
		cutoff = a.now().Add(-policy.MaxAge)
	}

	if err := a.file.Close(); err != nil {
		return 0, fmt.Errorf("close for retention: %w", err)
	}
	// Whatever happens below, leave the logger writable.
	defer func() {
		f, oerr := openAppend(a.path)
		if oerr != nil && err == nil {
			err = fmt.Errorf("reopen after retention: %w", oerr)
		}
		if f != nil {
			a.file = f
		}
	}()

	kept, keptSize, dropped, err := readRetained(a.path, cutoff)
	if err != nil {
		return 0, err
	}
	removed = dropped

	if policy.MaxSize > 0 {
		for len(kept) > 0 && keptSize > policy.MaxSize {
			keptSize -= int64(len(kept[0])) + 1
			kept = kept[1:]
			removed++
		}
	}

	tmpPath := a.path + ".tmp"
	if err := writeLines(tmpPath, kept); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("rename temp file: %w", err)
	}
	return removed, nil
}

func readRetained(path string, cutoff time.Time) (kept [][]byte, size int64, dropped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open for reading: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !cutoff.IsZero() {
			var entry struct {
				Timestamp time.Time `json:"timestamp"`
			}
			if json.Unmarshal(line, &entry) == nil && !entry.Timestamp.IsZero() && entry.Timestamp.Before(cutoff) {
				dropped++
				continue
			}
		}
		kept = append(kept, append([]byte(nil), line...))
		size += int64(len(line)) + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, 0, fmt.Errorf("scan audit log: %w", err)
	}
	return kept, size, dropped, nil
}

func writeLines(path string, lines [][]byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	return f.Close()
}
