// Copyright 2025 James Ross
package adminapi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	auditMaxSize    = 10 * 1024 * 1024
	auditMaxBackups = 5
)

// auditLogger appends one JSON line per mutating admin request, grounded on
// the teacher's admin-api AuditLogger (size-based rotation, append-only
// writer) but trimmed to this surface's narrower AuditEntry.
type auditLogger struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	currentSize int64
}

func newAuditLogger(path string) (*auditLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audit log file: %w", err)
	}
	return &auditLogger{file: f, path: path, currentSize: stat.Size()}, nil
}

func (l *auditLogger) log(entry auditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > auditMaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate audit log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	l.currentSize += int64(n)
	return nil
}

func (l *auditLogger) rotate() error {
	l.file.Close()
	matches, _ := filepath.Glob(l.path + ".*")
	if len(matches) >= auditMaxBackups {
		os.Remove(l.path + ".0")
		for i := 1; i < len(matches); i++ {
			os.Rename(fmt.Sprintf("%s.%d", l.path, i), fmt.Sprintf("%s.%d", l.path, i-1))
		}
	}
	if err := os.Rename(l.path, fmt.Sprintf("%s.%d", l.path, auditMaxBackups-1)); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	l.currentSize = 0
	return nil
}

func (l *auditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
