// Package logger writes the JSONL audit mirror. The durable trail lives in
// the store; this file exists so operators can tail decisions without a
// sqlite client.
package logger

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/sentinelgate/sentinel/internal/redact"
)

// Event is one audited command outcome.
type Event struct {
	Timestamp  string `json:"timestamp"`
	Command    string `json:"command"`
	Allowed    bool   `json:"allowed"`
	RiskScore  int    `json:"risk_score"`
	Reason     string `json:"reason"`
	Status     string `json:"status,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	ReturnCode *int   `json:"returncode,omitempty"`
}

// AuditLogger appends events to a JSONL file. Safe for concurrent use.
type AuditLogger struct {
	file *os.File
	mu   sync.Mutex
}

// New opens (or creates) the audit file. Owner-only permissions: even after
// redaction, commands are sensitive.
func New(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &AuditLogger{file: file}, nil
}

// Log redacts and appends a single event.
func (l *AuditLogger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Command = redact.Redact(event.Command)
	event.Reason = redact.Redact(event.Reason)

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *AuditLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
