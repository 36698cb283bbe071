package runtime

import (
	"context"
	"time"

	"github.com/sentinelgate/sentinel/internal/decision"
	"github.com/sentinelgate/sentinel/internal/logger"
	"github.com/sentinelgate/sentinel/internal/store"
)

// storeSink mirrors terminal results into the SQLite audit table.
type storeSink struct {
	store *store.Store
}

// NewStoreSink wraps a store as an audit sink.
func NewStoreSink(s *store.Store) AuditSink {
	return &storeSink{store: s}
}

func (s *storeSink) Record(ctx context.Context, command string, res Result) error {
	d := decision.New(res.Allowed, res.RiskScore, res.Reason)
	return s.store.AppendAudit(ctx, command, d, res)
}

// loggerSink mirrors terminal results into the JSONL audit file.
type loggerSink struct {
	logger *logger.AuditLogger
}

// NewLoggerSink wraps an audit logger as an audit sink.
func NewLoggerSink(l *logger.AuditLogger) AuditSink {
	return &loggerSink{logger: l}
}

func (s *loggerSink) Record(_ context.Context, command string, res Result) error {
	return s.logger.Log(logger.Event{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Command:    command,
		Allowed:    res.Allowed,
		RiskScore:  res.RiskScore,
		Reason:     res.Reason,
		Status:     res.Status,
		RequestID:  res.RequestID,
		ReturnCode: res.ReturnCode,
	})
}

// storeApprovals adapts the store to the ApprovalCreator interface.
type storeApprovals struct {
	store *store.Store
}

// NewStoreApprovals wraps a store as an approval creator.
func NewStoreApprovals(s *store.Store) ApprovalCreator {
	return &storeApprovals{store: s}
}

func (a *storeApprovals) Create(ctx context.Context, command, ruleName, reason string) (string, error) {
	req, err := a.store.CreateRequest(ctx, command, ruleName, reason)
	if err != nil {
		return "", err
	}
	return req.ID, nil
}
