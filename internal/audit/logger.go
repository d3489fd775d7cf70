// Package audit records the outcome of every tenant-scoped request and every tenant-mismatch violation.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/audit/domain"
	auditrepo "marketing-dashboard/backend/internal/audit/repository"
)

// FailureCounter counts audit records that could not be written.
type FailureCounter interface {
	AuditWriteFailed()
}

// Request describes the HTTP request a record is about.
type Request struct {
	UserID   string
	TenantID string
	Endpoint string
	Method   string
	IP       string
}

// Recorder is the audit sink used by the security gate and the tenant-scoped wrapper.
// Every method is best-effort: a failed write is logged and counted, never returned.
type Recorder interface {
	Access(ctx context.Context, req Request, status int, duration time.Duration)
	Failure(ctx context.Context, req Request, status int, duration time.Duration, message string)
	Violation(ctx context.Context, req Request, claimedTenantID, resolvedTenantID, message string)
}

// Logger implements Recorder over an audit repository.
type Logger struct {
	repo     auditrepo.Repository
	logger   *zap.Logger
	failures FailureCounter
	now      func() time.Time
}

// NewLogger returns a Logger persisting to repo. logger and failures may be nil.
func NewLogger(repo auditrepo.Repository, logger *zap.Logger, failures FailureCounter) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{repo: repo, logger: logger, failures: failures, now: time.Now}
}

// Access writes a success record with the handler duration.
func (l *Logger) Access(ctx context.Context, req Request, status int, duration time.Duration) {
	ms := duration.Milliseconds()
	l.write(ctx, l.entry(domain.KindAccess, req, status, &ms, nil))
}

// Failure writes a record for a request that failed after authorization.
func (l *Logger) Failure(ctx context.Context, req Request, status int, duration time.Duration, message string) {
	ms := duration.Milliseconds()
	l.write(ctx, l.entry(domain.KindFailure, req, status, &ms, &message))
}

// Violation writes a security-violation record carrying both tenant ids. The record is filed under the
// resolved tenant so that tenant's admins see attempts against their data. It completes before returning.
func (l *Logger) Violation(ctx context.Context, req Request, claimedTenantID, resolvedTenantID, message string) {
	e := l.entry(domain.KindSecurityViolation, req, 403, nil, &message)
	e.TenantID = resolvedTenantID
	e.ClaimedTenantID = &claimedTenantID
	e.ResolvedTenantID = &resolvedTenantID
	l.write(ctx, e)
}

func (l *Logger) entry(kind domain.Kind, req Request, status int, durationMs *int64, message *string) *domain.AuditLog {
	ip := req.IP
	if ip == "" {
		ip = "unknown"
	}
	return &domain.AuditLog{
		ID:           uuid.New().String(),
		Kind:         kind,
		UserID:       req.UserID,
		TenantID:     req.TenantID,
		Endpoint:     req.Endpoint,
		Method:       req.Method,
		StatusCode:   status,
		DurationMs:   durationMs,
		ErrorMessage: message,
		IP:           ip,
		CreatedAt:    l.now().UTC(),
	}
}

func (l *Logger) write(ctx context.Context, e *domain.AuditLog) {
	if l.repo == nil {
		return
	}
	// Detached so a client disconnect cannot drop the record.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.repo.Create(writeCtx, e); err != nil {
		if l.failures != nil {
			l.failures.AuditWriteFailed()
		}
		l.logger.Error("audit: write failed",
			zap.String("kind", string(e.Kind)),
			zap.String("tenant_id", e.TenantID),
			zap.String("endpoint", e.Endpoint),
			zap.Error(err),
		)
	}
}
