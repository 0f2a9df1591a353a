package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/golabing/console/internal/models"
	appErrors "github.com/golabing/console/pkg/errors"
	"github.com/golabing/console/pkg/jobs"
)

const auditJobType = "audit.write"

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditOptions configures the asynchronous audit writer.
type AuditOptions struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// AuditService records admin mutations without blocking request handling.
type AuditService struct {
	repo   auditStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs an AuditService. A nil repo disables recording.
func NewAuditService(repo auditStore, opts AuditOptions, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, logger: logger}
	if repo != nil {
		svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
			Workers:    opts.Workers,
			BufferSize: opts.Workers * 64,
			MaxRetries: opts.MaxRetries,
			RetryDelay: opts.RetryDelay,
			Logger:     logger,
		})
	}
	return svc
}

// Enabled reports whether audit entries are persisted.
func (s *AuditService) Enabled() bool {
	return s != nil && s.queue != nil
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	if s.Enabled() {
		s.queue.Start(ctx)
	}
}

// Stop drains the writer workers.
func (s *AuditService) Stop() {
	if s.Enabled() {
		s.queue.Stop()
	}
}

// Record enqueues an audit entry for actor. Failures are logged, never returned.
func (s *AuditService) Record(actor models.Actor, action, resource, resourceID string, details interface{}) {
	if !s.Enabled() {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if actor.User != nil {
		entry.ActorID = actor.User.ID
		entry.ActorEmail = actor.User.Email
		entry.ActorRole = string(actor.User.Role)
		entry.Impersonating = actor.User.Impersonating
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if details != nil {
		encoded, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("audit details not encodable", zap.String("action", action), zap.Error(err))
		} else {
			entry.Details = encoded
		}
	}

	if err := s.queue.TryEnqueue(jobs.Job{Type: auditJobType, Payload: entry}); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			s.logger.Warn("audit queue full, entry dropped", zap.String("action", action))
			return
		}
		s.logger.Warn("audit entry not queued", zap.String("action", action), zap.Error(err))
	}
}

// List returns persisted audit entries.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	if !s.Enabled() {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "audit trail is disabled")
	}
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Create(ctx, entry)
}
