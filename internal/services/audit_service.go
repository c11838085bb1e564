package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/database"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// Audit actions
const (
	AuditActionRejectedTransition = "booking_transition_rejected"
	AuditActionSuspiciousActivity = "suspicious_activity"
	AuditActionAdminJob           = "admin_job_triggered"
)

// AuditService handles audit logging for security events
type AuditService struct {
	db      database.DB
	logger  *logrus.Logger
	enabled bool
}

// NewAuditService creates a new audit service. A disabled service only logs.
func NewAuditService(db database.DB, logger *logrus.Logger, enabled bool) *AuditService {
	return &AuditService{
		db:      db,
		logger:  logger,
		enabled: enabled,
	}
}

// AuditEvent represents a security event to be logged
type AuditEvent struct {
	UserID     *uuid.UUID             // nil for unauthenticated callers
	Action     string                 // e.g. "booking_transition_rejected"
	EntityType string                 // e.g. "booking"
	EntityID   *uuid.UUID             // nil when no entity is involved
	IPAddress  string                 // Client IP address
	UserAgent  string                 // Client user agent
	Details    map[string]interface{} // stored as JSONB
}

// RejectedTransition describes a transition refused because the actor lacked authority
type RejectedTransition struct {
	BookingID  uuid.UUID
	ActorID    uuid.UUID
	ActorRole  models.UserRole
	Transition models.Transition
	Reason     string
	Meta       models.RequestMeta
}

// LogRejectedTransition records an InvalidActor rejection
func (s *AuditService) LogRejectedTransition(ctx context.Context, r RejectedTransition) error {
	details := map[string]interface{}{
		"kind":        r.Transition.Kind,
		"to":          r.Transition.To,
		"actor_role":  r.ActorRole,
		"reason":      r.Reason,
		"device_info": utils.ParseUserAgent(r.Meta.UserAgent),
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     &r.ActorID,
		Action:     AuditActionRejectedTransition,
		EntityType: "booking",
		EntityID:   &r.BookingID,
		IPAddress:  r.Meta.IPAddress,
		UserAgent:  r.Meta.UserAgent,
		Details:    details,
	})
}

// LogSuspiciousActivity logs suspicious security events such as bad admin keys
func (s *AuditService) LogSuspiciousActivity(ctx context.Context, userID *uuid.UUID, activity string, meta models.RequestMeta, details map[string]interface{}) error {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["device_info"] = utils.ParseUserAgent(meta.UserAgent)
	details["activity"] = activity

	return s.logEvent(ctx, AuditEvent{
		UserID:     userID,
		Action:     AuditActionSuspiciousActivity,
		EntityType: "security",
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    details,
	})
}

// LogAdminJob records a manually triggered maintenance job
func (s *AuditService) LogAdminJob(ctx context.Context, job string, meta models.RequestMeta) error {
	return s.logEvent(ctx, AuditEvent{
		Action:     AuditActionAdminJob,
		EntityType: "cron",
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Details:    map[string]interface{}{"job": job},
	})
}

// logEvent writes to the audit_logs table
func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) error {
	fields := logrus.Fields{
		"action":      event.Action,
		"entity_type": event.EntityType,
		"ip_address":  event.IPAddress,
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.EntityID != nil {
		fields["entity_id"] = *event.EntityID
	}
	s.logger.WithFields(fields).Warn("Security audit event")

	if !s.enabled {
		return nil
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`,
		event.UserID,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.IPAddress,
		event.UserAgent,
		string(details),
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event: %w", err)
	}
	return nil
}

// CleanupOldAuditLogs removes audit logs older than the specified duration
func (s *AuditService) CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-olderThan)

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old audit logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
