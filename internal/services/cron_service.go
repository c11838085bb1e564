package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/localserve/booking-backend/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Maintenance job names, also accepted by POST /admin/cron/:job
const (
	JobAuditCleanup  = "audit-cleanup"
	JobOverdueReport = "overdue-report"
)

const (
	// a confirmed booking this long past its end without completion is reported
	overdueGrace      = 24 * time.Hour
	overdueReportSize = 200
	jobTimeout        = 5 * time.Minute
)

// OverdueLister finds confirmed bookings that were never completed
type OverdueLister interface {
	ListOverdueConfirmed(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
}

// AuditCleaner removes expired audit logs
type AuditCleaner interface {
	CleanupOldAuditLogs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CronService manages scheduled maintenance jobs
type CronService struct {
	cron      *cron.Cron
	audit     AuditCleaner
	bookings  OverdueLister
	retention time.Duration
	logger    *logrus.Logger
	jobs      map[string]func(ctx context.Context) error
	now       func() time.Time
}

// NewCronService creates a new CronService
func NewCronService(audit AuditCleaner, bookings OverdueLister, retentionDays int, logger *logrus.Logger) *CronService {
	s := &CronService{
		cron:      cron.New(cron.WithSeconds()),
		audit:     audit,
		bookings:  bookings,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger,
		now:       time.Now,
	}
	s.jobs = map[string]func(ctx context.Context) error{
		JobAuditCleanup:  s.auditCleanupJob,
		JobOverdueReport: s.overdueReportJob,
	}
	return s
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	// Cron format: second minute hour day month weekday
	schedules := []struct {
		spec string
		job  string
		desc string
	}{
		{"0 0 2 * * *", JobAuditCleanup, "Audit log retention (daily at 2:00 AM)"},
		{"0 15 * * * *", JobOverdueReport, "Overdue booking report (hourly at :15)"},
	}

	for _, sc := range schedules {
		job := sc.job
		if _, err := s.cron.AddFunc(sc.spec, func() { s.run(context.Background(), job) }); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job, err)
		}
		s.logger.Infof("✓ Scheduled: %s", sc.desc)
	}

	s.cron.Start()
	s.logger.Info("✓ Cron service started successfully")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("✓ Cron service stopped")
}

// RunNow runs the named job immediately
func (s *CronService) RunNow(ctx context.Context, job string) error {
	if _, ok := s.jobs[job]; !ok {
		return models.NewValidationError("job", "unknown job %q", job)
	}
	return s.run(ctx, job)
}

func (s *CronService) run(ctx context.Context, job string) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	log := s.logger.WithField("job", job)
	log.Info("[CRON] Starting job")
	started := time.Now()

	if err := s.jobs[job](ctx); err != nil {
		log.WithError(err).Error("[CRON ERROR] Job failed")
		return err
	}
	log.WithField("duration_ms", time.Since(started).Milliseconds()).Info("[CRON] ✓ Job finished")
	return nil
}

func (s *CronService) auditCleanupJob(ctx context.Context) error {
	deleted, err := s.audit.CleanupOldAuditLogs(ctx, s.retention)
	if err != nil {
		return err
	}
	s.logger.WithField("deleted", deleted).Info("[CRON] Audit logs pruned")
	return nil
}

// overdueReportJob only reports; bookings are never completed on anyone's behalf
func (s *CronService) overdueReportJob(ctx context.Context) error {
	overdue, err := s.bookings.ListOverdueConfirmed(ctx, s.now().Add(-overdueGrace), overdueReportSize)
	if err != nil {
		return err
	}
	for _, b := range overdue {
		s.logger.WithFields(logrus.Fields{
			"booking_id":  b.ID,
			"provider_id": b.ProviderID,
			"end_time":    b.EndTime,
		}).Warn("[CRON] Confirmed booking past its end was never completed")
	}
	s.logger.WithField("count", len(overdue)).Info("[CRON] Overdue report finished")
	return nil
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
		"available": names,
	}
}
