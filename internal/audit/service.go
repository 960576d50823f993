package audit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultRetentionDays   = 30
	DefaultQueryLimit      = 100
	MaxQueryLimit          = 1000
	MaxConsecutiveFailures = 3
)

// ErrEventNotFound is returned when an audit event does not exist.
var ErrEventNotFound = errors.New("audit event not found")

// Service records and queries audit events and prunes old ones.
type Service struct {
	logger        zerolog.Logger
	repo          *Repository
	retentionDays int

	healthMu            sync.RWMutex
	healthy             bool
	consecutiveFailures int
}

// NewService creates a new audit service. A non positive retentionDays uses
// DefaultRetentionDays.
func NewService(dbPair DBPair, retentionDays int, logger zerolog.Logger) *Service {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Service{
		logger:        logger.With().Str("component", "audit").Logger(),
		repo:          NewRepository(dbPair),
		retentionDays: retentionDays,
		healthy:       true,
	}
}

// RecordEvent writes a new audit event.
func (s *Service) RecordEvent(input WriteEventInput) (*AuditEvent, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("unknown audit event type %q", input.Type)
	}
	s.logger.Debug().
		Str("type", string(input.Type)).
		Str("device_id", input.DeviceID).
		Str("command", input.Command).
		Msg(input.Message)

	event, err := s.repo.InsertEvent(input)
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("failed to record audit event: %w", err)
	}
	s.recordSuccess()
	return event, nil
}

// Record writes an event and logs instead of returning failures. It is used
// from device callbacks that have nobody to report to.
func (s *Service) Record(input WriteEventInput) {
	if _, err := s.RecordEvent(input); err != nil {
		s.logger.Warn().Err(err).Str("type", string(input.Type)).Msg("Audit event dropped")
	}
}

// QueryEvents returns a page of events, the total count and whether more
// events follow the page.
func (s *Service) QueryEvents(filters EventQueryFilters) ([]AuditEvent, int, bool, error) {
	if filters.Limit <= 0 {
		filters.Limit = DefaultQueryLimit
	}
	if filters.Limit > MaxQueryLimit {
		filters.Limit = MaxQueryLimit
	}

	events, total, err := s.repo.QueryEvents(filters)
	if err != nil {
		s.recordFailure()
		return nil, 0, false, fmt.Errorf("failed to query audit events: %w", err)
	}
	s.recordSuccess()
	return events, total, filters.Offset+len(events) < total, nil
}

// GetEvent retrieves a single event by ID.
func (s *Service) GetEvent(eventID string) (*AuditEvent, error) {
	event, err := s.repo.GetEvent(eventID)
	if err != nil {
		s.recordFailure()
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	s.recordSuccess()
	if event == nil {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	return event, nil
}

// Prune deletes events older than the retention window.
func (s *Service) Prune() (int64, error) {
	cutoff := s.repo.now().AddDate(0, 0, -s.retentionDays)
	count, err := s.repo.PruneBefore(cutoff)
	if err != nil {
		s.recordFailure()
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}
	s.recordSuccess()
	return count, nil
}

// SchedulePrune registers the prune job on the scheduler using a cron spec
// such as "@daily".
func (s *Service) SchedulePrune(scheduler *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := scheduler.AddFunc(spec, s.runPrune)
	if err != nil {
		return 0, fmt.Errorf("schedule audit prune %q: %w", spec, err)
	}
	s.logger.Info().Str("schedule", spec).Int("retention_days", s.retentionDays).Msg("Audit prune scheduled")
	return id, nil
}

func (s *Service) runPrune() {
	count, err := s.Prune()
	if err != nil {
		s.logger.Error().Err(err).Msg("Audit prune failed")
		return
	}
	if count > 0 {
		s.logger.Info().Int64("count", count).Msg("Pruned audit events")
	}
}

// IsHealthy reports false after MaxConsecutiveFailures database errors in a row.
func (s *Service) IsHealthy() bool {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.healthy
}

func (s *Service) recordSuccess() {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.consecutiveFailures = 0
	s.healthy = true
}

func (s *Service) recordFailure() {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.consecutiveFailures++
	if s.consecutiveFailures >= MaxConsecutiveFailures {
		s.healthy = false
	}
}

