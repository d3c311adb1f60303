package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// BudgetNumberPrefix prefixes every budget number
const BudgetNumberPrefix = "PRES"

var budgetNumberPattern = regexp.MustCompile(`^PRES-\d{4}-\d{3,}$`)

// SequenceSource hands out per-prefix, per-year sequence numbers
type SequenceSource interface {
	NextSequence(ctx context.Context, prefix string, year int) (int, error)
}

// NumberSequenceService generates formatted budget numbers.
//
// Format: PRES-{YEAR}-{SEQUENCE}
// Example: PRES-2026-001, PRES-2026-042
type NumberSequenceService struct {
	source SequenceSource
	logger *zap.Logger
	now    func() time.Time
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(source SequenceSource, logger *zap.Logger) *NumberSequenceService {
	return &NumberSequenceService{
		source: source,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source; used by tests.
func (s *NumberSequenceService) SetClock(now func() time.Time) {
	s.now = now
}

// GenerateBudgetNumber returns the next budget number for the current year.
func (s *NumberSequenceService) GenerateBudgetNumber(ctx context.Context) (string, error) {
	year := s.now().Year()

	nextSeq, err := s.source.NextSequence(ctx, BudgetNumberPrefix, year)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("prefix", BudgetNumberPrefix),
			zap.Int("year", year),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate budget number: %w", err)
	}

	// Format: PRES-YYYY-NNN (zero-padded to 3 digits)
	number := fmt.Sprintf("%s-%d-%03d", BudgetNumberPrefix, year, nextSeq)

	s.logger.Debug("generated number",
		zap.String("number", number),
		zap.Int("year", year),
		zap.Int("sequence", nextSeq))

	return number, nil
}

// ValidBudgetNumber checks if a budget number follows PRES-YYYY-NNN.
func ValidBudgetNumber(number string) bool {
	return budgetNumberPattern.MatchString(number)
}
