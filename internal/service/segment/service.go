// Package segment resolves dynamic audience segments. Membership is
// computed from current customer data on every call and never cached, so a
// resumed campaign re-targets the audience as it stands now.
package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
)

type Service struct {
	segments  repository.SegmentRepository
	customers repository.CustomerRepository
}

func NewService(segments repository.SegmentRepository, customers repository.CustomerRepository) *Service {
	return &Service{segments: segments, customers: customers}
}

// Resolve returns the customers currently matching the segment predicate.
// An empty segment resolves to an empty slice, not an error.
func (s *Service) Resolve(ctx context.Context, segmentID, accountID uuid.UUID) ([]*model.Customer, error) {
	seg, err := s.segments.Get(ctx, segmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load segment: %w", err)
	}

	customers, err := s.customers.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	now := time.Now()
	matched := make([]*model.Customer, 0, len(customers))
	for _, c := range customers {
		if seg.Matches(c, now) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}
