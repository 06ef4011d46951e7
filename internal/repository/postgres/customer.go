package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	apperrors "github.com/aimkt/marketing-api/pkg/errors"
)

type customerRepository struct {
	BaseRepository
}

func NewCustomerRepository(base BaseRepository) repository.CustomerRepository {
	return &customerRepository{base}
}

const customerColumns = `
	id, account_id, email, phone, first_name, last_name, language, timezone,
	tags, email_opt_in, whatsapp_opt_in, avg_order_value, last_purchase_at,
	created_at, updated_at
`

func (r *customerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	var c model.Customer
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("customer", err)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

func (r *customerRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE account_id = $1
		ORDER BY created_at ASC
	`

	var customers []*model.Customer
	if err := r.db.SelectContext(ctx, &customers, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

type segmentRepository struct {
	BaseRepository
}

func NewSegmentRepository(base BaseRepository) repository.SegmentRepository {
	return &segmentRepository{base}
}

func (r *segmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Segment, error) {
	query := `
		SELECT id, account_id, name, description, tags, min_order_value,
			purchased_within_days, created_at, updated_at
		FROM segments
		WHERE id = $1
	`

	var s model.Segment
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("segment", err)
		}
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &s, nil
}
