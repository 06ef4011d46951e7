// Package analytics is the read side: campaign and dashboard summaries
// aggregated from message and campaign rows, with revenue attributed from
// the payment ledger. No method here writes anything.
package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
)

type Service struct {
	campaigns repository.CampaignRepository
	messages  repository.MessageRepository
	payments  repository.PaymentRepository
}

func NewService(campaigns repository.CampaignRepository, messages repository.MessageRepository, payments repository.PaymentRepository) *Service {
	return &Service{campaigns: campaigns, messages: messages, payments: payments}
}

// Summarize aggregates one campaign's message rows plus attributed revenue.
// A campaign with no messages yields zeroed metrics, not an error. Opened
// and clicked messages were delivered, so they count toward sent as well.
func (s *Service) Summarize(ctx context.Context, campaignID uuid.UUID) (*model.CampaignMetrics, error) {
	counts, err := s.messages.CountByStatus(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	revenue, err := s.payments.SumByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	opened := counts[model.MessageStatusOpened]
	clicked := counts[model.MessageStatusClicked]
	return &model.CampaignMetrics{
		CampaignID: campaignID,
		Sent:       counts[model.MessageStatusSent] + opened + clicked,
		Opened:     opened + clicked,
		Clicked:    clicked,
		Failed:     counts[model.MessageStatusFailed],
		Skipped:    counts[model.MessageStatusSkipped],
		Revenue:    revenue,
	}, nil
}

// DashboardSummary aggregates across all of an account's campaigns.
func (s *Service) DashboardSummary(ctx context.Context, accountID uuid.UUID) (*model.DashboardMetrics, error) {
	byStatus, err := s.campaigns.CountByStatus(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count campaigns: %w", err)
	}

	msgCounts, err := s.messages.CountByStatusForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	revenue, err := s.payments.SumByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}

	opened := msgCounts[model.MessageStatusOpened]
	clicked := msgCounts[model.MessageStatusClicked]
	return &model.DashboardMetrics{
		AccountID:         accountID,
		CampaignsByStatus: byStatus,
		MessagesSent:      msgCounts[model.MessageStatusSent] + opened + clicked,
		MessagesOpened:    opened + clicked,
		MessagesClicked:   clicked,
		MessagesFailed:    msgCounts[model.MessageStatusFailed],
		Revenue:           revenue,
	}, nil
}

// ExportFormat selects the serialization for metric exports.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// Export renders an account's per-campaign metrics in the requested format.
func (s *Service) Export(ctx context.Context, accountID uuid.UUID, format ExportFormat) ([]byte, string, error) {
	campaigns, err := s.campaigns.List(ctx, accountID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list campaigns: %w", err)
	}

	rows := make([]*exportRow, 0, len(campaigns))
	for _, c := range campaigns {
		m, err := s.Summarize(ctx, c.ID)
		if err != nil {
			return nil, "", err
		}
		rows = append(rows, &exportRow{
			CampaignID: c.ID.String(),
			Name:       c.Name,
			Status:     string(c.Status),
			Sent:       m.Sent,
			Opened:     m.Opened,
			Clicked:    m.Clicked,
			Failed:     m.Failed,
			Skipped:    m.Skipped,
			Revenue:    m.Revenue,
		})
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode export: %w", err)
		}
		return data, "application/json", nil
	case FormatCSV:
		data, err := renderCSV(rows)
		if err != nil {
			return nil, "", err
		}
		return data, "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

type exportRow struct {
	CampaignID string  `json:"campaign_id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Sent       int     `json:"sent"`
	Opened     int     `json:"opened"`
	Clicked    int     `json:"clicked"`
	Failed     int     `json:"failed"`
	Skipped    int     `json:"skipped"`
	Revenue    float64 `json:"revenue"`
}

func renderCSV(rows []*exportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"campaign_id", "name", "status", "sent", "opened", "clicked", "failed", "skipped", "revenue"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.CampaignID, r.Name, r.Status,
			strconv.Itoa(r.Sent), strconv.Itoa(r.Opened), strconv.Itoa(r.Clicked),
			strconv.Itoa(r.Failed), strconv.Itoa(r.Skipped),
			strconv.FormatFloat(r.Revenue, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
