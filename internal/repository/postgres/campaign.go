package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, type, status, subject, template_data, target_all, target_user_ids,
	total_recipients, success_count, failure_count, skipped_count,
	delivered_count, open_count, click_count, bounce_count,
	scheduled_at, started_at, sent_at, last_error, created_by, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	var (
		c       domain.Campaign
		data    []byte
		targets pq.StringArray

		scheduled, started, sentAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Type, &c.Status, &c.Subject, &data, &c.TargetAll, &targets,
		&c.TotalRecipients, &c.SuccessCount, &c.FailureCount, &c.SkippedCount,
		&c.DeliveredCount, &c.OpenCount, &c.ClickCount, &c.BounceCount,
		&scheduled, &started, &sentAt, &c.LastError, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TemplateData = map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.TemplateData); err != nil {
			return nil, fmt.Errorf("decode template_data: %w", err)
		}
	}
	c.TargetUserIDs = []string(targets)
	c.ScheduledAt = timePtr(scheduled)
	c.StartedAt = timePtr(started)
	c.SentAt = timePtr(sentAt)
	return &c, nil
}

func statusArray(set []domain.CampaignStatus) pq.StringArray {
	out := make(pq.StringArray, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}

func encodeData(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func (r *CampaignRepo) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM email_campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) ListCampaigns(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where = fmt.Sprintf(" WHERE status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM email_campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	data, err := encodeData(c.TemplateData)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO email_campaigns
			(id, name, type, status, subject, template_data, target_all, target_user_ids,
			 scheduled_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, c.ID, c.Name, c.Type, c.Status, c.Subject, data, c.TargetAll, pq.Array(c.TargetUserIDs),
		c.ScheduledAt, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) UpdateCampaign(ctx context.Context, id string, u campaign.UpdateFields, allowed []domain.CampaignStatus) (bool, error) {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.Type != nil {
		add("type", *u.Type)
	}
	if u.TemplateData != nil {
		data, err := encodeData(u.TemplateData)
		if err != nil {
			return false, err
		}
		add("template_data", data)
	}
	if u.TargetAll != nil {
		add("target_all", *u.TargetAll)
	}
	if u.TargetUserIDs != nil {
		add("target_user_ids", pq.Array(u.TargetUserIDs))
	}
	if u.ScheduledAt != nil {
		add("scheduled_at", u.ScheduledAt.UTC())
		add("status", domain.CampaignScheduled)
	} else if u.ClearSchedule {
		sets = append(sets, "scheduled_at = NULL")
		add("status", domain.CampaignDraft)
	}
	sets = append(sets, "updated_at = NOW()")

	q := fmt.Sprintf("UPDATE email_campaigns SET %s WHERE id = $%d AND status = ANY($%d)",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, statusArray(allowed))

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("update campaign: %w", err)
	}
	return affected(res)
}

func (r *CampaignRepo) DeleteCampaign(ctx context.Context, id string, allowed []domain.CampaignStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM email_campaigns WHERE id = $1 AND status = ANY($2)`,
		id, statusArray(allowed))
	if err != nil {
		return false, fmt.Errorf("delete campaign: %w", err)
	}
	return affected(res)
}

// TransitionStatus is the double-send guard: the status check and the
// write are one statement.
func (r *CampaignRepo) TransitionStatus(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus, at time.Time) (bool, error) {
	q := `UPDATE email_campaigns SET status = $1, updated_at = $2 WHERE id = $3 AND status = ANY($4)`
	if to == domain.CampaignSending {
		q = `UPDATE email_campaigns
			SET status = $1, updated_at = $2, started_at = $2,
			    total_recipients = 0, success_count = 0, failure_count = 0, skipped_count = 0
			WHERE id = $3 AND status = ANY($4)`
	}
	res, err := r.db.ExecContext(ctx, q, to, at, id, statusArray(from))
	if err != nil {
		return false, fmt.Errorf("transition campaign: %w", err)
	}
	return affected(res)
}

func (r *CampaignRepo) SaveProgress(ctx context.Context, id string, p domain.Progress) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns
		SET total_recipients = $1, success_count = $2, failure_count = $3, skipped_count = $4, updated_at = NOW()
		WHERE id = $5 AND status = 'SENDING'
	`, p.TotalRecipients, p.SuccessCount, p.FailureCount, p.SkippedCount, id)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (r *CampaignRepo) FinishCampaign(ctx context.Context, id string, to domain.CampaignStatus, p domain.Progress, at time.Time, lastError string) (bool, error) {
	var sentAt interface{}
	if to == domain.CampaignSent {
		sentAt = at
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns
		SET status = $1, total_recipients = $2, success_count = $3, failure_count = $4, skipped_count = $5,
		    sent_at = COALESCE($6, sent_at), last_error = $7, updated_at = $8
		WHERE id = $9 AND status = 'SENDING'
	`, to, p.TotalRecipients, p.SuccessCount, p.FailureCount, p.SkippedCount, sentAt, lastError, at, id)
	if err != nil {
		return false, fmt.Errorf("finish campaign: %w", err)
	}
	return affected(res)
}

func (r *CampaignRepo) IncrementEngagement(ctx context.Context, id string, d campaign.EngagementDelta) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE email_campaigns
		SET delivered_count = delivered_count + $1, open_count = open_count + $2,
		    click_count = click_count + $3, bounce_count = bounce_count + $4
		WHERE id = $5
	`, d.Delivered, d.Opens, d.Clicks, d.Bounces, id)
	if err != nil {
		return fmt.Errorf("increment engagement: %w", err)
	}
	if ok, _ := affected(res); !ok {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) ListDueCampaigns(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+` FROM email_campaigns
		WHERE status = 'SCHEDULED' AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) CountCampaigns(ctx context.Context) (int, int, error) {
	var total, active int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status IN ('SENDING', 'SCHEDULED'))
		FROM email_campaigns
	`).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count campaigns: %w", err)
	}
	return total, active, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
