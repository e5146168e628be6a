package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
)

// EmailLogRepo implements emaillog.Repository against PostgreSQL. Per-status
// totals live in email_status_counts and move in the same transaction as
// the row they describe, so reporting never scans email_logs.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log repository.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

const logColumns = `id, COALESCE(campaign_id, ''), user_id, email, type, subject, status, reason, error,
	COALESCE(message_id, ''), created_at, sent_at, delivered_at, opened_at, clicked_at, bounced_at`

func scanLog(row interface{ Scan(...interface{}) error }) (*domain.EmailLog, error) {
	var (
		l domain.EmailLog

		sent, delivered, opened, clicked, bounced sql.NullTime
	)
	err := row.Scan(&l.ID, &l.CampaignID, &l.UserID, &l.Email, &l.Type, &l.Subject, &l.Status,
		&l.Reason, &l.Error, &l.MessageID, &l.CreatedAt, &sent, &delivered, &opened, &clicked, &bounced)
	if err != nil {
		return nil, err
	}
	l.SentAt = timePtr(sent)
	l.DeliveredAt = timePtr(delivered)
	l.OpenedAt = timePtr(opened)
	l.ClickedAt = timePtr(clicked)
	l.BouncedAt = timePtr(bounced)
	return &l, nil
}

const bumpCount = `
	INSERT INTO email_status_counts (status, count) VALUES ($1, $2)
	ON CONFLICT (status) DO UPDATE SET count = email_status_counts.count + EXCLUDED.count`

func (r *EmailLogRepo) InsertLog(ctx context.Context, l *domain.EmailLog) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO email_logs
				(id, campaign_id, user_id, email, type, subject, status, reason, error, message_id, created_at, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, l.ID, nullString(l.CampaignID), l.UserID, l.Email, l.Type, l.Subject, l.Status,
			l.Reason, l.Error, nullString(l.MessageID), l.CreatedAt, l.SentAt)
		if err != nil {
			return fmt.Errorf("insert email log: %w", err)
		}
		if _, err := tx.ExecContext(ctx, bumpCount, l.Status, 1); err != nil {
			return fmt.Errorf("bump status count: %w", err)
		}
		return nil
	})
}

func (r *EmailLogRepo) GetLogByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	l, err := scanLog(r.db.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM email_logs WHERE message_id = $1`, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, emaillog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email log: %w", err)
	}
	return l, nil
}

// timestampColumn is the column stamped when a log enters status.
var timestampColumn = map[domain.LogStatus]string{
	domain.LogDelivered: "delivered_at",
	domain.LogOpened:    "opened_at",
	domain.LogClicked:   "clicked_at",
	domain.LogBounced:   "bounced_at",
}

func (r *EmailLogRepo) UpgradeLogStatus(ctx context.Context, id string, from, to domain.LogStatus, at time.Time) (bool, error) {
	col, ok := timestampColumn[to]
	if !ok {
		return false, emaillog.ErrInvalidStatus
	}
	var changed bool
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE email_logs SET status = $1, %s = $2 WHERE id = $3 AND status = $4`, col),
			to, at, id, from)
		if err != nil {
			return fmt.Errorf("upgrade email log: %w", err)
		}
		if changed, err = affected(res); err != nil || !changed {
			return err
		}
		if _, err := tx.ExecContext(ctx, bumpCount, from, -1); err != nil {
			return fmt.Errorf("bump status count: %w", err)
		}
		if _, err := tx.ExecContext(ctx, bumpCount, to, 1); err != nil {
			return fmt.Errorf("bump status count: %w", err)
		}
		return nil
	})
	return changed, err
}

func (r *EmailLogRepo) ListLogs(ctx context.Context, f emaillog.ListFilter) ([]domain.EmailLog, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1
	add := func(col, val string) {
		if val == "" {
			return
		}
		where += fmt.Sprintf(" AND %s = $%d", col, idx)
		args = append(args, val)
		idx++
	}
	add("status", f.Status)
	add("campaign_id", f.CampaignID)
	add("user_id", f.UserID)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count email logs: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + logColumns + ` FROM email_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan email log: %w", err)
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

func (r *EmailLogRepo) StatusCounts(ctx context.Context) (domain.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, count FROM email_status_counts`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	out := make(domain.StatusCounts)
	for rows.Next() {
		var st domain.LogStatus
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[st] = n
	}
	return out, rows.Err()
}
