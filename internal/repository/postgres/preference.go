package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/preference"
)

// PreferenceRepo implements preference.Repository against PostgreSQL.
type PreferenceRepo struct{ db *sql.DB }

// NewPreferenceRepo creates a Postgres-backed preference repository.
func NewPreferenceRepo(db *sql.DB) *PreferenceRepo { return &PreferenceRepo{db: db} }

const preferenceColumns = `user_id, sales_emails, offer_emails, new_product_emails,
	order_confirmation, order_updates, unsubscribed_all, email_verified, created_at, updated_at`

func scanPreference(row interface{ Scan(...interface{}) error }) (*domain.EmailPreference, error) {
	p := &domain.EmailPreference{}
	err := row.Scan(&p.UserID, &p.SalesEmails, &p.OfferEmails, &p.NewProductEmails,
		&p.OrderConfirmation, &p.OrderUpdates, &p.UnsubscribedAll, &p.EmailVerified,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PreferenceRepo) GetPreference(ctx context.Context, userID string) (*domain.EmailPreference, error) {
	p, err := scanPreference(r.db.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM email_preferences WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, preference.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return p, nil
}

func (r *PreferenceRepo) UpsertPreference(ctx context.Context, p *domain.EmailPreference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			sales_emails = EXCLUDED.sales_emails,
			offer_emails = EXCLUDED.offer_emails,
			new_product_emails = EXCLUDED.new_product_emails,
			order_confirmation = EXCLUDED.order_confirmation,
			order_updates = EXCLUDED.order_updates,
			unsubscribed_all = EXCLUDED.unsubscribed_all,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.SalesEmails, p.OfferEmails, p.NewProductEmails,
		p.OrderConfirmation, p.OrderUpdates, p.UnsubscribedAll, p.EmailVerified,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// InsertPreferenceIfMissing inserts p and falls back to reading the
// existing row when another writer created it first.
func (r *PreferenceRepo) InsertPreferenceIfMissing(ctx context.Context, p *domain.EmailPreference) (*domain.EmailPreference, error) {
	stored, err := scanPreference(r.db.QueryRowContext(ctx, `
		INSERT INTO email_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+preferenceColumns,
		p.UserID, p.SalesEmails, p.OfferEmails, p.NewProductEmails,
		p.OrderConfirmation, p.OrderUpdates, p.UnsubscribedAll, p.EmailVerified,
		p.CreatedAt, p.UpdatedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return r.GetPreference(ctx, p.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert preference: %w", err)
	}
	return stored, nil
}

func (r *PreferenceRepo) ListSubscribedUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM email_preferences
		WHERE unsubscribed_all = FALSE
		ORDER BY created_at, user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list subscribed users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *PreferenceRepo) CountPreferences(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_preferences`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count preferences: %w", err)
	}
	return n, nil
}
