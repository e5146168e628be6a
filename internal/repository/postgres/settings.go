package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/settings"
)

// SettingsRepo implements settings.Repository against PostgreSQL. The
// table holds a single row.
type SettingsRepo struct{ db *sql.DB }

// NewSettingsRepo creates a Postgres-backed settings repository.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

func (r *SettingsRepo) GetSettings(ctx context.Context) (*domain.AdminEmailSettings, error) {
	s := &domain.AdminEmailSettings{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, system_enabled, maintenance_mode,
		       enable_sales_emails, enable_offer_emails, enable_new_product_emails, enable_order_emails,
		       from_name, from_email, reply_to, max_emails_per_day,
		       updated_by, updated_by_name, updated_at
		FROM email_settings
		ORDER BY updated_at DESC
		LIMIT 1
	`).Scan(
		&s.ID, &s.SystemEnabled, &s.MaintenanceMode,
		&s.EnableSalesEmails, &s.EnableOfferEmails, &s.EnableNewProductEmails, &s.EnableOrderEmails,
		&s.FromName, &s.FromEmail, &s.ReplyTo, &s.MaxEmailsPerRecipientPerDay,
		&s.UpdatedBy, &s.UpdatedByName, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

func (r *SettingsRepo) SaveSettings(ctx context.Context, s *domain.AdminEmailSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_settings
			(id, system_enabled, maintenance_mode,
			 enable_sales_emails, enable_offer_emails, enable_new_product_emails, enable_order_emails,
			 from_name, from_email, reply_to, max_emails_per_day,
			 updated_by, updated_by_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			system_enabled = EXCLUDED.system_enabled,
			maintenance_mode = EXCLUDED.maintenance_mode,
			enable_sales_emails = EXCLUDED.enable_sales_emails,
			enable_offer_emails = EXCLUDED.enable_offer_emails,
			enable_new_product_emails = EXCLUDED.enable_new_product_emails,
			enable_order_emails = EXCLUDED.enable_order_emails,
			from_name = EXCLUDED.from_name,
			from_email = EXCLUDED.from_email,
			reply_to = EXCLUDED.reply_to,
			max_emails_per_day = EXCLUDED.max_emails_per_day,
			updated_by = EXCLUDED.updated_by,
			updated_by_name = EXCLUDED.updated_by_name,
			updated_at = EXCLUDED.updated_at
	`, s.ID, s.SystemEnabled, s.MaintenanceMode,
		s.EnableSalesEmails, s.EnableOfferEmails, s.EnableNewProductEmails, s.EnableOrderEmails,
		s.FromName, s.FromEmail, s.ReplyTo, s.MaxEmailsPerRecipientPerDay,
		s.UpdatedBy, s.UpdatedByName, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
