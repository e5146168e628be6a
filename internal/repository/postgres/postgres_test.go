package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
	"github.com/ignite/notify-dispatch/internal/service/preference"
	"github.com/ignite/notify-dispatch/internal/service/settings"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		db.Close()
	}
}

var campaignCols = []string{
	"id", "name", "type", "status", "subject", "template_data", "target_all", "target_user_ids",
	"total_recipients", "success_count", "failure_count", "skipped_count",
	"delivered_count", "open_count", "click_count", "bounce_count",
	"scheduled_at", "started_at", "sent_at", "last_error", "created_by", "created_at", "updated_at",
}

// =============================================================================
// CAMPAIGN REPO TESTS
// =============================================================================

func TestCampaignRepo_GetCampaign(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("(?s)SELECT .+ FROM email_campaigns WHERE id").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).AddRow(
			"c1", "Spring", "SALES_ANNOUNCEMENT", "SENT", "Sale", []byte(`{"discount":"20%"}`), false, []byte("{u1,u2}"),
			2, 1, 1, 0,
			1, 1, 0, 0,
			nil, now, now, "", "admin", now, now,
		))

	c, err := NewCampaignRepo(db).GetCampaign(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if c.Type != domain.TypeSalesAnnouncement || c.Status != domain.CampaignSent {
		t.Fatalf("type/status = %s/%s", c.Type, c.Status)
	}
	if c.TemplateData["discount"] != "20%" {
		t.Fatalf("template data = %v", c.TemplateData)
	}
	if len(c.TargetUserIDs) != 2 || c.TargetUserIDs[1] != "u2" {
		t.Fatalf("targets = %v", c.TargetUserIDs)
	}
	if c.ScheduledAt != nil || c.SentAt == nil {
		t.Fatalf("scheduled=%v sent=%v", c.ScheduledAt, c.SentAt)
	}
}

func TestCampaignRepo_GetCampaignNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("(?s)SELECT .+ FROM email_campaigns WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(campaignCols))

	_, err := NewCampaignRepo(db).GetCampaign(context.Background(), "missing")
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCampaignRepo_TransitionStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	at := time.Now().UTC()
	from := []domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}

	mock.ExpectExec("UPDATE email_campaigns\\s+SET status = \\$1, updated_at = \\$2, started_at = \\$2").
		WithArgs(domain.CampaignSending, at, "c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE email_campaigns").
		WithArgs(domain.CampaignSending, at, "c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	ok, err := repo.TransitionStatus(context.Background(), "c1", from, domain.CampaignSending, at)
	if err != nil || !ok {
		t.Fatalf("first transition = %v, %v", ok, err)
	}
	ok, err = repo.TransitionStatus(context.Background(), "c1", from, domain.CampaignSending, at)
	if err != nil || ok {
		t.Fatalf("second transition = %v, %v; want false", ok, err)
	}
}

func TestCampaignRepo_FinishCampaign(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	at := time.Now().UTC()
	p := domain.Progress{TotalRecipients: 3, SuccessCount: 2, FailureCount: 1}
	mock.ExpectExec("(?s)UPDATE email_campaigns .+ WHERE id = \\$9 AND status = 'SENDING'").
		WithArgs(domain.CampaignSent, 3, 2, 1, 0, at, "", at, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := NewCampaignRepo(db).FinishCampaign(context.Background(), "c1", domain.CampaignSent, p, at, "")
	if err != nil || !ok {
		t.Fatalf("FinishCampaign = %v, %v", ok, err)
	}
}

func TestCampaignRepo_UpdateCampaign(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	name := "Renamed"
	mock.ExpectExec("UPDATE email_campaigns SET name = \\$1, scheduled_at = NULL, status = \\$2, updated_at = NOW\\(\\) WHERE id = \\$3 AND status = ANY\\(\\$4\\)").
		WithArgs(name, domain.CampaignDraft, "c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := NewCampaignRepo(db).UpdateCampaign(context.Background(), "c1",
		campaign.UpdateFields{Name: &name, ClearSchedule: true},
		[]domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled})
	if err != nil || !ok {
		t.Fatalf("UpdateCampaign = %v, %v", ok, err)
	}
}

func TestCampaignRepo_IncrementEngagementMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE email_campaigns").
		WithArgs(1, 0, 0, 0, "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewCampaignRepo(db).IncrementEngagement(context.Background(), "gone", campaign.EngagementDelta{Delivered: 1})
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCampaignRepo_CountCampaigns(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COUNT\\(\\*\\) FILTER").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active"}).AddRow(7, 2))

	total, active, err := NewCampaignRepo(db).CountCampaigns(context.Background())
	if err != nil || total != 7 || active != 2 {
		t.Fatalf("CountCampaigns = %d, %d, %v", total, active, err)
	}
}

// =============================================================================
// EMAIL LOG REPO TESTS
// =============================================================================

func TestEmailLogRepo_InsertBumpsCounts(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	l := &domain.EmailLog{
		ID: "l1", CampaignID: "c1", UserID: "u1", Email: "a@example.com",
		Type: domain.TypeNewsletter, Subject: "News", Status: domain.LogSent,
		MessageID: "m1", CreatedAt: now, SentAt: &now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO email_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO email_status_counts").
		WithArgs(domain.LogSent, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewEmailLogRepo(db).InsertLog(context.Background(), l); err != nil {
		t.Fatalf("InsertLog: %v", err)
	}
}

func TestEmailLogRepo_InsertRollsBackOnCountFailure(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO email_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO email_status_counts").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := NewEmailLogRepo(db).InsertLog(context.Background(), &domain.EmailLog{ID: "l1", Status: domain.LogSkipped})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestEmailLogRepo_UpgradeLogStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	at := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE email_logs SET status = \\$1, delivered_at = \\$2 WHERE id = \\$3 AND status = \\$4").
		WithArgs(domain.LogDelivered, at, "l1", domain.LogSent).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO email_status_counts").WithArgs(domain.LogSent, -1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO email_status_counts").WithArgs(domain.LogDelivered, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := NewEmailLogRepo(db).UpgradeLogStatus(context.Background(), "l1", domain.LogSent, domain.LogDelivered, at)
	if err != nil || !ok {
		t.Fatalf("UpgradeLogStatus = %v, %v", ok, err)
	}
}

func TestEmailLogRepo_UpgradeLostRace(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE email_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := NewEmailLogRepo(db).UpgradeLogStatus(context.Background(), "l1", domain.LogSent, domain.LogOpened, time.Now())
	if err != nil || ok {
		t.Fatalf("UpgradeLogStatus = %v, %v; want false, nil", ok, err)
	}
}

func TestEmailLogRepo_UpgradeRejectsNonProviderStatus(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewEmailLogRepo(db).UpgradeLogStatus(context.Background(), "l1", domain.LogSent, domain.LogFailed, time.Now())
	if !errors.Is(err, emaillog.ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestEmailLogRepo_StatusCounts(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT status, count FROM email_status_counts").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SENT", 8).AddRow("FAILED", 1).AddRow("SKIPPED", 1))

	counts, err := NewEmailLogRepo(db).StatusCounts(context.Background())
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[domain.LogSent] != 8 || counts.SuccessRate() != 80 {
		t.Fatalf("counts = %v rate = %v", counts, counts.SuccessRate())
	}
}

func TestEmailLogRepo_ListLogsFilters(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM email_logs WHERE 1=1 AND status = \\$1 AND campaign_id = \\$2").
		WithArgs("FAILED", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM email_logs WHERE 1=1 AND status = \\$1 AND campaign_id = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("FAILED", "c1", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	logs, total, err := NewEmailLogRepo(db).ListLogs(context.Background(), emaillog.ListFilter{Status: "FAILED", CampaignID: "c1"})
	if err != nil || total != 0 || len(logs) != 0 {
		t.Fatalf("ListLogs = %v, %d, %v", logs, total, err)
	}
}

// =============================================================================
// PREFERENCE AND SETTINGS REPO TESTS
// =============================================================================

func TestPreferenceRepo_InsertIfMissingReadsExisting(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	cols := []string{"user_id", "sales_emails", "offer_emails", "new_product_emails",
		"order_confirmation", "order_updates", "unsubscribed_all", "email_verified", "created_at", "updated_at"}
	now := time.Now().UTC()

	mock.ExpectQuery("(?s)INSERT INTO email_preferences .+ ON CONFLICT \\(user_id\\) DO NOTHING").
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("(?s)SELECT .+ FROM email_preferences WHERE user_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", false, true, true, true, true, true, true, now, now))

	p := domain.DefaultPreference("u1")
	got, err := NewPreferenceRepo(db).InsertPreferenceIfMissing(context.Background(), &p)
	if err != nil {
		t.Fatalf("InsertPreferenceIfMissing: %v", err)
	}
	if !got.UnsubscribedAll || got.SalesEmails {
		t.Fatalf("existing row not returned: %+v", got)
	}
}

func TestPreferenceRepo_GetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM email_preferences WHERE user_id").WillReturnError(sql.ErrNoRows)
	_, err := NewPreferenceRepo(db).GetPreference(context.Background(), "nobody")
	if !errors.Is(err, preference.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPreferenceRepo_ListSubscribed(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT user_id FROM email_preferences\\s+WHERE unsubscribed_all = FALSE").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u3"))

	ids, err := NewPreferenceRepo(db).ListSubscribedUserIDs(context.Background())
	if err != nil || len(ids) != 2 || ids[1] != "u3" {
		t.Fatalf("ListSubscribedUserIDs = %v, %v", ids, err)
	}
}

func TestSettingsRepo_GetMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("FROM email_settings").WillReturnError(sql.ErrNoRows)
	_, err := NewSettingsRepo(db).GetSettings(context.Background())
	if !errors.Is(err, settings.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSettingsRepo_Save(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	s := domain.DefaultSettings()
	s.ID = "default"
	s.UpdatedAt = time.Now().UTC()
	mock.ExpectExec("(?s)INSERT INTO email_settings .+ ON CONFLICT \\(id\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewSettingsRepo(db).SaveSettings(context.Background(), &s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
}

// =============================================================================
// MIGRATION TESTS
// =============================================================================

func TestMigrate_SkipsApplied(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0001_init").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	n, err := Migrate(context.Background(), db)
	if err != nil || n != 0 {
		t.Fatalf("Migrate = %d, %v", n, err)
	}
}

func TestMigrate_AppliesPending(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0001_init").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS email_settings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("0001_init").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := Migrate(context.Background(), db)
	if err != nil || n != 1 {
		t.Fatalf("Migrate = %d, %v", n, err)
	}
}
