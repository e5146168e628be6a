package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignSent      CampaignStatus = "SENT"
	CampaignFailed    CampaignStatus = "FAILED"
	CampaignCancelled CampaignStatus = "CANCELLED"
)

// Campaign is a bulk marketing send tracked as one lifecycle entity.
type Campaign struct {
	ID           string            `json:"id" db:"id"`
	Name         string            `json:"name" db:"name"`
	Type         EmailType         `json:"type" db:"type"`
	Status       CampaignStatus    `json:"status" db:"status"`
	Subject      string            `json:"subject" db:"subject"`
	TemplateData map[string]string `json:"template_data" db:"template_data"`

	// Targeting: TargetAll wins over TargetUserIDs.
	TargetAll     bool     `json:"target_all" db:"target_all"`
	TargetUserIDs []string `json:"target_user_ids" db:"target_user_ids"`

	// Counters are maintained by the dispatcher and by provider callbacks.
	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	SuccessCount    int `json:"success_count" db:"success_count"`
	FailureCount    int `json:"failure_count" db:"failure_count"`
	SkippedCount    int `json:"skipped_count" db:"skipped_count"`
	DeliveredCount  int `json:"delivered_count" db:"delivered_count"`
	OpenCount       int `json:"open_count" db:"open_count"`
	ClickCount      int `json:"click_count" db:"click_count"`
	BounceCount     int `json:"bounce_count" db:"bounce_count"`

	ScheduledAt *time.Time `json:"scheduled_at" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	SentAt      *time.Time `json:"sent_at" db:"sent_at"`
	LastError   string     `json:"last_error,omitempty" db:"last_error"`
	CreatedBy   string     `json:"created_by" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed || c.Status == CampaignCancelled
}

// IsEditable reports whether content and targeting may still change.
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// IsDeletable reports whether the campaign can be removed. SENDING is never
// deletable so no in-flight dispatch is orphaned.
func (c *Campaign) IsDeletable() bool {
	return c.IsEditable() || c.Status == CampaignCancelled
}

// Progress is a partial counter update flushed while a dispatch runs.
type Progress struct {
	TotalRecipients int
	SuccessCount    int
	FailureCount    int
	SkippedCount    int
}

// CampaignStats is the reporting view of one campaign's counters.
type CampaignStats struct {
	CampaignID      string         `json:"campaign_id"`
	Status          CampaignStatus `json:"status"`
	TotalRecipients int            `json:"total_recipients"`
	SuccessCount    int            `json:"success_count"`
	FailureCount    int            `json:"failure_count"`
	SkippedCount    int            `json:"skipped_count"`
	DeliveredCount  int            `json:"delivered_count"`
	OpenCount       int            `json:"open_count"`
	ClickCount      int            `json:"click_count"`
	BounceCount     int            `json:"bounce_count"`
	OpenRate        float64        `json:"open_rate"`
	ClickRate       float64        `json:"click_rate"`
	SentAt          *time.Time     `json:"sent_at"`
}

// Stats derives the reporting view from the maintained counters.
func (c *Campaign) Stats() CampaignStats {
	s := CampaignStats{
		CampaignID:      c.ID,
		Status:          c.Status,
		TotalRecipients: c.TotalRecipients,
		SuccessCount:    c.SuccessCount,
		FailureCount:    c.FailureCount,
		SkippedCount:    c.SkippedCount,
		DeliveredCount:  c.DeliveredCount,
		OpenCount:       c.OpenCount,
		ClickCount:      c.ClickCount,
		BounceCount:     c.BounceCount,
		SentAt:          c.SentAt,
	}
	if c.SuccessCount > 0 {
		s.OpenRate = round1(float64(c.OpenCount) / float64(c.SuccessCount) * 100)
		s.ClickRate = round1(float64(c.ClickCount) / float64(c.SuccessCount) * 100)
	}
	return s
}
