package domain

import "time"

// LogStatus is the status of one delivery attempt.
type LogStatus string

const (
	LogQueued    LogStatus = "QUEUED"
	LogSent      LogStatus = "SENT"
	LogFailed    LogStatus = "FAILED"
	LogSkipped   LogStatus = "SKIPPED"
	LogDelivered LogStatus = "DELIVERED"
	LogOpened    LogStatus = "OPENED"
	LogClicked   LogStatus = "CLICKED"
	LogBounced   LogStatus = "BOUNCED"
)

// AllLogStatuses returns every log status in display order.
func AllLogStatuses() []LogStatus {
	return []LogStatus{LogQueued, LogSent, LogFailed, LogSkipped, LogDelivered, LogOpened, LogClicked, LogBounced}
}

// EmailLog is one row per delivery attempt. Rows are append-only except for
// provider-driven status upgrades.
type EmailLog struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id,omitempty" db:"campaign_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Email      string    `json:"email" db:"email"`
	Type       EmailType `json:"type" db:"type"`
	Subject    string    `json:"subject" db:"subject"`
	Status     LogStatus `json:"status" db:"status"`
	Reason     Reason    `json:"reason,omitempty" db:"reason"`
	Error      string    `json:"error,omitempty" db:"error"`
	MessageID  string    `json:"message_id,omitempty" db:"message_id"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	SentAt      *time.Time `json:"sent_at" db:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at" db:"delivered_at"`
	OpenedAt    *time.Time `json:"opened_at" db:"opened_at"`
	ClickedAt   *time.Time `json:"clicked_at" db:"clicked_at"`
	BouncedAt   *time.Time `json:"bounced_at" db:"bounced_at"`
}

// statusRank orders the provider-driven states. Statuses absent from the
// map (QUEUED, FAILED, SKIPPED) never accept an upgrade.
var statusRank = map[LogStatus]int{
	LogSent:      1,
	LogDelivered: 2,
	LogOpened:    3,
	LogClicked:   4,
}

// NextLogStatus returns the status a log in current should take after a
// provider event reporting next, and whether anything changes. Moves are
// forward only; BOUNCED is reachable from SENT or DELIVERED and is final.
func NextLogStatus(current, next LogStatus) (LogStatus, bool) {
	cur, ok := statusRank[current]
	if !ok {
		return current, false
	}
	if next == LogBounced {
		if current == LogSent || current == LogDelivered {
			return LogBounced, true
		}
		return current, false
	}
	n, ok := statusRank[next]
	if !ok || n <= cur {
		return current, false
	}
	return next, true
}

// Transition describes the counter effects of one accepted status upgrade.
type Transition struct {
	From LogStatus
	To   LogStatus
}

// CountsDelivered reports whether the upgrade is the first evidence of delivery.
func (t Transition) CountsDelivered() bool {
	return t.From == LogSent && t.To != LogBounced
}

// CountsOpen reports whether the upgrade is the first evidence of an open.
// A click implies an open.
func (t Transition) CountsOpen() bool {
	return statusRank[t.From] < statusRank[LogOpened] && (t.To == LogOpened || t.To == LogClicked)
}

// CountsClick reports whether the upgrade enters CLICKED.
func (t Transition) CountsClick() bool {
	return t.To == LogClicked
}

// CountsBounce reports whether the upgrade enters BOUNCED.
func (t Transition) CountsBounce() bool {
	return t.To == LogBounced
}

// StatusCounts holds maintained per-status totals for reporting.
type StatusCounts map[LogStatus]int64

// Stats is the global reporting view.
type Stats struct {
	TotalEmailsSent     int64        `json:"total_emails_sent"`
	TotalCampaigns      int          `json:"total_campaigns"`
	ActiveCampaigns     int          `json:"active_campaigns"`
	TotalUsersWithPrefs int          `json:"total_users_with_prefs"`
	TemplatesCount      int          `json:"templates_count"`
	SuccessRate         float64      `json:"success_rate"`
	ByStatus            StatusCounts `json:"by_status"`
}

// SuccessRate is sent / (sent + failed + skipped) as a percentage with one
// decimal. Sent includes every status a sent log can upgrade to.
func (c StatusCounts) SuccessRate() float64 {
	sent := c.Sent()
	attempts := sent + c[LogFailed] + c[LogSkipped]
	if attempts == 0 {
		return 0
	}
	return round1(float64(sent) / float64(attempts) * 100)
}

// Sent counts logs that were accepted by the provider, whatever their
// later status.
func (c StatusCounts) Sent() int64 {
	return c[LogSent] + c[LogDelivered] + c[LogOpened] + c[LogClicked] + c[LogBounced]
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
