package domain

import "time"

// AdminEmailSettings is the process-wide admin configuration. Exactly one
// record is authoritative; updates replace it wholesale.
type AdminEmailSettings struct {
	ID                     string `json:"id" db:"id"`
	SystemEnabled          bool   `json:"system_enabled" db:"system_enabled"`
	MaintenanceMode        bool   `json:"maintenance_mode" db:"maintenance_mode"`
	EnableSalesEmails      bool   `json:"enable_sales_emails" db:"enable_sales_emails"`
	EnableOfferEmails      bool   `json:"enable_offer_emails" db:"enable_offer_emails"`
	EnableNewProductEmails bool   `json:"enable_new_product_emails" db:"enable_new_product_emails"`
	EnableOrderEmails      bool   `json:"enable_order_emails" db:"enable_order_emails"`

	FromName  string `json:"from_name" db:"from_name"`
	FromEmail string `json:"from_email" db:"from_email"`
	ReplyTo   string `json:"reply_to,omitempty" db:"reply_to"`

	// MaxEmailsPerRecipientPerDay is in [0,100]; 0 means no cap.
	MaxEmailsPerRecipientPerDay int `json:"max_emails_per_recipient_per_day" db:"max_emails_per_day"`

	UpdatedBy     string    `json:"updated_by" db:"updated_by"`
	UpdatedByName string    `json:"updated_by_name" db:"updated_by_name"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// MaxDailyCap is the upper bound for MaxEmailsPerRecipientPerDay.
const MaxDailyCap = 100

// DefaultSettings is the record created on first read.
func DefaultSettings() AdminEmailSettings {
	return AdminEmailSettings{
		SystemEnabled:               true,
		EnableSalesEmails:           true,
		EnableOfferEmails:           true,
		EnableNewProductEmails:      true,
		EnableOrderEmails:           true,
		FromName:                    "Notifications",
		FromEmail:                   "noreply@example.com",
		MaxEmailsPerRecipientPerDay: 5,
	}
}

// CategoryEnabled returns the admin flag for c. Categories without a flag
// are always enabled.
func (s AdminEmailSettings) CategoryEnabled(c Category) bool {
	switch c {
	case CategorySales:
		return s.EnableSalesEmails
	case CategoryOffers:
		return s.EnableOfferEmails
	case CategoryNewProduct:
		return s.EnableNewProductEmails
	case CategoryOrder:
		return s.EnableOrderEmails
	}
	return true
}

// EmailPreference holds one recipient's consent flags.
type EmailPreference struct {
	UserID            string    `json:"user_id" db:"user_id"`
	SalesEmails       bool      `json:"sales_emails" db:"sales_emails"`
	OfferEmails       bool      `json:"offer_emails" db:"offer_emails"`
	NewProductEmails  bool      `json:"new_product_emails" db:"new_product_emails"`
	OrderConfirmation bool      `json:"order_confirmation" db:"order_confirmation"`
	OrderUpdates      bool      `json:"order_updates" db:"order_updates"`
	UnsubscribedAll   bool      `json:"unsubscribed_all" db:"unsubscribed_all"`
	EmailVerified     bool      `json:"email_verified" db:"email_verified"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultPreference is the opt-in record used on first contact.
func DefaultPreference(userID string) EmailPreference {
	return EmailPreference{
		UserID:            userID,
		SalesEmails:       true,
		OfferEmails:       true,
		NewProductEmails:  true,
		OrderConfirmation: true,
		OrderUpdates:      true,
	}
}

// Allows returns the per-category marketing flag for c. UnsubscribedAll is
// checked separately by the policy evaluator.
func (p EmailPreference) Allows(c Category) bool {
	switch c {
	case CategorySales:
		return p.SalesEmails
	case CategoryOffers:
		return p.OfferEmails
	case CategoryNewProduct:
		return p.NewProductEmails
	}
	return true
}

// Reason is a machine-readable code recorded on SKIPPED and FAILED logs.
type Reason string

const (
	ReasonSystemDisabled    Reason = "system-disabled"
	ReasonMaintenanceMode   Reason = "maintenance-mode"
	ReasonCategoryDisabled  Reason = "category-disabled"
	ReasonUnsubscribedAll   Reason = "user-unsubscribed-all"
	ReasonCategoryOptedOut  Reason = "user-category-opted-out"
	ReasonRateLimitExceeded Reason = "rate-limit-exceeded"
	ReasonUnknownType       Reason = "unknown-email-type"

	ReasonProviderTimeout  Reason = "provider-timeout"
	ReasonProviderRejected Reason = "provider-rejected"
	ReasonProviderAuth     Reason = "provider-auth-failure"
	ReasonProviderError    Reason = "provider-error"
	ReasonTemplateInvalid  Reason = "template-invalid"
	ReasonStoreError       Reason = "store-error"
	ReasonLimiterError     Reason = "rate-limiter-error"
)
