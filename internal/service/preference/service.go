package preference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Service implements preference business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a preference service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns the user's record, creating the opt-in defaults if none exists.
func (s *Service) Get(ctx context.Context, userID string) (*domain.EmailPreference, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	p, err := s.repo.GetPreference(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return s.insertDefaults(ctx, userID, false)
}

// Lookup returns the user's record or nil if none exists. It never writes.
func (s *Service) Lookup(ctx context.Context, userID string) (*domain.EmailPreference, error) {
	p, err := s.repo.GetPreference(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup preference: %w", err)
	}
	return p, nil
}

// Update applies the non-nil flags, creating the record first if needed.
func (s *Service) Update(ctx context.Context, userID string, u UpdateFields) (*domain.EmailPreference, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	apply(&p.SalesEmails, u.SalesEmails)
	apply(&p.OfferEmails, u.OfferEmails)
	apply(&p.NewProductEmails, u.NewProductEmails)
	apply(&p.OrderConfirmation, u.OrderConfirmation)
	apply(&p.OrderUpdates, u.OrderUpdates)
	apply(&p.UnsubscribedAll, u.UnsubscribedAll)
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.UpsertPreference(ctx, p); err != nil {
		return nil, fmt.Errorf("save preference: %w", err)
	}
	return p, nil
}

// EnsureDefaults creates the record for a newly signed-up user with the
// address marked verified. An existing record is left untouched.
func (s *Service) EnsureDefaults(ctx context.Context, userID string) (*domain.EmailPreference, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return s.insertDefaults(ctx, userID, true)
}

// SubscribedUserIDs lists users eligible for target-all campaigns.
func (s *Service) SubscribedUserIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListSubscribedUserIDs(ctx)
}

// Count returns the number of users with a stored record.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.CountPreferences(ctx)
}

func (s *Service) insertDefaults(ctx context.Context, userID string, verified bool) (*domain.EmailPreference, error) {
	p := domain.DefaultPreference(userID)
	p.EmailVerified = verified
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	stored, err := s.repo.InsertPreferenceIfMissing(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	return stored, nil
}

func apply(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// CoerceBool interprets loosely typed form values. Booleans pass through,
// strings "true"/"1"/"on"/"yes" are true, non-zero numbers are true, and
// everything else is false.
func CoerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "on", "yes":
			return true
		}
	case float64:
		return b != 0
	case int:
		return b != 0
	}
	return false
}

// FieldsFromMap builds UpdateFields from a decoded JSON object, coercing
// each recognised key. Unknown keys are ignored.
func FieldsFromMap(m map[string]any) UpdateFields {
	var u UpdateFields
	pick := func(keys ...string) *bool {
		for _, k := range keys {
			if v, ok := m[k]; ok {
				b := CoerceBool(v)
				return &b
			}
		}
		return nil
	}
	u.SalesEmails = pick("sales_emails", "salesEmails")
	u.OfferEmails = pick("offer_emails", "offerEmails")
	u.NewProductEmails = pick("new_product_emails", "newProductEmails")
	u.OrderConfirmation = pick("order_confirmation", "orderConfirmation")
	u.OrderUpdates = pick("order_updates", "orderUpdates")
	u.UnsubscribedAll = pick("unsubscribed_all", "unsubscribedAll")
	return u
}
