package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/service/campaign"
)

func cloneCampaign(c *domain.Campaign) domain.Campaign {
	cp := *c
	if c.TemplateData != nil {
		cp.TemplateData = make(map[string]string, len(c.TemplateData))
		for k, v := range c.TemplateData {
			cp.TemplateData[k] = v
		}
	}
	cp.TargetUserIDs = append([]string(nil), c.TargetUserIDs...)
	return cp
}

// GetCampaign implements campaign.Repository.
func (s *Store) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := cloneCampaign(c)
	return &cp, nil
}

// ListCampaigns implements campaign.Repository.
func (s *Store) ListCampaigns(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, cloneCampaign(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	start, end := page(len(out), f.Limit, f.Offset)
	return out[start:end], len(out), nil
}

// CreateCampaign implements campaign.Repository.
func (s *Store) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneCampaign(c)
	s.campaigns[c.ID] = &cp
	return nil
}

// UpdateCampaign implements campaign.Repository.
func (s *Store) UpdateCampaign(_ context.Context, id string, u campaign.UpdateFields, allowed []domain.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || !contains(allowed, c.Status) {
		return false, nil
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.Type != nil {
		c.Type = *u.Type
	}
	if u.TemplateData != nil {
		c.TemplateData = u.TemplateData
	}
	if u.TargetAll != nil {
		c.TargetAll = *u.TargetAll
	}
	if u.TargetUserIDs != nil {
		c.TargetUserIDs = append([]string(nil), u.TargetUserIDs...)
	}
	if u.ScheduledAt != nil {
		at := u.ScheduledAt.UTC()
		c.ScheduledAt = &at
		c.Status = domain.CampaignScheduled
	} else if u.ClearSchedule {
		c.ScheduledAt = nil
		c.Status = domain.CampaignDraft
	}
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

// DeleteCampaign implements campaign.Repository.
func (s *Store) DeleteCampaign(_ context.Context, id string, allowed []domain.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || !contains(allowed, c.Status) {
		return false, nil
	}
	delete(s.campaigns, id)
	return true, nil
}

// TransitionStatus implements campaign.Repository.
func (s *Store) TransitionStatus(_ context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || !contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = at
	if to == domain.CampaignSending {
		c.StartedAt = &at
		c.TotalRecipients, c.SuccessCount, c.FailureCount, c.SkippedCount = 0, 0, 0, 0
	}
	return true, nil
}

// SaveProgress implements campaign.Repository.
func (s *Store) SaveProgress(_ context.Context, id string, p domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignSending {
		return nil
	}
	applyProgress(c, p)
	return nil
}

// FinishCampaign implements campaign.Repository.
func (s *Store) FinishCampaign(_ context.Context, id string, to domain.CampaignStatus, p domain.Progress, at time.Time, lastError string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.Status != domain.CampaignSending {
		return false, nil
	}
	applyProgress(c, p)
	c.Status = to
	c.LastError = lastError
	c.UpdatedAt = at
	if to == domain.CampaignSent {
		c.SentAt = &at
	}
	return true, nil
}

func applyProgress(c *domain.Campaign, p domain.Progress) {
	c.TotalRecipients = p.TotalRecipients
	c.SuccessCount = p.SuccessCount
	c.FailureCount = p.FailureCount
	c.SkippedCount = p.SkippedCount
}

// IncrementEngagement implements campaign.Repository.
func (s *Store) IncrementEngagement(_ context.Context, id string, d campaign.EngagementDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.DeliveredCount += d.Delivered
	c.OpenCount += d.Opens
	c.ClickCount += d.Clicks
	c.BounceCount += d.Bounces
	return nil
}

// ListDueCampaigns implements campaign.Repository.
func (s *Store) ListDueCampaigns(_ context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, cloneCampaign(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(*out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountCampaigns implements campaign.Repository.
func (s *Store) CountCampaigns(_ context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := 0
	for _, c := range s.campaigns {
		if c.Status == domain.CampaignSending || c.Status == domain.CampaignScheduled {
			active++
		}
	}
	return len(s.campaigns), active, nil
}
