package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/notify-dispatch/internal/domain"
	"github.com/ignite/notify-dispatch/internal/metrics"
	"github.com/ignite/notify-dispatch/internal/pkg/httputil"
	"github.com/ignite/notify-dispatch/internal/service/emaillog"
)

// SNSMessage represents an AWS SNS notification wrapper
type SNSMessage struct {
	Type         string `json:"Type"`
	SubscribeURL string `json:"SubscribeURL"`
	Message      string `json:"Message"`
	MessageId    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
}

type sesTimestamp struct {
	Timestamp time.Time `json:"timestamp"`
}

// SESEvent covers both SES event publishing (eventType) and the older
// notification format (notificationType).
type SESEvent struct {
	EventType        string `json:"eventType"`
	NotificationType string `json:"notificationType"`
	Mail             struct {
		MessageID string    `json:"messageId"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"mail"`
	Delivery *sesTimestamp `json:"delivery,omitempty"`
	Open     *sesTimestamp `json:"open,omitempty"`
	Click    *sesTimestamp `json:"click,omitempty"`
	Bounce   *struct {
		BounceType string    `json:"bounceType"`
		Timestamp  time.Time `json:"timestamp"`
	} `json:"bounce,omitempty"`
}

// status maps the SES event to a log status and the event time. ok is
// false for events that do not move a log (sends, complaints, rejects).
func (e SESEvent) status() (domain.LogStatus, time.Time, bool) {
	kind := e.EventType
	if kind == "" {
		kind = e.NotificationType
	}
	switch kind {
	case "Delivery":
		return domain.LogDelivered, stampOf(e.Delivery), true
	case "Open":
		return domain.LogOpened, stampOf(e.Open), true
	case "Click":
		return domain.LogClicked, stampOf(e.Click), true
	case "Bounce":
		var at time.Time
		if e.Bounce != nil {
			at = e.Bounce.Timestamp
		}
		return domain.LogBounced, at, true
	}
	return "", time.Time{}, false
}

func stampOf(t *sesTimestamp) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Timestamp
}

// HandleSESWebhook processes AWS SES events delivered through SNS, with or
// without raw message delivery. Unknown messages and ignored event types
// still answer 200 so SNS does not retry them; store failures answer 500.
//
//	POST /webhooks/ses
func (h *Handlers) HandleSESWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, httputil.MaxBodyBytes))
	if err != nil {
		httputil.BadRequest(w, "failed to read body")
		return
	}

	var sns SNSMessage
	if err := json.Unmarshal(body, &sns); err != nil {
		httputil.BadRequest(w, "invalid JSON")
		return
	}

	switch sns.Type {
	case "SubscriptionConfirmation":
		h.confirmSubscription(r.Context(), sns)
		w.WriteHeader(http.StatusOK)
		return
	case "UnsubscribeConfirmation":
		h.log.Warn("sns topic unsubscribed", "topic_arn", sns.TopicArn)
		w.WriteHeader(http.StatusOK)
		return
	case "Notification":
		body = []byte(sns.Message)
	}

	var ev SESEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.log.Warn("unparseable ses event", "sns_message_id", sns.MessageId, "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	status, at, ok := ev.status()
	if !ok || ev.Mail.MessageID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	_, err = h.applyEvent(r.Context(), ev.Mail.MessageID, status, at)
	if err != nil && !errors.Is(err, emaillog.ErrNotFound) {
		httputil.InternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// confirmSubscription visits the SubscribeURL of an SNS confirmation. Only
// AWS SNS endpoints are visited.
func (h *Handlers) confirmSubscription(ctx context.Context, sns SNSMessage) {
	u, err := url.Parse(sns.SubscribeURL)
	if err != nil || u.Scheme != "https" || !strings.HasPrefix(u.Hostname(), "sns.") || !strings.HasSuffix(u.Hostname(), ".amazonaws.com") {
		h.log.Warn("refusing sns subscribe url", "topic_arn", sns.TopicArn, "url", sns.SubscribeURL)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return
	}
	resp, err := h.snsClient.Do(req)
	if err != nil {
		h.log.Error("sns subscription confirmation failed", "topic_arn", sns.TopicArn, "error", err)
		return
	}
	resp.Body.Close()
	h.log.Info("sns subscription confirmed", "topic_arn", sns.TopicArn, "status", resp.StatusCode)
}

// providerEvent is the generic callback format.
type providerEvent struct {
	MessageID string          `json:"messageId"`
	Event     string          `json:"event"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// HandleProviderEvent applies a generic provider callback.
//
//	POST /webhooks/events
//	{"messageId": "...", "event": "opened", "timestamp": "2026-01-02T15:04:05Z"}
func (h *Handlers) HandleProviderEvent(w http.ResponseWriter, r *http.Request) {
	var ev providerEvent
	if !httputil.Decode(w, r, &ev) {
		return
	}
	if ev.MessageID == "" {
		httputil.BadRequest(w, "messageId is required")
		return
	}
	status, ok := eventStatus(ev.Event)
	if !ok {
		httputil.BadRequest(w, "unsupported event "+strconv.Quote(ev.Event))
		return
	}
	at, err := parseEventTime(ev.Timestamp)
	if err != nil {
		httputil.BadRequest(w, "invalid timestamp")
		return
	}

	up, err := h.applyEvent(r.Context(), ev.MessageID, status, at)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"message_id": ev.MessageID,
		"status":     up.Log.Status,
		"applied":    up.Applied,
	})
}

func (h *Handlers) applyEvent(ctx context.Context, messageID string, status domain.LogStatus, at time.Time) (*emaillog.Upgrade, error) {
	up, err := h.logs.ApplyProviderEvent(ctx, messageID, status, at)
	if err != nil {
		if errors.Is(err, emaillog.ErrNotFound) {
			h.log.Debug("provider event for unknown message", "message_id", messageID, "event", status)
		} else {
			h.log.Error("provider event failed", "message_id", messageID, "event", status, "error", err)
		}
		return nil, err
	}
	metrics.IncProviderEvent(string(status), up.Applied)
	if up.Applied {
		h.log.Debug("email log upgraded", "message_id", messageID, "from", up.Transition.From, "to", up.Transition.To)
	}
	return up, nil
}

// eventStatus maps a generic event name to a log status.
func eventStatus(event string) (domain.LogStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "delivery", "delivered":
		return domain.LogDelivered, true
	case "open", "opened":
		return domain.LogOpened, true
	case "click", "clicked":
		return domain.LogClicked, true
	case "bounce", "bounced":
		return domain.LogBounced, true
	}
	return "", false
}

// parseEventTime accepts RFC 3339 strings or unix seconds. A missing
// timestamp yields the zero time, which the recorder replaces with now.
func parseEventTime(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, err
		}
		if str == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339, str)
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}
