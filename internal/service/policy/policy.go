package policy

import "github.com/ignite/notify-dispatch/internal/domain"

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Send   bool
	Reason domain.Reason
}

// Send is the permitting decision.
var Send = Decision{Send: true}

// Skip returns a denying decision carrying reason.
func Skip(reason domain.Reason) Decision {
	return Decision{Reason: reason}
}

// String renders the decision for logs.
func (d Decision) String() string {
	if d.Send {
		return "SEND"
	}
	return "SKIP(" + string(d.Reason) + ")"
}

// Evaluate applies the gating rules in order:
//
//  1. system disabled skips everything;
//  2. maintenance mode skips all but critical types;
//  3. a category whose admin flag is off is skipped;
//  4. marketing types honour unsubscribe-all and the per-category opt-out.
//
// A nil preference means no record exists yet and is evaluated as the
// opt-in default. Unknown types are skipped.
func Evaluate(t domain.EmailType, pref *domain.EmailPreference, settings domain.AdminEmailSettings) Decision {
	info, ok := t.Info()
	if !ok {
		return Skip(domain.ReasonUnknownType)
	}
	if !settings.SystemEnabled {
		return Skip(domain.ReasonSystemDisabled)
	}
	if settings.MaintenanceMode && !info.Critical {
		return Skip(domain.ReasonMaintenanceMode)
	}

	switch info.Kind {
	case domain.KindSystem:
		return Send
	case domain.KindTransactional:
		if !settings.CategoryEnabled(info.Category) {
			return Skip(domain.ReasonCategoryDisabled)
		}
		return Send
	case domain.KindMarketing:
		if !settings.CategoryEnabled(info.Category) {
			return Skip(domain.ReasonCategoryDisabled)
		}
		p := domain.DefaultPreference("")
		if pref != nil {
			p = *pref
		}
		if p.UnsubscribedAll {
			return Skip(domain.ReasonUnsubscribedAll)
		}
		if !p.Allows(info.Category) {
			return Skip(domain.ReasonCategoryOptedOut)
		}
		return Send
	}
	return Skip(domain.ReasonUnknownType)
}
