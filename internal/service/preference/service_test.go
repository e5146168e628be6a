package preference_test

import (
	"context"
	"testing"

	"github.com/ignite/notify-dispatch/internal/repository/memory"
	"github.com/ignite/notify-dispatch/internal/service/preference"
)

func TestGet_LazilyCreatesDefaults(t *testing.T) {
	store := memory.New()
	svc := preference.NewService(store)
	ctx := context.Background()

	if p, err := svc.Lookup(ctx, "u1"); err != nil || p != nil {
		t.Fatalf("Lookup before create = %+v, %v; want nil, nil", p, err)
	}

	p, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !p.SalesEmails || !p.OfferEmails || p.UnsubscribedAll || p.EmailVerified {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if n, _ := svc.Count(ctx); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestLookup_DoesNotCreate(t *testing.T) {
	store := memory.New()
	svc := preference.NewService(store)
	if _, err := svc.Lookup(context.Background(), "ghost"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if n, _ := svc.Count(context.Background()); n != 0 {
		t.Fatalf("Lookup wrote a record")
	}
}

func TestEnsureDefaults_VerifiedAndIdempotent(t *testing.T) {
	svc := preference.NewService(memory.New())
	ctx := context.Background()

	p, err := svc.EnsureDefaults(ctx, "u2")
	if err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	if !p.EmailVerified {
		t.Fatalf("signup record should be verified")
	}

	off := true
	if _, err := svc.Update(ctx, "u2", preference.UpdateFields{UnsubscribedAll: &off}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, err := svc.EnsureDefaults(ctx, "u2")
	if err != nil {
		t.Fatalf("EnsureDefaults again: %v", err)
	}
	if !again.UnsubscribedAll {
		t.Fatalf("EnsureDefaults overwrote an existing record")
	}
}

func TestUpdate_FromLooselyTypedForm(t *testing.T) {
	svc := preference.NewService(memory.New())
	ctx := context.Background()

	u := preference.FieldsFromMap(map[string]any{
		"salesEmails":      "false",
		"offer_emails":     0.0,
		"newProductEmails": "on",
		"unknown":          true,
	})
	p, err := svc.Update(ctx, "u3", u)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.SalesEmails || p.OfferEmails || !p.NewProductEmails || !p.OrderUpdates {
		t.Fatalf("unexpected flags: %+v", p)
	}
}

func TestSubscribedUserIDs(t *testing.T) {
	svc := preference.NewService(memory.New())
	ctx := context.Background()
	yes := true
	for _, id := range []string{"a", "b", "c"} {
		if _, err := svc.Get(ctx, id); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if _, err := svc.Update(ctx, "b", preference.UpdateFields{UnsubscribedAll: &yes}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	ids, err := svc.SubscribedUserIDs(ctx)
	if err != nil {
		t.Fatalf("SubscribedUserIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Fatalf("ids = %v, want [a c]", ids)
	}
}

func TestCoerceBool(t *testing.T) {
	cases := map[any]bool{
		true: true, false: false, "true": true, "TRUE": true, "1": true, "yes": true,
		"false": false, "": false, 1.0: true, 0.0: false, nil: false,
	}
	for in, want := range cases {
		if got := preference.CoerceBool(in); got != want {
			t.Errorf("CoerceBool(%v) = %v, want %v", in, got, want)
		}
	}
}
