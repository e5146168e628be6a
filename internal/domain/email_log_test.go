package domain

import "testing"

func TestNextLogStatus(t *testing.T) {
	tests := []struct {
		cur, next LogStatus
		want      LogStatus
		changed   bool
	}{
		{LogSent, LogDelivered, LogDelivered, true},
		{LogSent, LogClicked, LogClicked, true},
		{LogDelivered, LogSent, LogDelivered, false},
		{LogOpened, LogDelivered, LogOpened, false},
		{LogOpened, LogClicked, LogClicked, true},
		{LogClicked, LogOpened, LogClicked, false},
		{LogSent, LogBounced, LogBounced, true},
		{LogDelivered, LogBounced, LogBounced, true},
		{LogOpened, LogBounced, LogOpened, false},
		{LogBounced, LogClicked, LogBounced, false},
		{LogFailed, LogDelivered, LogFailed, false},
		{LogSkipped, LogOpened, LogSkipped, false},
		{LogQueued, LogSent, LogQueued, false},
	}
	for _, tt := range tests {
		got, changed := NextLogStatus(tt.cur, tt.next)
		if got != tt.want || changed != tt.changed {
			t.Errorf("NextLogStatus(%s, %s) = %s, %v; want %s, %v", tt.cur, tt.next, got, changed, tt.want, tt.changed)
		}
	}
}

func TestStatusCountsSuccessRate(t *testing.T) {
	c := StatusCounts{LogSent: 5, LogDelivered: 2, LogFailed: 2, LogSkipped: 1}
	if got := c.SuccessRate(); got != 70 {
		t.Fatalf("SuccessRate = %v, want 70", got)
	}
	c = StatusCounts{LogSent: 1, LogFailed: 2}
	if got := c.SuccessRate(); got != 33.3 {
		t.Fatalf("SuccessRate = %v, want 33.3", got)
	}
	if got := (StatusCounts{}).SuccessRate(); got != 0 {
		t.Fatalf("empty SuccessRate = %v", got)
	}
}

func TestUserDisplayName(t *testing.T) {
	cases := []struct {
		u    User
		want string
	}{
		{User{FirstName: "Ada", Username: "ada99", Email: "a@x.io"}, "Ada"},
		{User{Username: "ada99", Email: "a@x.io"}, "ada99"},
		{User{Email: "ada.l@x.io"}, "ada.l"},
	}
	for _, c := range cases {
		if got := c.u.DisplayName(); got != c.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", c.u, got, c.want)
		}
	}
}
