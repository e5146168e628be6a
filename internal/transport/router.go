package transport

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures the active provider.
type Config struct {
	Provider string // ses, smtp or log
	SES      SESConfig
	SMTP     SMTPConfig
}

// New returns the Sender named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ses":
		return NewSESSender(ctx, cfg.SES)
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("smtp transport requires a host")
		}
		return NewSMTPSender(cfg.SMTP), nil
	case "", "log":
		return NewLogSender(), nil
	}
	return nil, fmt.Errorf("unknown transport provider %q", cfg.Provider)
}
