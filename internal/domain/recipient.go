package domain

// Recipient is one resolved target of a send.
type Recipient struct {
	UserID       string            `json:"user_id"`
	Email        string            `json:"email"`
	TemplateData map[string]string `json:"template_data"`
}

// User is the identity record returned by the identity directory.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName is the first name, else the handle, else the local part of
// the address.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// BatchResult aggregates the outcomes of one dispatch. The three counters
// always sum to the number of recipients handed to the dispatcher.
type BatchResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Total returns the number of recipients the result accounts for.
func (r BatchResult) Total() int {
	return r.Success + r.Failed + r.Skipped
}

// Outcome is the terminal result of one recipient's attempt.
type Outcome struct {
	Status    LogStatus `json:"status"`
	Reason    Reason    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
}
