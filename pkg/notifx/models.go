package notifx

// EmailMessage is one e-mail ready to be handed to a provider
type EmailMessage struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body,omitempty"`
	HTMLBody string   `json:"html_body,omitempty"`

	// Headers are extra headers such as List-Unsubscribe
	Headers map[string]string `json:"headers,omitempty"`
}

// Validate checks the fields every provider needs
func (m EmailMessage) Validate() error {
	switch {
	case len(m.To) == 0:
		return ErrInvalidMessage("no recipients")
	case m.Subject == "":
		return ErrInvalidMessage("empty subject")
	case m.TextBody == "" && m.HTMLBody == "":
		return ErrInvalidMessage("empty body")
	}
	return nil
}
