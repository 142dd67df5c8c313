package event

// MailRequestedDestination is the topic other services publish mail requests to.
const MailRequestedDestination string = "mail_requested"

// MailRequestedConsumerRelay names the relay's consumer group on MailRequestedDestination.
const MailRequestedConsumerRelay string = "mail_requested_relay"

// MailRequestedMessage is the payload of MailRequestedDestination.
type MailRequestedMessage struct {
	// IdempotencyKey deduplicates redelivered requests; optional.
	IdempotencyKey string                    `json:"idempotency_key,omitempty"`
	From           string                    `json:"from,omitempty"`
	To             []string                  `json:"to"`
	Cc             []string                  `json:"cc,omitempty"`
	Bcc            []string                  `json:"bcc,omitempty"`
	Subject        string                    `json:"subject"`
	TextBody       string                    `json:"text_body,omitempty"`
	HTMLBody       string                    `json:"html_body,omitempty"`
	Headers        map[string]string         `json:"headers,omitempty"`
	Attachments    []MailRequestedAttachment `json:"attachments,omitempty"`
}

// MailRequestedAttachment carries base64 content, as encoding/json does for []byte.
type MailRequestedAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Inline      bool   `json:"inline,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
	Data        []byte `json:"data"`
}
