package mail

import "sync"

// Message represents an email payload.
//
// Fields are provider-agnostic so the same value can be handed to any
// Transport. Transports never modify a Message.
type Message struct {
	// ID is the unique message identifier, used for the Message-ID header.
	ID string
	// From is an optional explicit sender; fallback depends on the transport.
	From string
	// To lists required recipients.
	To []string
	// Cc lists carbon copy recipients.
	Cc []string
	// Bcc lists blind carbon copy recipients.
	Bcc []string
	// Subject is the email subject line.
	Subject string
	// TextBody is the plain-text body; preferred when HTMLBody is empty.
	TextBody string
	// HTMLBody is the optional HTML body.
	HTMLBody string
	// Headers holds extra headers written as-is (after sanitizing).
	Headers map[string]string
	// Attachments are appended as a multipart/mixed section.
	Attachments []Attachment
}

// Recipients returns To, Cc and Bcc in that order.
func (m *Message) Recipients() []string {
	if m == nil {
		return nil
	}

	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

const (
	// DispositionAttachment is the default Content-Disposition of an Attachment.
	DispositionAttachment = "attachment"
	// DispositionInline displays the attachment inside the message body.
	DispositionInline = "inline"

	defaultAttachmentType = "application/octet-stream"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	// Filename is the name presented to the recipient.
	Filename string
	// ContentType defaults to application/octet-stream.
	ContentType string
	// Disposition defaults to DispositionAttachment.
	Disposition string
	// ContentID is set for inline parts referenced from the HTML body.
	ContentID string
	// Data is the raw (unencoded) content.
	Data []byte
}

func (a Attachment) contentType() string {
	if a.ContentType == "" {
		return defaultAttachmentType
	}
	return a.ContentType
}

func (a Attachment) disposition() string {
	if a.Disposition == "" {
		return DispositionAttachment
	}
	return a.Disposition
}

// FailedRecipients collects addresses a transport refused.
//
// A single collector is passed by reference to every delivery attempt of a
// send, so it accumulates rejections across transports. A nil collector
// discards everything. It is safe for concurrent use.
type FailedRecipients struct {
	mu    sync.Mutex
	addrs []string
}

// Add records rejected addresses.
func (f *FailedRecipients) Add(addrs ...string) {
	if f == nil || len(addrs) == 0 {
		return
	}

	f.mu.Lock()
	f.addrs = append(f.addrs, addrs...)
	f.mu.Unlock()
}

// List returns a copy of the recorded addresses.
func (f *FailedRecipients) List() []string {
	if f == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.addrs...)
}

// Len returns the number of recorded addresses.
func (f *FailedRecipients) Len() int {
	if f == nil {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.addrs)
}
