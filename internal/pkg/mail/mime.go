package mail

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"maps"
	"mime"
	netmail "net/mail"
	"net/textproto"
	"slices"
	"strings"
	"time"
)

const base64LineLength = 76

var headerSanitizer = strings.NewReplacer("\r", "", "\n", "")

// reservedHeaders are written by Render and cannot be overridden by Message.Headers.
var reservedHeaders = map[string]struct{}{
	"From":                      {},
	"To":                        {},
	"Cc":                        {},
	"Bcc":                       {},
	"Subject":                   {},
	"Date":                      {},
	"Message-Id":                {},
	"Mime-Version":              {},
	"Content-Type":              {},
	"Content-Transfer-Encoding": {},
}

// RenderOptions tweaks Render.
type RenderOptions struct {
	// DefaultFrom is used when Message.From is empty.
	DefaultFrom string
	// Now stamps the Date header; defaults to time.Now.
	Now func() time.Time
	// Boundary fixes the multipart boundary; random when empty.
	Boundary string
}

// Render builds the RFC 5322 representation of msg.
// Bcc recipients are never written to the headers.
func Render(msg *Message, opts RenderOptions) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}

	from, err := senderOf(msg, opts.DefaultFrom)
	if err != nil {
		return nil, err
	}
	if len(msg.Recipients()) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, ErrNoRecipients)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	boundary := opts.Boundary
	if boundary == "" {
		boundary = multipartBoundary()
	}

	body, contentType := buildBody(msg, boundary)

	var sb strings.Builder
	writeHeader(&sb, "From", from)
	if len(msg.To) > 0 {
		writeHeader(&sb, "To", strings.Join(msg.To, ", "))
	}
	if len(msg.Cc) > 0 {
		writeHeader(&sb, "Cc", strings.Join(msg.Cc, ", "))
	}
	writeHeader(&sb, "Subject", mime.QEncoding.Encode("UTF-8", msg.Subject))
	writeHeader(&sb, "Date", now().Format(time.RFC1123Z))
	if msg.ID != "" {
		writeHeader(&sb, "Message-ID", fmt.Sprintf("<%s@%s>", msg.ID, domainOf(from)))
	}
	for _, key := range slices.Sorted(maps.Keys(msg.Headers)) {
		name := textproto.CanonicalMIMEHeaderKey(headerSanitizer.Replace(key))
		if _, reserved := reservedHeaders[name]; reserved || name == "" {
			continue
		}
		writeHeader(&sb, name, msg.Headers[key])
	}
	writeHeader(&sb, "MIME-Version", "1.0")
	writeHeader(&sb, "Content-Type", contentType)
	sb.WriteString("\r\n")
	sb.WriteString(body)

	return []byte(sb.String()), nil
}

func senderOf(msg *Message, defaultFrom string) (string, error) {
	from := msg.From
	if from == "" {
		from = defaultFrom
	}
	if from == "" {
		return "", ErrNoSender
	}
	return from, nil
}

func writeHeader(sb *strings.Builder, name, value string) {
	sb.WriteString(name)
	sb.WriteString(": ")
	sb.WriteString(headerSanitizer.Replace(value))
	sb.WriteString("\r\n")
}

func domainOf(from string) string {
	addr := from
	if parsed, err := netmail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

func buildBody(msg *Message, boundary string) (body string, contentType string) {
	if len(msg.Attachments) == 0 {
		return buildAlternative(msg, boundary)
	}

	inner, innerType := buildAlternative(msg, boundary+"-alt")

	var sb strings.Builder
	sb.WriteString("This is a multipart message in MIME format.\r\n")
	fmt.Fprintf(&sb, "--%s\r\n", boundary)
	fmt.Fprintf(&sb, "Content-Type: %s\r\n", innerType)
	sb.WriteString("\r\n")
	sb.WriteString(inner)
	sb.WriteString("\r\n")

	for _, att := range msg.Attachments {
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		writeAttachment(&sb, att)
	}
	fmt.Fprintf(&sb, "--%s--", boundary)

	return sb.String(), fmt.Sprintf("multipart/mixed; boundary=%s", boundary)
}

func buildAlternative(msg *Message, boundary string) (body string, contentType string) {
	if msg.HTMLBody != "" && msg.TextBody != "" {
		var sb strings.Builder
		sb.WriteString("This is a multipart message in MIME format.\r\n")
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		sb.WriteString("\r\n")
		sb.WriteString(msg.TextBody)
		sb.WriteString("\r\n")
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		sb.WriteString("\r\n")
		sb.WriteString(msg.HTMLBody)
		sb.WriteString("\r\n")
		fmt.Fprintf(&sb, "--%s--", boundary)
		return sb.String(), fmt.Sprintf("multipart/alternative; boundary=%s", boundary)
	}

	if msg.HTMLBody != "" {
		return msg.HTMLBody, "text/html; charset=UTF-8"
	}

	return msg.TextBody, "text/plain; charset=UTF-8"
}

func writeAttachment(sb *strings.Builder, att Attachment) {
	params := map[string]string{}
	if att.Filename != "" {
		params["name"] = att.Filename
	}
	ct := mime.FormatMediaType(att.contentType(), params)
	if ct == "" {
		ct = mime.FormatMediaType(defaultAttachmentType, params)
	}

	dispParams := map[string]string{}
	if att.Filename != "" {
		dispParams["filename"] = att.Filename
	}
	disp := mime.FormatMediaType(att.disposition(), dispParams)
	if disp == "" {
		disp = mime.FormatMediaType(DispositionAttachment, dispParams)
	}

	writeHeader(sb, "Content-Type", ct)
	writeHeader(sb, "Content-Transfer-Encoding", "base64")
	writeHeader(sb, "Content-Disposition", disp)
	if att.ContentID != "" {
		writeHeader(sb, "Content-ID", "<"+att.ContentID+">")
	}
	sb.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString(att.Data)
	for len(encoded) > base64LineLength {
		sb.WriteString(encoded[:base64LineLength])
		sb.WriteString("\r\n")
		encoded = encoded[base64LineLength:]
	}
	sb.WriteString(encoded)
	sb.WriteString("\r\n")
}

func multipartBoundary() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "mailrelay-boundary-fallback"
	}
	return "mailrelay-boundary-" + hex.EncodeToString(b[:])
}
