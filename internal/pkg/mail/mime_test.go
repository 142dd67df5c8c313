package mail

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderNow = func() time.Time { return time.Date(2026, 10, 15, 10, 4, 5, 0, time.UTC) }

func parseRendered(t *testing.T, raw []byte) *netmail.Message {
	t.Helper()

	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	return parsed
}

func TestRender_PlainText(t *testing.T) {
	t.Parallel()

	// Arrange
	msg := testMessage()
	msg.From = "Relay <noreply@example.com>"
	msg.To = []string{"alice@example.com", "Bob <bob@example.com>"}
	msg.Cc = []string{"dave@example.com"}
	msg.Bcc = []string{"carol@example.com"}

	// Act
	raw, err := Render(msg, RenderOptions{Now: renderNow})

	// Assert
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "carol@example.com")

	parsed := parseRendered(t, raw)
	assert.Equal(t, "Relay <noreply@example.com>", parsed.Header.Get("From"))
	to, err := parsed.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "bob@example.com", to[1].Address)
	assert.Equal(t, "dave@example.com", parsed.Header.Get("Cc"))
	assert.Empty(t, parsed.Header.Get("Bcc"))
	assert.Equal(t, "Hello", parsed.Header.Get("Subject"))
	assert.Equal(t, "Thu, 15 Oct 2026 10:04:05 +0000", parsed.Header.Get("Date"))
	assert.Equal(t, "<1849203948203@example.com>", parsed.Header.Get("Message-Id"))
	assert.Equal(t, "1.0", parsed.Header.Get("Mime-Version"))
	assert.Equal(t, "text/plain; charset=UTF-8", parsed.Header.Get("Content-Type"))

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hi Alice", string(body))
}

func TestRender_Sender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from     string
		fallback string
		wantFrom string
		wantErr  error
	}{
		{name: "explicit sender wins", from: "a@example.com", fallback: "b@example.com", wantFrom: "a@example.com"},
		{name: "fallback sender", fallback: "b@example.com", wantFrom: "b@example.com"},
		{name: "no sender", wantErr: ErrNoSender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := testMessage()
			msg.From = tt.from

			raw, err := Render(msg, RenderOptions{DefaultFrom: tt.fallback, Now: renderNow})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.NotErrorIs(t, err, ErrInvalidMessage)
				assert.Nil(t, raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, parseRendered(t, raw).Header.Get("From"))
		})
	}
}

func TestRender_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Render(nil, RenderOptions{})
	require.ErrorIs(t, err, ErrNilMessage)

	msg := testMessage()
	msg.To = nil
	_, err = Render(msg, RenderOptions{})
	require.ErrorIs(t, err, ErrNoRecipients)
	require.ErrorIs(t, err, ErrInvalidMessage)

	// Bcc alone is enough to deliver.
	msg.Bcc = []string{"carol@example.com"}
	_, err = Render(msg, RenderOptions{})
	require.NoError(t, err)
}

func TestRender_Headers(t *testing.T) {
	t.Parallel()

	// Arrange
	msg := testMessage()
	msg.ID = ""
	msg.Subject = "Halo Dünia\r\nBcc: evil@example.com"
	msg.Headers = map[string]string{
		"from":         "spoof@example.com",
		"x-campaign":   "october\r\nX-Injected: 1",
		"List-Unsub":   "<mailto:unsub@example.com>",
		"Content-Type": "text/html",
	}

	// Act
	raw, err := Render(msg, RenderOptions{Now: renderNow})

	// Assert
	require.NoError(t, err)
	parsed := parseRendered(t, raw)

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Halo Dünia\r\nBcc: evil@example.com", subject)
	assert.Empty(t, parsed.Header.Get("Bcc"))

	assert.Equal(t, "noreply@example.com", parsed.Header.Get("From"))
	assert.Equal(t, "text/plain; charset=UTF-8", parsed.Header.Get("Content-Type"))
	assert.Equal(t, "octoberX-Injected: 1", parsed.Header.Get("X-Campaign"))
	assert.Empty(t, parsed.Header.Get("X-Injected"))
	assert.Equal(t, "<mailto:unsub@example.com>", parsed.Header.Get("List-Unsub"))
	assert.Empty(t, parsed.Header.Get("Message-Id"))
}

func TestRender_Alternative(t *testing.T) {
	t.Parallel()

	msg := testMessage()
	msg.HTMLBody = "<p>Hi Alice</p>"

	raw, err := Render(msg, RenderOptions{Now: renderNow, Boundary: "b1"})
	require.NoError(t, err)

	parsed := parseRendered(t, raw)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)
	assert.Equal(t, "b1", params["boundary"])

	mr := multipart.NewReader(parsed.Body, params["boundary"])

	text, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=UTF-8", text.Header.Get("Content-Type"))
	textBody, err := io.ReadAll(text)
	require.NoError(t, err)
	assert.Equal(t, "Hi Alice", string(textBody))

	html, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=UTF-8", html.Header.Get("Content-Type"))
	htmlBody, err := io.ReadAll(html)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi Alice</p>", string(htmlBody))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRender_HTMLOnly(t *testing.T) {
	t.Parallel()

	msg := testMessage()
	msg.TextBody = ""
	msg.HTMLBody = "<p>Hi</p>"

	raw, err := Render(msg, RenderOptions{Now: renderNow})
	require.NoError(t, err)

	assert.Equal(t, "text/html; charset=UTF-8", parseRendered(t, raw).Header.Get("Content-Type"))
}

func TestRender_Attachments(t *testing.T) {
	t.Parallel()

	// Arrange
	report := bytes.Repeat([]byte("quarterly numbers "), 20)
	msg := testMessage()
	msg.HTMLBody = "<p>see attached</p>"
	msg.Attachments = []Attachment{
		{Filename: "report 2026.pdf", Data: report},
		{Filename: "logo.png", ContentType: "image/png", Disposition: DispositionInline, ContentID: "logo", Data: []byte{0x89, 'P', 'N', 'G'}},
	}

	// Act
	raw, err := Render(msg, RenderOptions{Now: renderNow, Boundary: "mix"})

	// Assert
	require.NoError(t, err)
	parsed := parseRendered(t, raw)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)
	mr := multipart.NewReader(parsed.Body, params["boundary"])

	alt, err := mr.NextPart()
	require.NoError(t, err)
	altType, altParams, err := mime.ParseMediaType(alt.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", altType)
	assert.Equal(t, "mix-alt", altParams["boundary"])

	pdf, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "report 2026.pdf", pdf.FileName())
	pdfType, pdfParams, err := mime.ParseMediaType(pdf.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", pdfType)
	assert.Equal(t, "report 2026.pdf", pdfParams["name"])
	disposition, _, err := mime.ParseMediaType(pdf.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "base64", pdf.Header.Get("Content-Transfer-Encoding"))

	encoded, err := io.ReadAll(pdf)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(encoded)))
	require.NoError(t, err)
	assert.Equal(t, report, decoded)

	logo, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "image/png; name=logo.png", logo.Header.Get("Content-Type"))
	assert.Equal(t, "inline; filename=logo.png", logo.Header.Get("Content-Disposition"))
	assert.Equal(t, "<logo>", logo.Header.Get("Content-Id"))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRender_RandomBoundary(t *testing.T) {
	t.Parallel()

	msg := testMessage()
	msg.HTMLBody = "<p>Hi</p>"

	raw, err := Render(msg, RenderOptions{})
	require.NoError(t, err)

	_, params, err := mime.ParseMediaType(parseRendered(t, raw).Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(params["boundary"], "mailrelay-boundary-"))
}
