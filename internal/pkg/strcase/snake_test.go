package strcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToLowerSnake(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":               "",
		"To":             "to",
		"MessageID":      "message_id",
		"ReplyToURL":     "reply_to_url",
		"HTTPServer":     "http_server",
		"IdempotencyKey": "idempotency_key",
		"to[1]":          "to[1]",
		"Attachment2Url": "attachment2_url",
	}

	for in, want := range tests {
		assert.Equal(t, want, ToLowerSnake(in), in)
	}
}
