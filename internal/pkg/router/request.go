package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/mailrelay/internal/pkg/goerror"
)

// HeaderIdempotencyKey lets clients retry a send without duplicating mail.
const HeaderIdempotencyKey = "Idempotency-Key"

// maxBodyBytes caps JSON request bodies; attachments are base64 inline.
const maxBodyBytes = 25 << 20

// Request is the inbound request handed to a Handler.
type Request struct {
	*http.Request
}

// GetParam returns the httprouter path parameter key.
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

// GetQuery returns the trimmed query value for key.
func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// GetQueryInt32 parses key as an int32; an absent key yields 0.
func (r *Request) GetQueryInt32(key string) (int32, error) {
	v := r.GetQuery(key)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, goerror.NewInvalidFormat("Invalid query " + key)
	}
	return int32(n), nil
}

// GetQueryDate parses key with layout; an absent key yields the zero time.
func (r *Request) GetQueryDate(key, layout string) (time.Time, error) {
	v := r.GetQuery(key)
	if v == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, goerror.NewInvalidFormat("Invalid query " + key)
	}
	return t, nil
}

// IdempotencyKey returns the trimmed Idempotency-Key header.
func (r *Request) IdempotencyKey() string {
	return strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
}

// DecodeBody decodes a single JSON document into dst, rejecting unknown fields.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}
