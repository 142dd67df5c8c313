// Package validator provides a small validation abstraction for request and
// domain structs.
//
// Business code depends on the Validator interface; V10Validator implements it
// with go-playground/validator v10 and adds mail rules: `mailbox` accepts
// RFC 5322 addresses such as "Alice <alice@example.com>", `header_name` and
// `header_value` guard custom message headers.
package validator

// Validator validates structs using their `validate` tags.
type Validator interface {
	Validate(data any) error
}
