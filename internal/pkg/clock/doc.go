// Package clock provides a tiny time abstraction.
//
// Production code depends on Clocker instead of calling time.Now directly so
// delivery timestamps and spool keys can be pinned in tests with Fixed.
package clock
