// Package mail delivers e-mail messages through interchangeable transports.
//
// Every delivery mechanism (SMTP relay, message broker, object storage spool)
// implements the Transport interface. Pool is itself a Transport: it rotates
// through the transports it was configured with in strict round-robin order
// and moves any transport that fails into quarantine, so later sends route
// around it until the pool is restarted or reconfigured.
package mail
