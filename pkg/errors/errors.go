// Package errors defines the structured error type shared by every package in
// the JWT consumer. Each error carries a stable machine-readable [Code], a
// human-readable message, an optional wrapped cause, and a map of details
// (consumer id, expected and actual values, timestamps) that callers can log
// or surface without parsing the message.
//
// # Categories
//
// Codes are grouped by prefix. Token rejections live in the AUTH category so
// that transport layers can map every one of them to 401 Unauthorized:
//
//	VAL_xxx     configuration and input validation (400)
//	AUTH_xxx    token rejected: malformed, untrusted, expired, bad signature (401)
//	NF_xxx      keystore entry or key id not found (404)
//	INT_xxx     unexpected internal failure (500)
//	UNAVAIL_xxx keystore, JWKS endpoint, or cache backend unavailable (503)
//	TIMEOUT_xxx dependency timed out (504)
//
// # Usage
//
//	err := errors.New(errors.CodeTokenEmpty, "token is empty").
//	    WithDetail("consumer_id", cfg.ID)
//
//	if errors.HasCode(err, errors.CodeTokenExpired) {
//	    // ask the client to refresh
//	}
package errors
