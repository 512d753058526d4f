// Package google implements the Drive and Sheets ports on top of the
// generated Google API clients.
//
// Every call takes the caller's bearer token; the package never refreshes or
// stores tokens. API failures are translated into domain errors:
//   - googleapi errors become provider errors carrying the HTTP status
//   - connection failures and deadlines become retryable transport errors
//
// A shared RateLimiter keeps request rates under the per-user quotas and
// honours Retry-After after a 429.
package google
