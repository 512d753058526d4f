// Package domain defines the core business entities for sourcestack.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - TokenEnvelope: The persisted Google credential
//   - ManualAuthSession: PKCE material for one manual sign-in
//   - JobStatus: Durable progress of a batch job
//   - ParsedCandidate: Contact fields extracted from one resume
//   - Settings: User-tunable configuration
//   - Error: The closed error taxonomy shared by every layer
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
package domain
