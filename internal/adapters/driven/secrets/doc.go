// Package secrets stores credential blobs on disk.
//
// FileBackend keeps one 0600 file per named entry. Sealer wraps any
// driven.SecretBackend and encrypts blobs with an age X25519 identity before
// they reach the underlying store, so a copied data directory does not leak
// tokens without the identity file.
package secrets
