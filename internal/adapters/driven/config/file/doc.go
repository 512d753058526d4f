// Package file provides the TOML-backed configuration store.
//
// Keys use dot notation ("jobs.max_retries") and are written as nested
// tables, so the file stays readable and hand-editable:
//
//	[jobs]
//	max_retries = 3
package file
