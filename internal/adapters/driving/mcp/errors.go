// Package mcp provides an MCP (Model Context Protocol) server adapter for
// sourcestack. It lets AI assistants parse resumes, run Drive folder jobs
// and drive the Google sign-in.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// ErrMissingJobService is returned when the job service is not provided.
var ErrMissingJobService = errors.New("mcp: job service is required")

// ErrMissingAuthService is returned when the auth service is not provided.
var ErrMissingAuthService = errors.New("mcp: auth service is required")

// toolError prefixes core errors with their code so clients can branch on
// it without parsing the message.
func toolError(err error) error {
	if code := domain.CodeOf(err); code != "" {
		return fmt.Errorf("%s: %w", code, err)
	}
	return err
}
