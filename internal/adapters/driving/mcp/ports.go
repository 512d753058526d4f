package mcp

import (
	"github.com/custodia-labs/sourcestack/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Jobs parses files and runs batch jobs.
	Jobs driving.JobService

	// Auth manages the Google sign-in.
	Auth driving.AuthService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Jobs == nil {
		return ErrMissingJobService
	}
	if p.Auth == nil {
		return ErrMissingAuthService
	}
	return nil
}
