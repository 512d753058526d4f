package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

const uriScheme = "sourcestack://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "jobs",
		Name:        "jobs",
		Description: "Status of every retained batch job, newest first",
		MIMEType:    "application/json",
	}, s.handleJobsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{jobId}/results",
		Name:        "job-results",
		Description: "Extracted candidates of a finished batch job",
		MIMEType:    "application/json",
	}, s.handleJobResultsResource)
}

// handleJobsResource returns the status of every job.
func (s *Server) handleJobsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	ids, err := s.ports.Jobs.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	statuses := make([]JobStatusOutput, 0, len(ids))
	for _, id := range ids {
		status, err := s.ports.Jobs.JobStatus(ctx, id)
		if err != nil {
			// Swept between list and read.
			continue
		}
		statuses = append(statuses, jobStatusOutput(status))
	}
	return jsonResource(req.Params.URI, statuses)
}

// handleJobResultsResource returns the results of one job.
func (s *Server) handleJobResultsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobID := extractJobID(req.Params.URI)
	if jobID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	results, err := s.ports.Jobs.JobResults(ctx, jobID)
	if domain.CodeOf(err) == domain.CodeJobNotFound {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, toolError(err)
	}

	out := make([]CandidateOutput, len(results))
	for i := range results {
		out[i] = candidateOutput(&results[i])
	}
	return jsonResource(req.Params.URI, out)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractJobID extracts the job ID from a URI like sourcestack://jobs/{jobId}/results.
func extractJobID(uri string) string {
	const prefix = uriScheme + "jobs/"
	const suffix = "/results"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
