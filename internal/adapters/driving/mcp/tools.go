package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// ParseFileInput is the input schema for parse_file.
type ParseFileInput struct {
	FileName      string `json:"file_name" jsonschema:"file name including extension (.pdf, .docx or .txt)"`
	ContentBase64 string `json:"content_base64" jsonschema:"file content, base64 encoded"`
}

// CandidateOutput is one extracted resume.
type CandidateOutput struct {
	SourceFile  string   `json:"source_file"`
	DriveFileID string   `json:"drive_file_id,omitempty"`
	ResumeLink  string   `json:"resume_link,omitempty"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	LinkedIn    string   `json:"linkedin,omitempty"`
	GitHub      string   `json:"github,omitempty"`
	Confidence  float64  `json:"confidence"`
	OCRUsed     bool     `json:"ocr_used"`
	Errors      []string `json:"errors,omitempty"`
}

// StartBatchJobInput is the input schema for start_batch_job.
type StartBatchJobInput struct {
	FolderID      string `json:"folder_id" jsonschema:"Google Drive folder id holding the resumes"`
	SpreadsheetID string `json:"spreadsheet_id,omitempty" jsonschema:"existing spreadsheet to append to; a new one is created when empty"`
}

// JobIDInput identifies a job.
type JobIDInput struct {
	JobID string `json:"job_id" jsonschema:"job id returned by start_batch_job"`
}

// JobIDOutput is the output of start_batch_job.
type JobIDOutput struct {
	JobID string `json:"job_id"`
}

// JobStatusOutput is the output of job_status.
type JobStatusOutput struct {
	JobID           string   `json:"job_id"`
	State           string   `json:"state"`
	Progress        int      `json:"progress"`
	TotalFiles      int      `json:"total_files"`
	ProcessedFiles  int      `json:"processed_files"`
	SpreadsheetID   string   `json:"spreadsheet_id,omitempty"`
	SpreadsheetURL  string   `json:"spreadsheet_url,omitempty"`
	ResultsCount    *int     `json:"results_count,omitempty"`
	Error           string   `json:"error,omitempty"`
	CreatedAt       string   `json:"created_at"`
	StartedAt       string   `json:"started_at,omitempty"`
	CompletedAt     string   `json:"completed_at,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// JobResultsOutput is the output of job_results.
type JobResultsOutput struct {
	Results []CandidateOutput `json:"results"`
	Count   int               `json:"count"`
}

// ListJobsOutput is the output of list_jobs.
type ListJobsOutput struct {
	JobIDs []string `json:"job_ids"`
}

// CancelJobOutput is the output of cancel_job.
type CancelJobOutput struct {
	Cancelled bool `json:"cancelled"`
}

// AuthStatusOutput describes the stored Google credential.
type AuthStatusOutput struct {
	SignedIn  bool   `json:"signed_in"`
	Email     string `json:"email,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ManualChallengeOutput is the output of begin_manual_sign_in.
type ManualChallengeOutput struct {
	SessionID    string `json:"session_id"`
	AuthorizeURL string `json:"authorize_url"`
	RedirectURI  string `json:"redirect_uri"`
	ExpiresAt    string `json:"expires_at"`
}

// CompleteManualSignInInput is the input schema for complete_manual_sign_in.
type CompleteManualSignInInput struct {
	SessionID string `json:"session_id" jsonschema:"session id from begin_manual_sign_in"`
	Callback  string `json:"callback" jsonschema:"the full redirect URL from the browser address bar, or the bare authorization code"`
}

// SignOutOutput is the output of sign_out.
type SignOutOutput struct {
	SignedOut bool `json:"signed_out"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parse_file",
		Description: "Extract contact details from one resume file",
	}, s.handleParseFile)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "start_batch_job",
		Description: "Parse every PDF and DOCX resume in a Google Drive folder into a Google Sheet",
	}, s.handleStartBatchJob)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "job_status",
		Description: "Get the progress of a batch job",
	}, s.handleJobStatus)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "job_results",
		Description: "Get the extracted candidates of a finished batch job",
	}, s.handleJobResults)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List batch job ids, newest first",
	}, s.handleListJobs)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "cancel_job",
		Description: "Cancel a running batch job; it stops at the next batch boundary",
	}, s.handleCancelJob)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "auth_status",
		Description: "Show whether a Google account is signed in",
	}, s.handleAuthStatus)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "begin_manual_sign_in",
		Description: "Start a Google sign-in; open the returned URL in a browser",
	}, s.handleBeginManualSignIn)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "complete_manual_sign_in",
		Description: "Finish a Google sign-in with the redirect URL or code",
	}, s.handleCompleteManualSignIn)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sign_out",
		Description: "Delete the stored Google credential",
	}, s.handleSignOut)
}

func (s *Server) handleParseFile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ParseFileInput,
) (*mcp.CallToolResult, CandidateOutput, error) {
	data, err := base64.StdEncoding.DecodeString(input.ContentBase64)
	if err != nil {
		return nil, CandidateOutput{}, toolError(domain.NewJobError(domain.CodeInvalidRequest,
			fmt.Sprintf("content_base64 is not valid base64: %v", err)))
	}

	candidate, err := s.ports.Jobs.ParseSingle(ctx, input.FileName, data)
	if err != nil {
		return nil, CandidateOutput{}, toolError(err)
	}
	return nil, candidateOutput(candidate), nil
}

func (s *Server) handleStartBatchJob(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StartBatchJobInput,
) (*mcp.CallToolResult, JobIDOutput, error) {
	jobID, err := s.ports.Jobs.StartBatchJob(ctx, domain.BatchParseRequest{
		FolderID:      input.FolderID,
		SpreadsheetID: input.SpreadsheetID,
	})
	if err != nil {
		return nil, JobIDOutput{}, toolError(err)
	}
	return nil, JobIDOutput{JobID: jobID}, nil
}

func (s *Server) handleJobStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobIDInput,
) (*mcp.CallToolResult, JobStatusOutput, error) {
	status, err := s.ports.Jobs.JobStatus(ctx, input.JobID)
	if err != nil {
		return nil, JobStatusOutput{}, toolError(err)
	}
	return nil, jobStatusOutput(status), nil
}

func (s *Server) handleJobResults(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobIDInput,
) (*mcp.CallToolResult, JobResultsOutput, error) {
	results, err := s.ports.Jobs.JobResults(ctx, input.JobID)
	if err != nil {
		return nil, JobResultsOutput{}, toolError(err)
	}

	output := JobResultsOutput{
		Results: make([]CandidateOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = candidateOutput(&results[i])
	}
	return nil, output, nil
}

func (s *Server) handleListJobs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, ListJobsOutput, error) {
	ids, err := s.ports.Jobs.ListJobs(ctx)
	if err != nil {
		return nil, ListJobsOutput{}, toolError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return nil, ListJobsOutput{JobIDs: ids}, nil
}

func (s *Server) handleCancelJob(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input JobIDInput,
) (*mcp.CallToolResult, CancelJobOutput, error) {
	return nil, CancelJobOutput{Cancelled: s.ports.Jobs.CancelJob(input.JobID)}, nil
}

func (s *Server) handleAuthStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, AuthStatusOutput, error) {
	status, err := s.ports.Auth.Status(ctx)
	if err != nil {
		return nil, AuthStatusOutput{}, toolError(err)
	}
	return nil, authStatusOutput(status), nil
}

func (s *Server) handleBeginManualSignIn(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, ManualChallengeOutput, error) {
	challenge, err := s.ports.Auth.BeginManualSignIn(ctx)
	if err != nil {
		return nil, ManualChallengeOutput{}, toolError(err)
	}
	return nil, ManualChallengeOutput{
		SessionID:    challenge.SessionID,
		AuthorizeURL: challenge.AuthorizeURL,
		RedirectURI:  challenge.RedirectURI,
		ExpiresAt:    formatTime(&challenge.ExpiresAt),
	}, nil
}

func (s *Server) handleCompleteManualSignIn(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompleteManualSignInInput,
) (*mcp.CallToolResult, AuthStatusOutput, error) {
	status, err := s.ports.Auth.CompleteManualSignIn(ctx, input.SessionID, input.Callback)
	if err != nil {
		return nil, AuthStatusOutput{}, toolError(err)
	}
	return nil, authStatusOutput(status), nil
}

func (s *Server) handleSignOut(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ EmptyInput,
) (*mcp.CallToolResult, SignOutOutput, error) {
	if err := s.ports.Auth.SignOut(ctx); err != nil {
		return nil, SignOutOutput{}, toolError(err)
	}
	return nil, SignOutOutput{SignedOut: true}, nil
}

func candidateOutput(c *domain.ParsedCandidate) CandidateOutput {
	return CandidateOutput{
		SourceFile:  c.SourceFile,
		DriveFileID: c.DriveFileID,
		ResumeLink:  domain.ResumeLink(c.DriveFileID),
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		LinkedIn:    c.LinkedIn,
		GitHub:      c.GitHub,
		Confidence:  c.Confidence,
		OCRUsed:     c.OCRUsed,
		Errors:      c.Errors,
	}
}

func jobStatusOutput(s *domain.JobStatus) JobStatusOutput {
	out := JobStatusOutput{
		JobID:           s.JobID,
		State:           s.State.String(),
		Progress:        s.Progress,
		TotalFiles:      s.TotalFiles,
		ProcessedFiles:  s.ProcessedFiles,
		SpreadsheetID:   s.SpreadsheetID,
		ResultsCount:    s.ResultsCount,
		Error:           s.Error,
		CreatedAt:       formatTime(&s.CreatedAt),
		StartedAt:       formatTime(s.StartedAt),
		CompletedAt:     formatTime(s.CompletedAt),
		DurationSeconds: s.DurationSeconds,
	}
	if s.SpreadsheetID != "" {
		out.SpreadsheetURL = domain.SpreadsheetURL(s.SpreadsheetID)
	}
	return out
}

func authStatusOutput(s *domain.AuthStatus) AuthStatusOutput {
	return AuthStatusOutput{
		SignedIn:  s.SignedIn,
		Email:     s.Email,
		ExpiresAt: formatTime(s.ExpiresAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
