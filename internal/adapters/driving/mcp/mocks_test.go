package mcp

import (
	"context"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driving"
)

// mockJobService is a mock implementation of driving.JobService.
type mockJobService struct {
	candidate *domain.ParsedCandidate
	statuses  map[string]*domain.JobStatus
	results   []domain.ParsedCandidate
	ids       []string
	jobID     string
	cancelled bool
	err       error

	parsedName  string
	parsedData  []byte
	lastRequest domain.BatchParseRequest
}

var _ driving.JobService = (*mockJobService)(nil)

func (m *mockJobService) ParseSingle(_ context.Context, fileName string, data []byte) (*domain.ParsedCandidate, error) {
	m.parsedName, m.parsedData = fileName, data
	return m.candidate, m.err
}

func (m *mockJobService) StartBatchJob(_ context.Context, req domain.BatchParseRequest) (string, error) {
	m.lastRequest = req
	return m.jobID, m.err
}

func (m *mockJobService) JobStatus(_ context.Context, jobID string) (*domain.JobStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	status, ok := m.statuses[jobID]
	if !ok {
		return nil, domain.NewJobError(domain.CodeJobNotFound, "Job not found: "+jobID)
	}
	return status, nil
}

func (m *mockJobService) JobResults(_ context.Context, _ string) ([]domain.ParsedCandidate, error) {
	return m.results, m.err
}

func (m *mockJobService) ListJobs(_ context.Context) ([]string, error) {
	return m.ids, m.err
}

func (m *mockJobService) CancelJob(_ string) bool {
	return m.cancelled
}

// mockAuthService is a mock implementation of driving.AuthService.
type mockAuthService struct {
	status    *domain.AuthStatus
	challenge *domain.ManualAuthChallenge
	err       error

	signedOut    bool
	lastSession  string
	lastCallback string
}

var _ driving.AuthService = (*mockAuthService)(nil)

func (m *mockAuthService) SignIn(_ context.Context) (*domain.SignInResult, error) {
	return &domain.SignInResult{State: domain.SignInStateSignedIn, Status: m.status}, m.err
}

func (m *mockAuthService) BeginManualSignIn(_ context.Context) (*domain.ManualAuthChallenge, error) {
	return m.challenge, m.err
}

func (m *mockAuthService) CompleteManualSignIn(_ context.Context, sessionID, callback string) (*domain.AuthStatus, error) {
	m.lastSession, m.lastCallback = sessionID, callback
	return m.status, m.err
}

func (m *mockAuthService) AccessToken(_ context.Context) (string, error) {
	return "token", m.err
}

func (m *mockAuthService) SignOut(_ context.Context) error {
	m.signedOut = m.err == nil
	return m.err
}

func (m *mockAuthService) Status(_ context.Context) (*domain.AuthStatus, error) {
	return m.status, m.err
}
