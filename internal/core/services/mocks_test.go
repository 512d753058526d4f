package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// ==================== Settings ====================

type mockSettings struct {
	mu       sync.Mutex
	settings domain.Settings
	err      error
}

func newMockSettings() *mockSettings {
	s := domain.DefaultSettings()
	s.GoogleClientID = "client-id"
	return &mockSettings{settings: s}
}

func (m *mockSettings) Settings(_ context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.err
}

func (m *mockSettings) View(ctx context.Context) (domain.SettingsView, error) {
	s, err := m.Settings(ctx)
	return s.View(), err
}

func (m *mockSettings) Update(ctx context.Context, u domain.SettingsUpdate) (domain.SettingsView, error) {
	m.mu.Lock()
	m.settings = u.Apply(m.settings)
	m.mu.Unlock()
	return m.View(ctx)
}

// ==================== Secret Store ====================

type memSecret struct {
	mu   sync.Mutex
	blob []byte
	err  error
}

var _ driven.SecretStore = (*memSecret)(nil)

func (m *memSecret) Get(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return slices.Clone(m.blob), nil
}

func (m *memSecret) Set(_ context.Context, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = slices.Clone(blob)
	return m.err
}

func (m *memSecret) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = nil
	return m.err
}

// ==================== OAuth ====================

type exchangeCall struct {
	Code, Verifier, RedirectURI string
}

type mockOAuth struct {
	mu sync.Mutex

	exchangeToken *domain.TokenEnvelope
	exchangeErr   error
	refreshToken  *domain.TokenEnvelope
	refreshErr    error
	email         string
	emailErr      error

	exchangeCalls []exchangeCall
	refreshCalls  int
	lastAuthURL   string
	lastState     string
}

var _ driven.OAuthClient = (*mockOAuth)(nil)

func (m *mockOAuth) AuthCodeURL(_ domain.ClientCredentials, redirectURI, state, challenge string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastState = state
	m.lastAuthURL = "https://accounts.example.com/auth?redirect_uri=" + redirectURI + "&state=" + state + "&code_challenge=" + challenge
	return m.lastAuthURL
}

func (m *mockOAuth) ExchangeCode(_ context.Context, _ domain.ClientCredentials, code, verifier, redirectURI string) (*domain.TokenEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchangeCalls = append(m.exchangeCalls, exchangeCall{code, verifier, redirectURI})
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	tok := *m.exchangeToken
	return &tok, nil
}

func (m *mockOAuth) RefreshToken(_ context.Context, _ domain.ClientCredentials, _ string) (*domain.TokenEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCalls++
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	tok := *m.refreshToken
	return &tok, nil
}

func (m *mockOAuth) UserEmail(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.email, m.emailErr
}

func (m *mockOAuth) exchanges() []exchangeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.exchangeCalls)
}

// ==================== Loopback & Browser ====================

type mockListener struct {
	redirect string
	// respond builds the callback from the state in the authorize URL.
	respond func(state string) (*domain.OAuthCallback, error)
	oauth   *mockOAuth
	closed  bool
}

var _ driven.LoopbackListener = (*mockListener)(nil)

func (m *mockListener) RedirectURI() string { return m.redirect }

func (m *mockListener) WaitForCallback(_ context.Context, _ time.Duration) (*domain.OAuthCallback, error) {
	m.oauth.mu.Lock()
	state := m.oauth.lastState
	m.oauth.mu.Unlock()
	return m.respond(state)
}

func (m *mockListener) Close() error {
	m.closed = true
	return nil
}

type mockBrowser struct {
	opened []string
	err    error
}

var _ driven.BrowserLauncher = (*mockBrowser)(nil)

func (m *mockBrowser) Open(url string) error {
	m.opened = append(m.opened, url)
	return m.err
}

// ==================== Tokens ====================

type mockTokens struct {
	mu    sync.Mutex
	token string
	err   error
	calls int
}

func (m *mockTokens) AccessToken(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.token, m.err
}

func (m *mockTokens) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ==================== Drive ====================

type mockDrive struct {
	mu sync.Mutex

	files   []domain.DriveFile
	listErr error

	// failures is consumed per file id: each download pops one error.
	failures  map[string][]error
	content   map[string][]byte
	downloads map[string]int

	// onDownload runs before each download returns, outside the lock.
	onDownload func(fileID string)

	inFlight    int
	maxInFlight int
}

var _ driven.DriveClient = (*mockDrive)(nil)

func newMockDrive(files ...domain.DriveFile) *mockDrive {
	return &mockDrive{
		files:     files,
		failures:  make(map[string][]error),
		content:   make(map[string][]byte),
		downloads: make(map[string]int),
	}
}

func (m *mockDrive) ListFiles(_ context.Context, _, _ string) ([]domain.DriveFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.files), m.listErr
}

func (m *mockDrive) Download(_ context.Context, _, fileID string) ([]byte, error) {
	m.mu.Lock()
	m.downloads[fileID]++
	m.inFlight++
	m.maxInFlight = max(m.maxInFlight, m.inFlight)
	var err error
	if queue := m.failures[fileID]; len(queue) > 0 {
		err = queue[0]
		m.failures[fileID] = queue[1:]
	}
	data, ok := m.content[fileID]
	hook := m.onDownload
	m.mu.Unlock()

	if hook != nil {
		hook(fileID)
	}
	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		data = []byte("resume of " + fileID)
	}
	return data, nil
}

func (m *mockDrive) downloadCount(fileID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloads[fileID]
}

// ==================== Sheets ====================

type appendCall struct {
	SpreadsheetID string
	Rows          [][]string
	SkipHeaderRow bool
}

type mockSheets struct {
	mu        sync.Mutex
	created   []string
	appends   []appendCall
	createErr error
	appendErr error
}

var _ driven.SheetsClient = (*mockSheets)(nil)

func (m *mockSheets) CreateSpreadsheet(_ context.Context, _, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, title)
	return "sheet-1", nil
}

func (m *mockSheets) AppendRows(_ context.Context, _, spreadsheetID string, rows [][]string, skipHeaderRow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appends = append(m.appends, appendCall{spreadsheetID, rows, skipHeaderRow})
	return nil
}

// dataAppends returns appends after the header write.
func (m *mockSheets) dataAppends() []appendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []appendCall
	for _, a := range m.appends {
		if a.SkipHeaderRow {
			out = append(out, a)
		}
	}
	return out
}

// ==================== Parser ====================

type mockParser struct {
	mu    sync.Mutex
	names []string
}

var _ driven.DocumentParser = (*mockParser)(nil)

func (m *mockParser) ParseBytes(_ context.Context, fileName string, data []byte) domain.ExtractionResult {
	m.mu.Lock()
	m.names = append(m.names, fileName)
	m.mu.Unlock()
	if string(data) == "malformed" {
		return domain.ExtractionResult{Errors: []string{"could not read document"}}
	}
	return domain.ExtractionResult{
		Email:      fileName + "@example.com",
		Confidence: 0.45,
	}
}

// ==================== Job Store ====================

type memJobStore struct {
	mu       sync.Mutex
	statuses map[string]domain.JobStatus
	history  map[string][]domain.JobStatus
	results  map[string][]domain.ParsedCandidate
	requests map[string]domain.BatchParseRequest
	leases   map[string]bool
}

var _ driven.JobStore = (*memJobStore)(nil)

func newMemJobStore() *memJobStore {
	return &memJobStore{
		statuses: make(map[string]domain.JobStatus),
		history:  make(map[string][]domain.JobStatus),
		results:  make(map[string][]domain.ParsedCandidate),
		requests: make(map[string]domain.BatchParseRequest),
		leases:   make(map[string]bool),
	}
}

type memLease struct {
	store *memJobStore
	jobID string
}

func (l *memLease) Release() error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	delete(l.store.leases, l.jobID)
	return nil
}

func (m *memJobStore) AcquireLease(_ context.Context, jobID string) (driven.JobLease, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leases[jobID] {
		return nil, false, nil
	}
	m.leases[jobID] = true
	return &memLease{store: m, jobID: jobID}, true, nil
}

func (m *memJobStore) leased(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leases[jobID]
}

func (m *memJobStore) SaveStatus(_ context.Context, status *domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.JobID] = *status
	m.history[status.JobID] = append(m.history[status.JobID], *status)
	return nil
}

func (m *memJobStore) GetStatus(_ context.Context, jobID string) (*domain.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[jobID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memJobStore) SaveResults(_ context.Context, jobID string, results []domain.ParsedCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[jobID] = slices.Clone(results)
	return nil
}

func (m *memJobStore) GetResults(_ context.Context, jobID string) ([]domain.ParsedCandidate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[jobID]
	return r, ok, nil
}

func (m *memJobStore) SaveRequest(_ context.Context, jobID string, req domain.BatchParseRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[jobID] = req
	return nil
}

func (m *memJobStore) GetRequest(_ context.Context, jobID string) (*domain.BatchParseRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[jobID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memJobStore) List(_ context.Context) ([]*domain.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.JobStatus, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, &s)
	}
	slices.SortFunc(out, func(a, b *domain.JobStatus) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (m *memJobStore) Sweep(_ context.Context, now time.Time, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.statuses {
		if s.RetentionAnchor().Add(retention).Before(now) && !m.leases[id] {
			delete(m.statuses, id)
			delete(m.results, id)
			n++
		}
	}
	return n, nil
}

func (m *memJobStore) statusHistory(jobID string) []domain.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history[jobID])
}

// ==================== Helpers ====================

var errBoom = errors.New("boom")

// instantSleep records requested backoffs without waiting.
type instantSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *instantSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *instantSleep) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.delays)
}
