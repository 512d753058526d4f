//nolint:noctx // Test file uses http.Get for convenience; context not required in tests
package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

func newTestListener(t *testing.T) *Listener {
	t.Helper()
	l, err := ListenOn("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func hit(t *testing.T, l *Listener, query url.Values) int {
	t.Helper()
	resp, err := http.Get(l.RedirectURI() + "?" + query.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestListen_RedirectURI(t *testing.T) {
	l, err := Listen()
	require.NoError(t, err)
	defer l.Close()

	u, err := url.Parse(l.RedirectURI())
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "127.0.0.1", u.Hostname())
	assert.NotEqual(t, "0", u.Port())
	assert.Equal(t, CallbackPath, u.Path)
}

func TestListener_DeliversCallback(t *testing.T) {
	l := newTestListener(t)

	go hit(t, l, url.Values{"code": {"the-code"}, "state": {"the-state"}})

	cb, err := l.WaitForCallback(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "the-code", cb.Code)
	assert.Equal(t, "the-state", cb.State)
	assert.Empty(t, cb.Error)
}

func TestListener_DeliversProviderError(t *testing.T) {
	l := newTestListener(t)

	go hit(t, l, url.Values{"error": {"access_denied"}, "error_description": {"denied"}})

	cb, err := l.WaitForCallback(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "access_denied", cb.Error)
	assert.Equal(t, "denied", cb.ErrorDescription)
}

func TestListener_OnlyFirstCallbackDelivered(t *testing.T) {
	l := newTestListener(t)

	assert.Equal(t, http.StatusOK, hit(t, l, url.Values{"code": {"first"}, "state": {"s"}}))
	assert.Equal(t, http.StatusConflict, hit(t, l, url.Values{"code": {"second"}, "state": {"s"}}))

	cb, err := l.WaitForCallback(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", cb.Code)
}

func TestListener_IgnoresEmptyRequests(t *testing.T) {
	l := newTestListener(t)

	assert.Equal(t, http.StatusBadRequest, hit(t, l, url.Values{}))
	assert.Equal(t, http.StatusOK, hit(t, l, url.Values{"code": {"c"}, "state": {"s"}}))

	cb, err := l.WaitForCallback(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "c", cb.Code)
}

func TestListener_Timeout(t *testing.T) {
	l := newTestListener(t)

	_, err := l.WaitForCallback(context.Background(), 20*time.Millisecond)

	require.ErrorIs(t, err, domain.ErrLoopbackTimeout)
	assert.Equal(t, domain.FallbackLoopbackTimeout, domain.FallbackReason(err))
}

func TestListener_ContextCancelled(t *testing.T) {
	l := newTestListener(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.WaitForCallback(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestListener_EscapesPage(t *testing.T) {
	l := newTestListener(t)

	resp, err := http.Get(l.RedirectURI() + "?error=" + url.QueryEscape("<script>x</script>"))
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := new(strings.Builder)
	_, _ = buf.ReadFrom(resp.Body)
	assert.NotContains(t, buf.String(), "<script>")
}

func TestListener_CloseIsIdempotent(t *testing.T) {
	l, err := ListenOn("127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Close()
		}()
	}
	wg.Wait()

	_, err = http.Get(l.RedirectURI() + "?code=x")
	assert.Error(t, err)
}
