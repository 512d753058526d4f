// Package oauth provides the loopback redirect listener and the browser
// launcher used by interactive sign-in.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
	"github.com/custodia-labs/sourcestack/internal/core/ports/driven"
)

// Ensure Listener implements the interface.
var _ driven.LoopbackListener = (*Listener)(nil)

// CallbackPath is the path Google redirects to.
const CallbackPath = "/callback"

// Listener is a one-shot HTTP server on the loopback interface that
// receives the OAuth redirect. Only the first callback is delivered.
type Listener struct {
	server      *http.Server
	listener    net.Listener
	redirectURI string

	deliver   sync.Once
	callbacks chan *domain.OAuthCallback
	errs      chan error
	closeOnce sync.Once
}

// Listen starts a listener on a random port of 127.0.0.1.
func Listen() (driven.LoopbackListener, error) {
	return ListenOn("127.0.0.1:0")
}

// ListenOn starts a listener on addr.
func ListenOn(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	l := &Listener{
		listener:    ln,
		redirectURI: fmt.Sprintf("http://%s%s", ln.Addr().String(), CallbackPath),
		callbacks:   make(chan *domain.OAuthCallback, 1),
		errs:        make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, l.handleCallback)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case l.errs <- err:
			default:
			}
		}
	}()
	return l, nil
}

// RedirectURI returns the URI to register as redirect_uri.
func (l *Listener) RedirectURI() string {
	return l.redirectURI
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cb := &domain.OAuthCallback{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
	if cb.Code == "" && cb.State == "" && cb.Error == "" {
		writePage(w, http.StatusBadRequest, "Not a sign-in redirect", "This address only accepts the Google sign-in redirect.")
		return
	}

	delivered := false
	l.deliver.Do(func() {
		l.callbacks <- cb
		delivered = true
	})
	if !delivered {
		writePage(w, http.StatusConflict, "Sign-in already handled", "You can close this window.")
		return
	}

	if cb.Error != "" {
		writePage(w, http.StatusOK, "Sign-in failed", cb.Error+" "+cb.ErrorDescription)
		return
	}
	writePage(w, http.StatusOK, "Sign-in received", "You can close this window and return to the terminal.")
}

// WaitForCallback blocks until the redirect arrives, timeout passes or ctx
// is done. The callback is returned unvalidated.
func (l *Listener) WaitForCallback(ctx context.Context, timeout time.Duration) (*domain.OAuthCallback, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case cb := <-l.callbacks:
		return cb, nil
	case err := <-l.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, domain.NewAuthError(domain.CodeLoopbackTimeout,
			fmt.Sprintf("No sign-in redirect arrived within %s.", timeout))
	}
}

// Close shuts the server down. Safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = l.server.Shutdown(ctx)
	})
	return err
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>sourcestack sign-in</title>
<style>body{font-family:-apple-system,'Segoe UI',Roboto,sans-serif;display:flex;justify-content:center;align-items:center;height:100vh;margin:0;background:#FAFAFA}
.box{text-align:center;background:#fff;padding:48px 64px;border-radius:16px;border:1px solid #C7C8CC}
h1{color:#333F50;margin:0 0 8px;font-size:24px}p{color:#7B8088;margin:0}</style>
</head>
<body><div class="box"><h1>%s</h1><p>%s</p></div></body>
</html>`, html.EscapeString(title), html.EscapeString(message))
}
