// Package web serves the OAuth redirect callback that completes account
// linking.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Linker completes the authorization-code exchange for a pending state.
type Linker interface {
	CompleteLink(ctx context.Context, state, code string) (string, error)
}

// CallbackServer listens for the authorization redirect.
type CallbackServer struct {
	server *http.Server
	linker Linker
}

// NewCallbackServer builds the listener on addr.
func NewCallbackServer(addr string, linker Linker) *CallbackServer {
	cs := &CallbackServer{linker: linker}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", cs.handleCallback)
	cs.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return cs
}

// Start runs the listener until Shutdown.
func (cs *CallbackServer) Start() error {
	zlog.Info().Str("addr", cs.server.Addr).Msg("web: callback server listening")
	if err := cs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "callback server failed")
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (cs *CallbackServer) Shutdown(ctx context.Context) error {
	return errors.Wrap(cs.server.Shutdown(ctx), "failed to shut down callback server")
}

func (cs *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		zlog.Warn().Str("error", errCode).Msg("web: authorization denied")
		writePage(w, http.StatusOK, "Authorization cancelled",
			"You declined the authorization. You can close this tab.")
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		writePage(w, http.StatusBadRequest, "Invalid request",
			"The callback is missing required parameters.")
		return
	}

	userID, err := cs.linker.CompleteLink(r.Context(), state, code)
	if err != nil {
		zlog.Error().Err(err).Msg("web: link completion failed")
		writePage(w, http.StatusBadRequest, "Linking failed",
			"The authorization could not be completed. Start over with /link in Discord.")
		return
	}

	zlog.Info().Str("user", userID).Msg("web: account linked")
	writePage(w, http.StatusOK, "Spotify linked",
		"All set! Your now-playing status will appear in Discord shortly. You can close this tab.")
}

func writePage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(
		"<!DOCTYPE html><html><head><title>" + title + "</title></head>" +
			"<body style=\"font-family:sans-serif;text-align:center;margin-top:4em\">" +
			"<h1>" + title + "</h1><p>" + body + "</p></body></html>"))
}
