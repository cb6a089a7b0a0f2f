package spotify

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Error taxonomy for Spotify API failures. Classification happens once at
// this boundary; downstream logic matches with errors.Is and never inspects
// raw error shapes.
var (
	// ErrAuthExpired marks a rejected access token. Callers may refresh
	// and retry the request exactly once.
	ErrAuthExpired = errors.New("spotify: access token rejected")

	// ErrAuthRevoked marks a rejected refresh token (revoked consent).
	// The linked account is unrecoverable.
	ErrAuthRevoked = errors.New("spotify: refresh token rejected")

	// ErrRateLimited marks a 429. Skip the call and let the next
	// scheduled cycle try again; no immediate retry.
	ErrRateLimited = errors.New("spotify: rate limited")

	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("spotify: resource not found")
)

// classify tags a Web API error with its taxonomy sentinel. Errors that do
// not map to a known category pass through unchanged and are treated as
// transient by callers.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return errors.Mark(err, ErrAuthExpired)
		case http.StatusTooManyRequests:
			return errors.Mark(err, ErrRateLimited)
		case http.StatusNotFound:
			return errors.Mark(err, ErrNotFound)
		}
	}
	return err
}

// classifyRefresh tags a token-endpoint error. A definitive rejection by
// the authorization server marks the refresh token as revoked; transport
// failures stay transient.
func classifyRefresh(err error) error {
	if err == nil {
		return nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return errors.Mark(err, ErrAuthRevoked)
		}
		if resp := retrieveErr.Response; resp != nil &&
			(resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return errors.Mark(err, ErrAuthRevoked)
		}
		if resp := retrieveErr.Response; resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return errors.Mark(err, ErrRateLimited)
		}
	}
	return err
}
