package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/LeafDevs/qbot/internal/infra/spotify"
	"github.com/LeafDevs/qbot/internal/infra/store"
)

// fakeAuth counts exchanges so tests can assert when refreshes happen.
type fakeAuth struct {
	refreshCalls  int
	exchangeCalls int
	refreshToken  *oauth2.Token
	refreshErr    error
	exchangeToken *oauth2.Token
	exchangeErr   error
}

func (f *fakeAuth) AuthURL(state string) string {
	return "https://accounts.spotify.com/authorize?state=" + state
}

func (f *fakeAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.exchangeCalls++
	return f.exchangeToken, f.exchangeErr
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

func newService(t *testing.T, auth *fakeAuth) *Service {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	svc, err := New(st, auth, Config{
		ExpiryMargin: 60 * time.Second,
		StateTTL:     10 * time.Minute,
	})
	require.NoError(t, err)
	svc.sleep = func(time.Duration) {}
	return svc
}

func linkUser(svc *Service, userID string, expiresIn time.Duration) {
	svc.accounts[userID] = &LinkedAccount{
		UserID:       userID,
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(expiresIn).UnixMilli(),
	}
}

func TestValidToken_FreshTokenSkipsRefresh(t *testing.T) {
	auth := &fakeAuth{}
	svc := newService(t, auth)
	linkUser(svc, "user-1", 2*time.Minute)

	token, err := svc.ValidToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access-user-1", token)
	assert.Zero(t, auth.refreshCalls)
}

func TestValidToken_NearExpiryRefreshes(t *testing.T) {
	auth := &fakeAuth{
		refreshToken: &oauth2.Token{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			Expiry:       time.Now().Add(time.Hour),
		},
	}
	svc := newService(t, auth)
	linkUser(svc, "user-1", 30*time.Second)

	token, err := svc.ValidToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.Equal(t, 1, auth.refreshCalls)

	// Persisted account carries the new pair.
	assert.Equal(t, "new-refresh", svc.accounts["user-1"].RefreshToken)
}

func TestValidToken_ExpiredTokenRefreshes(t *testing.T) {
	auth := &fakeAuth{
		refreshToken: &oauth2.Token{AccessToken: "new-access", Expiry: time.Now().Add(time.Hour)},
	}
	svc := newService(t, auth)
	linkUser(svc, "user-1", -time.Minute)

	token, err := svc.ValidToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
}

func TestValidToken_RevokedRefreshDeletesAccount(t *testing.T) {
	auth := &fakeAuth{
		refreshErr: errors.Mark(errors.New("invalid_grant"), spotify.ErrAuthRevoked),
	}
	svc := newService(t, auth)
	linkUser(svc, "user-1", 30*time.Second)

	_, err := svc.ValidToken(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailure))
	assert.False(t, svc.IsLinked("user-1"))

	// A second call short-circuits without another refresh attempt.
	auth.refreshCalls = 0
	_, err = svc.ValidToken(context.Background(), "user-1")
	assert.True(t, errors.Is(err, ErrNotLinked))
	assert.Zero(t, auth.refreshCalls)
}

func TestValidToken_TransientRefreshFailureKeepsAccount(t *testing.T) {
	auth := &fakeAuth{refreshErr: errors.New("connection reset")}
	svc := newService(t, auth)
	linkUser(svc, "user-1", 30*time.Second)

	_, err := svc.ValidToken(context.Background(), "user-1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuthFailure))
	assert.True(t, svc.IsLinked("user-1"))
}

func TestValidToken_NotLinked(t *testing.T) {
	svc := newService(t, &fakeAuth{})
	_, err := svc.ValidToken(context.Background(), "user-1")
	assert.True(t, errors.Is(err, ErrNotLinked))
}

func TestValidToken_RefreshAppliesCooldown(t *testing.T) {
	auth := &fakeAuth{
		refreshToken: &oauth2.Token{AccessToken: "new-access", Expiry: time.Now().Add(time.Hour)},
	}
	svc := newService(t, auth)
	svc.cfg.RefreshCooldown = 750 * time.Millisecond

	var slept time.Duration
	svc.sleep = func(d time.Duration) { slept += d }
	linkUser(svc, "user-1", 10*time.Second)

	_, err := svc.ValidToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, slept)
}

func TestBeginAndCompleteLink(t *testing.T) {
	auth := &fakeAuth{
		exchangeToken: &oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		},
	}
	svc := newService(t, auth)

	url, err := svc.BeginLink("user-1")
	require.NoError(t, err)
	assert.Contains(t, url, "state=")

	require.Len(t, svc.states, 1)
	var state string
	for s := range svc.states {
		state = s
	}

	userID, err := svc.CompleteLink(context.Background(), state, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.True(t, svc.IsLinked("user-1"))

	// State is single-use.
	_, err = svc.CompleteLink(context.Background(), state, "auth-code")
	assert.True(t, errors.Is(err, ErrStateInvalid))
}

func TestCompleteLink_ExpiredState(t *testing.T) {
	svc := newService(t, &fakeAuth{})
	svc.states["stale"] = pendingAuth{UserID: "user-1", CreatedAt: time.Now().Add(-time.Hour)}

	_, err := svc.CompleteLink(context.Background(), "stale", "auth-code")
	assert.True(t, errors.Is(err, ErrStateInvalid))
}

func TestSweepStates(t *testing.T) {
	svc := newService(t, &fakeAuth{})
	svc.states["stale"] = pendingAuth{UserID: "user-1", CreatedAt: time.Now().Add(-time.Hour)}
	svc.states["fresh"] = pendingAuth{UserID: "user-2", CreatedAt: time.Now()}

	removed := svc.SweepStates()
	assert.Equal(t, 1, removed)
	assert.Contains(t, svc.states, "fresh")
	assert.NotContains(t, svc.states, "stale")
}

func TestUnlink(t *testing.T) {
	svc := newService(t, &fakeAuth{})
	linkUser(svc, "user-1", time.Hour)

	require.NoError(t, svc.Unlink("user-1"))
	assert.False(t, svc.IsLinked("user-1"))
	assert.True(t, errors.Is(svc.Unlink("user-1"), ErrNotLinked))
}

func TestLinkedUserIDs_StableOrder(t *testing.T) {
	svc := newService(t, &fakeAuth{})
	linkUser(svc, "charlie", time.Hour)
	linkUser(svc, "alice", time.Hour)
	linkUser(svc, "bob", time.Hour)

	assert.Equal(t, []string{"alice", "bob", "charlie"}, svc.LinkedUserIDs())
}

func TestNew_LoadsPersistedAccounts(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)

	first, err := New(st, &fakeAuth{}, Config{ExpiryMargin: time.Minute, StateTTL: 10 * time.Minute})
	require.NoError(t, err)
	first.accounts["user-1"] = &LinkedAccount{UserID: "user-1", AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, st.Save(store.DocUsers, first.accounts))

	second, err := New(st, &fakeAuth{}, Config{ExpiryMargin: time.Minute, StateTTL: 10 * time.Minute})
	require.NoError(t, err)
	assert.True(t, second.IsLinked("user-1"))
}

func TestCompleteLink_ConsumedStatePersistsAcrossRestart(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	auth := &fakeAuth{
		exchangeToken: &oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		},
	}
	cfg := Config{ExpiryMargin: time.Minute, StateTTL: 10 * time.Minute}

	first, err := New(st, auth, cfg)
	require.NoError(t, err)
	_, err = first.BeginLink("user-1")
	require.NoError(t, err)
	var token string
	for s := range first.states {
		token = s
	}
	_, err = first.CompleteLink(context.Background(), token, "auth-code")
	require.NoError(t, err)

	// A restarted service must not accept the consumed state again.
	second, err := New(st, auth, cfg)
	require.NoError(t, err)
	_, err = second.CompleteLink(context.Background(), token, "auth-code")
	assert.True(t, errors.Is(err, ErrStateInvalid))
}
