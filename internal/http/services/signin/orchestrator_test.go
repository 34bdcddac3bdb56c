package signin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idbridge/idbridge/internal/events"
	"github.com/idbridge/idbridge/internal/federation"
	"github.com/idbridge/idbridge/internal/identity"
	"github.com/idbridge/idbridge/internal/providers"
	"github.com/idbridge/idbridge/internal/session"
)

// calls records the cross-layer call order so ordering rules are checkable.
type calls struct{ seq []string }

func (c *calls) add(s string) { c.seq = append(c.seq, s) }

type fakeExchange struct {
	calls *calls

	authURL    string
	identity   *federation.ExternalIdentity
	claims     *federation.StateClaims
	beginErr   error
	cbErr      error
	signOutURL string

	gotProvider  string
	gotReturnURL string
}

func (f *fakeExchange) BeginChallenge(_ context.Context, provider, returnURL string) (string, error) {
	f.calls.add("exchange.begin")
	f.gotProvider = provider
	f.gotReturnURL = returnURL
	return f.authURL, f.beginErr
}

func (f *fakeExchange) CompleteCallback(_ context.Context, provider, state, code string) (*federation.ExternalIdentity, *federation.StateClaims, error) {
	f.calls.add("exchange.callback")
	f.gotProvider = provider
	if f.cbErr != nil {
		return nil, nil, f.cbErr
	}
	return f.identity, f.claims, nil
}

func (f *fakeExchange) Schemes() []federation.SchemeInfo {
	return []federation.SchemeInfo{
		{Name: "Google", DisplayName: "Google"},
		{Name: "GitHub", DisplayName: "GitHub"},
	}
}

func (f *fakeExchange) SignOutURL(string) string { return f.signOutURL }

type fakeLinker struct {
	calls   *calls
	account *identity.Account
	created bool
	err     error
}

func (f *fakeLinker) ResolveOrCreate(_ context.Context, ext *federation.ExternalIdentity) (*identity.Account, bool, error) {
	f.calls.add("linker.resolve")
	if f.err != nil {
		return nil, false, f.err
	}
	return f.account, f.created, nil
}

type fakeSessions struct {
	calls *calls

	current      string
	currentErr   error
	establishErr error
	terminated   []string
}

func (f *fakeSessions) Establish(_ context.Context, accountID string) (*session.Session, error) {
	f.calls.add("sessions.establish")
	if f.establishErr != nil {
		return nil, f.establishErr
	}
	return &session.Session{Token: "tok-1", AccountID: accountID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeSessions) Current(_ context.Context, token string) (string, error) {
	f.calls.add("sessions.current")
	if f.currentErr != nil {
		return "", f.currentErr
	}
	return f.current, nil
}

func (f *fakeSessions) Terminate(_ context.Context, token string) error {
	f.calls.add("sessions.terminate")
	f.terminated = append(f.terminated, token)
	return nil
}

func newFixture(t *testing.T) (*Orchestrator, *fakeExchange, *fakeLinker, *fakeSessions, *[]events.Event) {
	t.Helper()
	c := &calls{}
	ex := &fakeExchange{
		calls:   c,
		authURL: "https://provider/auth",
		identity: &federation.ExternalIdentity{
			ProviderID: "Google",
			SubjectID:  "sub-1",
			Claims:     map[string]string{federation.ClaimEmail: "ada@example.com"},
		},
		claims: &federation.StateClaims{Provider: "Google", ReturnURL: "/account", Nonce: "n"},
	}
	lk := &fakeLinker{
		calls:   c,
		account: &identity.Account{ID: "acc-1", Email: "ada@example.com", Name: "Ada"},
	}
	ss := &fakeSessions{calls: c, currentErr: session.ErrNoSession}

	var published []events.Event
	bus := events.NewBus()
	bus.Subscribe(func(_ context.Context, evt events.Event) error {
		c.add("bus.publish")
		published = append(published, evt)
		return nil
	})

	reg := providers.NewRegistry([]providers.Provider{
		{AuthenticationType: "Google", DisplayName: "Sign in with Google", LogoURL: "https://img/g.png"},
	})

	return NewOrchestrator(ex, lk, ss, bus, reg, "/"), ex, lk, ss, &published
}

func TestBeginPassesNormalizedReturnURL(t *testing.T) {
	orch, ex, _, _, _ := newFixture(t)

	res, err := orch.Begin(context.Background(), "Google", "/account")
	require.NoError(t, err)
	assert.Equal(t, "https://provider/auth", res.RedirectURL)
	assert.Equal(t, "/account", ex.gotReturnURL)
}

func TestBeginRejectsOpenRedirect(t *testing.T) {
	orch, ex, _, _, _ := newFixture(t)

	_, err := orch.Begin(context.Background(), "Google", "https://evil.test/phish")
	require.NoError(t, err)
	assert.Equal(t, "/", ex.gotReturnURL, "external URL must collapse to home")
}

func TestBeginUnknownProvider(t *testing.T) {
	orch, ex, _, _, _ := newFixture(t)
	ex.beginErr = federation.ErrUnknownProvider

	_, err := orch.Begin(context.Background(), "Nope", "/")
	assert.ErrorIs(t, err, federation.ErrUnknownProvider)
}

func TestCallbackHappyPath(t *testing.T) {
	orch, ex, lk, ss, published := newFixture(t)
	lk.created = true

	res, err := orch.Callback(context.Background(), "Google", "state", "code")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", res.AccountID)
	assert.True(t, res.NewAccount)
	assert.Equal(t, "/account", res.ReturnURL)
	require.NotNil(t, res.Session)
	assert.Equal(t, "acc-1", res.Session.AccountID)

	// Session exists before the event goes out.
	assert.Equal(t,
		[]string{"exchange.callback", "linker.resolve", "sessions.establish", "bus.publish"},
		ex.calls.seq)

	require.Len(t, *published, 1)
	login, ok := (*published)[0].(events.UserLoginEvent)
	require.True(t, ok)
	assert.Equal(t, "acc-1", login.AccountID)
	assert.Equal(t, "Google", login.Provider)
	assert.True(t, login.NewAccount)
	_ = ss
}

func TestCallbackReappliesRedirectGuard(t *testing.T) {
	orch, ex, _, _, _ := newFixture(t)
	ex.claims = &federation.StateClaims{Provider: "Google", ReturnURL: "https://evil.test/x", Nonce: "n"}

	res, err := orch.Callback(context.Background(), "Google", "state", "code")
	require.NoError(t, err)
	assert.Equal(t, "/", res.ReturnURL)
}

func TestCallbackExchangeFailureStopsEverything(t *testing.T) {
	orch, ex, _, _, published := newFixture(t)
	ex.cbErr = federation.ErrExchangeFailed

	_, err := orch.Callback(context.Background(), "Google", "state", "code")
	assert.ErrorIs(t, err, federation.ErrExchangeFailed)
	assert.Equal(t, []string{"exchange.callback"}, ex.calls.seq)
	assert.Empty(t, *published)
}

func TestCallbackLinkageConflictEstablishesNothing(t *testing.T) {
	orch, ex, lk, _, published := newFixture(t)
	lk.err = identity.ErrLinkageConflict

	_, err := orch.Callback(context.Background(), "Google", "state", "code")
	assert.ErrorIs(t, err, identity.ErrLinkageConflict)
	assert.Equal(t, []string{"exchange.callback", "linker.resolve"}, ex.calls.seq)
	assert.Empty(t, *published)
}

func TestCallbackSessionFailurePublishesNothing(t *testing.T) {
	orch, _, _, ss, published := newFixture(t)
	ss.establishErr = errors.New("cache down")

	_, err := orch.Callback(context.Background(), "Google", "state", "code")
	require.Error(t, err)
	assert.Empty(t, *published)
}

func TestSignOutTerminatesBeforeAnnouncing(t *testing.T) {
	orch, ex, _, ss, published := newFixture(t)
	ss.current = "acc-1"
	ss.currentErr = nil

	res, err := orch.SignOut(context.Background(), "tok-1", "/bye", "")
	require.NoError(t, err)
	assert.True(t, res.HadSession)
	assert.Equal(t, "/bye", res.RedirectURL)

	assert.Equal(t,
		[]string{"sessions.current", "sessions.terminate", "bus.publish"},
		ex.calls.seq)
	assert.Equal(t, []string{"tok-1"}, ss.terminated)

	require.Len(t, *published, 1)
	logout, ok := (*published)[0].(events.UserLogoutEvent)
	require.True(t, ok)
	assert.Equal(t, "acc-1", logout.AccountID)
}

func TestSignOutAnonymousIsSilent(t *testing.T) {
	orch, _, _, _, published := newFixture(t)

	res, err := orch.SignOut(context.Background(), "", "/bye", "")
	require.NoError(t, err)
	assert.False(t, res.HadSession)
	assert.Equal(t, "/bye", res.RedirectURL)
	assert.Empty(t, *published, "no logout event without a session")
}

func TestSignOutUsesProviderLogoutURL(t *testing.T) {
	orch, ex, _, ss, _ := newFixture(t)
	ss.current = "acc-1"
	ss.currentErr = nil
	ex.signOutURL = "https://login.provider/logout"

	res, err := orch.SignOut(context.Background(), "tok-1", "/bye", "AzureAD")
	require.NoError(t, err)
	assert.Equal(t, "https://login.provider/logout", res.RedirectURL)
}

func TestSignOutRejectsOpenRedirect(t *testing.T) {
	orch, _, _, _, _ := newFixture(t)

	res, err := orch.SignOut(context.Background(), "", "https://evil.test", "")
	require.NoError(t, err)
	assert.Equal(t, "/", res.RedirectURL)
}

func TestProvidersJoinsRegistry(t *testing.T) {
	orch, _, _, _, _ := newFixture(t)

	list := orch.Providers(context.Background())
	require.Len(t, list, 2)

	assert.Equal(t, "Google", list[0].AuthenticationType)
	assert.Equal(t, "Sign in with Google", list[0].DisplayName, "registry display name wins")
	assert.Equal(t, "https://img/g.png", list[0].LogoURL)

	assert.Equal(t, "GitHub", list[1].AuthenticationType)
	assert.Equal(t, "GitHub", list[1].DisplayName, "scheme display name is the fallback")
	assert.Empty(t, list[1].LogoURL)
}
