package identity_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idbridge/idbridge/internal/federation"
	"github.com/idbridge/idbridge/internal/identity"
	"github.com/idbridge/idbridge/internal/identity/memory"
)

func googleIdentity(subject, email string) *federation.ExternalIdentity {
	return &federation.ExternalIdentity{
		ProviderID: "Google",
		SubjectID:  subject,
		Claims: map[string]string{
			federation.ClaimEmail:         email,
			federation.ClaimEmailVerified: "true",
			federation.ClaimName:          "Ada Lovelace",
			federation.ClaimPicture:       "https://img.test/ada.png",
		},
	}
}

func TestLinkerCreatesAccountOnFirstSignIn(t *testing.T) {
	linker := identity.NewLinker(memory.New())

	acc, created, err := linker.ResolveOrCreate(context.Background(), googleIdentity("sub-1", "Ada@Example.com"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "ada@example.com", acc.Email)
	assert.Equal(t, "Ada Lovelace", acc.Name)
}

func TestLinkerResolvesExistingLink(t *testing.T) {
	linker := identity.NewLinker(memory.New())
	ctx := context.Background()

	first, created, err := linker.ResolveOrCreate(ctx, googleIdentity("sub-1", "ada@example.com"))
	require.NoError(t, err)
	require.True(t, created)

	// Changed claims do not fork a new account; the link wins.
	again, created, err := linker.ResolveOrCreate(ctx, googleIdentity("sub-1", "renamed@example.com"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "ada@example.com", again.Email)
}

func TestLinkerSameEmailDifferentProviderConflicts(t *testing.T) {
	linker := identity.NewLinker(memory.New())
	ctx := context.Background()

	_, _, err := linker.ResolveOrCreate(ctx, googleIdentity("sub-1", "ada@example.com"))
	require.NoError(t, err)

	other := googleIdentity("gh-77", "ada@example.com")
	other.ProviderID = "GitHub"
	_, _, err = linker.ResolveOrCreate(ctx, other)
	assert.ErrorIs(t, err, identity.ErrLinkageConflict)
}

func TestLinkerMissingEmail(t *testing.T) {
	linker := identity.NewLinker(memory.New())

	ext := googleIdentity("sub-1", "")
	_, _, err := linker.ResolveOrCreate(context.Background(), ext)
	assert.ErrorIs(t, err, identity.ErrAccountIncomplete)
}

// racingStore reports no link on lookup but a duplicate on create,
// simulating another replica winning the first sign-in race.
type racingStore struct {
	identity.AccountStore
	mu      sync.Mutex
	primed  bool
	winners int
}

func (r *racingStore) CreateWithLink(ctx context.Context, in identity.NewAccount) (*identity.Account, error) {
	r.mu.Lock()
	if !r.primed {
		r.primed = true
		r.mu.Unlock()
		// The "other replica" creates first.
		if _, err := r.AccountStore.CreateWithLink(ctx, in); err != nil {
			return nil, err
		}
		return nil, identity.ErrDuplicateLink
	}
	r.mu.Unlock()
	return r.AccountStore.CreateWithLink(ctx, in)
}

func TestLinkerRetriesAsLookupOnLinkRace(t *testing.T) {
	store := &racingStore{AccountStore: memory.New()}
	linker := identity.NewLinker(store)

	acc, created, err := linker.ResolveOrCreate(context.Background(), googleIdentity("sub-1", "ada@example.com"))
	require.NoError(t, err)
	assert.False(t, created, "loser of the race must not report creation")
	assert.NotEmpty(t, acc.ID)
}

func TestLinkerConcurrentFirstSignInsConverge(t *testing.T) {
	linker := identity.NewLinker(memory.New())
	ext := googleIdentity("sub-1", "ada@example.com")

	const n = 16
	ids := make([]string, n)
	createds := make([]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc, created, err := linker.ResolveOrCreate(context.Background(), ext)
			require.NoError(t, err)
			ids[i] = acc.ID
			createds[i] = created
		}(i)
	}
	wg.Wait()

	creations := 0
	for i := 1; i < n; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
	for _, c := range createds {
		if c {
			creations++
		}
	}
	assert.Equal(t, 1, creations, "exactly one caller observes the creation")
}
