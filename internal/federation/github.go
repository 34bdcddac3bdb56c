package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHubConfig configures the GitHub OAuth2 client. GitHub does not speak
// OIDC, so identity comes from the REST API rather than an ID token.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// GitHubClient implements Client for GitHub accounts.
type GitHubClient struct {
	oauth *oauth2.Config
}

func NewGitHub(cfg GitHubConfig) *GitHubClient {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:user", "user:email"}
	}
	return &GitHubClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       cfg.Scopes,
		},
	}
}

// BeginChallenge builds the authorization URL. GitHub has no nonce concept;
// replay protection rides on the signed state alone.
func (c *GitHubClient) BeginChallenge(_ context.Context, state, _ string) (string, error) {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("allow_signup", "true")), nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// CompleteCallback exchanges the code and fetches the user profile. The
// public email on /user is often empty, so /user/emails is consulted,
// preferring the primary verified address.
func (c *GitHubClient) CompleteCallback(ctx context.Context, code, _ string) (*ExternalIdentity, error) {
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", ErrExchangeFailed, err)
	}
	httpClient := c.oauth.Client(ctx, tok)

	var user githubUser
	if err := getJSON(ctx, httpClient, githubUserURL, &user); err != nil {
		return nil, fmt.Errorf("%w: fetch user: %v", ErrExchangeFailed, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: user response lacks id", ErrIdentityInvalid)
	}

	email := user.Email
	verified := false
	var emails []githubEmail
	if err := getJSON(ctx, httpClient, githubEmailsURL, &emails); err == nil {
		if picked, ok := pickEmail(emails); ok {
			email = picked.Email
			verified = picked.Verified
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &ExternalIdentity{
		SubjectID: strconv.FormatInt(user.ID, 10),
		Claims: map[string]string{
			ClaimEmail:         email,
			ClaimEmailVerified: strconv.FormatBool(verified),
			ClaimName:          name,
			ClaimPicture:       user.AvatarURL,
		},
	}, nil
}

// pickEmail chooses the primary verified address, then any verified one,
// then the first listed.
func pickEmail(emails []githubEmail) (githubEmail, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e, true
		}
	}
	if len(emails) > 0 {
		return emails[0], true
	}
	return githubEmail{}, false
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
