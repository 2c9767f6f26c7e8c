package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

// GitHubUser is the part of the GitHub profile used to find or create an
// account. Email is the primary verified address, or "" when GitHub exposes
// none.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

// GitHubProvider runs the OAuth authorization code flow against GitHub.
//
// FLOW:
//  1. /api/auth/github/login redirects to AuthURL(state)
//  2. GitHub redirects back to the callback with ?code=...&state=...
//  3. Exchange trades the code for an access token server-to-server and
//     reads /user (plus /user/emails when the profile email is hidden)
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
	logger  *slog.Logger
}

// NewGitHubProvider creates a provider for one registered OAuth App.
// callbackURL must equal the app's "Authorization callback URL".
func NewGitHubProvider(clientID, clientSecret, callbackURL string, logger *slog.Logger) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
		logger:  logger,
	}
}

// AuthURL returns the GitHub consent page URL. state is echoed back on the
// callback and must be checked against the value stored before redirecting.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow and returns the GitHub profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	client := p.config.Client(ctx, token)

	var ghUser GitHubUser
	if err := getJSON(ctx, client, p.apiBase+"/user", &ghUser); err != nil {
		return nil, err
	}
	if ghUser.ID == 0 {
		return nil, errors.New("auth: GitHub returned an invalid user (ID = 0)")
	}

	if ghUser.Email == "" {
		// Hidden profile email. A failure here is not fatal: the caller
		// falls back to the noreply address.
		email, err := p.primaryEmail(ctx, client)
		if err != nil {
			p.logger.Warn("failed to read GitHub email addresses",
				slog.Int64("githubID", ghUser.ID),
				slog.String("error", err.Error()),
			)
		}
		ghUser.Email = email
	}
	return &ghUser, nil
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (p *GitHubProvider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding %s: %w", url, err)
	}
	return nil
}

// NoReplyEmail is the address GitHub itself uses for users who hide theirs.
// The ID prefix keeps it unique after a login is renamed or reused.
func NoReplyEmail(id int64, login string) string {
	return strconv.FormatInt(id, 10) + "+" + login + "@users.noreply.github.com"
}
