package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/config"
	"github.com/Abraxas-365/gatekeeper/pkg/errx"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/provider"
	"github.com/Abraxas-365/gatekeeper/pkg/iam/user"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	validation "github.com/go-ozzo/ozzo-validation"
)

const GitHubName = "github"

// Profile is what an exchange learns about the external account
type Profile struct {
	ID            string
	Login         string
	Name          string
	Email         string
	EmailVerified bool
}

// Exchanger turns an authorization code into the account's profile
type Exchanger interface {
	Exchange(ctx context.Context, code, redirectURI string) (*Profile, error)
}

// GitHub signs users in with an OAuth authorization code
type GitHub struct {
	linker
	exchanger Exchanger
}

func NewGitHub(users user.Repository, repo provider.Repository, exchanger Exchanger, clock kernel.Clock, timeout time.Duration) *GitHub {
	return &GitHub{
		linker:    newLinker(GitHubName, users, repo, clock, timeout),
		exchanger: exchanger,
	}
}

func (g *GitHub) Validate(ctx context.Context, raw json.RawMessage, _ provider.Mode) (*provider.Validated, error) {
	var in struct {
		Code        string `json:"code"`
		RedirectURI string `json:"redirect_uri"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errx.Invalid(errx.FieldErrors{"body": {"malformed request body"}})
	}
	if err := validation.Validate(in.Code, validation.Required); err != nil {
		return nil, errx.Invalid(errx.FieldErrors{"code": {err.Error()}})
	}

	p, err := call(ctx, &g.linker, func(ctx context.Context) (*Profile, error) {
		return g.exchanger.Exchange(ctx, in.Code, in.RedirectURI)
	})
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, provider.ErrAuthFailed().WithDetail("provider", GitHubName)
	}

	return &provider.Validated{
		ProviderID:    p.ID,
		Email:         kernel.NormalizeEmail(p.Email),
		EmailVerified: p.EmailVerified,
		Data:          map[string]any{"login": p.Login, "name": p.Name},
	}, nil
}

// GitHubClient is the Exchanger talking to github.com
type GitHubClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiURL       string
	http         *http.Client
}

func NewGitHubClient(cfg config.OAuthConfig, client *http.Client) *GitHubClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GitHubClient{
		clientID:     cfg.GitHubClientID,
		clientSecret: cfg.GitHubClientSecret,
		tokenURL:     cfg.GitHubTokenURL,
		apiURL:       strings.TrimRight(cfg.GitHubAPIURL, "/"),
		http:         client,
	}
}

func (c *GitHubClient) Exchange(ctx context.Context, code, redirectURI string) (*Profile, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
	}
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := c.do(req, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("github: token exchange: %s", tok.Error)
	}

	var me struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := c.get(ctx, tok.AccessToken, "/user", &me); err != nil {
		return nil, err
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := c.get(ctx, tok.AccessToken, "/user/emails", &emails); err != nil {
		return nil, err
	}

	p := &Profile{ID: strconv.FormatInt(me.ID, 10), Login: me.Login, Name: me.Name}
	for _, e := range emails {
		if e.Primary {
			p.Email = e.Email
			p.EmailVerified = e.Verified
			break
		}
	}
	return p, nil
}

func (c *GitHubClient) get(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, out)
}

func (c *GitHubClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("github: %s %s: http %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
