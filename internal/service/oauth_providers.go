package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/prperemyshlev/auth-engine/internal/domain"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	githubUserInfoURL = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// RegisterBuiltinProviders adds the google and github definitions to the
// registry. They stay inert until Configure gives them credentials.
func RegisterBuiltinProviders(r *ProviderRegistry) {
	r.Register(GoogleProvider())
	r.Register(GitHubProvider())
}

func GoogleProvider() *Provider {
	return &Provider{
		ID:          "google",
		Name:        "Google",
		Endpoint:    google.Endpoint,
		Scopes:      []string{"openid", "email", "profile"},
		UserInfoURL: googleUserInfoURL,
		MapProfile: func(raw map[string]any) domain.OAuthProfile {
			return domain.OAuthProfile{
				ID:    stringField(raw, "id"),
				Email: stringField(raw, "email"),
				Name:  stringField(raw, "name"),
				Image: stringField(raw, "picture"),
			}
		},
	}
}

func GitHubProvider() *Provider {
	return &Provider{
		ID:          "github",
		Name:        "GitHub",
		Endpoint:    github.Endpoint,
		Scopes:      []string{"read:user", "user:email"},
		UserInfoURL: githubUserInfoURL,
		MapProfile: func(raw map[string]any) domain.OAuthProfile {
			return domain.OAuthProfile{
				ID:    numericID(raw, "id"),
				Email: stringField(raw, "email"),
				Name:  stringField(raw, "name"),
				Image: stringField(raw, "avatar_url"),
			}
		},
		FetchEmail: fetchGitHubPrimaryEmail,
	}
}

// fetchGitHubPrimaryEmail resolves the email for profiles that keep it
// private: the primary verified address wins, any verified one is the
// fallback.
func fetchGitHubPrimaryEmail(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (string, error) {
	resp, err := cfg.Client(ctx, token).Get(githubEmailsURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, githubEmailsURL)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}

	fallback := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("no verified email on github account")
	}
	return fallback, nil
}

func fetchUserInfo(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, url string) (map[string]any, error) {
	resp, err := cfg.Client(ctx, token).Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

// numericID renders a JSON number id as a string without a float exponent.
func numericID(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
