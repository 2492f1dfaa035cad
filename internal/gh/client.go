package gh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// UserInfo is the subset of the GitHub user profile the dashboard tracks.
type UserInfo struct {
	ID       int64
	Login    string
	UserType string
}

// Sponsor mirrors one GitHub Sponsors relationship.
type Sponsor struct {
	GithubID       int64
	Login          string
	MonthlyDollars int64
	IsOneTime      bool
	IsActive       bool
	TierSelectedAt time.Time
}

// Client talks to the GitHub API. User lookups run with the caller's OAuth
// token first and fall back to the service token when GitHub rejects it.
type Client interface {
	User(ctx context.Context, userToken, login string) (*UserInfo, error)
	Organizations(ctx context.Context, userToken, login string) ([]string, error)
	ListSponsors(ctx context.Context) ([]Sponsor, error)
}

var ErrNoToken = errors.New("no github token available")

type client struct {
	serviceToken string
	graphqlURL   string
	apiBaseURL   string
	httpTimeout  time.Duration
}

type Option func(*client)

// WithBaseURLs overrides API endpoints, used by tests.
func WithBaseURLs(apiBase, graphql string) Option {
	return func(c *client) {
		c.apiBaseURL = apiBase
		c.graphqlURL = graphql
	}
}

func NewClient(serviceToken string, opts ...Option) Client {
	c := &client{
		serviceToken: serviceToken,
		graphqlURL:   "https://api.github.com/graphql",
		httpTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) rest(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = c.httpTimeout

	cli := github.NewClient(tc)
	if c.apiBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(c.apiBaseURL, "/") + "/")
		if err == nil {
			cli.BaseURL = base
		}
	}
	return cli
}

// withFallback runs fn with the user token and retries once with the service
// token when GitHub answers 401/403 (expired or under-scoped user token).
func (c *client) withFallback(ctx context.Context, userToken string, fn func(cli *github.Client) error) error {
	tokens := make([]string, 0, 2)
	if userToken != "" {
		tokens = append(tokens, userToken)
	}
	if c.serviceToken != "" && c.serviceToken != userToken {
		tokens = append(tokens, c.serviceToken)
	}
	if len(tokens) == 0 {
		return ErrNoToken
	}

	var lastErr error
	for _, token := range tokens {
		err := fn(c.rest(ctx, token))
		if err == nil {
			return nil
		}
		lastErr = err
		if !isAuthError(err) {
			return err
		}
	}
	return lastErr
}

func isAuthError(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		return status == http.StatusUnauthorized || status == http.StatusForbidden
	}
	return false
}

func (c *client) User(ctx context.Context, userToken, login string) (*UserInfo, error) {
	var info *UserInfo
	err := c.withFallback(ctx, userToken, func(cli *github.Client) error {
		user, _, err := cli.Users.Get(ctx, login)
		if err != nil {
			return err
		}
		info = &UserInfo{
			ID:       user.GetID(),
			Login:    user.GetLogin(),
			UserType: user.GetType(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (c *client) Organizations(ctx context.Context, userToken, login string) ([]string, error) {
	var logins []string
	err := c.withFallback(ctx, userToken, func(cli *github.Client) error {
		logins = logins[:0]
		opts := &github.ListOptions{PerPage: 100}
		for {
			orgs, resp, err := cli.Organizations.List(ctx, login, opts)
			if err != nil {
				return err
			}
			for _, org := range orgs {
				logins = append(logins, org.GetLogin())
			}
			if resp.NextPage == 0 {
				return nil
			}
			opts.Page = resp.NextPage
		}
	})
	if err != nil {
		return nil, err
	}
	return logins, nil
}

const sponsorsQuery = `query($cursor: String) {
  viewer {
    sponsorshipsAsMaintainer(first: 100, after: $cursor, includePrivate: true, activeOnly: false) {
      pageInfo { hasNextPage endCursor }
      nodes {
        isOneTimePayment
        isActive
        tierSelectedAt
        tier { monthlyPriceInDollars }
        sponsorEntity {
          ... on User { databaseId login }
          ... on Organization { databaseId login }
        }
      }
    }
  }
}`

type sponsorsResponse struct {
	Data struct {
		Viewer struct {
			SponsorshipsAsMaintainer struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []struct {
					IsOneTimePayment bool       `json:"isOneTimePayment"`
					IsActive         bool       `json:"isActive"`
					TierSelectedAt   *time.Time `json:"tierSelectedAt"`
					Tier             struct {
						MonthlyPriceInDollars float64 `json:"monthlyPriceInDollars"`
					} `json:"tier"`
					SponsorEntity struct {
						DatabaseID int64  `json:"databaseId"`
						Login      string `json:"login"`
					} `json:"sponsorEntity"`
				} `json:"nodes"`
			} `json:"sponsorshipsAsMaintainer"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ListSponsors pages through the Sponsors GraphQL connection with the service
// token. The REST API has no sponsors listing.
func (c *client) ListSponsors(ctx context.Context) ([]Sponsor, error) {
	if c.serviceToken == "" {
		return nil, ErrNoToken
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.serviceToken})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = c.httpTimeout

	var sponsors []Sponsor
	cursor := ""
	for {
		body, err := json.Marshal(map[string]any{
			"query": sponsorsQuery,
			"variables": map[string]any{
				"cursor": nullableCursor(cursor),
			},
		})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		var parsed sponsorsResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, decodeErr
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("github graphql: unexpected status %d", resp.StatusCode)
		}
		if len(parsed.Errors) > 0 {
			return nil, fmt.Errorf("github graphql: %s", parsed.Errors[0].Message)
		}

		conn := parsed.Data.Viewer.SponsorshipsAsMaintainer
		for _, node := range conn.Nodes {
			sponsor := Sponsor{
				GithubID:       node.SponsorEntity.DatabaseID,
				Login:          node.SponsorEntity.Login,
				MonthlyDollars: int64(node.Tier.MonthlyPriceInDollars),
				IsOneTime:      node.IsOneTimePayment,
				IsActive:       node.IsActive,
			}
			if node.TierSelectedAt != nil {
				sponsor.TierSelectedAt = node.TierSelectedAt.UTC()
			}
			sponsors = append(sponsors, sponsor)
		}
		if !conn.PageInfo.HasNextPage {
			return sponsors, nil
		}
		cursor = conn.PageInfo.EndCursor
	}
}

func nullableCursor(cursor string) any {
	if cursor == "" {
		return nil
	}
	return cursor
}
