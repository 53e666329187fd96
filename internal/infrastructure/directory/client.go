// Package directory retrieves domain users from the Admin SDK directory
// API. Only the two calls the recall pipeline needs are implemented:
// paged user listing by email prefix and the super-admin check.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gappsops/message-recall/internal/domain/recall"
	"golang.org/x/oauth2"
)

// Listing uses the API's largest page size to keep roundtrips down on
// domains with >100k users.
const maxResultPageSize = 500

type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a directory client. endpoint is the directory API base
// URL (overridable for tests), source supplies admin-scoped tokens.
func NewClient(endpoint string, source oauth2.TokenSource) *Client {
	return &Client{
		endpoint: endpoint,
		http:     oauth2.NewClient(context.Background(), source),
	}
}

type userResource struct {
	PrimaryEmail string `json:"primaryEmail"`
	Suspended    bool   `json:"suspended"`
	IsAdmin      bool   `json:"isAdmin"`
}

type userListResponse struct {
	Users         []userResource `json:"users"`
	NextPageToken string         `json:"nextPageToken"`
}

// ListUsers pages through every user of the domain whose email starts
// with prefix and hands each page to the callback. Deleted users are not
// returned by the API and are not examined.
func (c *Client) ListUsers(ctx context.Context, domain, prefix string, page func([]recall.DirectoryUser) error) error {
	pageToken := ""
	for {
		list, err := c.fetchUserPage(ctx, domain, prefix, pageToken)
		if err != nil {
			return err
		}

		users := make([]recall.DirectoryUser, 0, len(list.Users))
		for _, u := range list.Users {
			users = append(users, recall.DirectoryUser{
				Email:     u.PrimaryEmail,
				Suspended: u.Suspended,
			})
		}
		if err := page(users); err != nil {
			return err
		}

		if list.NextPageToken == "" {
			return nil
		}
		pageToken = list.NextPageToken
	}
}

// IsAdmin reports whether the user holds the super-admin role. The API
// answers 403 when the queried user is not an admin of the caller's
// scope; that maps to false rather than an error.
func (c *Client) IsAdmin(ctx context.Context, userEmail string) (bool, error) {
	reqURL := fmt.Sprintf("%s/users/%s", c.endpoint, url.PathEscape(userEmail))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("build directory get request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("get directory user %s: %w", userEmail, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("get directory user %s: unexpected status %d", userEmail, resp.StatusCode)
	}

	var user userResource
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return false, fmt.Errorf("decode directory user %s: %w", userEmail, err)
	}
	return user.IsAdmin, nil
}

func (c *Client) fetchUserPage(ctx context.Context, domain, prefix, pageToken string) (*userListResponse, error) {
	params := url.Values{}
	params.Set("domain", domain)
	params.Set("maxResults", fmt.Sprint(maxResultPageSize))
	if prefix != "" {
		params.Set("query", fmt.Sprintf("email:%s*", prefix))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	reqURL := fmt.Sprintf("%s/users?%s", c.endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory list request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list directory users: unexpected status %d", resp.StatusCode)
	}

	var list userListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode directory user list: %w", err)
	}
	return &list, nil
}
