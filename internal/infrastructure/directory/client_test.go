package directory_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	domain "github.com/gappsops/message-recall/internal/domain/recall"
	"github.com/gappsops/message-recall/internal/infrastructure/directory"
)

func staticTokens() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

func TestListUsersPagesThroughResults(t *testing.T) {
	t.Parallel()

	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		queries = append(queries, r.URL.RawQuery)

		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{
			  "users": [
			    {"primaryEmail":"alice@example.com"},
			    {"primaryEmail":"amy@example.com","suspended":true}
			  ],
			  "nextPageToken": "page-2"
			}`)
			return
		}
		fmt.Fprint(w, `{"users":[{"primaryEmail":"aaron@example.com"}]}`)
	}))
	defer server.Close()

	client := directory.NewClient(server.URL, staticTokens())

	var pages [][]domain.DirectoryUser
	err := client.ListUsers(context.Background(), "example.com", "a", func(users []domain.DirectoryUser) error {
		pages = append(pages, users)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, []domain.DirectoryUser{
		{Email: "alice@example.com"},
		{Email: "amy@example.com", Suspended: true},
	}, pages[0])
	assert.Equal(t, []domain.DirectoryUser{{Email: "aaron@example.com"}}, pages[1])

	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "domain=example.com")
	assert.Contains(t, queries[0], "query=email%3Aa%2A")
	assert.Contains(t, queries[1], "pageToken=page-2")
}

func TestListUsersCallbackErrorStopsPaging(t *testing.T) {
	t.Parallel()

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"users":[{"primaryEmail":"a@example.com"}],"nextPageToken":"more"}`)
	}))
	defer server.Close()

	client := directory.NewClient(server.URL, staticTokens())

	err := client.ListUsers(context.Background(), "example.com", "a", func([]domain.DirectoryUser) error {
		return context.Canceled
	})
	require.Error(t, err)
	assert.Equal(t, 1, requests)
}

func TestListUsersUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := directory.NewClient(server.URL, staticTokens())

	err := client.ListUsers(context.Background(), "example.com", "a", func([]domain.DirectoryUser) error {
		t.Fatal("no page expected")
		return nil
	})
	require.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/admin@example.com":
			fmt.Fprint(w, `{"primaryEmail":"admin@example.com","isAdmin":true}`)
		case "/users/user@example.com":
			fmt.Fprint(w, `{"primaryEmail":"user@example.com","isAdmin":false}`)
		case "/users/outsider@example.com":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := directory.NewClient(server.URL, staticTokens())

	isAdmin, err := client.IsAdmin(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = client.IsAdmin(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	// The API answers 403 for users outside the caller's admin scope;
	// that is a plain "not an admin", not an error.
	isAdmin, err = client.IsAdmin(context.Background(), "outsider@example.com")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	_, err = client.IsAdmin(context.Background(), "broken@example.com")
	require.Error(t, err)
}
