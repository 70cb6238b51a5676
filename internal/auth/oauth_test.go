package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the token endpoint and the two API paths.
func fakeGitHub(t *testing.T, userJSON, emailsJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		w.Write([]byte(userJSON))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emailsJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GitHubProvider {
	endpoint := oauth2.Endpoint{
		AuthURL:   srv.URL + "/login/oauth/authorize",
		TokenURL:  srv.URL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return NewGitHubProviderWithEndpoint("client", "secret", "http://localhost/cb", endpoint, srv.URL)
}

func TestGitHubAuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost:8080/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
}

func TestGitHubExchange_PublicEmail(t *testing.T) {
	srv := fakeGitHub(t, `{"id":42,"login":"amy","name":"Amy Pond","email":"amy@example.com"}`, `[]`)

	u, err := newTestProvider(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "amy@example.com", u.Email)
	assert.Equal(t, "Amy Pond", u.DisplayName())
}

func TestGitHubExchange_HiddenEmail(t *testing.T) {
	srv := fakeGitHub(t,
		`{"id":7,"login":"rory","email":null}`,
		`[{"email":"old@example.com","primary":false,"verified":true},
		  {"email":"rory@example.com","primary":true,"verified":true}]`)

	u, err := newTestProvider(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "rory@example.com", u.Email)
	assert.Equal(t, "rory", u.DisplayName())
}

func TestGitHubExchange_Failures(t *testing.T) {
	srv := fakeGitHub(t, `{"id":0}`, `[]`)
	p := newTestProvider(srv)

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.Error(t, err, "bad code must fail the exchange")

	_, err = p.Exchange(context.Background(), "good-code")
	assert.Error(t, err, "user id 0 must be rejected")
}
