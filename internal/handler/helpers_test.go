package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/travel-blog/internal/auth"
	"github.com/sakif/travel-blog/internal/handler"
	"github.com/sakif/travel-blog/internal/repository/sqlite"
	"github.com/sakif/travel-blog/internal/service"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stack is a real service layer over an in-memory database. Handler tests
// go through it instead of mocks so status codes are checked against the
// errors the services actually return.
type stack struct {
	content *service.ContentService
	authSvc *service.AuthService
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	return &stack{
		content: service.NewContentService(db.Posts(), db.Files("blog"), testLogger),
		authSvc: service.NewAuthService(
			db.Accounts(), db.Profiles(), db.Sessions(), db.Stats(),
			tokens, auth.NewPasswordServiceForTest(4), 2438, testLogger,
		),
	}
}

func (s *stack) posts() *handler.PostHandler {
	return handler.NewPostHandler(s.content, testLogger)
}

func (s *stack) auth(github handler.GitHubExchanger) *handler.AuthHandler {
	return handler.NewAuthHandler(s.authSvc, github, false, testLogger)
}

// jsonRequest builds a request with a JSON body, an optional caller and
// path values, the way the router would hand it to a handler.
func jsonRequest(method, target string, body any, userID string, pathValues ...string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func seedPost(t *testing.T, s *stack, slug, userID string) {
	t.Helper()
	_, err := s.content.CreatePost(context.Background(), service.PostInput{
		Slug:    slug,
		Title:   "Notes from " + slug,
		Content: "<p>Walked the old town of " + slug + " at dawn.</p>",
		UserID:  userID,
	})
	require.NoError(t, err)
}
