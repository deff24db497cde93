package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcegrid/sfschema/internal/output"
)

// fakeTokens is a scriptable TokenSource.
type fakeTokens struct {
	token     string
	base      string
	tokenErr  error
	refreshes atomic.Int64
	// refreshFn runs on Refresh; returning nil simulates a successful
	// refresh (optionally swapping token/base).
	refreshFn func(f *fakeTokens) error
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.token, nil
}

func (f *fakeTokens) InstanceBaseURL() (string, error) {
	return f.base, nil
}

func (f *fakeTokens) Refresh(ctx context.Context) error {
	f.refreshes.Add(1)
	if f.refreshFn != nil {
		return f.refreshFn(f)
	}
	return nil
}

// scriptedServer answers successive requests with the listed statuses,
// then repeats the last one.
func scriptedServer(t *testing.T, statuses []int, finalBody string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(statuses) {
			n = len(statuses) - 1
		}
		status := statuses[n]
		w.WriteHeader(status)
		if status >= 200 && status < 300 {
			w.Write([]byte(finalBody))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(tokens TokenSource) *Client {
	c := NewClient(tokens)
	c.sleep = func(time.Duration) {} // no real backoff waits in tests
	return c
}

func TestExecuteSuccess(t *testing.T) {
	srv, calls := scriptedServer(t, []int{200}, `{"hello":"world"}`)
	c := newTestClient(&fakeTokens{token: "tok", base: srv.URL})

	data, err := c.Get(context.Background(), "/services/data/v61.0/sobjects")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(data))
	assert.Equal(t, int64(1), calls.Load())
}

func TestExecuteAttachesBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(&fakeTokens{token: "the-token", base: srv.URL})
	_, err := c.Get(context.Background(), "/x")
	require.NoError(t, err)
	assert.Equal(t, "Bearer the-token", gotAuth)
}

func TestExecuteUnauthenticatedMakesNoRequest(t *testing.T) {
	srv, calls := scriptedServer(t, []int{200}, `{}`)
	c := newTestClient(&fakeTokens{tokenErr: output.ErrAuthRequired("Not authenticated"), base: srv.URL})

	_, err := c.Get(context.Background(), "/x")
	var apiErr *output.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, output.CodeAuthRequired, apiErr.Code)
	assert.Equal(t, int64(0), calls.Load())
}

func TestExecuteEmptyBodyParsesToEmptyObject(t *testing.T) {
	srv, _ := scriptedServer(t, []int{204}, "")
	c := newTestClient(&fakeTokens{token: "tok", base: srv.URL})

	data, err := c.Get(context.Background(), "/x")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	tests := []struct {
		name     string
		statuses []int
		wantOK   bool
		wantReqs int64
	}{
		{"one 500 then success", []int{500, 200}, true, 2},
		{"three 5xx then success", []int{500, 503, 500, 200}, true, 4},
		{"four 5xx exhausts retries", []int{503, 503, 503, 503, 200}, false, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := scriptedServer(t, tt.statuses, `{"ok":true}`)
			var delays []time.Duration
			c := NewClient(&fakeTokens{token: "tok", base: srv.URL})
			c.sleep = func(d time.Duration) { delays = append(delays, d) }

			data, err := c.Get(context.Background(), "/x")
			if tt.wantOK {
				require.NoError(t, err)
				assert.JSONEq(t, `{"ok":true}`, string(data))
			} else {
				var apiErr *output.Error
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, output.CodeAPI, apiErr.Code)
				// Backoff doubles: 1s, 2s, 4s.
				assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
			}
			assert.Equal(t, tt.wantReqs, calls.Load())
		})
	}
}

func TestExecuteDoesNotRetryOther5xx(t *testing.T) {
	// 502 is not in the retry set; only 500 and 503 back off.
	srv, calls := scriptedServer(t, []int{502, 200}, `{}`)
	c := newTestClient(&fakeTokens{token: "tok", base: srv.URL})

	_, err := c.Get(context.Background(), "/x")
	var apiErr *output.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, output.CodeAPI, apiErr.Code)
	assert.Equal(t, int64(1), calls.Load())
}

func TestExecute401RefreshesOnceAndRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer fresh" {
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	tokens := &fakeTokens{token: "stale", base: srv.URL}
	tokens.refreshFn = func(f *fakeTokens) error {
		f.token = "fresh"
		return nil
	}
	c := newTestClient(tokens)

	data, err := c.Get(context.Background(), "/x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, int64(1), tokens.refreshes.Load())
}

func TestExecute401TwiceFailsWithoutThirdRequest(t *testing.T) {
	srv, calls := scriptedServer(t, []int{401, 401, 200}, `{}`)
	tokens := &fakeTokens{token: "stale", base: srv.URL}
	c := newTestClient(tokens)

	_, err := c.Get(context.Background(), "/x")
	var apiErr *output.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, output.CodeAuthExpired, apiErr.Code)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, int64(1), tokens.refreshes.Load())
}

func TestExecute401RefreshFailureSurfaces(t *testing.T) {
	srv, calls := scriptedServer(t, []int{401}, "")
	tokens := &fakeTokens{token: "stale", base: srv.URL}
	tokens.refreshFn = func(f *fakeTokens) error {
		return output.ErrAuthExpired("Session expired", "refresh token revoked")
	}
	c := newTestClient(tokens)

	_, err := c.Get(context.Background(), "/x")
	var apiErr *output.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, output.CodeAuthExpired, apiErr.Code)
	assert.Equal(t, int64(1), calls.Load())
}

func TestExecute401ReResolvesBaseURL(t *testing.T) {
	// The instance URL can change across a refresh; the retry must go to
	// the new host.
	newSrv, newCalls := scriptedServer(t, []int{200}, `{"moved":true}`)

	oldSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(oldSrv.Close)

	tokens := &fakeTokens{token: "stale", base: oldSrv.URL}
	tokens.refreshFn = func(f *fakeTokens) error {
		f.token = "fresh"
		f.base = newSrv.URL
		return nil
	}
	c := newTestClient(tokens)

	data, err := c.Get(context.Background(), "/x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"moved":true}`, string(data))
	assert.Equal(t, int64(1), newCalls.Load())
}

func TestExecuteClassifiesTerminalStatuses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"404", 404, `[{"message":"The requested resource does not exist","errorCode":"NOT_FOUND"}]`, output.CodeNotFound, ""},
		{"403 rate limit", 403, `[{"message":"too many requests","errorCode":"REQUEST_LIMIT_EXCEEDED"}]`, output.CodeRateLimit, ""},
		{"403 concurrent limit", 403, `[{"message":"limit","errorCode":"API_CURRENT_LIMIT_EXCEEDED"}]`, output.CodeRateLimit, ""},
		{"403 plain forbidden", 403, `[{"message":"no access","errorCode":"INSUFFICIENT_ACCESS"}]`, output.CodeForbidden, "no access"},
		{"400 with provider message", 400, `[{"message":"bad field","errorCode":"INVALID_FIELD"}]`, output.CodeAPI, "bad field"},
		{"418 generic", 418, "", output.CodeAPI, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			c := newTestClient(&fakeTokens{token: "tok", base: srv.URL})
			_, err := c.Get(context.Background(), "/x")
			var apiErr *output.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, apiErr.Message)
			}
		})
	}
}

func TestProviderErrorShapes(t *testing.T) {
	msg, code := providerError([]byte(`[{"message":"first","errorCode":"A"},{"message":"second","errorCode":"B"}]`))
	assert.Equal(t, "first", msg)
	assert.Equal(t, "A", code)

	msg, code = providerError([]byte(`{"error":"invalid_grant","error_description":"expired token"}`))
	assert.Equal(t, "expired token", msg)
	assert.Equal(t, "invalid_grant", code)

	msg, code = providerError([]byte(`<html>gateway timeout</html>`))
	assert.Equal(t, "<html>gateway timeout</html>", msg)
	assert.Equal(t, "", code)

	msg, code = providerError(nil)
	assert.Equal(t, "", msg)
	assert.Equal(t, "", code)
}

func TestParseBodyRejectsMalformedJSON(t *testing.T) {
	_, err := parseBody([]byte(`{"unterminated`))
	assert.Error(t, err)

	data, err := parseBody([]byte("  \n "))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	data, err = parseBody([]byte(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, `[1,2,3]`, string(data))
}
