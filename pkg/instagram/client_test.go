package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"travelmap/pkg/config"
	"travelmap/pkg/errors"
	"travelmap/pkg/logger"
	"travelmap/pkg/retry"
)

const testToken = "tok-secret"

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server, *logger.TestLogger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger()
	cfg := config.InstagramConfig{
		AccessToken:  testToken,
		ClientID:     "client-1",
		ClientSecret: "shh",
		RedirectURI:  "https://example.com/callback",
		BaseURL:      srv.URL,
		OAuthURL:     srv.URL,
		GraphVersion: "v18.0",
		PageSize:     2,
		Timeout:      5 * time.Second,
	}
	opts = append([]Option{WithLogger(log), WithPageDelay(0)}, opts...)
	return NewClient(cfg, opts...), srv, log
}

func fastRetry(attempts int) *retry.Config {
	return &retry.Config{
		MaxAttempts: attempts,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	client := NewClient(config.InstagramConfig{})

	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Equal(t, DefaultEndpoints(), client.Endpoints())
	assert.Equal(t, time.Second, client.pageDelay)
	require.NotNil(t, client.retry)
	assert.Equal(t, 1, client.retry.MaxAttempts)
}

func TestDoRequestSetsHeaders(t *testing.T) {
	client, srv, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "travelmap/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "yes", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusOK)
	})
	client.SetHeader("X-Custom", "yes")

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.doRequest(req)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestDoRequestNetworkError(t *testing.T) {
	client, srv, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.doRequest(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeNetwork))
}

func TestCheckResponseStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     interface{}
		wantType errors.ErrorType
		wantCode int
	}{
		{"unauthorized", http.StatusUnauthorized, nil, errors.ErrorTypeAuth, 401},
		{"forbidden", http.StatusForbidden, nil, errors.ErrorTypeAuth, 403},
		{"not found", http.StatusNotFound, nil, errors.ErrorTypeNotFound, 404},
		{"too many requests", http.StatusTooManyRequests, nil, errors.ErrorTypeRateLimit, 429},
		{"server error", http.StatusBadGateway, nil, errors.ErrorTypeServerError, 502},
		{"bad request", http.StatusBadRequest, nil, errors.ErrorTypeUnknown, 400},
		{
			"graph throttling",
			http.StatusBadRequest,
			GraphErrorResponse{Error: GraphError{Message: "Application request limit reached", Code: 4}},
			errors.ErrorTypeRateLimit,
			429,
		},
		{
			"graph invalid token",
			http.StatusBadRequest,
			GraphErrorResponse{Error: GraphError{Message: "Invalid OAuth access token", Type: "OAuthException", Code: 190}},
			errors.ErrorTypeAuth,
			400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			var out map[string]interface{}
			err := client.GetJSON(context.Background(), srv.URL+"/anything", &out)
			require.Error(t, err)

			var typed *errors.Error
			require.ErrorAs(t, err, &typed)
			assert.Equal(t, tt.wantType, typed.Type)
			assert.Equal(t, tt.wantCode, typed.Code)
		})
	}
}

func TestGetJSONParseError(t *testing.T) {
	client, srv, log := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>" + strings.Repeat("x", 500)))
	})

	var out Profile
	err := client.GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeParsing))

	errs := log.GetMessagesByLevel("ERROR")
	require.NotEmpty(t, errs)
	previewText, ok := errs[len(errs)-1].Fields["body_preview"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(previewText, "..."))
	assert.LessOrEqual(t, len(previewText), bodyPreviewLimit+3)
}

func TestFetchProfile(t *testing.T) {
	client, _, log := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/me", r.URL.Path)
		assert.Equal(t, ProfileFields, r.URL.Query().Get("fields"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		writeJSON(w, http.StatusOK, Profile{ID: "17841400000", Username: "wanderer", MediaCount: 321})
	})

	profile, err := client.FetchProfile(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "wanderer", profile.Username)
	assert.Equal(t, 321, profile.MediaCount)

	for _, msg := range log.GetMessages() {
		for _, v := range msg.Fields {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, testToken, "token leaked into %q", msg.Message)
			}
		}
	}
}

func TestFetchProfileWithoutToken(t *testing.T) {
	client := NewClient(config.InstagramConfig{}, WithLogger(logger.NewNopLogger()))
	_, err := client.FetchProfile(context.Background(), "me")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeAuth))
}

func TestFetchAllMediaFollowsPaging(t *testing.T) {
	var srvURL string
	caption := "📍 Taipei, Taiwan"
	client, srv, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/me/media", r.URL.Path)
		switch r.URL.Query().Get("after") {
		case "":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, MediaPage{
				Data: []Media{
					{ID: "1", Caption: &caption, MediaType: "IMAGE"},
					{ID: "2", MediaType: "VIDEO"},
				},
				Paging: Paging{
					Cursors: Cursors{After: "c1"},
					Next:    srvURL + "/v18.0/me/media?after=c1&access_token=" + testToken,
				},
			})
		case "c1":
			writeJSON(w, http.StatusOK, MediaPage{
				Data: []Media{{ID: "3", MediaType: "CAROUSEL_ALBUM"}},
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	})
	srvURL = srv.URL

	var pages []int
	var nexts []string
	media, err := client.FetchAllMedia(context.Background(), "", FetchOptions{
		OnPage: func(pageNum int, page *MediaPage, next string) error {
			pages = append(pages, pageNum)
			nexts = append(nexts, next)
			return nil
		},
	})
	require.NoError(t, err)
	require.Len(t, media, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{media[0].ID, media[1].ID, media[2].ID})
	assert.Equal(t, caption, media[0].CaptionText())
	assert.Equal(t, "", media[1].CaptionText())
	assert.Equal(t, []int{1, 2}, pages)
	assert.Contains(t, nexts[0], "after=c1")
	assert.Equal(t, "", nexts[1])
}

func TestFetchAllMediaResumeAndMaxPages(t *testing.T) {
	var hits int32
	var srvURL string
	var firstToken string
	client, srv, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n == 1 {
			firstToken = r.URL.Query().Get("access_token")
		}
		writeJSON(w, http.StatusOK, MediaPage{
			Data:   []Media{{ID: fmt.Sprintf("p%d", n)}},
			Paging: Paging{Next: fmt.Sprintf("%s/v18.0/me/media?after=c%d", srvURL, n)},
		})
	})
	srvURL = srv.URL

	media, err := client.FetchAllMedia(context.Background(), "", FetchOptions{
		StartURL: srv.URL + "/v18.0/me/media?after=saved",
		MaxPages: 2,
	})
	require.NoError(t, err)
	assert.Len(t, media, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, testToken, firstToken, "saved URLs carry no token")
}

func TestFetchAllMediaStopsOnCallbackError(t *testing.T) {
	var srvURL string
	client, srv, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, MediaPage{
			Data:   []Media{{ID: "x"}},
			Paging: Paging{Next: srvURL + "/v18.0/me/media?after=more"},
		})
	})
	srvURL = srv.URL

	stop := fmt.Errorf("stop")
	media, err := client.FetchAllMedia(context.Background(), "", FetchOptions{
		OnPage: func(int, *MediaPage, string) error { return stop },
	})
	assert.ErrorIs(t, err, stop)
	assert.Len(t, media, 1)
}

func TestRetriesServerErrorsOnly(t *testing.T) {
	t.Run("5xx is retried", func(t *testing.T) {
		var calls int32
		client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, http.StatusOK, Profile{ID: "1", Username: "ok"})
		}, WithRetry(fastRetry(3)))

		profile, err := client.FetchProfile(context.Background(), "me")
		require.NoError(t, err)
		assert.Equal(t, "ok", profile.Username)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		var calls int32
		client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
		}, WithRetry(fastRetry(3)))

		_, err := client.FetchProfile(context.Background(), "me")
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

type countingLimiter struct{ waits int32 }

func (c *countingLimiter) Allow() bool { return true }
func (c *countingLimiter) Wait(context.Context) error {
	atomic.AddInt32(&c.waits, 1)
	return nil
}
func (c *countingLimiter) Reset() {}

func TestLimiterConsultedPerAttempt(t *testing.T) {
	var calls int32
	limiter := &countingLimiter{}
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, Profile{ID: "1"})
	}, WithRetry(fastRetry(2)), WithLimiter(limiter))

	_, err := client.FetchProfile(context.Background(), "me")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&limiter.waits))
}

func TestContextCancelled(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Profile{})
	}, WithRetry(fastRetry(3)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchProfile(ctx, "me")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
