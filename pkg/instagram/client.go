package instagram

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"travelmap/pkg/config"
	"travelmap/pkg/errors"
	"travelmap/pkg/logger"
	"travelmap/pkg/ratelimit"
	"travelmap/pkg/retry"
)

// Graph API error codes that indicate throttling or an unusable token
const (
	graphCodeAPITooManyCalls  = 4
	graphCodeUserTooManyCalls = 17
	graphCodeAppTooManyCalls  = 32
	graphCodeCallLimit        = 613
	graphCodeInvalidToken     = 190
	graphCodePermission       = 10
)

const bodyPreviewLimit = 200

// Client talks to the Instagram Graph API and the OAuth token endpoints
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	endpoints    Endpoints
	accessToken  string
	clientID     string
	clientSecret string
	redirectURI  string
	pageSize     int
	pageDelay    time.Duration
	limiter      ratelimit.Limiter
	retry        *retry.Config
	logger       logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithLimiter sets the request limiter
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry sets the retry policy. nil disables retries.
func WithRetry(cfg *retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithPageDelay sets the pause between media pages
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.pageDelay = d }
}

// NewClient creates a Graph API client from the instagram config section
func NewClient(cfg config.InstagramConfig, opts ...Option) *Client {
	endpoints := DefaultEndpoints()
	if cfg.BaseURL != "" {
		endpoints.GraphURL = cfg.BaseURL
	}
	if cfg.OAuthURL != "" {
		endpoints.OAuthURL = cfg.OAuthURL
	}
	if cfg.GraphVersion != "" {
		endpoints.Version = cfg.GraphVersion
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent": "travelmap/1.0",
			"Accept":     "application/json",
		},
		endpoints:    endpoints,
		accessToken:  cfg.AccessToken,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		pageSize:     cfg.PageSize,
		pageDelay:    time.Second,
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry == nil {
		c.retry = &retry.Config{MaxAttempts: 1, Logger: c.logger}
	}
	return c
}

// Endpoints returns the URL builder used by the client
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// SetAccessToken replaces the token used for Graph API calls
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	safeURL := RedactURL(req.URL.String())
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    safeURL,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		var urlErr *url.Error
		if stderrors.As(err, &urlErr) {
			urlErr.URL = safeURL
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      safeURL,
			"error":    err.Error(),
			"duration": duration,
		})
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "network error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      safeURL,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// send runs one limited, retried request. build is called for every
// attempt so request bodies can be replayed.
func (c *Client) send(ctx context.Context, build func(ctx context.Context) (*http.Request, error), target interface{}) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := build(ctx)
		if err != nil {
			return errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request: %v", err)
		}

		resp, err := c.doRequest(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &errors.Error{
				Type:    errors.ErrorTypeNetwork,
				Message: fmt.Sprintf("failed to read response body: %v", err),
				Code:    resp.StatusCode,
				Err:     err,
			}
		}

		if err := c.checkResponseStatus(resp, body); err != nil {
			return err
		}
		return c.decode(resp, body, target)
	})
}

func (c *Client) decode(resp *http.Response, body []byte, target interface{}) error {
	if err := json.Unmarshal(body, target); err != nil {
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          RedactURL(resp.Request.URL.String()),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview(body),
		})
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Err:     err,
		}
	}
	return nil
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	return c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	}, target)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > bodyPreviewLimit {
		s = s[:bodyPreviewLimit] + "..."
	}
	return s
}

// apiMessage pulls a human readable message out of a Graph or OAuth error body
func apiMessage(body []byte) (string, int) {
	var graph GraphErrorResponse
	if err := json.Unmarshal(body, &graph); err == nil && graph.Error.Message != "" {
		return graph.Error.Message, graph.Error.Code
	}
	var oauth OAuthErrorResponse
	if err := json.Unmarshal(body, &oauth); err == nil && oauth.ErrorMessage != "" {
		return oauth.ErrorMessage, oauth.Code
	}
	return "", 0
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode < 400 {
		return nil
	}

	message, graphCode := apiMessage(body)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    RedactURL(resp.Request.URL.String()),
	}
	if graphCode != 0 {
		fields["graph_code"] = graphCode
	}
	if message != "" {
		fields["api_message"] = message
	}

	errType := errors.ErrorTypeUnknown
	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		graphCode == graphCodeAPITooManyCalls,
		graphCode == graphCodeUserTooManyCalls,
		graphCode == graphCodeAppTooManyCalls,
		graphCode == graphCodeCallLimit:
		errType = errors.ErrorTypeRateLimit
		if message == "" {
			message = "rate limit exceeded"
		}
		c.logger.WarnWithFields("rate limit exceeded", fields)
		// Graph throttling usually arrives as a 400 with a code
		return &errors.Error{Type: errType, Message: message, Code: http.StatusTooManyRequests}
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		graphCode == graphCodeInvalidToken,
		graphCode == graphCodePermission:
		errType = errors.ErrorTypeAuth
		if message == "" {
			message = "authentication required"
		}
		c.logger.WarnWithFields("authentication error", fields)
	case resp.StatusCode == http.StatusNotFound:
		errType = errors.ErrorTypeNotFound
		if message == "" {
			message = "resource not found"
		}
		c.logger.WarnWithFields("resource not found", fields)
	case resp.StatusCode >= 500:
		errType = errors.ErrorTypeServerError
		if message == "" {
			message = "server error"
		}
		c.logger.ErrorWithFields("server error", fields)
	default:
		if message == "" {
			message = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		}
		c.logger.ErrorWithFields("unexpected API error", fields)
	}

	return &errors.Error{Type: errType, Message: message, Code: resp.StatusCode}
}

// FetchProfile fetches id, username and media count for the account
func (c *Client) FetchProfile(ctx context.Context, userID string) (*Profile, error) {
	if c.accessToken == "" {
		return nil, errors.New(errors.ErrorTypeAuth, "access token is not configured")
	}
	if userID == "" {
		userID = "me"
	}

	profileURL := c.endpoints.ProfileURL(userID, c.accessToken)
	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"user_id": userID,
	})

	var profile Profile
	if err := c.GetJSON(ctx, profileURL, &profile); err != nil {
		c.logger.ErrorWithFields("failed to fetch user profile", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}

	c.logger.InfoWithFields("fetched user profile", map[string]interface{}{
		"username":    profile.Username,
		"media_count": profile.MediaCount,
	})
	return &profile, nil
}

// FirstMediaURL returns the URL of the first media page for the account
func (c *Client) FirstMediaURL(userID string) string {
	if userID == "" {
		userID = "me"
	}
	return c.endpoints.MediaURL(userID, c.accessToken, c.pageSize)
}

// FetchMediaPage fetches a single page of media by its full URL
func (c *Client) FetchMediaPage(ctx context.Context, pageURL string) (*MediaPage, error) {
	var page MediaPage
	if err := c.GetJSON(ctx, pageURL, &page); err != nil {
		c.logger.ErrorWithFields("failed to fetch media page", map[string]interface{}{
			"url":   RedactURL(pageURL),
			"error": err.Error(),
		})
		return nil, err
	}
	return &page, nil
}

// PageFunc is called after each media page. next is the URL of the
// following page, empty on the last page. Returning an error stops the fetch.
type PageFunc func(pageNum int, page *MediaPage, next string) error

// FetchOptions controls FetchAllMedia
type FetchOptions struct {
	// StartURL resumes from a saved page URL instead of the first page. The
	// client's access token is attached to it.
	StartURL string
	// MaxPages stops after this many pages (0 means all)
	MaxPages int
	// ExpectedTotal is used for progress logging only
	ExpectedTotal int
	// OnPage observes every page
	OnPage PageFunc
}

// FetchAllMedia follows paging.next until the last page and returns every
// post in order
func (c *Client) FetchAllMedia(ctx context.Context, userID string, opts FetchOptions) ([]Media, error) {
	if c.accessToken == "" && opts.StartURL == "" {
		return nil, errors.New(errors.ErrorTypeAuth, "access token is not configured")
	}

	next := opts.StartURL
	if next == "" {
		next = c.FirstMediaURL(userID)
	} else if c.accessToken != "" {
		next = AttachToken(next, c.accessToken)
	}

	var all []Media
	for pageNum := 1; next != ""; pageNum++ {
		if opts.MaxPages > 0 && pageNum > opts.MaxPages {
			break
		}
		if pageNum > 1 && c.pageDelay > 0 {
			if err := retry.Wait(ctx, c.pageDelay); err != nil {
				return all, err
			}
		}

		page, err := c.FetchMediaPage(ctx, next)
		if err != nil {
			return all, err
		}

		all = append(all, page.Data...)
		next = page.Paging.Next
		logger.LogFetchProgress(pageNum, len(all), opts.ExpectedTotal)

		if opts.OnPage != nil {
			if err := opts.OnPage(pageNum, page, next); err != nil {
				return all, err
			}
		}
	}

	c.logger.InfoWithFields("finished fetching media", map[string]interface{}{
		"posts": len(all),
	})
	return all, nil
}
