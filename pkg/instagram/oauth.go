package instagram

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"travelmap/pkg/errors"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantExchangeToken     = "ig_exchange_token"
	grantRefreshToken      = "ig_refresh_token"

	// DefaultScope is requested when starting the OAuth flow
	DefaultScope = "user_profile,user_media"
)

// ExpiresAt converts ExpiresIn into an absolute time relative to now
func (t LongLivedToken) ExpiresAt(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// AuthorizeURL returns the browser URL that starts the OAuth flow for the
// configured app
func (c *Client) AuthorizeURL() (string, error) {
	if c.clientID == "" || c.redirectURI == "" {
		return "", errors.New(errors.ErrorTypeConfig, "client id and redirect uri are required")
	}
	return c.endpoints.AuthorizeURL(c.clientID, c.redirectURI, DefaultScope), nil
}

// ExchangeCode trades an authorization code for a short-lived token
func (c *Client) ExchangeCode(ctx context.Context, code string) (*ShortLivedToken, error) {
	if code == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "authorization code is required")
	}
	if c.clientID == "" || c.clientSecret == "" || c.redirectURI == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "client id, client secret and redirect uri are required")
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", grantAuthorizationCode)
	form.Set("redirect_uri", c.redirectURI)
	form.Set("code", code)

	endpoint := c.endpoints.AuthorizationCodeURL()
	var token ShortLivedToken
	err := c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &token)
	if err != nil {
		return nil, asAuthError(err, "failed to exchange authorization code")
	}
	if token.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeParsing, "token response has no access_token")
	}

	c.logger.InfoWithFields("exchanged authorization code", map[string]interface{}{
		"user_id": token.UserID.String(),
	})
	return &token, nil
}

// ExchangeLongLived trades a short-lived token for a long-lived one
func (c *Client) ExchangeLongLived(ctx context.Context, shortToken string) (*LongLivedToken, error) {
	if shortToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "short-lived token is required")
	}
	if c.clientSecret == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "client secret is required")
	}

	params := url.Values{}
	params.Set("grant_type", grantExchangeToken)
	params.Set("client_secret", c.clientSecret)
	params.Set("access_token", shortToken)

	token, err := c.longLived(ctx, c.endpoints.TokenURL("access_token", params))
	if err != nil {
		return nil, asAuthError(err, "failed to exchange for long-lived token")
	}
	return token, nil
}

// RefreshLongLived extends a long-lived token that is at least a day old
func (c *Client) RefreshLongLived(ctx context.Context, token string) (*LongLivedToken, error) {
	if token == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "long-lived token is required")
	}

	params := url.Values{}
	params.Set("grant_type", grantRefreshToken)
	params.Set("access_token", token)

	refreshed, err := c.longLived(ctx, c.endpoints.TokenURL("refresh_access_token", params))
	if err != nil {
		return nil, asAuthError(err, "failed to refresh long-lived token")
	}
	return refreshed, nil
}

func (c *Client) longLived(ctx context.Context, endpoint string) (*LongLivedToken, error) {
	var token LongLivedToken
	if err := c.GetJSON(ctx, endpoint, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeParsing, "token response has no access_token")
	}
	if token.TokenType == "" {
		token.TokenType = "bearer"
	}

	c.logger.InfoWithFields("obtained long-lived token", map[string]interface{}{
		"token_type": token.TokenType,
		"expires_in": token.ExpiresIn,
	})
	return &token, nil
}

// asAuthError reclassifies 4xx failures from the token endpoints as auth
// errors and keeps other failures as they are
func asAuthError(err error, message string) error {
	var typed *errors.Error
	if !stderrors.As(err, &typed) {
		return err
	}
	if typed.Code >= 400 && typed.Code < 500 && typed.Type == errors.ErrorTypeUnknown {
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: message + ": " + typed.Message,
			Code:    typed.Code,
			Err:     err,
		}
	}
	return err
}
