package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// GraphBaseURL is the Instagram Graph API host
	GraphBaseURL = "https://graph.instagram.com"

	// OAuthBaseURL is the host of the authorization code exchange
	OAuthBaseURL = "https://api.instagram.com"

	// DefaultGraphVersion is the Graph API version used for data calls
	DefaultGraphVersion = "v18.0"

	// ProfileFields are requested for the account profile
	ProfileFields = "id,username,media_count"

	// MediaFields are requested for each post
	MediaFields = "id,caption,media_type,media_url,permalink,timestamp"

	// DefaultMediaLimit is the default page size
	DefaultMediaLimit = 100

	// MaxMediaLimit is the largest page size the media edge accepts
	MaxMediaLimit = 100
)

// Endpoints builds Graph API and OAuth URLs
type Endpoints struct {
	GraphURL string
	OAuthURL string
	Version  string
}

// DefaultEndpoints returns the production endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		GraphURL: GraphBaseURL,
		OAuthURL: OAuthBaseURL,
		Version:  DefaultGraphVersion,
	}
}

func (e Endpoints) graph(path string, params url.Values) string {
	base := strings.TrimRight(e.GraphURL, "/")
	if e.Version != "" {
		base += "/" + e.Version
	}
	return fmt.Sprintf("%s/%s?%s", base, strings.TrimLeft(path, "/"), params.Encode())
}

// ProfileURL returns the URL for the account profile. userID may be "me".
func (e Endpoints) ProfileURL(userID, accessToken string) string {
	params := url.Values{}
	params.Set("fields", ProfileFields)
	params.Set("access_token", accessToken)
	return e.graph(userID, params)
}

// MediaURL returns the first page URL of the account's media edge
func (e Endpoints) MediaURL(userID, accessToken string, limit int) string {
	if limit <= 0 {
		limit = DefaultMediaLimit
	} else if limit > MaxMediaLimit {
		limit = MaxMediaLimit
	}

	params := url.Values{}
	params.Set("fields", MediaFields)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("access_token", accessToken)
	return e.graph(userID+"/media", params)
}

// AuthorizationCodeURL is where authorization codes are exchanged
func (e Endpoints) AuthorizationCodeURL() string {
	return strings.TrimRight(e.OAuthURL, "/") + "/oauth/access_token"
}

// TokenURL returns the unversioned token endpoint for the given grant
func (e Endpoints) TokenURL(path string, params url.Values) string {
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(e.GraphURL, "/"), strings.TrimLeft(path, "/"), params.Encode())
}

// AuthorizeURL returns the browser URL that starts the OAuth flow
func (e Endpoints) AuthorizeURL(clientID, redirectURI, scope string) string {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", scope)
	params.Set("response_type", "code")
	return strings.TrimRight(e.OAuthURL, "/") + "/oauth/authorize?" + params.Encode()
}

// RedactURL hides the access token and client secret in a URL so it can be
// logged
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, key := range []string{"access_token", "client_secret"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// StripToken removes the access token from a paging URL so it can be
// persisted
func StripToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Del("access_token")
	u.RawQuery = q.Encode()
	return u.String()
}

// AttachToken sets the access token on a paging URL
func AttachToken(raw, accessToken string) string {
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return raw
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()
	return u.String()
}
