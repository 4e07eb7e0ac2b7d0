package instagram

import "encoding/json"

// Profile is the account returned by GET /{user-id}?fields=id,username,media_count
type Profile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	MediaCount int    `json:"media_count"`
}

// Media is a single post as returned by the media edge
type Media struct {
	ID        string         `json:"id"`
	Caption   *string        `json:"caption,omitempty"`
	MediaType string         `json:"media_type"`
	MediaURL  string         `json:"media_url"`
	Permalink string         `json:"permalink"`
	Timestamp string         `json:"timestamp"`
	Location  *MediaLocation `json:"location,omitempty"`
}

// CaptionText returns the caption or "" when the post has none
func (m Media) CaptionText() string {
	if m.Caption == nil {
		return ""
	}
	return *m.Caption
}

// MediaLocation is the location attached to a post, when the token has
// permission to read it
type MediaLocation struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name,omitempty"`
	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasPlace reports whether the location names anything
func (l *MediaLocation) HasPlace() bool {
	return l != nil && (l.Name != "" || l.City != "" || l.Country != "")
}

// MediaPage is one page of the media edge
type MediaPage struct {
	Data   []Media `json:"data"`
	Paging Paging  `json:"paging"`
}

// Paging holds cursor pagination links
type Paging struct {
	Cursors  Cursors `json:"cursors"`
	Next     string  `json:"next,omitempty"`
	Previous string  `json:"previous,omitempty"`
}

// Cursors are the before/after cursors of a page
type Cursors struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// GraphErrorResponse is the error envelope returned by the Graph API
type GraphErrorResponse struct {
	Error GraphError `json:"error"`
}

// GraphError describes a Graph API failure
type GraphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
}

// OAuthErrorResponse is the error body of api.instagram.com/oauth
type OAuthErrorResponse struct {
	ErrorType    string `json:"error_type"`
	Code         int    `json:"code"`
	ErrorMessage string `json:"error_message"`
}

// ShortLivedToken is the result of exchanging an authorization code
type ShortLivedToken struct {
	AccessToken string      `json:"access_token"`
	UserID      json.Number `json:"user_id"`
}

// LongLivedToken is the result of exchanging or refreshing a long-lived
// token. ExpiresIn is in seconds.
type LongLivedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
