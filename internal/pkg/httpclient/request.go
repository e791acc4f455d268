package httpclient

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Request describes an outbound HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Query   url.Values
	Body    []byte
	Auth    *AuthConfig
}

// AuthConfig applies authentication to a request: "bearer" sets an
// Authorization header, "api_key" writes APIKey under HeaderKey.
type AuthConfig struct {
	Type      string `conf:"type" yaml:"type" json:"type"`
	APIKey    string `conf:"api_key" yaml:"api_key" json:"api_key"`
	HeaderKey string `conf:"header_key" yaml:"header_key" json:"header_key"`
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
