package middleware

import (
	"errors"
	"net/http"
	"strings"
)

// APIKeyConfig controls where an API key is looked for in a request.
type APIKeyConfig struct {
	// Headers lists the header names to check, in priority order.
	Headers []string
	// RequireBearer requires the "Bearer " prefix on the Authorization header.
	RequireBearer bool
	// AllowedPrefixes lists accepted value prefixes ("Bearer ", "Token ", ...).
	AllowedPrefixes []string
}

var DefaultAPIKeyConfig = defaultAPIKeyConfig()

func defaultAPIKeyConfig() *APIKeyConfig {
	return &APIKeyConfig{
		Headers:         []string{"Authorization", "X-API-Key", "X-Api-Key", "API-Key", "Api-Key"},
		RequireBearer:   false,
		AllowedPrefixes: []string{"Bearer ", "Token ", "Api-Key ", "API-Key "},
	}
}

// ExtractAPIKeyFromHeader extracts the API key from an Authorization header
// value. The value must carry the "Bearer " prefix.
func ExtractAPIKeyFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("Authorization header is required")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.New("Authorization header must start with 'Bearer '")
	}

	apiKeyValue := strings.TrimPrefix(authHeader, "Bearer ")
	if apiKeyValue == "" {
		return "", errors.New("API key is required")
	}

	return apiKeyValue, nil
}

// ExtractAPIKeyFromRequest extracts an API key from the request, probing the
// configured headers in order and stripping any accepted prefix.
func ExtractAPIKeyFromRequest(r *http.Request, config *APIKeyConfig) (string, error) {
	if config == nil {
		config = DefaultAPIKeyConfig
	}

	var lastError error

	for _, headerName := range config.Headers {
		headerValue := r.Header.Get(headerName)
		if headerValue == "" {
			continue
		}

		if strings.ToLower(headerName) == "authorization" && config.RequireBearer {
			if !strings.HasPrefix(headerValue, "Bearer ") {
				lastError = errors.New("Authorization header must start with 'Bearer '")
				continue
			}

			apiKey := strings.TrimPrefix(headerValue, "Bearer ")
			if apiKey == "" {
				lastError = errors.New("API key is required")
				continue
			}

			return apiKey, nil
		}

		var (
			apiKey      string
			foundPrefix bool
		)

		for _, prefix := range config.AllowedPrefixes {
			if strings.HasPrefix(headerValue, prefix) {
				apiKey = strings.TrimPrefix(headerValue, prefix)
				foundPrefix = true

				break
			}
		}

		// Bare keys without a prefix are accepted as-is.
		if !foundPrefix {
			apiKey = headerValue
		}

		if strings.TrimSpace(apiKey) == "" {
			lastError = errors.New("API key is required")
			continue
		}

		return strings.TrimSpace(apiKey), nil
	}

	if lastError != nil {
		return "", lastError
	}

	return "", errors.New("API key not found in any of the supported headers")
}

// ExtractAPIKeyFromRequestSimple extracts an API key using the default config.
func ExtractAPIKeyFromRequestSimple(r *http.Request) (string, error) {
	return ExtractAPIKeyFromRequest(r, nil)
}
