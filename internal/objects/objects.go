// Package objects contains plain data objects shared by api and biz.
// To avoid circular dependencies, we put them here.
package objects

// ProxyType defines how outbound HTTP requests reach the network.
type ProxyType string

const (
	// ProxyTypeDisabled direct connection, no proxy.
	ProxyTypeDisabled ProxyType = "disabled"
	// ProxyTypeEnvironment use HTTP_PROXY/HTTPS_PROXY/NO_PROXY.
	ProxyTypeEnvironment ProxyType = "environment"
	// ProxyTypeURL use the configured proxy URL.
	ProxyTypeURL ProxyType = "url"
)

// ProxyConfig configures the outbound HTTP proxy.
type ProxyConfig struct {
	Type     ProxyType `conf:"type" yaml:"type" json:"type"`
	URL      string    `conf:"url" yaml:"url" json:"url"`
	Username string    `conf:"username" yaml:"username" json:"username"`
	Password string    `conf:"password" yaml:"password" json:"password"`
}
