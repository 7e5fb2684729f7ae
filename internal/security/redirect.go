package security

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidateRedirectURI はOAuthのredirect_uriとして使える絶対URLかを検証する。
// allowedHosts が空でなければ、ホスト（ポート付き）が許可リストに含まれる必要がある。
func ValidateRedirectURI(rawURI string, allowedHosts []string) error {
	if rawURI == "" {
		return fmt.Errorf("redirect_uri is required")
	}

	parsed, err := url.Parse(rawURI)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(allowedSchemes, scheme) {
		return fmt.Errorf("redirect_uri must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("redirect_uri must be an absolute URL")
	}
	if parsed.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain a fragment")
	}
	if parsed.User != nil {
		return fmt.Errorf("redirect_uri must not contain user info")
	}

	if len(allowedHosts) > 0 {
		host := strings.ToLower(parsed.Host)
		if !slices.Contains(allowedHosts, host) && !slices.Contains(allowedHosts, strings.ToLower(parsed.Hostname())) {
			return fmt.Errorf("redirect_uri host %s is not allowed", parsed.Host)
		}
	}

	return nil
}
