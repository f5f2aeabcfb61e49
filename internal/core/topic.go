package core

import (
	"net/url"
	"regexp"
	"strings"
)

var topicPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Topics canonicalizes channel identifiers for one relay host. "veb",
// "ntfy.sh/veb" and "https://ntfy.sh/veb" all map to "veb".
type Topics struct {
	host string
}

// NewTopics derives the host prefix from the relay base URL.
func NewTopics(relayURL string) Topics {
	host := relayURL
	if u, err := url.Parse(relayURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return Topics{host: strings.TrimSuffix(host, "/")}
}

// Host returns the relay host used as the strippable prefix.
func (t Topics) Host() string {
	return t.host
}

// Canonical strips scheme, host prefix, query and surrounding slashes.
func (t Topics) Canonical(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if t.host != "" {
		s = strings.TrimPrefix(s, t.host+"/")
		if s == t.host {
			s = ""
		}
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(s, "/")
}

// Validate canonicalizes raw and checks the result is a usable topic name.
func (t Topics) Validate(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", Errorf(ErrCodeEmptyInput, "topic is required")
	}
	c := t.Canonical(raw)
	if !topicPattern.MatchString(c) {
		return "", ErrInvalidTopic
	}
	return c, nil
}

// Equal reports whether a and b name the same topic.
func (t Topics) Equal(a, b string) bool {
	return t.Canonical(a) == t.Canonical(b)
}
