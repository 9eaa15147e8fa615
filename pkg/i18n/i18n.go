package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Negotiator picks the best supported content locale for an Accept-Language header
type Negotiator struct {
	supported []string
	matcher   language.Matcher
}

// NewNegotiator builds a negotiator over the given BCP-47 locales. Invalid
// tags are skipped; with no valid tag every negotiation fails.
func NewNegotiator(locales []string) *Negotiator {
	n := &Negotiator{}
	tags := make([]language.Tag, 0, len(locales))
	for _, l := range locales {
		tag, err := language.Parse(strings.TrimSpace(l))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		n.supported = append(n.supported, tag.String())
	}
	if len(tags) > 0 {
		n.matcher = language.NewMatcher(tags)
	}
	return n
}

// Supported canonical locales known to the negotiator
func (n *Negotiator) Supported() []string {
	return n.supported
}

// Negotiate returns the supported locale that best fits header; ok is false
// when nothing in header matches
func (n *Negotiator) Negotiate(header string) (string, bool) {
	if n.matcher == nil || strings.TrimSpace(header) == "" {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	_, index, confidence := n.matcher.Match(tags...)
	if confidence == language.No {
		return "", false
	}
	return n.supported[index], true
}
