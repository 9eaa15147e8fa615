package service

import (
	"regexp"
	"strings"

	"github.com/lexcabinet/cabinet-backend/internal/common"
	"golang.org/x/text/language"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// normalizeLocale canonicalises a BCP-47 tag ("fr-fr" -> "fr-FR"); empty means fallback
func normalizeLocale(raw, fallback string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", common.NewValidationError("locale", "is not a valid language tag")
	}
	return tag.String(), nil
}

func validateKey(key string) error {
	if key == "" {
		return common.NewValidationError("key", "is required")
	}
	if !keyPattern.MatchString(key) {
		return common.NewValidationError("key", "must be dot-separated segments of letters, digits, '-' or '_'")
	}
	return nil
}
