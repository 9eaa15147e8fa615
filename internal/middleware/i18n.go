package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/lexcabinet/cabinet-backend/pkg/i18n"
)

const localeKey = "locale"

// ContentLocale resolves the reader's preferred content locale from
// Accept-Language and stores it in the gin context. Nothing is stored when the
// header matches none of the negotiator's locales.
func ContentLocale(negotiator *i18n.Negotiator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Vary", "Accept-Language")
		if locale, ok := negotiator.Negotiate(c.GetHeader("Accept-Language")); ok {
			c.Set(localeKey, locale)
			c.Header("Content-Language", locale)
		}
		c.Next()
	}
}

// GetLocale returns the negotiated locale, empty when none was negotiated
func GetLocale(c *gin.Context) string {
	return c.GetString(localeKey)
}
