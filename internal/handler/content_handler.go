package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lexcabinet/cabinet-backend/internal/common"
	"github.com/lexcabinet/cabinet-backend/internal/domain"
	"github.com/lexcabinet/cabinet-backend/internal/middleware"
	"github.com/lexcabinet/cabinet-backend/internal/service"
	"github.com/lexcabinet/cabinet-backend/pkg/ginutil"
	"github.com/lexcabinet/cabinet-backend/pkg/logger"
)

const defaultListLimit = 50

// ContentHandler handles content lookup and administration
type ContentHandler struct {
	service *service.ContentService
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(service *service.ContentService) *ContentHandler {
	return &ContentHandler{service: service}
}

type listQuery struct {
	Page    *string `form:"page"`
	Section *string `form:"section"`
	Search  *string `form:"search"`
	Locale  *string `form:"locale"`
	Limit   int     `form:"limit" binding:"omitempty,min=1,max=500"`
	Skip    int     `form:"skip" binding:"omitempty,min=0"`
}

// GetValue handles GET /content/value?key=&locale=
func (h *ContentHandler) GetValue(c *gin.Context) {
	resp, cached, err := h.service.Lookup(c.Request.Context(), c.Query("key"), requestLocale(c))
	if err != nil {
		h.publicError(c, err)
		return
	}

	if cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, resp)
}

// GetValues handles GET /content/values?keys=a,b&locale=
func (h *ContentHandler) GetValues(c *gin.Context) {
	keys := splitKeys(c.Query("keys"))
	if len(keys) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "keys is required"})
		return
	}
	if len(keys) > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "at most 200 keys per request"})
		return
	}

	locale := requestLocale(c)
	values, err := h.service.LookupMany(c.Request.Context(), keys, locale)
	if err != nil {
		h.publicError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locale": h.service.CanonicalLocale(locale), "values": values})
}

// List handles GET /content
func (h *ContentHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.V2ValidationResponse(c, common.AsValidationError(err))
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}

	entries, total, err := h.service.List(c.Request.Context(), domain.ContentFilter{
		Page:    nonBlank(q.Page),
		Section: nonBlank(q.Section),
		Search:  nonBlank(q.Search),
		Locale:  nonBlank(q.Locale),
		Limit:   q.Limit,
		Skip:    q.Skip,
	})
	if err != nil {
		h.adminError(c, err)
		return
	}

	common.V2SuccessWithMeta(c, entries, common.NewV2Meta(q.Skip, q.Limit, total))
}

// Create handles POST /content
func (h *ContentHandler) Create(c *gin.Context) {
	var req domain.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.V2ValidationResponse(c, common.AsValidationError(err))
		return
	}

	entry, err := h.service.CreateEntry(c.Request.Context(), &req, middleware.GetUserID(c))
	if err != nil {
		h.adminError(c, err)
		return
	}
	common.V2Created(c, entry)
}

// Get handles GET /content/:id
func (h *ContentHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	entry, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.adminError(c, err)
		return
	}
	common.V2Success(c, entry)
}

// Update handles PUT /content/:id
func (h *ContentHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req domain.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.V2ValidationResponse(c, common.AsValidationError(err))
		return
	}

	entry, err := h.service.ApplyUpdate(c.Request.Context(), id, &req, middleware.GetUserID(c))
	if err != nil {
		h.adminError(c, err)
		return
	}
	common.V2Success(c, entry)
}

// Publish handles PATCH /content/:id/publish
func (h *ContentHandler) Publish(c *gin.Context) {
	h.transition(c, h.service.Publish)
}

// Unpublish handles PATCH /content/:id/unpublish
func (h *ContentHandler) Unpublish(c *gin.Context) {
	h.transition(c, h.service.Unpublish)
}

// Archive handles DELETE /content/:id
func (h *ContentHandler) Archive(c *gin.Context) {
	h.transition(c, h.service.Archive)
}

func (h *ContentHandler) transition(c *gin.Context, apply func(ctx context.Context, id uint64, actor string) (*domain.ContentEntry, error)) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	entry, err := apply(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		h.adminError(c, err)
		return
	}
	common.V2Success(c, entry)
}

// History handles GET /content/:id/history
func (h *ContentHandler) History(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	history, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		h.adminError(c, err)
		return
	}
	common.V2Success(c, history)
}

// Export handles GET /content/export?locale=&format=json|yaml
func (h *ContentHandler) Export(c *gin.Context) {
	items, err := h.service.Export(c.Request.Context(), c.Query("locale"))
	if err != nil {
		h.adminError(c, err)
		return
	}
	if c.Query("format") == "yaml" {
		c.YAML(http.StatusOK, items)
		return
	}
	common.V2Success(c, items)
}

// Import handles POST /content/import (JSON array, or YAML with a yaml content type)
func (h *ContentHandler) Import(c *gin.Context) {
	var items []domain.ContentExportItem
	var err error
	switch c.ContentType() {
	case "application/yaml", "application/x-yaml", "text/yaml":
		err = c.ShouldBindYAML(&items)
	default:
		err = c.ShouldBindJSON(&items)
	}
	if err != nil {
		common.V2ValidationResponse(c, common.AsValidationError(err))
		return
	}

	result, err := h.service.Import(c.Request.Context(), items, middleware.GetUserID(c))
	if err != nil {
		h.adminError(c, err)
		return
	}
	common.V2Success(c, result)
}

// InvalidateCache handles POST /content/cache/invalidate?key=&locale=
func (h *ContentHandler) InvalidateCache(c *gin.Context) {
	key, locale := c.Query("key"), c.Query("locale")
	if err := h.service.InvalidateCache(key, locale); err != nil {
		h.adminError(c, err)
		return
	}
	log := logger.WithRequestID(c.GetString("request_id"))
	log.Info().
		Str("key", key).
		Str("locale", locale).
		Str("actor", middleware.GetUserID(c)).
		Msg("content cache flushed")
	common.V2Success(c, gin.H{"key": key, "locale": locale})
}

func (h *ContentHandler) parseID(c *gin.Context) (uint64, bool) {
	id, err := ginutil.ParamID(c, "id")
	if err != nil {
		common.V2ValidationResponse(c, common.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// publicError keeps store details out of public responses
func (h *ContentHandler) publicError(c *gin.Context, err error) {
	if errors.Is(err, common.ErrKeyNotFound) {
		logger.GetLogger().Debug().
			Str("key", c.Query("key")).
			Str("locale", c.Query("locale")).
			Msg("content key not found")
		c.JSON(http.StatusNotFound, gin.H{"message": common.ErrKeyNotFound.Error()})
		return
	}
	_ = c.Error(err)
	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{"message": "content store timeout"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}

func (h *ContentHandler) adminError(c *gin.Context, err error) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		common.V2ValidationResponse(c, verr)
	case errors.Is(err, common.ErrNotFound):
		common.V2ErrorResponse(c, http.StatusNotFound, "content entry not found", nil)
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrVersionConflict):
		common.V2ErrorResponse(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		_ = c.Error(err)
		common.V2ErrorResponse(c, http.StatusGatewayTimeout, "content store timeout", nil)
	default:
		_ = c.Error(err)
		common.V2ErrorResponse(c, http.StatusInternalServerError, "content store failure", err)
	}
}

// requestLocale explicit ?locale= first, then the Accept-Language negotiation
func requestLocale(c *gin.Context) string {
	if locale := c.Query("locale"); locale != "" {
		return locale
	}
	return middleware.GetLocale(c)
}

func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		keys = append(keys, p)
	}
	return keys
}

// nonBlank drops a query filter sent with an empty value, as in ?page=
func nonBlank(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}
