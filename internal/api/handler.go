package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BhargavRaval15/url-shortner/internal/middleware"
	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// Handler holds HTTP handlers and their dependencies.
type Handler struct {
	links       service.LinkServiceInterface
	auth        service.AuthServiceInterface
	db          Pinger
	cache       Pinger // nil when caching is disabled
	logger      *slog.Logger
	frontendURL string
}

// Pinger is satisfied by the database pool and the cache client
type Pinger interface {
	Ping(ctx context.Context) error
}

// Middlewares are attached to route groups by RegisterRoutes. Nil
// entries are skipped.
type Middlewares struct {
	Auth          gin.HandlerFunc
	AuthLimit     gin.HandlerFunc
	RedirectLimit gin.HandlerFunc
}

func NewHandler(
	links service.LinkServiceInterface,
	auth service.AuthServiceInterface,
	db Pinger,
	cache Pinger,
	logger *slog.Logger,
	frontendURL string,
) *Handler {
	return &Handler{
		links:       links,
		auth:        auth,
		db:          db,
		cache:       cache,
		logger:      logger,
		frontendURL: frontendURL,
	}
}

func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

// RegisterRoutes registers every route on r. The public redirect is
// registered last and shares the root with /health and /metrics.
func (h *Handler) RegisterRoutes(r *gin.Engine, mw Middlewares) {
	r.GET("/health", h.healthCheck)
	r.GET("/", h.home)

	api := r.Group("/api")
	{
		auth := api.Group("/auth", chain(mw.AuthLimit)...)
		auth.POST("/login", h.login)
		auth.POST("/register", h.register)

		urls := api.Group("/urls", chain(mw.Auth)...)
		urls.POST("", h.createLink)
		urls.GET("/user", h.listLinks)
		urls.GET("/analytics/:id", h.analytics)
		urls.GET("/qrcode/:id", h.qrCode)
		urls.DELETE("/:id", h.deleteLink)
	}

	r.GET("/:shortCode", append(chain(mw.RedirectLimit), h.redirect)...)
}

// healthCheck reports 503 when the database or an enabled cache is down
func (h *Handler) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	status := "ok"
	code := http.StatusOK
	deps := gin.H{"database": "up", "cache": "disabled"}

	if err := h.db.Ping(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
		deps["database"] = "down"
	}
	if h.cache != nil {
		deps["cache"] = "up"
		if err := h.cache.Ping(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			deps["cache"] = "down"
		}
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

func (h *Handler) home(c *gin.Context) {
	c.Redirect(http.StatusFound, h.frontendURL)
}

func (h *Handler) login(c *gin.Context) {
	var creds model.Credentials
	if !h.bind(c, &creds) {
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), creds)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) register(c *gin.Context) {
	var creds model.Credentials
	if !h.bind(c, &creds) {
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), creds)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// createLink handles POST /api/urls
func (h *Handler) createLink(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var req model.CreateLinkRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.links.CreateLink(c.Request.Context(), owner, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// listLinks handles GET /api/urls/user?page&limit&search
func (h *Handler) listLinks(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	resp, err := h.links.ListLinks(c.Request.Context(), owner, model.ListQuery{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// analytics handles GET /api/urls/analytics/:id for the link's owner
func (h *Handler) analytics(c *gin.Context) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	resp, err := h.links.GetAnalytics(c.Request.Context(), owner, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// qrCode renders the short URL of an owned link as a PNG
func (h *Handler) qrCode(c *gin.Context) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			h.errorResponse(c, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	link, err := h.links.GetLink(c.Request.Context(), owner, id)
	if err != nil {
		h.fail(c, err)
		return
	}

	qr, err := qrcode.New(link.ShortURL, qrcode.Medium)
	if err == nil {
		var png []byte
		if png, err = qr.PNG(size); err == nil {
			c.Header("Content-Disposition", "inline; filename="+link.ShortCode+".png")
			c.Data(http.StatusOK, "image/png", png)
			return
		}
	}
	h.logger.ErrorContext(c.Request.Context(), "failed to render qr code", "link_id", id, "error", err)
	h.errorResponse(c, http.StatusInternalServerError, "Failed to generate QR code")
}

func (h *Handler) deleteLink(c *gin.Context) {
	owner, id, ok := h.ownerAndID(c)
	if !ok {
		return
	}

	if err := h.links.DeleteLink(c.Request.Context(), owner, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// redirect handles GET /:shortCode with a 302 so every visit reaches us
func (h *Handler) redirect(c *gin.Context) {
	target, err := h.links.Redirect(c.Request.Context(), c.Param("shortCode"), model.Visit{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.WarnContext(c.Request.Context(), "invalid request body",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) owner(c *gin.Context) (uuid.UUID, bool) {
	owner, ok := middleware.OwnerID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "Please authenticate.")
	}
	return owner, ok
}

// ownerAndID treats a malformed id like an unknown one
func (h *Handler) ownerAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := h.owner(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "URL not found")
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}

// fail maps service errors to HTTP responses
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		h.errorResponse(c, http.StatusBadRequest, "Invalid URL")
	case errors.Is(err, service.ErrInvalidAlias):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAliasConflict):
		h.errorResponse(c, http.StatusBadRequest, "Custom alias already in use")
	case errors.Is(err, service.ErrLinkNotFound):
		h.errorResponse(c, http.StatusNotFound, "URL not found")
	case errors.Is(err, service.ErrLinkExpired):
		h.errorResponse(c, http.StatusGone, "URL has expired")
	case errors.Is(err, service.ErrInvalidCredentials):
		h.errorResponse(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrUnauthenticated):
		h.errorResponse(c, http.StatusUnauthorized, "Please authenticate.")
	case errors.Is(err, service.ErrEmailTaken):
		h.errorResponse(c, http.StatusConflict, "Email already registered")
	default:
		_ = c.Error(err)
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path))
		h.errorResponse(c, http.StatusInternalServerError, "Server error")
	}
}

// errorResponse sends a standardized JSON error response
func (h *Handler) errorResponse(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
