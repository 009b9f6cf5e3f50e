package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/fixr/internal/draft"
	"github.com/mr1hm/fixr/internal/feed"
	"github.com/mr1hm/fixr/internal/logging"
	"github.com/mr1hm/fixr/internal/metrics"
	"github.com/mr1hm/fixr/internal/ratelimit"
	"github.com/mr1hm/fixr/internal/service"
	"github.com/mr1hm/fixr/internal/share"
	"github.com/mr1hm/fixr/internal/validation"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	svc         *service.Service
	drafts      *draft.Generator
	broadcaster *feed.Broadcaster
	qr          *share.QRCoder
}

func NewHandler(svc *service.Service, drafts *draft.Generator, broadcaster *feed.Broadcaster, qr *share.QRCoder) *Handler {
	if qr == nil {
		qr = share.NewQRCoder(share.DefaultQRSize, "M")
	}
	return &Handler{
		svc:         svc,
		drafts:      drafts,
		broadcaster: broadcaster,
		qr:          qr,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/reports", h.createReport)
	r.GET("/reports", h.listReports)
	r.GET("/reports/stream", h.streamReports)
	r.GET("/reports/:id", h.getReport)
	r.GET("/reports/:id/qr", h.getReportQR)
	r.POST("/generate", h.generate)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func (h *Handler) createReport(c *gin.Context) {
	caller := ratelimit.CallerKey(c.Request.Header)
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	res, err := h.svc.CreateFrom(c.Request.Context(), caller, body)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *Handler) listReports(c *gin.Context) {
	q := service.ListQuery{
		BBox:  c.Query("bbox"),
		Type:  c.Query("type"),
		Days:  c.Query("days"),
		Limit: c.Query("limit"),
	}

	pins, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "geojson") {
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, toGeoJSON(pins))
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": pins})
}

func (h *Handler) getReport(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) getReportQR(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Exists(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	target := h.svc.ShareURL(id)
	if !h.svc.HasPublicBaseURL() {
		target = requestOrigin(c) + h.svc.SharePath(id)
	}

	png, err := h.qr.PNG(target)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("failed to render QR code", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render QR code"})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) generate(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	var body any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	in, err := validation.ValidateDraftBody(body)
	if err != nil {
		writeError(c, err)
		return
	}

	res := h.drafts.Generate(c.Request.Context(), draft.Request{
		IssueType:      in.IssueType,
		Severity:       in.Severity,
		Notes:          in.Notes,
		LocationText:   draft.LocationHint(in.LocationText, in.CrossStreet, in.Landmark),
		ApproxLocation: in.ApproxLocation,
	}, draft.ParseMode(in.Mode))

	c.JSON(http.StatusOK, res)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	return io.ReadAll(c.Request.Body)
}

func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return scheme + "://" + host
}

// writeError maps service outcomes to status codes. Store faults are logged and
// answered with a generic body.
func writeError(c *gin.Context, err error) {
	var verr *validation.Error
	var rlErr *service.RateLimitError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.As(err, &rlErr):
		if secs := rlErr.RetryAfterSeconds(); secs > 0 {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rlErr.Error()})
	case errors.Is(err, service.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		logging.FromContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
