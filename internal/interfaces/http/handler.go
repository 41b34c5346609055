package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"transcribot/internal/repository"
	"transcribot/internal/usecases"
)

// ClientStatus is what the API needs to know about the WhatsApp connection.
type ClientStatus interface {
	IsConnected() bool
	IsLoggedIn() bool
	GetQR() string
}

// HistoryStore is the read side of the message store.
type HistoryStore interface {
	ListMessages(ctx context.Context, limit int) ([]repository.MessageRecord, error)
	ListTranscriptions(ctx context.Context, limit int) ([]repository.TranscriptionView, error)
	Counts(ctx context.Context) (messages, media, transcriptions int64, err error)
}

type Handler struct {
	client ClientStatus
	store  HistoryStore
}

func NewHandler(client ClientStatus, store HistoryStore) *Handler {
	return &Handler{client: client, store: store}
}

// SetupRoutes wires the operator API: a public login route and an
// authenticated, rate-limited group for status, pairing QR and history.
func SetupRoutes(r *gin.Engine, auth *usecases.AuthUsecase, client ClientStatus, store HistoryStore, middleware *Middleware) {
	h := NewHandler(client, store)

	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20)) // 1MB max request size
	r.Use(middleware.CORSMiddleware())

	r.POST("/api/auth/login", func(c *gin.Context) {
		var loginReq struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&loginReq); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		token, err := auth.Login(loginReq.Username, loginReq.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerClient(rate.Limit(5), 10))
	{
		api.GET("/status", h.GetStatus)
		api.GET("/qr", h.GetQRCode)
		api.GET("/messages", h.GetMessages)
		api.GET("/transcriptions", h.GetTranscriptions)
	}
}

func (h *Handler) GetStatus(c *gin.Context) {
	messages, media, transcriptions, err := h.store.Counts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connected": h.client.IsConnected(),
		"logged_in": h.client.IsLoggedIn(),
		"counts": gin.H{
			"messages":       messages,
			"media":          media,
			"transcriptions": transcriptions,
		},
	})
}

// GetQRCode renders the current pairing code as a PNG. Gone once paired.
func (h *Handler) GetQRCode(c *gin.Context) {
	code := h.client.GetQR()
	if code == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No QR code available"})
		return
	}
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) GetMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.store.ListMessages(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) GetTranscriptions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	views, err := h.store.ListTranscriptions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcriptions": views})
}
