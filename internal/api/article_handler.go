package api

import (
	"net/http"
	"strconv"

	"github.com/ales-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ArticleHandler handles article read and payment endpoints
type ArticleHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services: services,
		log:      log.With().Str("handler", "article").Logger(),
	}
}

// ListArticles handles GET /v1/articles
func (h *ArticleHandler) ListArticles(c *gin.Context) {
	list, err := h.services.Article.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list articles")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetArticle handles GET /v1/articles/:id
func (h *ArticleHandler) GetArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	article, err := h.services.Article.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, article)
}

// Purchase handles POST /v1/articles/:id/purchase
func (h *ArticleHandler) Purchase(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	result, err := h.services.Payment.Purchase(c.Request.Context(), id)
	if err != nil {
		h.log.Warn().Err(err).Uint64("article_id", id).Msg("Purchase failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Tip handles POST /v1/articles/:id/tip
func (h *ArticleHandler) Tip(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}

	result, err := h.services.Payment.Tip(c.Request.Context(), id, req.Amount)
	if err != nil {
		h.log.Warn().Err(err).Uint64("article_id", id).Msg("Tip failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetProfile handles GET /v1/profile
// Lists the articles of the wallet connected in the caller's session
func (h *ArticleHandler) GetProfile(c *gin.Context) {
	var address string
	if state := walletSession(c).State(); state.Connected() {
		address = state.Address
	}

	profile, err := h.services.Article.Profile(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func articleID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}
