package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/romanzh1/quizzr-srs/internal/models"
	"github.com/romanzh1/quizzr-srs/internal/service/srs"
)

var errMissingOwner = errors.New("missing or invalid " + ownerHeader + " header")

const (
	defaultStudyLimit   = 20
	maxStudyLimit       = 100
	defaultNewLimit     = 10
	defaultReviewLimit  = 50
	maxSessionLimit     = 500
	defaultForecastDays = 7
	maxForecastDays     = 90
	defaultHistoryLimit = 50
)

type HTTPHandler struct {
	service models.Service
}

func NewHTTPHandler(service models.Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type RouterConfig struct {
	Handler     *HTTPHandler
	CORSOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger())
	r.Use(CORS(cfg.CORSOrigins))

	r.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	h := cfg.Handler
	api := r.Group("/api", Owner())
	{
		api.POST("/decks", h.CreateDeck)
		api.GET("/decks", h.ListDecks)
		api.GET("/decks/:deck", h.GetDeck)
		api.GET("/decks/:deck/stats", h.GetDeckStats)
		api.GET("/decks/:deck/study", h.GetStudyCards)
		api.GET("/decks/:deck/session", h.GetStudySession)

		api.POST("/decks/:deck/cards", h.CreateCard)
		api.GET("/decks/:deck/cards", h.ListCards)
		api.PATCH("/decks/:deck/cards/:card", h.UpdateCard)
		api.DELETE("/decks/:deck/cards/:card", h.DeleteCard)
		api.POST("/decks/:deck/cards/:card/review", h.ReviewCard)
		api.GET("/decks/:deck/cards/:card/schedule", h.GetSchedule)
		api.GET("/decks/:deck/cards/:card/history", h.GetHistory)

		api.GET("/analytics/cards-due", h.GetCardsDue)
		api.GET("/analytics/forecast", h.GetForecast)
	}

	return r
}

type createDeckRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

type createCardRequest struct {
	Front string `json:"front" binding:"required"`
	Back  string `json:"back" binding:"required"`
}

type updateCardRequest struct {
	IsSuspended *bool `json:"is_suspended" binding:"required"`
}

type reviewRequest struct {
	Rating      string `json:"rating" binding:"required"`
	TimeSpentMs *int   `json:"time_spent_ms" binding:"omitempty,min=0"`
}

type reviewResponse struct {
	CardID       int64     `json:"card_id"`
	NextReviewAt time.Time `json:"next_review_at"`
	IntervalDays int       `json:"interval_days"`
	EaseFactor   float64   `json:"ease_factor"`
	Phase        srs.Phase `json:"phase"`
}

type scheduleResponse struct {
	*models.Schedule
	Phase srs.Phase `json:"phase"`
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_argument", fmt.Errorf("invalid %s id %q", name, c.Param(name)))
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter bounded to [lo, hi].
func queryInt(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, true
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		RespondError(c, http.StatusBadRequest, "invalid_argument", fmt.Errorf("%s must be an integer in [%d, %d]", name, lo, hi))
		return 0, false
	}
	return v, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
		return false
	}
	return true
}

// POST /api/decks
func (h *HTTPHandler) CreateDeck(c *gin.Context) {
	var req createDeckRequest
	if !bindJSON(c, &req) {
		return
	}

	deck, err := h.service.CreateDeck(c.Request.Context(), ownerID(c), req.Name, req.Description)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, deck)
}

// GET /api/decks
func (h *HTTPHandler) ListDecks(c *gin.Context) {
	decks, err := h.service.ListDecks(c.Request.Context(), ownerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{"decks": decks})
}

// GET /api/decks/:deck
func (h *HTTPHandler) GetDeck(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}

	deck, err := h.service.GetDeck(c.Request.Context(), ownerID(c), deckID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, deck)
}

// GET /api/decks/:deck/stats
func (h *HTTPHandler) GetDeckStats(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}

	stats, err := h.service.GetDeckStats(c.Request.Context(), ownerID(c), deckID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, stats)
}

// GET /api/decks/:deck/study?limit=N
func (h *HTTPHandler) GetStudyCards(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultStudyLimit, 1, maxStudyLimit)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	owner := ownerID(c)

	if _, err := h.service.GetDeck(ctx, owner, deckID); err != nil {
		respondServiceError(c, err)
		return
	}

	cards, err := h.service.GetDueCards(ctx, owner, &deckID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, cards)
}

// GET /api/decks/:deck/session?new_limit=N&review_limit=M
func (h *HTTPHandler) GetStudySession(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}
	newLimit, ok := queryInt(c, "new_limit", defaultNewLimit, 0, maxSessionLimit)
	if !ok {
		return
	}
	reviewLimit, ok := queryInt(c, "review_limit", defaultReviewLimit, 0, maxSessionLimit)
	if !ok {
		return
	}

	session, err := h.service.GetStudySession(c.Request.Context(), ownerID(c), deckID, newLimit, reviewLimit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, session)
}

// POST /api/decks/:deck/cards
func (h *HTTPHandler) CreateCard(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}

	var req createCardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.service.CreateCard(c.Request.Context(), ownerID(c), deckID, req.Front, req.Back)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, card)
}

// GET /api/decks/:deck/cards
func (h *HTTPHandler) ListCards(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}

	cards, err := h.service.ListCards(c.Request.Context(), ownerID(c), deckID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{"cards": cards})
}

// PATCH /api/decks/:deck/cards/:card
func (h *HTTPHandler) UpdateCard(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}
	cardID, ok := pathID(c, "card")
	if !ok {
		return
	}

	var req updateCardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.service.SetCardSuspended(c.Request.Context(), ownerID(c), deckID, cardID, *req.IsSuspended)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, card)
}

// DELETE /api/decks/:deck/cards/:card
func (h *HTTPHandler) DeleteCard(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}
	cardID, ok := pathID(c, "card")
	if !ok {
		return
	}

	if err := h.service.DeleteCard(c.Request.Context(), ownerID(c), deckID, cardID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// POST /api/decks/:deck/cards/:card/review
func (h *HTTPHandler) ReviewCard(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}
	cardID, ok := pathID(c, "card")
	if !ok {
		return
	}

	var req reviewRequest
	if !bindJSON(c, &req) {
		return
	}

	quality, err := QualityFromRating(req.Rating)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	ctx := c.Request.Context()
	owner := ownerID(c)

	if _, err = h.service.GetCard(ctx, owner, deckID, cardID); err != nil {
		respondServiceError(c, err)
		return
	}

	schedule, err := h.service.RecordReview(ctx, owner, cardID, quality, req.TimeSpentMs)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, reviewResponse{
		CardID:       schedule.CardID,
		NextReviewAt: schedule.NextReviewAt,
		IntervalDays: schedule.IntervalDays,
		EaseFactor:   schedule.EaseFactor,
		Phase:        srs.PhaseOf(schedule),
	})
}

// GET /api/decks/:deck/cards/:card/schedule
func (h *HTTPHandler) GetSchedule(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}
	cardID, ok := pathID(c, "card")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	owner := ownerID(c)

	if _, err := h.service.GetCard(ctx, owner, deckID, cardID); err != nil {
		respondServiceError(c, err)
		return
	}

	schedule, err := h.service.GetSchedule(ctx, owner, cardID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, scheduleResponse{Schedule: schedule, Phase: srs.PhaseOf(schedule)})
}

// GET /api/decks/:deck/cards/:card/history?limit=N
func (h *HTTPHandler) GetHistory(c *gin.Context) {
	deckID, ok := pathID(c, "deck")
	if !ok {
		return
	}
	cardID, ok := pathID(c, "card")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultHistoryLimit, 1, maxSessionLimit)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	owner := ownerID(c)

	if _, err := h.service.GetCard(ctx, owner, deckID, cardID); err != nil {
		respondServiceError(c, err)
		return
	}

	logs, err := h.service.ListReviewLogs(ctx, owner, cardID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{"reviews": logs})
}

// GET /api/analytics/cards-due
func (h *HTTPHandler) GetCardsDue(c *gin.Context) {
	counts, err := h.service.CountDue(c.Request.Context(), ownerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, counts)
}

// GET /api/analytics/forecast?days=N
func (h *HTTPHandler) GetForecast(c *gin.Context) {
	days, ok := queryInt(c, "days", defaultForecastDays, 1, maxForecastDays)
	if !ok {
		return
	}

	forecast, err := h.service.Forecast(c.Request.Context(), ownerID(c), days)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	RespondOK(c, gin.H{"forecast": forecast})
}
