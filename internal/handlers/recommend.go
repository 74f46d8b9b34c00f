package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recmind-app/recmind-server/internal/middleware"
	appErrors "github.com/recmind-app/recmind-server/pkg/errors"
	"github.com/recmind-app/recmind-server/pkg/logger"
	"github.com/recmind-app/recmind-server/pkg/response"
)

const maxSuggestionItems = 10

// RecommendHandler fronts the recommendation engine. The engine runs as a
// separate service; this handler authenticates the caller, attaches their
// identity and relays the result.
type RecommendHandler struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewRecommendHandler(baseURL string, client *http.Client) *RecommendHandler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RecommendHandler{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     logger.WithModule("handlers.recommend"),
	}
}

// GET /api/recommend?topic=...&q=...&k=10&alpha=0.5
func (h *RecommendHandler) Recommend(c *gin.Context) {
	topic := strings.TrimSpace(c.Query("topic"))
	if topic == "" {
		response.Error(c, appErrors.NewBadRequest("topic is required"))
		return
	}

	query := url.Values{}
	query.Set("user_id", c.GetString(middleware.CtxUserIDKey))
	query.Set("topic", topic)
	query.Set("q", c.DefaultQuery("q", topic))
	query.Set("k", strings.TrimSpace(c.DefaultQuery("k", "10")))
	query.Set("alpha", strings.TrimSpace(c.DefaultQuery("alpha", "0.5")))

	var items []json.RawMessage
	if err := h.getJSON(requestContext(c), "/recommendations?"+query.Encode(), &items); err != nil {
		h.log.Warn("recommendation fetch failed", zap.String("topic", topic), zap.Error(err))
		response.Error(c, appErrors.ErrUpstream.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"items": items})
}

type suggestItem struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Desc   string `json:"desc"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

type suggestRequest struct {
	Items []suggestItem `json:"items" validate:"required,min=1,dive"`
}

// POST /api/llm/suggest
//
// Relays the caller's shortlist to the language-model service, which returns
// a per-item explanation of why the resource is worth their time.
func (h *RecommendHandler) Suggest(c *gin.Context) {
	var req suggestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	// Large shortlists blow up the prompt; cap at the first ten.
	if len(req.Items) > maxSuggestionItems {
		req.Items = req.Items[:maxSuggestionItems]
	}

	body, err := json.Marshal(gin.H{"items": req.Items})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Internal server error"))
		return
	}

	var suggestions []json.RawMessage
	if err := h.postJSON(requestContext(c), "/suggestions", body, &suggestions); err != nil {
		h.log.Warn("suggestion fetch failed", zap.Int("items", len(req.Items)), zap.Error(err))
		response.Error(c, appErrors.ErrUpstream.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"suggestions": suggestions})
}

func (h *RecommendHandler) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("recommend upstream: build request: %w", err)
	}
	return h.do(req, dest)
}

func (h *RecommendHandler) postJSON(ctx context.Context, path string, body []byte, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("recommend upstream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, dest)
}

func (h *RecommendHandler) do(req *http.Request, dest any) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("recommend upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recommend upstream: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("recommend upstream: decode response: %w", err)
	}
	return nil
}
