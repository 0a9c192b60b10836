package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

/* ─── Request / Response types ───────────────────────────────────────── */

// foodSuggestion is a draft food item estimated by the model. It is not
// persisted; the client reviews it and posts it to /api/nutrition/foods.
// Confidence is 1-5 indicating how accurate the estimate is.
type foodSuggestion struct {
	Name         string  `json:"name"`
	ServingSize  string  `json:"serving_size"`
	CaloriesKcal int     `json:"calories_kcal"`
	ProteinG     float64 `json:"protein_g"`
	CarbsG       float64 `json:"carbs_g"`
	FatG         float64 `json:"fat_g"`
	Confidence   int     `json:"confidence"`
}

/* ─── OpenAI prompt ──────────────────────────────────────────────────── */

const foodSystemPrompt = `You are a nutrition assistant. Parse the food description and return a JSON object describing ONE serving:
- "name" (string, cleaned up title case)
- "serving_size" (string, e.g. "1 large egg", "100 g", "1 cup")
- "calories_kcal" (integer, per serving)
- "protein_g" (number with one decimal, per serving)
- "carbs_g" (number with one decimal, per serving)
- "fat_g" (number with one decimal, per serving)
- "confidence" (integer 1-5: 5=exact known nutritional data, 4=very close estimate, 3=reasonable estimate, 2=rough guess, 1=very uncertain)

Always provide your best estimate, even for unfamiliar or vague items. Use your knowledge of similar foods to approximate. Only return {"error": "unrecognized"} if the input is not food at all (e.g. random characters, non-food objects).
Return only valid JSON, no explanation.`

/* ─── OpenAI HTTP client ─────────────────────────────────────────────── */

var errNoOpenAIKey = errors.New("OPENAI_API_KEY not set")

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

// callOpenAI sends a chat completions request and returns the raw content string
// from the first choice. Uses raw net/http to avoid pulling in the OpenAI SDK.
func callOpenAI(ctx context.Context, messages []openAIMessage, baseURL, apiKey string) (string, error) {
	if apiKey == "" {
		return "", errNoOpenAIKey
	}

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:          "gpt-4o-mini",
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

/* ─── Handler ────────────────────────────────────────────────────────── */

// suggestFood asks the model for one serving's calories and macros.
// POST /api/nutrition/foods/suggest {description}. Non-food input yields
// 200 {"error":"unrecognized"}; an upstream failure is a 502.
func (h *Handler) suggestFood(c *gin.Context) {
	var req struct {
		Description string `json:"description" validate:"required,max=500"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		fieldErrors(c, map[string]string{"description": "this field is required"})
		return
	}

	content, err := callOpenAI(c.Request.Context(), []openAIMessage{
		{Role: "system", Content: foodSystemPrompt},
		{Role: "user", Content: req.Description},
	}, h.openAIBaseURL, h.openAIKey)
	if errors.Is(err, errNoOpenAIKey) {
		apiError(c, http.StatusServiceUnavailable, "food suggestions are not configured")
		return
	}
	if err != nil {
		log.Printf("[suggestFood] OpenAI error: %v", err)
		apiError(c, http.StatusBadGateway, "openai request failed")
		return
	}

	var errorResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &errorResp); err != nil {
		log.Printf("[suggestFood] Failed to parse OpenAI response: %v", err)
		apiError(c, http.StatusBadGateway, "openai request failed")
		return
	}
	if errorResp.Error == "unrecognized" {
		c.JSON(http.StatusOK, gin.H{"error": "unrecognized"})
		return
	}

	var s foodSuggestion
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		log.Printf("[suggestFood] Failed to parse suggestion JSON: %v", err)
		apiError(c, http.StatusBadGateway, "openai request failed")
		return
	}
	if s.Name == "" || s.CaloriesKcal <= 0 {
		c.JSON(http.StatusOK, gin.H{"error": "unrecognized"})
		return
	}
	c.JSON(http.StatusOK, clampSuggestion(s))
}

// clampSuggestion keeps a draft inside the ranges a food item accepts, so the
// client can post it back unchanged.
func clampSuggestion(s foodSuggestion) foodSuggestion {
	s.CaloriesKcal = min(max(s.CaloriesKcal, 1), 10000)
	clamp := func(v float64) float64 { return math.Round(min(max(v, 0), 500)*10) / 10 }
	s.ProteinG = clamp(s.ProteinG)
	s.CarbsG = clamp(s.CarbsG)
	s.FatG = clamp(s.FatG)
	s.Confidence = min(max(s.Confidence, 1), 5)
	return s
}
