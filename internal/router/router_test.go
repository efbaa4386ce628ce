package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-scoring-engine/internal/config"
	"github.com/noah-isme/gema-scoring-engine/internal/handler"
	"github.com/noah-isme/gema-scoring-engine/internal/middleware"
	"github.com/noah-isme/gema-scoring-engine/internal/router"
	"github.com/noah-isme/gema-scoring-engine/internal/scoring"
	"github.com/noah-isme/gema-scoring-engine/internal/service"
	"github.com/noah-isme/gema-scoring-engine/pkg/llm"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	return newAppWithConfig(t, config.Config{AppName: "PM Scoring Engine", AppEnv: "test"})
}

func newAppWithConfig(t *testing.T, cfg config.Config) *fiber.App {
	t.Helper()
	logger := zerolog.Nop()
	integrator := scoring.NewIntegrator(
		scoring.NewRuleBasedScorer(logger),
		scoring.NewSemanticScorer(nil, logger),
		scoring.NewComprehensiveScorer(logger),
		scoring.IntegratorConfig{MethodTimeout: time.Second},
		nil, logger,
	)
	svc := service.NewScoringService(integrator, llm.NewManager(nil, logger), nil, nil, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ScoringService: svc,
		ScoringHandler: handler.NewScoringHandler(svc, logger),
	})
	return app
}

func TestRoutesAreRegistered(t *testing.T) {
	app := newApp(t)

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/", "", fiber.StatusOK},
		{http.MethodGet, "/api/v1/health", "", fiber.StatusOK},
		{http.MethodGet, "/api/v1/llm/providers", "", fiber.StatusOK},
		{http.MethodPost, "/api/v1/score", `{"answer_text":"risk","question":{"question_text":"q","points":10}}`, fiber.StatusOK},
		{http.MethodPost, "/api/v1/llm/score", `{"answer_text":"risk","question":{"question_text":"q","points":10}}`, fiber.StatusServiceUnavailable},
		{http.MethodGet, "/metrics", "", fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(tc.body)))
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestScoringRoutesAreRateLimited(t *testing.T) {
	app := newAppWithConfig(t, config.Config{
		AppName:         "PM Scoring Engine",
		AppEnv:          "test",
		RateLimitMax:    2,
		RateLimitWindow: time.Minute,
	})

	score := func() *http.Response {
		body := `{"answer_text":"risk","question":{"question_text":"q","points":10}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/score", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	require.Equal(t, fiber.StatusOK, score().StatusCode)
	require.Equal(t, fiber.StatusOK, score().StatusCode)

	limited := score()
	require.Equal(t, fiber.StatusTooManyRequests, limited.StatusCode)
	var payload struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&payload))
	require.False(t, payload.Success)
	require.Equal(t, "rate limit exceeded", payload.Message)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	app := newApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "PM Scoring Engine", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}

func TestMetricsExposeScoringSeries(t *testing.T) {
	app := newApp(t)

	body := `{"answer_text":"risk","question":{"question_text":"q","points":10}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/score", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req, -1)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	require.Contains(t, string(raw), "scoring_api_requests_total")
	require.Contains(t, string(raw), "scoring_method_duration_seconds")
}

func TestHealthReportsNoProviders(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)

	var payload struct {
		Data struct {
			Status       string `json:"status"`
			LLMAvailable bool   `json:"llm_available"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "ok", payload.Data.Status)
	require.False(t, payload.Data.LLMAvailable)
}
