package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/docuforge/api/internal/auth"
	"github.com/docuforge/api/internal/client"
	"github.com/docuforge/api/internal/config"
	"github.com/docuforge/api/internal/handler"
	"github.com/docuforge/api/internal/middleware"
	"github.com/docuforge/api/internal/pipeline"
	"github.com/docuforge/api/internal/service"
	"github.com/docuforge/api/internal/store"
	"github.com/docuforge/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.MemoryStore
}

// queuedDispatcher accepts jobs but never runs them, so records stay queued
// and cancellation/quota behavior is deterministic.
type queuedDispatcher struct{}

func (queuedDispatcher) Dispatch(ctx context.Context, jobID string) error { return nil }

// setupApp creates a Fiber app identical to main.go in memory mode with
// unconfigured external clients. This triggers mock/fallback responses in
// all services, so generation completes in milliseconds.
func setupApp(t *testing.T) *testApp {
	return setup(t, true)
}

// setupQueuedApp creates the same app but with a dispatcher that never runs
// jobs; every submitted job stays queued.
func setupQueuedApp(t *testing.T) *testApp {
	return setup(t, false)
}

func setup(t *testing.T, runJobs bool) *testApp {
	t.Helper()

	jobsCfg := &config.JobsConfig{
		StoreBackend:        "memory",
		MaxActivePerOwner:   4,
		Timeout:             15 * time.Minute,
		Retention:           24 * time.Hour,
		StoreRetryAttempts:  3,
		StoreRetryBaseDelay: 10 * time.Millisecond,
	}

	validate := validator.New()
	jobStore := store.NewMemoryStore()

	// External clients unconfigured so the pipeline uses mock fallbacks
	groqClient := client.NewGroqClient(&config.GroqConfig{}) // no API key, mock
	builder := pipeline.NewDocumentBuilder(groqClient, nil)  // nil storage, mock

	var dispatcher worker.Dispatcher
	if runJobs {
		executor := worker.NewExecutor(jobStore, builder, nil, jobsCfg)
		dispatcher = worker.NewInProcessDispatcher(executor)
	} else {
		dispatcher = queuedDispatcher{}
	}

	// Services
	documentService := service.NewDocumentService(jobStore, dispatcher, jobsCfg)
	outlineService := service.NewOutlineService(groqClient)
	exportService := service.NewExportService(documentService, nil) // nil triggers mock fallbacks

	// Handlers
	documentHandler := handler.NewDocumentHandler(documentService, validate)
	outlineHandler := handler.NewOutlineHandler(outlineService, validate)
	exportHandler := handler.NewExportHandler(exportService, validate)

	// Auth handler (for /auth/verify)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Auth middleware, legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq":     false,
				"r2":       false,
				"auth":     true,
				"jobStore": "memory",
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	// API routes (authenticated); rate limiting is skipped in tests
	api := app.Group("/api", authMiddleware.Authenticate())

	documents := api.Group("/documents")
	documents.Post("/generate", documentHandler.Generate)
	documents.Get("/status/:jobId", documentHandler.Status)
	documents.Get("/result/:jobId", documentHandler.Result)
	documents.Post("/cancel/:jobId", documentHandler.Cancel)
	documents.Get("/jobs", documentHandler.List)

	outline := api.Group("/outline")
	outline.Post("/generate", outlineHandler.Generate)

	export := api.Group("/export")
	export.Post("/:format", exportHandler.Export)

	return &testApp{app: app, store: jobStore}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: userID,
		Email:  userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "docuforge-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request as the default test user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doUserRequest(t, app, "test-user-123", method, path, body)
}

// doUserRequest performs an authenticated request as a specific user.
func doUserRequest(t *testing.T, app *fiber.App, userID, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, userID)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts the error code from an error response.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}

// pollUntilStatus polls the status endpoint until the job reaches the wanted
// status or the deadline passes.
func pollUntilStatus(t *testing.T, app *fiber.App, jobID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, app, http.MethodGet, "/api/documents/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		result := parseJSON(t, resp)
		if result["status"] == want {
			return result
		}
		status, _ := result["status"].(string)
		if status == "failed" || status == "cancelled" || status == "succeeded" {
			t.Fatalf("job reached terminal status %q while waiting for %q: %v", status, want, result)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %q in time", jobID, want)
	return nil
}
