//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxus-portfolio/apiserver/config"
	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/db"
	"github.com/nyxus-portfolio/apiserver/internal/server"
	"github.com/nyxus-portfolio/apiserver/internal/services"
	"github.com/nyxus-portfolio/apiserver/internal/store"
)

const (
	serverPort    = 18080
	adminPassword = "testpass123!"
)

var (
	baseURL = fmt.Sprintf("http://localhost:%d/api/v1", serverPort)
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srvCtx, stop := context.WithCancel(context.Background())
	done, err := startServer(srvCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		stop()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, fmt.Sprintf("http://localhost:%d/healthz", serverPort)); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		stop()
		<-done
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	stop()
	<-done
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

type projectResponse struct {
	ID        int      `json:"id"`
	Title     string   `json:"title"`
	TechStack []string `json:"tech_stack"`
	ImageURL  *string  `json:"image_url"`
}

func TestProjectLifecycle(t *testing.T) {
	email := fmt.Sprintf("admin_%d@example.com", time.Now().UnixNano())
	require.NoError(t, ensureAdmin(email))
	token := login(t, email, adminPassword)

	created := sendProjectForm(t, http.MethodPost, "/projects", token, map[string]string{
		"title":       "Nyxus",
		"description": "Portfolio backend",
		"tech_stack":  "Go,PostgreSQL",
	}, true, http.StatusCreated)
	require.NotZero(t, created.ID)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, created.TechStack)
	require.NotNil(t, created.ImageURL)

	image, err := http.Get(*created.ImageURL)
	require.NoError(t, err)
	_ = image.Body.Close()
	assert.Equal(t, http.StatusOK, image.StatusCode)

	updated := sendProjectForm(t, http.MethodPut, fmt.Sprintf("/projects/%d", created.ID), token, map[string]string{
		"title": "Nyxus v2",
	}, false, http.StatusOK)
	assert.Equal(t, "Nyxus v2", updated.Title)
	assert.Equal(t, created.TechStack, updated.TechStack)

	resp := doRequest(t, http.MethodGet, "/projects", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Total-Count"))
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, fmt.Sprintf("/projects/%d", created.ID), token, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodGet, fmt.Sprintf("/projects/%d", created.ID), "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestProjectWritesRequireAdmin(t *testing.T) {
	resp := doRequest(t, http.MethodDelete, "/projects/1", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	_ = resp.Body.Close()
}

func TestContactFlow(t *testing.T) {
	email := fmt.Sprintf("admin_%d@example.com", time.Now().UnixNano())
	require.NoError(t, ensureAdmin(email))
	token := login(t, email, adminPassword)

	body := `{"name": "Ada", "email": "ada@example.com", "subject": "Hi", "message": "Hello there"}`
	resp := doRequest(t, http.MethodPost, "/contact", "", strings.NewReader(body), "application/json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodGet, "/contact", token, nil, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	require.NotEmpty(t, messages)
	assert.Equal(t, "Ada", messages[0].Name)
}

func ensureAdmin(email string) error {
	cfg := config.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	users := services.NewUserService(store.NewUserRepository(conn), auth.NewBcryptHasher(cfg.Auth.BcryptCost))
	_, err = users.EnsureAdmin(ctx, email, adminPassword)
	return err
}

func login(t *testing.T, email, password string) string {
	t.Helper()

	form := url.Values{"username": {email}, "password": {password}}
	resp := doRequest(t, http.MethodPost, "/auth/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, readBody(resp))

	var parsed struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.Equal(t, "bearer", parsed.TokenType)
	require.NotEmpty(t, parsed.AccessToken)
	return parsed.AccessToken
}

func sendProjectForm(t *testing.T, method, path, token string, fields map[string]string, withImage bool, wantStatus int) projectResponse {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if withImage {
		part, err := writer.CreateFormFile("image", "cover.png")
		require.NoError(t, err)
		_, err = part.Write(pngData)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	resp := doRequest(t, method, path, token, &body, writer.FormDataContentType())
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode, readBody(resp))

	var parsed projectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed
}

func doRequest(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// readBody is only evaluated for failure messages; it consumes the body.
func readBody(resp *http.Response) string {
	if resp.StatusCode < 300 {
		return ""
	}
	msg, _ := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(msg))
}

func setTestEnv() {
	_ = os.Setenv("SECRET_KEY", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "portfolio")
	_ = os.Setenv("DB_PASSWORD", "portfolio")
	_ = os.Setenv("DB_NAME", "portfolio_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("AUTH_BCRYPT_COST", "4")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "portfolio-e2e")
	_ = os.Setenv("MQ_BACKEND", "rabbitmq")
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// startServer runs the API until ctx is cancelled; done closes after shutdown.
func startServer(ctx context.Context) (<-chan struct{}, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srv, err := server.New(ctx, cfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	return done, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
