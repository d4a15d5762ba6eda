package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gorilla/sessions"
	"github.com/smallbiznis/relevamientos/internal/clock"
	"github.com/smallbiznis/relevamientos/internal/config"
	"github.com/smallbiznis/relevamientos/internal/migration"
	"github.com/smallbiznis/relevamientos/internal/observability"
	"github.com/smallbiznis/relevamientos/internal/providers/pdf"
	"github.com/smallbiznis/relevamientos/internal/ratelimit"
	surveydomain "github.com/smallbiznis/relevamientos/internal/survey/domain"
	"github.com/smallbiznis/relevamientos/internal/survey/repository"
	"github.com/smallbiznis/relevamientos/internal/survey/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	server   *Server
	engine   *gin.Engine
	svc      surveydomain.Service
	renderer *pdf.Renderer
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dir := t.TempDir()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(dir, "relevamientos.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.RunMigrations(sqlDB, "sqlite"))

	cfg := config.Config{
		Environment: "development",
		SecretKey:   "test-secret",
		Timezone:    "UTC",
		ReportDir:   filepath.Join(dir, "informes"),
	}
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	renderer := pdf.NewRenderer(cfg.ReportDir, nil, clk, time.UTC, nil)
	svc := service.New(service.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Clock:    clk,
		Repo:     repository.Provide(),
		Renderer: renderer,
	})

	engine := NewEngine(observability.Config{Environment: "development"}, nil)
	srv := NewServer(ServerParams{
		Gin:       engine,
		Cfg:       cfg,
		Log:       zap.NewNop(),
		SurveySvc: svc,
		Sessions:  NewSessionStore(cfg),
	})

	return testEnv{server: srv, engine: engine, svc: svc, renderer: renderer}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return e.do(req)
}

func (e testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e testEnv) create(t *testing.T, operator string) surveydomain.Survey {
	t.Helper()
	s, err := e.svc.Create(context.Background(), surveydomain.CreateSurveyRequest{
		Operator: operator,
		Location: "Planta Norte",
		Project:  "P-100",
	})
	require.NoError(t, err)
	return s
}

func (e testEnv) count(t *testing.T) int {
	t.Helper()
	items, err := e.svc.List(context.Background())
	require.NoError(t, err)
	return len(items)
}

func validForm(operator string) url.Values {
	return url.Values{
		"operador":      {operator},
		"ubicacion":     {"Planta Norte"},
		"proyecto":      {"Ampliación"},
		"observaciones": {"Todo en orden"},
	}
}

func TestShowFormIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `name="operador"`)
	assert.Contains(t, body, `value=""`)
	assert.NotContains(t, body, "obligatorio")
}

func TestSubmitValidationEchoesInput(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm("/submit", url.Values{
		"operador":      {"  Ana  "},
		"ubicacion":     {"   "},
		"observaciones": {"nota previa"},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "El campo Ubicación es obligatorio.")
	assert.Contains(t, body, "El campo Proyecto es obligatorio.")
	assert.NotContains(t, body, "El campo Operador es obligatorio.")
	assert.Contains(t, body, `value="Ana"`)
	assert.Contains(t, body, "nota previa")

	assert.Zero(t, env.count(t))
	_, err := os.Stat(env.renderer.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestSubmitRedirectsToListWithFlash(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm("/submit", validForm("Ana"))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/list", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	list := env.get("/list", cookies...)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), msgSurveyCreated)
	assert.Contains(t, list.Body.String(), "relevamiento_1.pdf")

	assert.FileExists(t, env.renderer.Path(pdf.Filename(1)))
	assert.Equal(t, 1, env.count(t))
}

func TestSubmitSpanishAlias(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm("/guardar", validForm("Ana"))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, 1, env.count(t))
}

func TestListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"Ana", "Beto", "Carla"} {
		env.create(t, name)
	}

	w := env.get("/listado")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	carla := strings.Index(body, "Carla")
	beto := strings.Index(body, "Beto")
	ana := strings.Index(body, "Ana")
	require.True(t, carla > 0 && beto > 0 && ana > 0)
	assert.Less(t, carla, beto)
	assert.Less(t, beto, ana)
	assert.Equal(t, 3, strings.Count(body, `class="survey"`))
}

func TestDownloadServesAttachment(t *testing.T) {
	env := newTestEnv(t)
	s := env.create(t, "Ana")

	w := env.get("/download/" + strconv.FormatInt(s.ID, 10))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "relevamiento_1.pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestDownloadRegeneratesDeletedReport(t *testing.T) {
	env := newTestEnv(t)
	s := env.create(t, "Ana")
	path := env.renderer.Path(*s.ReportFilename)
	require.NoError(t, os.Remove(path))

	w := env.get("/descargar/" + strconv.FormatInt(s.ID, 10))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
	assert.FileExists(t, path)

	entries, err := os.ReadDir(env.renderer.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	stored, err := env.svc.GetByID(context.Background(), strconv.FormatInt(s.ID, 10))
	require.NoError(t, err)
	require.NotNil(t, stored.ReportFilename)
	assert.Equal(t, pdf.Filename(s.ID), *stored.ReportFilename)
}

func TestDownloadUnknownIDIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/download/42", "/download/abc"} {
		w := env.get(path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Contains(t, w.Body.String(), "Relevamiento no encontrado.")
	}

	assert.Zero(t, env.count(t))
	_, err := os.Stat(env.renderer.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestUnknownRouteRendersErrorPage(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Error 404")
}

type denyLimiter struct {
	retryAfter time.Duration
	err        error
	calls      int
}

func (d *denyLimiter) Enabled() bool { return true }

func (d *denyLimiter) AllowSubmit(context.Context, string) (ratelimit.SubmitVerdict, error) {
	d.calls++
	if d.err != nil {
		return ratelimit.SubmitVerdict{}, d.err
	}
	return ratelimit.SubmitVerdict{RetryAfter: d.retryAfter}, nil
}

func TestSubmitRateLimited(t *testing.T) {
	env := newTestEnv(t)
	limiter := &denyLimiter{retryAfter: 1500 * time.Millisecond}
	env.server.limiter = limiter

	w := env.postForm("/submit", validForm("Ana"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, 1, limiter.calls)
	assert.Zero(t, env.count(t))
}

func TestSubmitLimiterFailureFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	env.server.limiter = &denyLimiter{err: assert.AnError}

	w := env.postForm("/submit", validForm("Ana"))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, 1, env.count(t))
}

func TestSessionStoreSignsWithSecret(t *testing.T) {
	store := NewSessionStore(config.Config{SecretKey: "one", Environment: "production"})
	cookieStore, ok := store.(*sessions.CookieStore)
	require.True(t, ok)
	assert.True(t, cookieStore.Options.HttpOnly)
	assert.True(t, cookieStore.Options.Secure)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
}
