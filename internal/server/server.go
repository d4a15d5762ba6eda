package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/relevamientos/internal/config"
	"github.com/smallbiznis/relevamientos/internal/observability"
	obsmiddleware "github.com/smallbiznis/relevamientos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/relevamientos/internal/observability/metrics"
	obstracing "github.com/smallbiznis/relevamientos/internal/observability/tracing"
	"github.com/smallbiznis/relevamientos/internal/providers/pdf"
	"github.com/smallbiznis/relevamientos/internal/ratelimit"
	"github.com/smallbiznis/relevamientos/internal/survey"
	surveydomain "github.com/smallbiznis/relevamientos/internal/survey/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

var Module = fx.Module("http.server",
	pdf.Module,
	ratelimit.Module,
	survey.Module,
	fx.Provide(NewSessionStore),
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Templates parses the embedded HTML views.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}).ParseFS(templatesFS, "templates/*.html"))
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		Operations:      routeOperations,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		Operations: routeOperations,
		Skip:       []string{"/health", "/metrics"},
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())
	r.SetHTMLTemplate(Templates())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	surveySvc surveydomain.Service
	sessions  sessions.Store
	limiter   submitLimiter
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	SurveySvc surveydomain.Service
	Sessions  sessions.Store
	Limiter   *ratelimit.Limiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       log.Named("http.server"),
		surveySvc: p.SurveySvc,
		sessions:  p.Sessions,
	}
	if p.Limiter != nil {
		svc.limiter = p.Limiter
	}

	svc.registerUIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// routeOperations names the spans of every UI route; the Spanish aliases
// share the span of their English route.
var routeOperations = map[string]string{
	"/":              "survey.form",
	"/submit":        "survey.submit",
	"/guardar":       "survey.submit",
	"/list":          "survey.list",
	"/listado":       "survey.list",
	"/download/:id":  "survey.download",
	"/descargar/:id": "survey.download",
}

func (s *Server) registerUIRoutes() {
	s.engine.GET("/", s.ShowForm)

	s.engine.POST("/submit", s.SubmitRateLimit(), s.SubmitSurvey)
	s.engine.POST("/guardar", s.SubmitRateLimit(), s.SubmitSurvey)

	s.engine.GET("/list", s.ListSurveys)
	s.engine.GET("/listado", s.ListSurveys)

	s.engine.GET("/download/:id", s.DownloadReport)
	s.engine.GET("/descargar/:id", s.DownloadReport)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
