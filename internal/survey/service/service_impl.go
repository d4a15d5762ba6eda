package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/relevamientos/internal/clock"
	obscontext "github.com/smallbiznis/relevamientos/internal/observability/context"
	"github.com/smallbiznis/relevamientos/internal/observability/logger"
	"github.com/smallbiznis/relevamientos/internal/observability/metrics"
	"github.com/smallbiznis/relevamientos/internal/observability/tracing"
	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Renderer domain.Renderer
	Locker   domain.ReportLocker    `optional:"true"`
	Metrics  *metrics.ReportMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	renderer domain.Renderer
	locker   domain.ReportLocker
	metrics  *metrics.ReportMetrics
	tracer   trace.Tracer
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("survey.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		renderer: p.Renderer,
		locker:   p.Locker,
		metrics:  p.Metrics,
		tracer:   tracing.Tracer("survey"),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSurveyRequest) (domain.Survey, error) {
	ctx, span := s.tracer.Start(ctx, "survey.create")
	defer span.End()

	req = req.Normalize()
	if err := domain.Validate(req); err != nil {
		span.SetStatus(codes.Error, "validation")
		return domain.Survey{}, err
	}

	survey := domain.Survey{
		Operator:     req.Operator,
		Location:     req.Location,
		Project:      req.Project,
		Observations: req.Observations,
		CreatedAt:    s.clock.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Insert(ctx, s.db, &survey); err != nil {
		recordError(span, err)
		return domain.Survey{}, fmt.Errorf("insert survey: %w", err)
	}
	span.SetAttributes(tracing.SafeAttributes(attribute.Int64("survey.id", survey.ID))...)
	s.metrics.IncSurveyCreated()

	report, err := s.render(ctx, survey, metrics.RenderReasonCreated)
	if err != nil {
		recordError(span, err)
		return survey, err
	}
	survey.ReportFilename = &report.Filename

	s.logFor(ctx, survey.ID).Info("survey created",
		zap.String("filename", report.Filename),
	)
	return survey, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Survey, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	surveys := make([]domain.Survey, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		surveys = append(surveys, *item)
	}
	return surveys, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Survey, error) {
	surveyID, err := parseID(id)
	if err != nil {
		return domain.Survey{}, err
	}

	ctx = obscontext.WithSurveyID(ctx, surveyID)
	item, err := s.repo.FindByID(ctx, s.db, surveyID)
	if err != nil {
		return domain.Survey{}, err
	}
	if item == nil {
		return domain.Survey{}, domain.ErrNotFound
	}
	return *item, nil
}

// EnsureReport returns the stored report of a survey, rendering it again when
// the file is gone or no longer readable as a PDF.
func (s *Service) EnsureReport(ctx context.Context, id string) (domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "survey.ensure_report")
	defer span.End()

	survey, err := s.GetByID(ctx, id)
	if err != nil {
		recordError(span, err)
		return domain.Report{}, err
	}
	span.SetAttributes(tracing.SafeAttributes(attribute.Int64("survey.id", survey.ID))...)

	report, reason, ok := s.storedReport(ctx, survey)
	if ok {
		return report, nil
	}

	if s.locker != nil {
		release, err := s.locker.LockReport(ctx, survey.ID)
		if err != nil {
			s.logFor(ctx, survey.ID).Warn("report lock unavailable", zap.Error(err))
		} else {
			defer release()

			// another instance may have rendered it while we waited
			if fresh, err := s.repo.FindByID(ctx, s.db, survey.ID); err == nil && fresh != nil {
				if report, _, ok := s.storedReport(ctx, *fresh); ok {
					return report, nil
				}
			}
		}
	}

	report, err = s.render(ctx, survey, reason)
	if err != nil {
		recordError(span, err)
		return domain.Report{}, err
	}
	return report, nil
}

// storedReport checks the file named on the survey. When it cannot be served
// the returned reason says why.
func (s *Service) storedReport(ctx context.Context, survey domain.Survey) (domain.Report, string, bool) {
	if !survey.HasReport() {
		return domain.Report{}, metrics.RenderReasonMissing, false
	}

	filename := *survey.ReportFilename
	pages, err := s.renderer.Inspect(filename)
	if err == nil {
		trace.SpanFromContext(ctx).SetAttributes(tracing.SafeAttributes(attribute.Int("report.pages", pages))...)
		return domain.Report{
			SurveyID: survey.ID,
			Filename: filename,
			Path:     s.renderer.Path(filename),
		}, "", true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Report{}, metrics.RenderReasonMissing, false
	}

	s.logFor(ctx, survey.ID).Warn("stored report unreadable",
		zap.String("filename", filename),
		zap.Error(err),
	)
	return domain.Report{}, metrics.RenderReasonCorrupt, false
}

// Regenerate renders the report of a survey unconditionally.
func (s *Service) Regenerate(ctx context.Context, id string) (domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "survey.regenerate")
	defer span.End()

	survey, err := s.GetByID(ctx, id)
	if err != nil {
		recordError(span, err)
		return domain.Report{}, err
	}

	report, err := s.render(ctx, survey, metrics.RenderReasonRequested)
	if err != nil {
		recordError(span, err)
		return domain.Report{}, err
	}
	return report, nil
}

// render writes the report file and then stores its name on the survey.
func (s *Service) render(ctx context.Context, survey domain.Survey, reason string) (domain.Report, error) {
	ctx = obscontext.WithSurveyID(ctx, survey.ID)
	ctx, span := s.tracer.Start(ctx, "report.render", trace.WithAttributes(
		tracing.SafeAttributes(
			attribute.Int64("survey.id", survey.ID),
			attribute.String("report.reason", reason),
		)...,
	))
	defer span.End()

	start := time.Now()
	filename, err := s.renderer.RenderSurvey(ctx, survey)
	s.metrics.ObserveRender(reason, time.Since(start), err)
	if err != nil {
		recordError(span, err)
		return domain.Report{}, fmt.Errorf("render report %d: %w", survey.ID, err)
	}
	span.SetAttributes(tracing.SafeAttributes(attribute.String("report.filename", filename))...)

	if err := s.repo.UpdateReportFilename(ctx, s.db, survey.ID, filename); err != nil {
		recordError(span, err)
		return domain.Report{}, fmt.Errorf("store report filename %d: %w", survey.ID, err)
	}

	s.logFor(ctx, survey.ID).Debug("report rendered",
		zap.String("reason", reason),
		zap.String("filename", filename),
	)
	return domain.Report{
		SurveyID:    survey.ID,
		Filename:    filename,
		Path:        s.renderer.Path(filename),
		Regenerated: true,
	}, nil
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(tracing.SafeError(err))
	span.SetStatus(codes.Error, err.Error())
}

// logFor returns the service logger tagged with the request ids and surveyID.
func (s *Service) logFor(ctx context.Context, surveyID int64) *zap.Logger {
	return logger.WithContext(obscontext.WithSurveyID(ctx, surveyID), s.log)
}
