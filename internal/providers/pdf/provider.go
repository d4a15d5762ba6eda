package pdf

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/smallbiznis/relevamientos/internal/clock"
	"github.com/smallbiznis/relevamientos/internal/config"
	"github.com/smallbiznis/relevamientos/internal/providers/pdf/layout"
	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TimestampLayout is used for every date printed on a report.
const TimestampLayout = "2006-01-02 15:04:05"

var _ domain.Renderer = (*Renderer)(nil)

// Filename is the stored name of the report of survey id.
func Filename(id int64) string {
	return "relevamiento_" + strconv.FormatInt(id, 10) + ".pdf"
}

type Params struct {
	fx.In

	Config config.Config
	Report *config.ReportConfigHolder
	Clock  clock.Clock
	Log    *zap.Logger
}

// Renderer writes survey reports into a single directory.
type Renderer struct {
	dir     string
	report  *config.ReportConfigHolder
	clock   clock.Clock
	loc     *time.Location
	log     *zap.Logger
	pdfConf *model.Configuration
}

func New(p Params) *Renderer {
	return NewRenderer(p.Config.ReportDir, p.Report, p.Clock, p.Config.Location(), p.Log)
}

func NewRenderer(dir string, report *config.ReportConfigHolder, clk clock.Clock, loc *time.Location, log *zap.Logger) *Renderer {
	if report == nil {
		report = config.NewStaticReportConfigHolder(config.DefaultReportConfig())
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}

	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return &Renderer{
		dir:     dir,
		report:  report,
		clock:   clk,
		loc:     loc,
		log:     log.Named("pdf.renderer"),
		pdfConf: conf,
	}
}

func (r *Renderer) Dir() string {
	return r.dir
}

// Path resolves a stored filename inside the report directory. Directory
// components of filename are ignored.
func (r *Renderer) Path(filename string) string {
	return filepath.Join(r.dir, filepath.Base(filename))
}

// content maps a survey onto the printed report.
func (r *Renderer) content(s domain.Survey) layout.Content {
	cfg := r.report.Get()
	labels := cfg.Labels
	return layout.Content{
		Title:     cfg.Title,
		Timestamp: fmt.Sprintf("%s: %s", cfg.GeneratedLabel, r.clock.Now().In(r.loc).Format(TimestampLayout)),
		Fields: []layout.Field{
			{Label: labels.ID, Value: strconv.FormatInt(s.ID, 10)},
			{Label: labels.Operator, Value: s.Operator},
			{Label: labels.Location, Value: s.Location},
			{Label: labels.Project, Value: s.Project},
			{Label: labels.Date, Value: formatDate(s.CreatedAt, r.loc)},
		},
		ObservationsLabel: labels.Observations,
		Observations:      s.Observations,
		Footer:            cfg.Footer,
	}
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(TimestampLayout)
}
