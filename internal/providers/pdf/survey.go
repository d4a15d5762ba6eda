package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/smallbiznis/relevamientos/internal/providers/pdf/layout"
	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"go.uber.org/zap"
)

const (
	sideMargin   = 20.0
	bottomMargin = 5.0

	// gridCols splits the 170mm text width into 10mm columns, which puts
	// field values 60mm from the page edge.
	gridCols  = 17
	labelCols = 4

	// lineFontSize is the largest Courier size at which a full wrapped
	// chunk fits the text width, so each chunk stays a single line.
	lineFontSize = 10.0
)

var ErrEmptyDocument = errors.New("pdf: empty document")

// RenderSurvey lays out the survey, writes it to the report directory and
// returns its filename. An existing report for the same id is replaced.
func (r *Renderer) RenderSurvey(ctx context.Context, survey domain.Survey) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc := layout.Build(r.content(survey))
	data, err := generate(doc)
	if err != nil {
		return "", fmt.Errorf("generate report %d: %w", survey.ID, err)
	}

	filename := Filename(survey.ID)
	if err := r.writeFile(filename, data); err != nil {
		return "", err
	}

	r.log.Debug("report written",
		zap.Int64("survey_id", survey.ID),
		zap.String("filename", filename),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("bytes", len(data)),
	)
	return filename, nil
}

// Inspect opens a stored report and returns its page count. A missing file
// yields an error matching os.ErrNotExist.
func (r *Renderer) Inspect(filename string) (int, error) {
	f, err := os.Open(r.Path(filename))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pages, err := api.PageCount(f, r.pdfConf)
	if err != nil {
		return 0, fmt.Errorf("inspect %s: %w", filename, err)
	}
	if pages == 0 {
		return 0, ErrEmptyDocument
	}
	return pages, nil
}

// writeFile stages data next to its destination and renames it into place,
// so a failed write never leaves a partial report under the final name.
func (r *Renderer) writeFile(filename string, data []byte) (err error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, "."+filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err = os.Rename(tmp.Name(), r.Path(filename)); err != nil {
		return fmt.Errorf("move report into place: %w", err)
	}
	return nil
}

func generate(doc layout.Document) ([]byte, error) {
	if len(doc.Pages) == 0 {
		return nil, ErrEmptyDocument
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(sideMargin).
		WithRightMargin(sideMargin).
		WithTopMargin(layout.TopMargin).
		WithBottomMargin(bottomMargin).
		WithMaxGridSize(gridCols).
		Build()

	m := maroto.New(cfg)
	for _, p := range doc.Pages {
		m.AddPages(buildPage(p))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}

func buildPage(p layout.Page) core.Page {
	pg := page.New()
	y := layout.TopMargin
	for _, b := range p.Blocks {
		// Pad down to the planned position; rows in maroto stack top-down.
		if gap := b.Y - y; gap > 0 {
			pg = pg.Add(row.New(gap).Add(col.New(gridCols)))
		}
		pg = pg.Add(blockRow(b))
		y = b.Y + b.Height
	}
	return pg
}

func blockRow(b layout.Block) core.Row {
	switch b.Kind {
	case layout.KindTitle:
		return row.New(b.Height).Add(
			text.NewCol(gridCols, b.Text, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Left}),
		)
	case layout.KindTimestamp:
		return row.New(b.Height).Add(
			text.NewCol(gridCols, b.Text, props.Text{Size: 10}),
		)
	case layout.KindField:
		return row.New(b.Height).Add(
			text.NewCol(labelCols, b.Label+":", props.Text{Size: 11, Style: fontstyle.Bold}),
			text.NewCol(gridCols-labelCols, b.Text, props.Text{Size: 11}),
		)
	case layout.KindHeading:
		return row.New(b.Height).Add(
			text.NewCol(gridCols, b.Text+":", props.Text{Size: 11, Style: fontstyle.Bold}),
		)
	case layout.KindFooter:
		return row.New(b.Height).Add(
			text.NewCol(gridCols, b.Text, props.Text{Size: 9, Style: fontstyle.Italic}),
		)
	default:
		return row.New(b.Height).Add(
			text.NewCol(gridCols, b.Text, props.Text{Family: fontfamily.Courier, Size: lineFontSize}),
		)
	}
}
