package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/smallbiznis/relevamientos/internal/clock"
	"github.com/smallbiznis/relevamientos/internal/config"
	"github.com/smallbiznis/relevamientos/internal/providers/pdf/layout"
	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))
	return NewRenderer(filepath.Join(t.TempDir(), "informes"), nil, clk, time.UTC, nil)
}

func sampleSurvey(observations string) domain.Survey {
	return domain.Survey{
		ID:           7,
		Operator:     "Ana",
		Location:     "Planta Norte",
		Project:      "Ampliación",
		Observations: observations,
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderSurveyWritesDeterministicFile(t *testing.T) {
	r := newTestRenderer(t)

	filename, err := r.RenderSurvey(context.Background(), sampleSurvey("sin novedades"))
	require.NoError(t, err)
	assert.Equal(t, "relevamiento_7.pdf", filename)

	data, err := os.ReadFile(r.Path(filename))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	pages, err := r.Inspect(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestRenderSurveyOverwritesPreviousReport(t *testing.T) {
	r := newTestRenderer(t)
	ctx := context.Background()

	first, err := r.RenderSurvey(ctx, sampleSurvey("corta"))
	require.NoError(t, err)
	second, err := r.RenderSurvey(ctx, sampleSurvey(strings.Repeat("z", 40*layout.WrapWidth)))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "relevamiento_7.pdf", entries[0].Name())

	pages, err := r.Inspect(second)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestRenderSurveyLongObservationsAddPages(t *testing.T) {
	r := newTestRenderer(t)
	ctx := context.Background()

	survey := sampleSurvey(strings.Repeat("x", 100*layout.WrapWidth))
	survey.ID = 8
	filename, err := r.RenderSurvey(ctx, survey)
	require.NoError(t, err)

	pages, err := r.Inspect(filename)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
}

func TestRenderSurveyHonorsCanceledContext(t *testing.T) {
	r := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RenderSurvey(ctx, sampleSurvey(""))
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(r.Dir())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRenderSurveyFailsWhenDirIsAFile(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "informes")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	r := NewRenderer(blocker, nil, nil, time.UTC, nil)
	_, err := r.RenderSurvey(context.Background(), sampleSurvey("x"))
	assert.Error(t, err)
}

func TestInspectMissingAndCorruptFiles(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Inspect("relevamiento_99.pdf")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.MkdirAll(r.Dir(), 0o755))
	require.NoError(t, os.WriteFile(r.Path("relevamiento_5.pdf"), []byte("garbage"), 0o644))
	_, err = r.Inspect("relevamiento_5.pdf")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrNotExist)
}

func TestPathStripsDirectories(t *testing.T) {
	r := NewRenderer("/srv/informes", nil, nil, nil, nil)
	assert.Equal(t, filepath.Join("/srv/informes", "passwd"), r.Path("../../etc/passwd"))
}

func TestContentUsesReportConfig(t *testing.T) {
	cfg := config.DefaultReportConfig()
	cfg.Title = "Informe Técnico"
	cfg.Labels.Operator = "Técnico"
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))
	r := NewRenderer(t.TempDir(), config.NewStaticReportConfigHolder(cfg), clk, time.UTC, nil)

	content := r.content(sampleSurvey(""))
	assert.Equal(t, "Informe Técnico", content.Title)
	assert.Equal(t, "Generado: 2024-05-01 12:30:00", content.Timestamp)
	assert.Equal(t, layout.Field{Label: "ID", Value: "7"}, content.Fields[0])
	assert.Equal(t, layout.Field{Label: "Técnico", Value: "Ana"}, content.Fields[1])
	assert.Equal(t, layout.Field{Label: "Fecha", Value: "2024-05-01 12:00:00"}, content.Fields[4])
	assert.Equal(t, "Observaciones", content.ObservationsLabel)
}

type textRun struct {
	X    float64
	Text string
}

var textRunPattern = regexp.MustCompile(`BT ([0-9.]+) ([0-9.]+) Td \(((?:\\.|[^\\)])*)\) Tj`)

// textRuns extracts the content stream of one page and returns its text
// operators in drawing order.
func textRuns(t *testing.T, path string, page int) []textRun {
	t.Helper()
	outDir := t.TempDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	require.NoError(t, api.ExtractContentFile(path, outDir, []string{strconv.Itoa(page)}, conf))

	name := strings.TrimSuffix(filepath.Base(path), ".pdf") + "_Content_page_" + strconv.Itoa(page) + ".txt"
	content, err := os.ReadFile(filepath.Join(outDir, name))
	require.NoError(t, err)

	var runs []textRun
	for _, m := range textRunPattern.FindAllStringSubmatch(string(content), -1) {
		x, err := strconv.ParseFloat(m[1], 64)
		require.NoError(t, err)
		runs = append(runs, textRun{X: x, Text: m[3]})
	}
	return runs
}

func observationRuns(t *testing.T, runs []textRun) []string {
	t.Helper()
	start, end := -1, -1
	for i, run := range runs {
		switch {
		case run.Text == "Observaciones:":
			start = i
		case strings.HasPrefix(run.Text, "Sistema de relevamientos"):
			end = i
		}
	}
	require.NotEqual(t, -1, start, "heading not drawn")
	require.Greater(t, end, start, "footer not drawn after heading")

	var lines []string
	for _, run := range runs[start+1 : end] {
		lines = append(lines, run.Text)
	}
	return lines
}

func TestRenderSurveyDrawsEachChunkAsOneRun(t *testing.T) {
	cases := map[string]string{
		"words":     strings.Repeat("SE OBSERVA FISURA EN MURO ", 8)[:160],
		"wide":      strings.Repeat("W", 2*layout.WrapWidth),
		"no spaces": strings.Repeat("m", layout.WrapWidth+5),
	}
	for name, observations := range cases {
		t.Run(name, func(t *testing.T) {
			r := newTestRenderer(t)
			filename, err := r.RenderSurvey(context.Background(), sampleSurvey(observations))
			require.NoError(t, err)

			lines := observationRuns(t, textRuns(t, r.Path(filename), 1))
			assert.Equal(t, layout.Wrap(observations, layout.WrapWidth), lines)
		})
	}
}

func TestRenderSurveyPlacesFieldValuesAtSixCentimetres(t *testing.T) {
	r := newTestRenderer(t)
	filename, err := r.RenderSurvey(context.Background(), sampleSurvey("x"))
	require.NoError(t, err)

	const ptPerMM = 72 / 25.4
	runs := textRuns(t, r.Path(filename), 1)

	var label, value *textRun
	for i := range runs {
		switch runs[i].Text {
		case "Operador:":
			label = &runs[i]
		case "Ana":
			value = &runs[i]
		}
	}
	require.NotNil(t, label)
	require.NotNil(t, value)
	assert.InDelta(t, 20*ptPerMM, label.X, 0.1)
	assert.InDelta(t, 60*ptPerMM, value.X, 0.1)
}
