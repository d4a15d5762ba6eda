package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/relevamientos/internal/providers/pdf"
	surveydomain "github.com/smallbiznis/relevamientos/internal/survey/domain"
)

const msgSurveyCreated = "Relevamiento cargado y PDF generado."

type surveyForm struct {
	Operator     string `form:"operador"`
	Location     string `form:"ubicacion"`
	Project      string `form:"proyecto"`
	Observations string `form:"observaciones"`
}

type formView struct {
	Data    surveyForm
	Errors  []string
	Flashes flashes
}

type surveyRow struct {
	ID             int64
	Operator       string
	Location       string
	Project        string
	Observations   string
	CreatedAt      string
	ReportFilename *string
}

type listView struct {
	Surveys []surveyRow
	Flashes flashes
}

func (s *Server) ShowForm(c *gin.Context) {
	c.HTML(http.StatusOK, "form.html", formView{Flashes: s.popFlashes(c)})
}

func (s *Server) SubmitSurvey(c *gin.Context) {
	var form surveyForm
	if err := c.ShouldBind(&form); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := surveydomain.CreateSurveyRequest{
		Operator:     form.Operator,
		Location:     form.Location,
		Project:      form.Project,
		Observations: form.Observations,
	}.Normalize()

	created, err := s.surveySvc.Create(c.Request.Context(), req)
	if err != nil {
		var vErr *surveydomain.ValidationError
		if errors.As(err, &vErr) {
			c.HTML(http.StatusBadRequest, "form.html", formView{
				Data: surveyForm{
					Operator:     req.Operator,
					Location:     req.Location,
					Project:      req.Project,
					Observations: req.Observations,
				},
				Errors: vErr.Messages(),
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.Set("survey_id", strconv.FormatInt(created.ID, 10))
	s.addFlash(c, flashSuccess, msgSurveyCreated)
	c.Redirect(http.StatusSeeOther, "/list")
}

func (s *Server) ListSurveys(c *gin.Context) {
	items, err := s.surveySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := make([]surveyRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, surveyRow{
			ID:             item.ID,
			Operator:       item.Operator,
			Location:       item.Location,
			Project:        item.Project,
			Observations:   item.Observations,
			CreatedAt:      item.CreatedAt.In(s.cfg.Location()).Format(pdf.TimestampLayout),
			ReportFilename: item.ReportFilename,
		})
	}

	c.HTML(http.StatusOK, "list.html", listView{Surveys: rows, Flashes: s.popFlashes(c)})
}

func (s *Server) DownloadReport(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set("survey_id", id)

	report, err := s.surveySvc.EnsureReport(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.FileAttachment(report.Path, report.Filename)
}
