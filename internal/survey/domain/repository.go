package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, survey *Survey) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Survey, error)
	List(ctx context.Context, db *gorm.DB) ([]*Survey, error)
	UpdateReportFilename(ctx context.Context, db *gorm.DB, id int64, filename string) error
}

// Renderer writes the report of a survey to the report directory.
type Renderer interface {
	RenderSurvey(ctx context.Context, survey Survey) (string, error)
	Path(filename string) string
	// Inspect returns the page count of a stored report.
	Inspect(filename string) (int, error)
}

// ReportLocker serializes regeneration of one survey's report across
// processes. release must be called once the report is in place.
type ReportLocker interface {
	LockReport(ctx context.Context, surveyID int64) (release func(), err error)
}
