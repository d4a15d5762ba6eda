package domain

import "time"

// Survey is one site-survey entry ("relevamiento").
type Survey struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Operator       string    `gorm:"not null" json:"operator"`
	Location       string    `gorm:"not null" json:"location"`
	Project        string    `gorm:"not null" json:"project"`
	Observations   string    `gorm:"not null" json:"observations"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
	ReportFilename *string   `gorm:"column:report_filename" json:"report_filename,omitempty"`
}

func (Survey) TableName() string {
	return "surveys"
}

// HasReport reports whether a report filename has been stored.
func (s Survey) HasReport() bool {
	return s.ReportFilename != nil && *s.ReportFilename != ""
}

// Report points at a generated file in the report directory.
type Report struct {
	SurveyID int64
	Filename string
	Path     string
	// Regenerated is set when the file had to be rendered to serve the request.
	Regenerated bool
}
