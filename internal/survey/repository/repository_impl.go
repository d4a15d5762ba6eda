package repository

import (
	"context"

	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert stores a new survey and fills in the id assigned by the store.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, survey *domain.Survey) error {
	return db.WithContext(ctx).Create(survey).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Survey, error) {
	var survey domain.Survey
	err := db.WithContext(ctx).Raw(
		`SELECT id, operator, location, project, observations, created_at, report_filename
		 FROM surveys WHERE id = ?`,
		id,
	).Scan(&survey).Error
	if err != nil {
		return nil, err
	}
	if survey.ID == 0 {
		return nil, nil
	}
	return &survey, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Survey, error) {
	var surveys []*domain.Survey
	err := db.WithContext(ctx).
		Model(&domain.Survey{}).
		Order("id desc").
		Find(&surveys).Error
	if err != nil {
		return nil, err
	}
	return surveys, nil
}

func (r *repo) UpdateReportFilename(ctx context.Context, db *gorm.DB, id int64, filename string) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE surveys SET report_filename = ? WHERE id = ?`,
		filename,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
