package domain

import (
	"context"
	"errors"
	"strings"
)

type CreateSurveyRequest struct {
	Operator     string
	Location     string
	Project      string
	Observations string
}

// Normalize trims every field.
func (r CreateSurveyRequest) Normalize() CreateSurveyRequest {
	return CreateSurveyRequest{
		Operator:     strings.TrimSpace(r.Operator),
		Location:     strings.TrimSpace(r.Location),
		Project:      strings.TrimSpace(r.Project),
		Observations: strings.TrimSpace(r.Observations),
	}
}

type Service interface {
	Create(context.Context, CreateSurveyRequest) (Survey, error)
	List(context.Context) ([]Survey, error)
	GetByID(context.Context, string) (Survey, error)
	EnsureReport(context.Context, string) (Report, error)
	Regenerate(context.Context, string) (Report, error)
}

var (
	ErrInvalidOperator = errors.New("invalid_operator")
	ErrInvalidLocation = errors.New("invalid_location")
	ErrInvalidProject  = errors.New("invalid_project")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
)

// FieldError is one violated form field.
type FieldError struct {
	Field   string
	Err     error
	Message string
}

// ValidationError collects every violated field of a submission.
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Error() string {
	return "validation error"
}

func (v *ValidationError) Messages() []string {
	out := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		out = append(out, f.Message)
	}
	return out
}

// Is lets errors.Is match any of the collected field errors.
func (v *ValidationError) Is(target error) bool {
	for _, f := range v.Fields {
		if f.Err == target {
			return true
		}
	}
	return false
}

// Validate checks the required fields of an already normalized request.
func Validate(req CreateSurveyRequest) error {
	var fields []FieldError
	if req.Operator == "" {
		fields = append(fields, FieldError{Field: "operator", Err: ErrInvalidOperator, Message: "El campo Operador es obligatorio."})
	}
	if req.Location == "" {
		fields = append(fields, FieldError{Field: "location", Err: ErrInvalidLocation, Message: "El campo Ubicación es obligatorio."})
	}
	if req.Project == "" {
		fields = append(fields, FieldError{Field: "project", Err: ErrInvalidProject, Message: "El campo Proyecto es obligatorio."})
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
