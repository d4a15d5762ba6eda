package db

import (
	"errors"

	"gorm.io/gorm"
)

// IsRecordNotFound reports whether err means the queried row does not exist.
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrRecordNotFound)
}
