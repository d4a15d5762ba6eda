package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TypeSQLite   = "sqlite"
	TypeSQLite3  = "sqlite3"
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
)

func Dialect(cfg Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case TypeMySQL:
		// clientFoundRows makes UPDATE report matched rows, not changed rows.
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
		)), nil
	case TypePostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.Port,
			cfg.SSLMode,
		)), nil
	case TypeSQLite:
		return sqlite.Open(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", sqlitePath(cfg.Path))), nil
	case TypeSQLite3:
		return cgosqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000", sqlitePath(cfg.Path))), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

func sqlitePath(path string) string {
	if path == "" {
		return "relevamientos.db"
	}
	return path
}
