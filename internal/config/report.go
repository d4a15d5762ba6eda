package config

import (
	"errors"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReportLabels are the captions printed next to each survey field.
type ReportLabels struct {
	ID           string `mapstructure:"id"`
	Operator     string `mapstructure:"operator"`
	Location     string `mapstructure:"location"`
	Project      string `mapstructure:"project"`
	Date         string `mapstructure:"date"`
	Observations string `mapstructure:"observations"`
}

// ReportConfig holds the branding strings of generated reports.
type ReportConfig struct {
	Title          string       `mapstructure:"title"`
	GeneratedLabel string       `mapstructure:"generatedLabel"`
	Footer         string       `mapstructure:"footer"`
	Labels         ReportLabels `mapstructure:"labels"`
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Title:          "Informe de Relevamiento",
		GeneratedLabel: "Generado",
		Footer:         "Sistema de relevamientos - Informe automático",
		Labels: ReportLabels{
			ID:           "ID",
			Operator:     "Operador",
			Location:     "Ubicación",
			Project:      "Proyecto",
			Date:         "Fecha",
			Observations: "Observaciones",
		},
	}
}

type ReportConfigHolder struct {
	current atomic.Value // holds ReportConfig
}

// NewStaticReportConfigHolder returns a holder that never reloads.
func NewStaticReportConfigHolder(cfg ReportConfig) *ReportConfigHolder {
	holder := &ReportConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReportConfigHolder(cfg Config) (*ReportConfigHolder, error) {
	return LoadReportConfig(cfg.ReportConfigPath)
}

// LoadReportConfig reads report.yml (or the file at path) and watches it for changes.
// A missing file yields the defaults.
func LoadReportConfig(path string) (*ReportConfigHolder, error) {
	v := viper.New()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return NewStaticReportConfigHolder(DefaultReportConfig()), nil
			}
			return nil, err
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("report")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/relevamientos")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RELEVAMIENTOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		return NewStaticReportConfigHolder(DefaultReportConfig()), nil
	}

	cfg, err := decodeReportConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticReportConfigHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeReportConfig(v)
		if err != nil {
			zap.L().Warn("report config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("report config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReportConfigHolder) Get() ReportConfig {
	return h.current.Load().(ReportConfig)
}

func decodeReportConfig(v *viper.Viper) (ReportConfig, error) {
	cfg := DefaultReportConfig()
	if err := v.UnmarshalKey("report", &cfg); err != nil {
		return ReportConfig{}, err
	}
	if err := validateReportConfig(cfg); err != nil {
		return ReportConfig{}, err
	}
	return cfg, nil
}

func validateReportConfig(cfg ReportConfig) error {
	if strings.TrimSpace(cfg.Title) == "" {
		return errors.New("report.title cannot be empty")
	}
	if strings.TrimSpace(cfg.Footer) == "" {
		return errors.New("report.footer cannot be empty")
	}
	return nil
}
