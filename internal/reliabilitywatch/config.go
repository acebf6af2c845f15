package reliabilitywatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/soc-portal/internal/domain/valueobject"
)

const minInterval = 5 * time.Second

type Config struct {
	Port     string
	Interval time.Duration
	// Range - окно, которое проверяет watcher (по умолчанию today)
	Range      string
	RunTimeout time.Duration
}

// Normalize подставляет значения по умолчанию и проверяет конфигурацию
func (c Config) Normalize() (Config, error) {
	if c.Port == "" {
		c.Port = "8081"
	}
	if c.Interval == 0 {
		c.Interval = time.Minute
	}
	if c.Interval < minInterval {
		return Config{}, errors.New("WATCHER_INTERVAL must be >= 5s")
	}
	if c.Range == "" {
		c.Range = string(valueobject.RangeToday)
	}
	preset, err := valueobject.ParseRangePreset(c.Range)
	if err != nil {
		return Config{}, fmt.Errorf("invalid WATCHER_RANGE: %w", err)
	}
	if preset == valueobject.RangeCustom {
		return Config{}, errors.New("WATCHER_RANGE cannot be custom")
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Second
	}
	return c, nil
}
