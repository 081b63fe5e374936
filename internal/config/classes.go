package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"fitstudio/internal/models"

	"gopkg.in/yaml.v3"
)

// classRecord is one entry of the seed catalog file. Times are IST wall clock.
type classRecord struct {
	ID             int64  `yaml:"id"`
	Name           string `yaml:"name"`
	ScheduledAt    string `yaml:"scheduled_at"`
	Instructor     string `yaml:"instructor"`
	TotalSlots     int    `yaml:"total_slots"`
	AvailableSlots *int   `yaml:"available_slots"`
}

// DefaultClasses is the built-in catalog used when no seed file is configured.
func DefaultClasses() []models.FitnessClass {
	return []models.FitnessClass{
		{
			ID:             1,
			Name:           "Yoga",
			ScheduledAt:    models.ISTTime(2025, time.June, 10, 9, 0),
			Instructor:     "Anita Sharma",
			TotalSlots:     10,
			AvailableSlots: 10,
		},
		{
			ID:             2,
			Name:           "Zumba",
			ScheduledAt:    models.ISTTime(2025, time.June, 11, 18, 0),
			Instructor:     "Ravi Kumar",
			TotalSlots:     15,
			AvailableSlots: 15,
		},
		{
			ID:             3,
			Name:           "HIIT",
			ScheduledAt:    models.ISTTime(2025, time.June, 12, 7, 30),
			Instructor:     "Neha Singh",
			TotalSlots:     12,
			AvailableSlots: 12,
		},
	}
}

// LoadClasses reads the seed catalog. An empty path yields DefaultClasses.
func LoadClasses(path string) ([]models.FitnessClass, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultClasses(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classes: %w", err)
	}

	var file struct {
		Classes []classRecord `yaml:"classes"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse classes: %w", err)
	}

	classes := make([]models.FitnessClass, 0, len(file.Classes))
	for _, rec := range file.Classes {
		at, err := time.ParseInLocation(models.ScheduleLayout, strings.TrimSpace(rec.ScheduledAt), models.IST)
		if err != nil {
			return nil, fmt.Errorf("class %d: invalid scheduled_at %q: %w", rec.ID, rec.ScheduledAt, err)
		}

		available := rec.TotalSlots
		if rec.AvailableSlots != nil {
			available = *rec.AvailableSlots
		}

		classes = append(classes, models.FitnessClass{
			ID:             rec.ID,
			Name:           strings.TrimSpace(rec.Name),
			ScheduledAt:    at,
			Instructor:     strings.TrimSpace(rec.Instructor),
			TotalSlots:     rec.TotalSlots,
			AvailableSlots: available,
		})
	}

	if err := ValidateClasses(classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func ValidateClasses(classes []models.FitnessClass) error {
	if len(classes) == 0 {
		return fmt.Errorf("class catalog is empty")
	}

	ids := make(map[int64]bool, len(classes))
	for _, c := range classes {
		if c.ID == 0 {
			return fmt.Errorf("class '%s' has invalid ID 0", c.Name)
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate class ID found: %d", c.ID)
		}
		ids[c.ID] = true

		if c.Name == "" {
			return fmt.Errorf("class %d has no name", c.ID)
		}
		if c.TotalSlots <= 0 {
			return fmt.Errorf("class %d: total_slots must be positive", c.ID)
		}
		if c.AvailableSlots < 0 || c.AvailableSlots > c.TotalSlots {
			return fmt.Errorf("class %d: available_slots must be between 0 and %d", c.ID, c.TotalSlots)
		}
	}
	return nil
}
