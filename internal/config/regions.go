package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type regionsFile struct {
	Regions []domain.Region `yaml:"regions" validate:"min=1,dive"`
}

// LoadRegions reads a region catalog of the form
//
//	regions:
//	  - name: Europe
//	    lon_min: -25
//	    lon_max: 40
//	    lat_min: 34
//	    lat_max: 72
//
// Bounds must lie on the globe; their ordering is checked by domain.NewCatalog.
func LoadRegions(path string) ([]domain.Region, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions: %w", err)
	}
	var rf regionsFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return nil, fmt.Errorf("parse regions %s: %w", path, err)
	}
	if err := validate.Struct(rf); err != nil {
		return nil, fmt.Errorf("regions %s: %w", path, err)
	}
	return rf.Regions, nil
}
