// Package config provides configuration loading and validation for the pipeline.
//
// A Config is built once at startup (defaults, then an optional JSON or YAML
// file, then CLI overrides) and passed by pointer to every component
// constructor. Nothing below cmd/ reads environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/phanatic/phanatic/internal/schemas"
	rootschemas "github.com/phanatic/phanatic/schemas"
)

// Match modes for genome extraction.
const (
	MatchExact     = "exact"
	MatchSubstring = "substring"
)

// Toggles switch optional pipeline stages on or off.
type Toggles struct {
	Normalise  bool `json:"normalise" yaml:"normalise"`
	Filter     bool `json:"filter" yaml:"filter"`
	FastQC     bool `json:"fastqc" yaml:"fastqc"`
	Barcode    bool `json:"barcode" yaml:"barcode"`
	Mapping    bool `json:"mapping" yaml:"mapping"`
	ReAssembly bool `json:"re_assembly" yaml:"re_assembly"`
	CleanUp    bool `json:"clean_up" yaml:"clean_up"`
}

// Config represents the pipeline configuration that can be loaded from a JSON or YAML file.
type Config struct {
	Image     string `json:"image,omitempty" yaml:"image,omitempty"` // Label written into every ledger line
	InputDir  string `json:"input_dir,omitempty" yaml:"input_dir,omitempty"`
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	R1Ext     string `json:"r1_ext,omitempty" yaml:"r1_ext,omitempty" validate:"required"`
	R2Ext     string `json:"r2_ext,omitempty" yaml:"r2_ext,omitempty" validate:"required,nefield=R1Ext"`

	Pipeline Toggles `json:"pipeline" yaml:"pipeline"`

	// Read processing
	ReadLength     int `json:"read_length,omitempty" yaml:"read_length,omitempty" validate:"gte=1"`
	TrimLength     int `json:"trim_length" yaml:"trim_length" validate:"gte=0,ltfield=ReadLength"`
	MinimumLength  int `json:"minimum_length,omitempty" yaml:"minimum_length,omitempty" validate:"gte=0"`
	MinimumInsert  int `json:"minimum_insert,omitempty" yaml:"minimum_insert,omitempty" validate:"gte=0"`
	MinimumOverlap int `json:"minimum_overlap,omitempty" yaml:"minimum_overlap,omitempty" validate:"gte=0"`

	// Classification and extraction
	TargetCoverage int    `json:"target_coverage,omitempty" yaml:"target_coverage,omitempty" validate:"gte=1"`
	FilterLength   int    `json:"filter_length" yaml:"filter_length" validate:"gte=0"`
	MatchMode      string `json:"match_mode,omitempty" yaml:"match_mode,omitempty" validate:"oneof=exact substring"`
	HostMapping    string `json:"host_mapping,omitempty" yaml:"host_mapping,omitempty"` // CSV of phage,host reference

	// Barcoding
	BarcodeLength int    `json:"barcode_length,omitempty" yaml:"barcode_length,omitempty" validate:"gte=1,lte=62"`
	BarcodePrefix string `json:"barcode_prefix" yaml:"barcode_prefix"`

	// Resources
	ThreadCount  int    `json:"thread_count,omitempty" yaml:"thread_count,omitempty" validate:"gte=1"`
	MemoryBudget string `json:"memory_budget,omitempty" yaml:"memory_budget,omitempty" validate:"required,membudget"` // JVM heap for bbtools, e.g. "20g"
	MemoryGB     int    `json:"memory_gb,omitempty" yaml:"memory_gb,omitempty" validate:"gte=1"`                       // SPAdes memory limit

	// Persistence and publishing
	DatabaseURL   string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	SQLitePath    string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	PublishBucket string `json:"publish_bucket,omitempty" yaml:"publish_bucket,omitempty"`
	PublishPrefix string `json:"publish_prefix,omitempty" yaml:"publish_prefix,omitempty"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Image: "phanatic",
		R1Ext: "_R1_001.fastq.gz",
		R2Ext: "_R2_001.fastq.gz",
		Pipeline: Toggles{
			Normalise: true,
			Filter:    true,
			Barcode:   true,
			Mapping:   true,
		},
		ReadLength:     150,
		TrimLength:     10,
		MinimumLength:  50,
		MinimumInsert:  35,
		MinimumOverlap: 12,
		TargetCoverage: 100,
		FilterLength:   1000,
		MatchMode:      MatchExact,
		BarcodeLength:  8,
		BarcodePrefix:  "PHG",
		ThreadCount:    8,
		MemoryBudget:   "20g",
		MemoryGB:       20,
	}
}

// LoadConfig loads configuration from a JSON or YAML file (chosen by
// extension) layered over Default(). The raw document is checked against the
// embedded JSON Schema first so that wrong types are reported by field.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, &ConfigurationError{Message: "config path is empty"}
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("failed to read config file %s", path), Cause: err}
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &ConfigurationError{Message: "failed to parse config YAML", Cause: err}
		}
		if raw != nil {
			if err := schemas.ValidateDocument(rootschemas.Config, raw); err != nil {
				return nil, schemaError(err)
			}
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &ConfigurationError{Message: "failed to parse config YAML", Cause: err}
		}
	default:
		if !json.Valid(data) {
			return nil, &ConfigurationError{Message: "failed to parse config JSON: malformed document"}
		}
		if err := schemas.ValidateJSONString(rootschemas.Config, string(data)); err != nil {
			return nil, schemaError(err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, &ConfigurationError{Message: "failed to parse config JSON", Cause: err}
		}
	}

	return &cfg, nil
}

func schemaError(err error) error {
	var ve *schemas.ValidationError
	if errors.As(err, &ve) && len(ve.Errors) > 0 {
		return &ConfigurationError{Field: ve.Errors[0].Field, Message: ve.Errors[0].Message, Cause: err}
	}
	return &ConfigurationError{Message: "config does not match schema", Cause: err}
}

var memoryBudgetPattern = regexp.MustCompile(`^[0-9]+[kKmMgG]$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("membudget", func(fl validator.FieldLevel) bool {
		return memoryBudgetPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigurationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed '%s' check (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigurationError{Message: "invalid configuration", Cause: err}
	}
	return nil
}

// ValidateForRun additionally requires the input and output locations used by a full run.
func (c *Config) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.InputDir == "" {
		return &ConfigurationError{Field: "input_dir", Message: "is required"}
	}
	if c.OutputDir == "" {
		return &ConfigurationError{Field: "output_dir", Message: "is required"}
	}
	info, err := os.Stat(c.InputDir)
	if err != nil {
		return &ConfigurationError{Field: "input_dir", Message: "is not readable", Cause: err}
	}
	if !info.IsDir() {
		return &ConfigurationError{Field: "input_dir", Message: "is not a directory"}
	}
	if c.HostMapping != "" {
		if _, err := os.Stat(c.HostMapping); os.IsNotExist(err) {
			return &ConfigurationError{Field: "host_mapping", Message: "file not found"}
		}
	}
	return nil
}

// CoverageThreshold is the minimum average fold depth for a coverage PASS:
// four fifths of the target, divided last so the result is the float nearest
// the exact value (target 3 gives 2.4, not 2.4000000000000004).
func (c *Config) CoverageThreshold() float64 {
	return float64(c.TargetCoverage*coverageNumerator) / coverageDenominator
}

// A contig must reach coverageNumerator/coverageDenominator of the
// normalisation target.
const (
	coverageNumerator   = 4
	coverageDenominator = 5
)
