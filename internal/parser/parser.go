package parser

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gantry/pkg/pipeline"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Parse reads and validates a pipeline YAML file, returning the parsed Pipeline struct or an error.
func Parse(filePath string) (*pipeline.Pipeline, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("pipeline file not found: %s", filePath)
	}

	// Configure Viper
	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetConfigType("yaml")

	// Read the file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("pipeline file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}

	// Unmarshal into Pipeline struct
	var p pipeline.Pipeline
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file - malformed YAML: %w", err)
	}

	// Viper folds all keys to lower case, which would mangle the
	// case-sensitive environment variable names in env blocks. Re-decode
	// those from the raw document so declared keys pass through unchanged.
	if err := restoreEnvKeys(filePath, &p); err != nil {
		return nil, err
	}

	// Validate the structure
	if err := validate.Struct(&p); err != nil {
		return nil, formatValidationError(err)
	}

	// Stage names double as state-file checkpoints and report prefixes,
	// so duplicates would make a resumed run ambiguous.
	seen := make(map[string]bool, len(p.Spec.Stages))
	for _, s := range p.Spec.Stages {
		if seen[s.Name] {
			return nil, fmt.Errorf("validation error: duplicate stage name '%s'", s.Name)
		}
		seen[s.Name] = true
	}

	return &p, nil
}

// envOverlay mirrors just the env blocks of the declaration for a
// case-preserving second decode.
type envOverlay struct {
	Spec struct {
		Env    map[string]string `yaml:"env"`
		Stages []struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"stages"`
	} `yaml:"spec"`
}

// restoreEnvKeys replaces the env maps on p with maps decoded straight from
// the YAML document, since viper's lower-casing loses key case.
func restoreEnvKeys(filePath string, p *pipeline.Pipeline) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read pipeline file: %w", err)
	}

	var overlay envOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse pipeline file - malformed YAML: %w", err)
	}

	p.Spec.Env = overlay.Spec.Env
	if len(overlay.Spec.Stages) == len(p.Spec.Stages) {
		for i := range p.Spec.Stages {
			p.Spec.Stages[i].Env = overlay.Spec.Stages[i].Env
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, formatFieldError(e))
		}

		if len(errorMessages) == 1 {
			return fmt.Errorf("validation error: %s", errorMessages[0])
		}

		result := "validation errors:\n"
		for _, msg := range errorMessages {
			result += fmt.Sprintf("  - %s\n", msg)
		}
		return fmt.Errorf("%s", result)
	}
	return fmt.Errorf("validation failed: %w", err)
}

// formatFieldError formats a single validation error into a user-friendly message.
func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("field '%s' is required but missing", field)
	case "eq":
		return fmt.Sprintf("field '%s' must be '%s'", field, e.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", field)
	case "min":
		return fmt.Sprintf("field '%s' must have at least %s entries", field, e.Param())
	case "required_without":
		return fmt.Sprintf("field '%s' is required when '%s' is not set", field, e.Param())
	case "excluded_with":
		return fmt.Sprintf("field '%s' cannot be combined with '%s'", field, e.Param())
	default:
		return fmt.Sprintf("field '%s' failed validation (%s)", field, tag)
	}
}
