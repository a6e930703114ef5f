// Package config provides configuration management for the edge-lab
// research toolchain.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/yourusername/edge-lab/internal/market"
	"github.com/yourusername/edge-lab/internal/signal"
)

// CustomValidator wraps the validator with custom validation rules.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions.
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails for blank tags, which are compile-time
	// constants here.
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("assetclass", validateAssetClass)
	_ = v.RegisterValidation("direction", validateDirection)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration.
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules.
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCrossField(cfg)
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	}
	return false
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func validateAssetClass(fl validator.FieldLevel) bool {
	return market.AssetClass(fl.Field().String()).Valid()
}

func validateDirection(fl validator.FieldLevel) bool {
	return signal.Direction(fl.Field().String()).Valid()
}

// validateCrossField performs cross-field validations: the selected asset
// class and direction must have profile table entries.
func validateCrossField(cfg *Config) error {
	if _, ok := cfg.Assets[cfg.Run.AssetClass]; !ok {
		return fmt.Errorf("assets table has no profile for asset_class %q", cfg.Run.AssetClass)
	}
	if _, ok := cfg.Directions[cfg.Run.Direction]; !ok {
		return fmt.Errorf("directions table has no profile for direction %q", cfg.Run.Direction)
	}
	for name, d := range cfg.Directions {
		if d.TargetR <= 0 {
			return fmt.Errorf("direction profile %q: target_r must be positive", name)
		}
	}
	if cfg.PropFirm.Enabled() {
		if cfg.PropFirm.MaxDDLimit <= 0 || cfg.PropFirm.ProfitTarget <= 0 {
			return fmt.Errorf("prop_firm block requires positive max_dd_limit and profit_target")
		}
		if cfg.PropFirm.DailyDDLimit > cfg.PropFirm.MaxDDLimit {
			return fmt.Errorf("prop_firm daily_dd_limit cannot exceed max_dd_limit")
		}
	}
	return nil
}

// formatValidationErrors formats validation errors into a readable string.
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "assetclass":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: crypto, forex, stocks\n", field)
		case "direction":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: short, long\n", field)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s (got '%v')\n", field, tag, value)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}
