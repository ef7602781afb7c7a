package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/errors"
	"github.com/saturnines/ants-tap/pkg/pagination"
)

// Validator reports every problem it finds in a parsed config
type Validator interface {
	Validate(config *Tap) []errors.ValidationError
}

// DefaultValueSetter Handles the interface for setting default values
type DefaultValueSetter interface {
	SetDefaults(config *Tap)
}

// VariableExpander defines the interface for expanding variables
type VariableExpander interface {
	Expand(data []byte) []byte
}

// EnvExpander implements VariableExpander using environment variables
type EnvExpander struct{}

// Expand expands environment variables with the given data
func (e *EnvExpander) Expand(data []byte) []byte {
	expanded := os.Expand(string(data), os.Getenv)
	return []byte(expanded)
}

// TapLoader reads, defaults and validates tap configs
type TapLoader struct {
	expander      VariableExpander
	validators    []Validator
	defaultSetter DefaultValueSetter
}

// NewTapLoader creates a new TapLoader with the given components
func NewTapLoader(
	expander VariableExpander,
	defaultSetter DefaultValueSetter,
	validators ...Validator,
) *TapLoader {
	return &TapLoader{
		expander:      expander,
		validators:    validators,
		defaultSetter: defaultSetter,
	}
}

// NewDefaultLoader wires the expander, defaults and every validator.
func NewDefaultLoader() *TapLoader {
	return NewTapLoader(
		&EnvExpander{},
		&TapDefaults{},
		&RequiredFieldValidator{},
		&PolicyValidator{},
		&StreamValidator{},
		&PaginationValidator{},
		&TokenStoreValidator{},
		&StartDateValidator{},
	)
}

// Load a tap config from a YAML or JSON file
func (l *TapLoader) Load(path string) (*Tap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "failed to read config file")
	}

	cfg, err := l.Parse(data)
	if err != nil {
		var ce *errors.ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse parses a config document
func (l *TapLoader) Parse(data []byte) (*Tap, error) {
	// Expand variables if an expander is configured
	if l.expander != nil {
		data = l.expander.Expand(data)
	}

	var tap Tap
	if err := yaml.Unmarshal(data, &tap); err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "failed to parse config")
	}

	if l.defaultSetter != nil {
		l.defaultSetter.SetDefaults(&tap)
	}

	var allErrors []errors.ValidationError
	for _, validator := range l.validators {
		allErrors = append(allErrors, validator.Validate(&tap)...)
	}

	if len(allErrors) > 0 {
		return nil, &errors.ConfigError{Fields: allErrors}
	}

	return &tap, nil
}

// TapDefaults implements DefaultValueSetter for Tap
type TapDefaults struct{}

// SetDefaults sets default values for Tap
func (d *TapDefaults) SetDefaults(tap *Tap) {
	if tap.APIURL == "" {
		tap.APIURL = DefaultAPIURL
	}
	if tap.ErrorPolicy == "" {
		tap.ErrorPolicy = ErrorPolicyIsolated
	}
	if tap.Concurrency <= 0 {
		tap.Concurrency = 1
	}
	if tap.RequestTimeoutSeconds <= 0 {
		tap.RequestTimeoutSeconds = 30
	}
	if tap.TokenRefreshBeforeSeconds == nil {
		refreshBefore := 60
		tap.TokenRefreshBeforeSeconds = &refreshBefore
	}
	if tap.TokenStore.Type == "" {
		tap.TokenStore.Type = TokenStoreConfig
	}
	if tap.TokenStore.Type == TokenStoreSQLite && tap.TokenStore.Path == "" {
		tap.TokenStore.Path = "tap-ants.db"
	}
	if tap.Output.Dir == "" {
		tap.Output.Dir = "output"
	}
	if tap.Output.Columns == "" {
		tap.Output.Columns = ColumnsObserved
	}
	if tap.RateLimit != nil && tap.RateLimit.Burst <= 0 {
		tap.RateLimit.Burst = 1
	}
	if p := tap.Pagination; p != nil {
		switch p.Type {
		case PaginationTypePage:
			if p.PageParam == "" {
				p.PageParam = "page"
			}
			if p.SizeParam == "" {
				p.SizeParam = "pageSize"
			}
			if p.PageSize <= 0 {
				p.PageSize = 100
			}
		case PaginationTypeLink:
			if p.NextLinkPath == "" {
				p.NextLinkPath = "links.next"
			}
		}
	}
}

// RequiredFieldValidator validates required credentials
type RequiredFieldValidator struct{}

func (v *RequiredFieldValidator) Validate(tap *Tap) []errors.ValidationError {
	var errs []errors.ValidationError

	if tap.Username == "" {
		errs = append(errs, errors.ValidationError{Field: "username", Message: "is required"})
	}
	if tap.Password == "" {
		errs = append(errs, errors.ValidationError{Field: "password", Message: "is required"})
	}
	if tap.APIURL == "" {
		errs = append(errs, errors.ValidationError{Field: "api_url", Message: "is required"})
	}

	return errs
}

// PolicyValidator checks error policy and concurrency settings
type PolicyValidator struct{}

func (v *PolicyValidator) Validate(tap *Tap) []errors.ValidationError {
	var errs []errors.ValidationError

	switch tap.ErrorPolicy {
	case ErrorPolicyIsolated, ErrorPolicyStrict:
	default:
		errs = append(errs, errors.ValidationError{
			Field:   "error_policy",
			Message: fmt.Sprintf("unknown error policy: %s", tap.ErrorPolicy),
		})
	}

	if tap.Concurrency > 32 {
		errs = append(errs, errors.ValidationError{Field: "concurrency", Message: "must not exceed 32"})
	}

	if tap.RateLimit != nil && tap.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.ValidationError{Field: "rate_limit.requests_per_second", Message: "must be positive"})
	}

	switch tap.Output.Columns {
	case ColumnsObserved, ColumnsSchema:
	default:
		errs = append(errs, errors.ValidationError{
			Field:   "output.columns",
			Message: fmt.Sprintf("unknown columns mode: %s", tap.Output.Columns),
		})
	}

	return errs
}

// StreamValidator checks that every selected stream exists in the catalog
type StreamValidator struct{}

func (v *StreamValidator) Validate(tap *Tap) []errors.ValidationError {
	var errs []errors.ValidationError
	for _, name := range tap.Streams {
		if _, err := catalog.Describe(name); err != nil {
			errs = append(errs, errors.ValidationError{
				Field:   "streams",
				Message: fmt.Sprintf("unknown stream: %s (known: %s)", name, strings.Join(catalog.Names(), ", ")),
			})
		}
	}
	return errs
}

// PaginationValidator validates pagination configuration
type PaginationValidator struct{}

func (v *PaginationValidator) Validate(tap *Tap) []errors.ValidationError {
	var errs []errors.ValidationError

	// Skip validation if pagination is not configured
	if tap.Pagination == nil {
		return errs
	}

	switch tap.Pagination.Type {
	case PaginationTypePage:
		if tap.Pagination.PageParam == "" {
			errs = append(errs, errors.ValidationError{Field: "pagination.page_param", Message: "is required for page pagination"})
		}
		if tap.Pagination.PageSize <= 0 {
			errs = append(errs, errors.ValidationError{Field: "pagination.page_size", Message: "must be positive"})
		}
	case PaginationTypeLink:
		if tap.Pagination.NextLinkPath == "" {
			errs = append(errs, errors.ValidationError{Field: "pagination.next_link_path", Message: "is required for link pagination"})
		}
	default:
		errs = append(errs, errors.ValidationError{Field: "pagination.type", Message: fmt.Sprintf("unknown pagination type: %s (available: %s)", tap.Pagination.Type, strings.Join(pagination.DefaultFactory.GetAvailablePagers(), ", "))})
	}

	return errs
}

// TokenStoreValidator validates token persistence settings
type TokenStoreValidator struct{}

func (v *TokenStoreValidator) Validate(tap *Tap) []errors.ValidationError {
	var errs []errors.ValidationError

	switch tap.TokenStore.Type {
	case TokenStoreConfig, TokenStoreMemory:
	case TokenStoreSQLite:
		if tap.TokenStore.Path == "" {
			errs = append(errs, errors.ValidationError{Field: "token_store.path", Message: "is required for sqlite token store"})
		}
	default:
		errs = append(errs, errors.ValidationError{Field: "token_store.type", Message: fmt.Sprintf("unknown token store: %s", tap.TokenStore.Type)})
	}

	if tap.TokenExpiresAt != "" {
		if _, err := ParseTimestamp(tap.TokenExpiresAt); err != nil {
			errs = append(errs, errors.ValidationError{Field: "token_expires_at", Message: "is not a valid timestamp"})
		}
	}

	return errs
}

// StartDateValidator checks start_date parses
type StartDateValidator struct{}

func (v *StartDateValidator) Validate(tap *Tap) []errors.ValidationError {
	if tap.StartDate == "" {
		return nil
	}
	if _, err := ParseTimestamp(tap.StartDate); err != nil {
		return []errors.ValidationError{{Field: "start_date", Message: "must be RFC3339 or YYYY-MM-DD"}}
	}
	return nil
}
