package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.ObjectStore.Type == "s3" && cfg.ObjectStore.S3.Bucket == "" {
		return fmt.Errorf("object_store.s3.bucket: required when object_store.type is s3")
	}
	if cfg.ObjectStore.Type == "badger" && cfg.ObjectStore.Badger.Path == "" {
		return fmt.Errorf("object_store.badger.path: required when object_store.type is badger")
	}
	if cfg.Environment == "prod" && cfg.Auth.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url: required in prod")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
