// Package config validates embedding configurations and loads them from files for the CLI.
package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/tansive/flowbridge/internal/common/apperrors"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
	"github.com/tansive/flowbridge/pkg/types"
)

var (
	ErrEnvironmentNotSupported = taxonomy.ErrInvalidConfig.New("Environment is not supported")
	ErrAppIssuerRequired       = taxonomy.ErrInvalidConfig.New("appIssuer is required")
	ErrAccessTokenRequired     = taxonomy.ErrInvalidConfig.New("accessToken is required")
)

// v is read-only after init, which is what makes Validate safe for concurrent use.
var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	if err := val.RegisterValidation("environment", environmentValidator); err != nil {
		panic(err)
	}
	return val
}

func environmentValidator(fl validator.FieldLevel) bool {
	return types.Environment(fl.Field().String()).IsSupported()
}

// rule is one ordered check. The first failing rule decides the message.
type rule struct {
	value  any
	tag    string
	failed apperrors.Error
}

// Validate checks cfg before a session may start. Rules run in a fixed order and stop at the
// first failure: supported environment, non-empty appIssuer and, unless the session resumes an
// already authenticated state, a non-empty accessToken. It performs no I/O and keeps no state.
func Validate(cfg types.Configuration, resumed bool) (types.Configuration, apperrors.Error) {
	rules := []rule{
		{string(cfg.Environment), "environment", ErrEnvironmentNotSupported},
		{cfg.AppIssuer, "required", ErrAppIssuerRequired},
	}
	if !resumed {
		rules = append(rules, rule{cfg.AccessToken, "required", ErrAccessTokenRequired})
	}
	for _, r := range rules {
		if err := v.Var(r.value, r.tag); err != nil {
			return cfg, r.failed
		}
	}
	return cfg, nil
}
