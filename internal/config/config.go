// Package config resolves the supervisor's environment-variable
// overrides, applied under whatever a user passed on the command line.
// Environment variables are automatically parsed from the PREDUCE_
// prefix.
package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Env holds the environment-sourced overrides for cmd/preduce's flags.
// Any field left at its zero value was not set and the CLI's own flag
// default (or explicit flag value) wins instead. None of these fields
// carry an envconfig "default" tag: a default tag makes the field's
// "unset" sentinel the default value rather than the Go zero value,
// which would make this layer indistinguishable from an explicit
// override and silently clobber a user's flag. PrintHistogram is a
// *bool rather than bool for the same reason — bool's zero value
// (false) can't be told apart from an explicit "disable the
// histogram", so only a nil pointer may mean "not set".
type Env struct {
	NumWorkers int    `envconfig:"NUM_WORKERS"`
	Reducers   string `envconfig:"REDUCERS"`
	// Predicate is read from PREDUCE_PREDICATE but cmd/preduce does not
	// apply it; the predicate always comes from the --predicate flag.
	Predicate      string `envconfig:"PREDICATE"`
	LogPath        string `envconfig:"LOG_PATH"`
	WorkDir        string `envconfig:"WORK_DIR"`
	PrintHistogram *bool  `envconfig:"PRINT_HISTOGRAM"`
}

// Load reads PREDUCE_-prefixed environment variables into an Env.
func Load() (Env, error) {
	var e Env
	if err := envconfig.Process("preduce", &e); err != nil {
		return Env{}, err
	}
	return e, nil
}
