package gateway

import "fmt"

// ConfigError reports table metadata that cannot support the requested
// operation, e.g. Save or Delete against a table with no primary key. It is
// returned before any SQL is built or sent.
type ConfigError string

func (e ConfigError) Error() string { return string(e) }

// ValidationError reports malformed call arguments: unknown filter fields,
// empty batches, or key/record arity mismatches. It is returned before any
// SQL is sent.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

func configErrorf(format string, args ...any) error {
	return ConfigError(fmt.Sprintf(format, args...))
}

func validationErrorf(format string, args ...any) error {
	return ValidationError(fmt.Sprintf(format, args...))
}
