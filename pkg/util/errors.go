package util

import (
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a helpful suggestion
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%v\nSuggestion: %s", e.Err, e.Suggestion)
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapErrorWithSuggestion creates an error with a helpful suggestion
func WrapErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetErrorSuggestion returns helpful suggestions based on common error patterns
func GetErrorSuggestion(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	// Database connection errors
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no route to host") {
		return "Make sure PostgreSQL is running and reachable at the configured store URL"
	}

	if strings.Contains(errStr, "password authentication failed") {
		return "Check the database credentials in the store URL or PROPINDEX_STORE_URL"
	}

	if strings.Contains(errStr, "database") && strings.Contains(errStr, "does not exist") {
		return "Create the database first, or point PROPINDEX_STORE_URL at an existing one"
	}

	// Migration errors
	if strings.Contains(errStr, "migration") {
		return "The schema may be partially migrated. Inspect the schema_migrations table before retrying"
	}

	// Index errors
	if strings.Contains(errStr, "index lock") {
		return "Another reindex or write operation holds the index lock. Wait for it to finish or raise the lock timeout"
	}

	if strings.Contains(errStr, "cannot open index") {
		return "The index directory may be missing or corrupt. Run a full reindex to rebuild it"
	}

	// File errors
	if strings.Contains(errStr, "no such file or directory") {
		return "Check the path and ensure the file or directory exists"
	}

	if strings.Contains(errStr, "permission denied") {
		return "Check file permissions on the index data directory"
	}

	// Network errors
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check connectivity to the database and try again"
	}

	if strings.Contains(errStr, "context deadline exceeded") {
		return "The operation took too long. This may be a slow query or an overloaded database"
	}

	// Configuration errors
	if strings.Contains(errStr, "failed to load configuration") {
		return "Check if the configuration file exists and is valid JSON. Use --config to specify a custom path"
	}

	// Default suggestion
	return "Check the error message above and ensure all requirements are met"
}

// FormatError formats an error with suggestions for better user experience
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	// Check if it already has a suggestion
	if _, ok := err.(*ErrorWithSuggestion); ok {
		return err.Error()
	}

	suggestion := GetErrorSuggestion(err)
	if suggestion == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v\nSuggestion: %s", err, suggestion)
}
