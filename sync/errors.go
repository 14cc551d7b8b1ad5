package sync

import (
	"errors"
	"fmt"
)

// base holds the message and cause shared by the sync error kinds.
type base struct {
	message string
	err     error
}

func (b base) error() string {
	if b.err == nil {
		return b.message
	}
	return fmt.Sprintf("%s: %v", b.message, b.err)
}

// ConfigurationError reports a missing or invalid sync configuration,
// including a saved view filter that cannot be resolved. It aborts the sync.
type ConfigurationError struct {
	base
}

func (e ConfigurationError) Error() string { return e.error() }

func (e ConfigurationError) Unwrap() error { return e.err }

// NewConfigurationError creates a ConfigurationError with the given message and optional causes.
func NewConfigurationError(message string, err ...error) ConfigurationError {
	return ConfigurationError{base{message: message, err: errors.Join(err...)}}
}

// MetadataError reports a schema or option set lookup failure.
type MetadataError struct {
	base
}

func (e MetadataError) Error() string { return e.error() }

func (e MetadataError) Unwrap() error { return e.err }

// NewMetadataError creates a MetadataError with the given message and optional causes.
func NewMetadataError(message string, err ...error) MetadataError {
	return MetadataError{base{message: message, err: errors.Join(err...)}}
}

// RemoteCallError reports a failed call to the CRM platform or the ESP.
type RemoteCallError struct {
	base
}

func (e RemoteCallError) Error() string { return e.error() }

func (e RemoteCallError) Unwrap() error { return e.err }

// NewRemoteCallError creates a RemoteCallError with the given message and optional causes.
func NewRemoteCallError(message string, err ...error) RemoteCallError {
	return RemoteCallError{base{message: message, err: errors.Join(err...)}}
}

// SyncError is returned by Sync when a contact could not be synchronised.
// It carries the original failure so callers can still match on it with errors.As.
type SyncError struct {
	base
	ContactID string
}

func (e SyncError) Error() string { return e.error() }

func (e SyncError) Unwrap() error { return e.err }

// NewSyncError creates a SyncError for a contact wrapping the original failure.
func NewSyncError(contactid string, message string, err ...error) SyncError {
	return SyncError{base: base{message: message, err: errors.Join(err...)}, ContactID: contactid}
}
