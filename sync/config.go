package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/config"
)

type Config struct {
	API      APISettings
	Sync     SyncConfiguration
	Metadata MetadataSettings
}

type APISettings struct {
	CRM struct {
		Endpoint string // e.g. https://org.crm.dynamics.com
		Token    string // bearer token, acquired by the host
	}
	ESP struct {
		Endpoint string // e.g. https://api.createsend.com/api/v3.3
		Key      string
	}
}

// SyncConfiguration is the per operation sync settings.
// It is read-only for the duration of a sync and reloaded for the next one.
type SyncConfiguration struct {
	// ListID is the ESP subscriber list contacts are synced to.
	ListID string `yaml:"listId"`
	// PrimaryEmailAttribute is the contact attribute holding the subscriber email, e.g. emailaddress1.
	PrimaryEmailAttribute string `yaml:"primaryEmail"`
	// SyncView is the saved view GUID scoping the contacts in sync, empty for all active contacts.
	SyncView string `yaml:"viewId"`
	// MappedAttributes are the contact attributes sent as subscriber custom fields,
	// optionally followed by value modifiers, e.g. "mobilephone|@phone:44".
	MappedAttributes []string `yaml:"fields"`

	// SyncViewID is SyncView parsed by Validate.
	SyncViewID uuid.UUID `yaml:"-"`
}

type MetadataSettings struct {
	// TTL is a Go duration after which cached metadata is refetched, empty or 0 for never.
	TTL string `yaml:"ttl"`
}

// CacheTTL parses the metadata cache TTL.
func (m MetadataSettings) CacheTTL() (time.Duration, error) {
	if strings.TrimSpace(m.TTL) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(m.TTL))
	if err != nil {
		return 0, fmt.Errorf("invalid metadata ttl %q %w", m.TTL, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid metadata ttl %q must not be negative", m.TTL)
	}
	return d, nil
}

// HasSyncView reports whether a saved view scopes the sync.
func (s SyncConfiguration) HasSyncView() bool {
	return s.SyncViewID != uuid.Nil
}

// Normalise validates the sync configuration and returns it with the primary email
// attribute lower cased and the sync view parsed.
func (s SyncConfiguration) Normalise() (SyncConfiguration, error) {
	result := s
	// the configuration page stores the option name (EmailAddress1), the contact attribute is lower case
	result.PrimaryEmailAttribute = strings.ToLower(strings.TrimSpace(s.PrimaryEmailAttribute))
	if result.PrimaryEmailAttribute == "" {
		return result, NewConfigurationError("primary email attribute is not configured")
	}
	result.ListID = strings.TrimSpace(s.ListID)
	if result.ListID == "" {
		return result, NewConfigurationError("subscriber list id is not configured")
	}
	if v := strings.TrimSpace(s.SyncView); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return result, NewConfigurationError(fmt.Sprintf("invalid sync view id %q", v), err)
		}
		result.SyncViewID = id
	}
	for _, a := range s.MappedAttributes {
		if _, err := ParseMappedAttribute(a); err != nil {
			return result, NewConfigurationError(fmt.Sprintf("invalid mapped attribute %q", a), err)
		}
	}
	return result, nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if _, err := c.Sync.Normalise(); err != nil {
		return err
	}
	if _, err := c.Metadata.CacheTTL(); err != nil {
		return NewConfigurationError("invalid metadata settings", err)
	}
	return nil
}

type CompositeEnvVar interface {
	LookupEnv(child string) (string, bool)
}

type YAMLConfigUnmarshaler struct{}

// Unmarshal merges the sources in order (later sources override earlier ones),
// expanding ${VAR} references through compev.
func (u YAMLConfigUnmarshaler) Unmarshal(compev CompositeEnvVar, sources ...ConfigFile) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	if len(options) == 0 {
		return result, NewConfigurationError("no configuration sources")
	}
	options = append(options, config.Expand(compev.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, NewConfigurationError("failed to read yaml config", err)
	}
	readError := func(key string, cause error) error {
		return NewConfigurationError(fmt.Sprintf("failed to read '%s' from yaml config", key), cause)
	}
	key := "api"
	if err = yaml.Get(key).Populate(&result.API); err != nil {
		return result, readError(key, err)
	}
	key = "sync"
	if !yaml.Get(key).HasValue() {
		return result, NewConfigurationError("sync configuration is missing")
	}
	if err = yaml.Get(key).Populate(&result.Sync); err != nil {
		return result, readError(key, err)
	}
	key = "metadata"
	if yaml.Get(key).HasValue() {
		if err = yaml.Get(key).Populate(&result.Metadata); err != nil {
			return result, readError(key, err)
		}
	}

	result.Sync, err = result.Sync.Normalise()
	if err != nil {
		return result, err
	}
	if _, err = result.Metadata.CacheTTL(); err != nil {
		return result, NewConfigurationError("invalid metadata settings", err)
	}
	return result, nil
}
