package sync

import (
	"context"
	"fmt"
	"strings"
)

// AttributeDescriptor describes one attribute of a CRM entity.
type AttributeDescriptor struct {
	LogicalName   string
	DisplayLabel  string // user localised label, empty if the attribute has none
	AttributeType string // Dataverse AttributeType, e.g. String, Picklist, Lookup, Money
}

// EntityMetadata is the schema information needed from a CRM entity definition.
type EntityMetadata struct {
	LogicalName          string
	EntitySetName        string
	PrimaryNameAttribute string
	Attributes           []AttributeDescriptor
}

// OptionMetadata is one option of an option set attribute.
type OptionMetadata struct {
	Value int
	Label string
}

// MetadataService retrieves schema metadata from the CRM platform.
type MetadataService interface {
	RetrieveEntityMetadata(ctx context.Context, entity string) (EntityMetadata, error)
	RetrieveOptionSetOptions(ctx context.Context, entity string, attribute string) ([]OptionMetadata, error)
}

var optionSetAttributeTypes = map[string]bool{
	"picklist": true,
	"state":    true,
	"status":   true,
}

// MetadataResolver resolves schema names to display labels and option codes to option labels.
// All lookups are served from its MetadataCache once fetched.
type MetadataResolver struct {
	service MetadataService
	cache   *MetadataCache
}

// NewMetadataResolver creates a resolver. A nil cache gets a cache that never expires.
func NewMetadataResolver(service MetadataService, cache *MetadataCache) *MetadataResolver {
	if cache == nil {
		cache = NewMetadataCache(0)
	}
	return &MetadataResolver{service: service, cache: cache}
}

// Cache returns the resolver's cache so operators can invalidate it.
func (r *MetadataResolver) Cache() *MetadataCache {
	return r.cache
}

func (r *MetadataResolver) entityMetadata(ctx context.Context, entity string) (EntityMetadata, error) {
	return cached(r.cache, "entity:"+entity, func() (EntityMetadata, error) {
		m, err := r.service.RetrieveEntityMetadata(ctx, entity)
		if err != nil {
			return m, NewMetadataError(fmt.Sprintf("failed to retrieve metadata for entity %s", entity), err)
		}
		return m, nil
	})
}

// GetEntityPrimaryAttribute returns the primary name attribute of an entity.
func (r *MetadataResolver) GetEntityPrimaryAttribute(ctx context.Context, entity string) (string, error) {
	m, err := r.entityMetadata(ctx, entity)
	if err != nil {
		return "", err
	}
	if m.PrimaryNameAttribute == "" {
		return "", NewMetadataError(fmt.Sprintf("entity %s has no primary name attribute", entity))
	}
	return m.PrimaryNameAttribute, nil
}

// GetEntityAttributes returns the attribute descriptors of an entity.
func (r *MetadataResolver) GetEntityAttributes(ctx context.Context, entity string) ([]AttributeDescriptor, error) {
	m, err := r.entityMetadata(ctx, entity)
	if err != nil {
		return nil, err
	}
	return m.Attributes, nil
}

func (r *MetadataResolver) attribute(ctx context.Context, entity string, attribute string) (AttributeDescriptor, bool, error) {
	attrs, err := r.GetEntityAttributes(ctx, entity)
	if err != nil {
		return AttributeDescriptor{}, false, err
	}
	for _, a := range attrs {
		if a.LogicalName == attribute {
			return a, true, nil
		}
	}
	return AttributeDescriptor{}, false, nil
}

// DisplayLabel returns the display label of an attribute.
// The bool is false when the attribute is unknown or has no label.
func (r *MetadataResolver) DisplayLabel(ctx context.Context, entity string, attribute string) (string, bool, error) {
	a, found, err := r.attribute(ctx, entity, attribute)
	if err != nil || !found || a.DisplayLabel == "" {
		return "", false, err
	}
	return a.DisplayLabel, true, nil
}

// GetOptionSetValueLabel returns the label of an option code for an option set attribute.
func (r *MetadataResolver) GetOptionSetValueLabel(ctx context.Context, entity string, attribute string, code int) (string, error) {
	a, found, err := r.attribute(ctx, entity, attribute)
	if err != nil {
		return "", err
	}
	if !found {
		return "", NewMetadataError(fmt.Sprintf("attribute %s not found on entity %s", attribute, entity))
	}
	if !optionSetAttributeTypes[strings.ToLower(a.AttributeType)] {
		return "", NewMetadataError(fmt.Sprintf("attribute %s on entity %s is not an option set (%s)", attribute, entity, a.AttributeType))
	}
	options, err := cached(r.cache, fmt.Sprintf("options:%s:%s", entity, attribute), func() ([]OptionMetadata, error) {
		o, err := r.service.RetrieveOptionSetOptions(ctx, entity, attribute)
		if err != nil {
			return nil, NewMetadataError(fmt.Sprintf("failed to retrieve options for %s.%s", entity, attribute), err)
		}
		return o, nil
	})
	if err != nil {
		return "", err
	}
	for _, o := range options {
		if o.Value == code {
			return o.Label, nil
		}
	}
	return "", NewMetadataError(fmt.Sprintf("option %d is not defined for %s.%s", code, entity, attribute))
}
