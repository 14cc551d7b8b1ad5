package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// SubscriberDateFormat is the date format subscriber custom fields are sent in.
const SubscriberDateFormat = "2006/01/02"

// SubscriberField is a subscriber custom field. Values are always text.
type SubscriberField struct {
	Key   string
	Value string
}

// MappedAttribute is a configured contact attribute and the modifiers applied to its value.
type MappedAttribute struct {
	Name      string
	Modifiers []string
}

// ParseMappedAttribute parses "attribute|@modifier:arg|@modifier".
func ParseMappedAttribute(s string) (MappedAttribute, error) {
	var result MappedAttribute
	parts := strings.Split(s, "|")
	result.Name = strings.TrimSpace(parts[0])
	if result.Name == "" {
		return result, errors.New("missing attribute name")
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "@") {
			return result, fmt.Errorf("invalid modifier %q must start with @", p)
		}
		name, _, _ := strings.Cut(p[1:], ":")
		if !knownModifiers[name] {
			return result, fmt.Errorf("unsupported modifier %q", p)
		}
		result.Modifiers = append(result.Modifiers, p)
	}
	return result, nil
}

var errNoDisplayLabel = errors.New("no display label")

// FieldMappingEngine turns contact attributes into subscriber custom fields.
type FieldMappingEngine struct {
	metadata *MetadataResolver
	crm      CRMService
}

func NewFieldMappingEngine(metadata *MetadataResolver, crm CRMService) *FieldMappingEngine {
	return &FieldMappingEngine{metadata: metadata, crm: crm}
}

// MapFields renders the given attributes of the contact, in order, as subscriber fields
// keyed by attribute name. Attributes missing from the contact are skipped.
func (e *FieldMappingEngine) MapFields(ctx context.Context, contact ContactRecord, attributes []string) ([]SubscriberField, error) {
	var fields []SubscriberField
	seen := make(map[string]bool)
	for _, a := range attributes {
		mapped, err := ParseMappedAttribute(a)
		if err != nil {
			return fields, NewConfigurationError(fmt.Sprintf("invalid mapped attribute %q", a), err)
		}
		if seen[mapped.Name] {
			continue
		}
		seen[mapped.Name] = true

		v, exists := contact.Get(mapped.Name)
		if !exists {
			continue
		}
		value, err := e.renderValue(ctx, mapped.Name, v)
		if err != nil {
			return fields, err
		}
		if len(mapped.Modifiers) > 0 {
			value = applyModifiers(value, mapped.Modifiers)
		}
		fields = append(fields, SubscriberField{Key: mapped.Name, Value: value})
	}
	return fields, nil
}

func (e *FieldMappingEngine) renderValue(ctx context.Context, attribute string, v AttributeValue) (string, error) {
	switch v.Kind {
	case KindReference:
		return e.referenceName(ctx, v.Reference)
	case KindOptionSet:
		return e.metadata.GetOptionSetValueLabel(ctx, ContactEntity, attribute, v.OptionCode)
	case KindDate:
		return v.Date.Format(SubscriberDateFormat), nil
	case KindMoney:
		return v.Money.String(), nil
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64), nil
	case KindBoolean:
		return strconv.FormatBool(v.Boolean), nil
	case KindText:
		return v.Text, nil
	case KindUnknown:
		switch raw := v.Raw.(type) {
		case nil:
			return "", nil
		case float64:
			return strconv.FormatFloat(raw, 'f', -1, 64), nil
		default:
			return fmt.Sprint(raw), nil
		}
	default:
		return "", fmt.Errorf("unsupported attribute kind %v for %s", v.Kind, attribute)
	}
}

// referenceName returns the display name of a referenced record, reading the
// record's primary attribute when the reference came without a name.
func (e *FieldMappingEngine) referenceName(ctx context.Context, ref EntityReference) (string, error) {
	if strings.TrimSpace(ref.Name) != "" {
		return ref.Name, nil
	}
	primary, err := e.metadata.GetEntityPrimaryAttribute(ctx, ref.LogicalName)
	if err != nil {
		return "", err
	}
	record, err := e.crm.RetrieveRecord(ctx, ref.LogicalName, ref.ID, []string{primary})
	if err != nil {
		return "", NewRemoteCallError(fmt.Sprintf("failed to retrieve %s %s", ref.LogicalName, ref.ID), err)
	}
	return record[primary], nil
}

// PrettifyKeys renames each field from its schema name to the attribute's display label
// with path separators removed. Fields whose label cannot be resolved keep their schema name.
// The input slice is not modified.
func (e *FieldMappingEngine) PrettifyKeys(ctx context.Context, fields []SubscriberField) []SubscriberField {
	result := make([]SubscriberField, len(fields))
	for i, f := range fields {
		result[i] = f
		label, err := cached(e.metadata.Cache(), "label:"+ContactEntity+":"+f.Key, func() (string, error) {
			l, found, err := e.metadata.DisplayLabel(ctx, ContactEntity, f.Key)
			if err != nil {
				return "", err
			}
			l = strings.NewReplacer("/", "", `\`, "").Replace(l)
			if !found || strings.TrimSpace(l) == "" {
				return "", errNoDisplayLabel
			}
			return l, nil
		})
		if err != nil {
			log.Printf("Warning: no display label for %s.%s, sending schema name (%v)", ContactEntity, f.Key, err)
			continue
		}
		result[i].Key = label
	}
	return result
}
