package sync

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
)

// FieldDocRow represents a single row in the field mapping documentation.
type FieldDocRow struct {
	AttributeName string // Contact schema name (e.g., "emailaddress1")
	AttributeType string // Dataverse attribute type (String, Picklist, Lookup, ...)
	FieldName     string // Subscriber custom field name it syncs as (the display label)
	Modifiers     []string
	Notes         string
}

// FieldDocumentation contains the field documentation for a sync configuration.
type FieldDocumentation struct {
	ListID string
	Rows   []FieldDocRow
}

// GenerateFieldDocumentation documents the mapped attributes of a sync configuration,
// in the order they are sent.
func GenerateFieldDocumentation(ctx context.Context, cfg SyncConfiguration, resolver *MetadataResolver) (FieldDocumentation, error) {
	doc := FieldDocumentation{
		ListID: cfg.ListID,
		Rows:   []FieldDocRow{},
	}
	attributes, err := resolver.GetEntityAttributes(ctx, ContactEntity)
	if err != nil {
		return doc, err
	}
	types := make(map[string]string, len(attributes))
	for _, a := range attributes {
		types[a.LogicalName] = a.AttributeType
	}

	seen := make(map[string]bool)
	for _, a := range cfg.MappedAttributes {
		mapped, err := ParseMappedAttribute(a)
		if err != nil {
			return doc, NewConfigurationError(fmt.Sprintf("invalid mapped attribute %q", a), err)
		}
		if seen[mapped.Name] {
			continue
		}
		seen[mapped.Name] = true

		row := FieldDocRow{
			AttributeName: mapped.Name,
			AttributeType: types[mapped.Name],
			FieldName:     mapped.Name,
			Modifiers:     mapped.Modifiers,
		}
		notes := []string{}
		if row.AttributeType == "" {
			row.AttributeType = "(unknown)"
			notes = append(notes, "Not a contact attribute")
		}
		if label, found, err := resolver.DisplayLabel(ctx, ContactEntity, mapped.Name); err == nil && found {
			row.FieldName = strings.NewReplacer("/", "", `\`, "").Replace(label)
		} else {
			notes = append(notes, "No display label, syncs as schema name")
		}
		if n := formatTypeNote(row.AttributeType); n != "" {
			notes = append(notes, n)
		}
		for _, m := range mapped.Modifiers {
			notes = append(notes, formatModifierNote(m))
		}
		row.Notes = strings.Join(notes, " | ")
		doc.Rows = append(doc.Rows, row)
	}
	return doc, nil
}

func formatTypeNote(attributetype string) string {
	switch strings.ToLower(attributetype) {
	case "picklist", "state", "status":
		return "Syncs the option label"
	case "lookup", "customer", "owner":
		return "Syncs the referenced record name"
	case "datetime":
		return "Formatted as " + SubscriberDateFormat
	case "money":
		return "Syncs the amount without currency"
	default:
		return ""
	}
}

// formatModifierNote formats a modifier into a human-readable note.
func formatModifierNote(modifier string) string {
	switch {
	case strings.HasPrefix(modifier, "@phone:"):
		arg := strings.TrimPrefix(modifier, "@phone:")
		return fmt.Sprintf("Formats as E.164 phone number (default country code %s)", arg)
	case modifier == "@phone":
		return "Formats as E.164 phone number"
	case modifier == "@countryName":
		return "Converts country code to country name"
	case modifier == "@lower":
		return "Converts to lowercase"
	case modifier == "@upper":
		return "Converts to uppercase"
	case modifier == "@trim":
		return "Trims whitespace"
	default:
		return fmt.Sprintf("Modifier: %s", modifier)
	}
}

// FormatCSV formats the field documentation as CSV.
func (d FieldDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# List: %s", d.ListID)}); err != nil {
		return "", err
	}
	headers := []string{"Contact Attribute", "Attribute Type", "Subscriber Field", "Mapping Notes"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}
	for _, row := range d.Rows {
		if err := writer.Write([]string{row.AttributeName, row.AttributeType, row.FieldName, row.Notes}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
