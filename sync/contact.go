package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ContactEntity is the logical name of the CRM contact entity.
const ContactEntity = "contact"

// AttributeKind identifies which field of an AttributeValue holds the value.
type AttributeKind int

const (
	KindUnknown AttributeKind = iota
	KindText
	KindNumber
	KindBoolean
	KindDate
	KindMoney
	KindOptionSet
	KindReference
)

var attributeKindNames = map[AttributeKind]string{
	KindUnknown:   "unknown",
	KindText:      "text",
	KindNumber:    "number",
	KindBoolean:   "boolean",
	KindDate:      "date",
	KindMoney:     "money",
	KindOptionSet: "optionset",
	KindReference: "reference",
}

func (k AttributeKind) String() string {
	if s, ok := attributeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("AttributeKind(%d)", int(k))
}

// EntityReference points at another CRM record (a lookup attribute value).
// Name is the cached display name the platform sent with the reference, if any.
type EntityReference struct {
	LogicalName string
	ID          uuid.UUID
	Name        string
}

// AttributeValue is a typed CRM attribute value.
// Only the field matching Kind is meaningful.
type AttributeValue struct {
	Kind       AttributeKind
	Text       string
	Number     float64
	Boolean    bool
	Date       time.Time
	Money      decimal.Decimal
	OptionCode int
	Reference  EntityReference
	Raw        interface{}
}

func TextValue(s string) AttributeValue { return AttributeValue{Kind: KindText, Text: s} }

func NumberValue(f float64) AttributeValue { return AttributeValue{Kind: KindNumber, Number: f} }

func BooleanValue(b bool) AttributeValue { return AttributeValue{Kind: KindBoolean, Boolean: b} }

func DateValue(t time.Time) AttributeValue { return AttributeValue{Kind: KindDate, Date: t} }

func MoneyValue(d decimal.Decimal) AttributeValue { return AttributeValue{Kind: KindMoney, Money: d} }

func OptionSetValue(code int) AttributeValue {
	return AttributeValue{Kind: KindOptionSet, OptionCode: code}
}

func ReferenceValue(ref EntityReference) AttributeValue {
	return AttributeValue{Kind: KindReference, Reference: ref}
}

func UnknownValue(raw interface{}) AttributeValue { return AttributeValue{Kind: KindUnknown, Raw: raw} }

// ContactRecord is a snapshot of a CRM contact. The sync engine only reads it.
type ContactRecord struct {
	ID         uuid.UUID
	Attributes map[string]AttributeValue
}

// Get returns the attribute value and whether the record contains it.
func (c ContactRecord) Get(attribute string) (AttributeValue, bool) {
	if c.Attributes == nil {
		return AttributeValue{}, false
	}
	v, ok := c.Attributes[attribute]
	return v, ok
}

// TextFor returns the trimmed text of a text attribute, or "" if absent or not text.
func (c ContactRecord) TextFor(attribute string) string {
	v, ok := c.Get(attribute)
	if !ok || v.Kind != KindText {
		return ""
	}
	return strings.TrimSpace(v.Text)
}

// ParseContactRecord reads a contact snapshot encoded as
//
//	{"id": "<guid>", "attributes": {"<name>": {"type": "<kind>", "value": ...}}}
//
// Dates accept RFC3339 or yyyy-mm-dd. Unrecognised types keep their raw value as KindUnknown.
func ParseContactRecord(json string) (ContactRecord, error) {
	var result ContactRecord
	if !gjson.Valid(json) {
		return result, fmt.Errorf("invalid contact record json")
	}
	data := gjson.Parse(json)
	if id := data.Get("id").String(); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return result, fmt.Errorf("invalid contact id %q %w", id, err)
		}
		result.ID = parsed
	}
	result.Attributes = make(map[string]AttributeValue)
	var err error
	data.Get("attributes").ForEach(func(key, value gjson.Result) bool {
		var v AttributeValue
		v, err = parseAttributeValue(value)
		if err != nil {
			err = fmt.Errorf("invalid attribute %s %w", key.String(), err)
			return false
		}
		result.Attributes[key.String()] = v
		return true
	})
	return result, err
}

func parseAttributeValue(v gjson.Result) (AttributeValue, error) {
	value := v.Get("value")
	switch strings.ToLower(v.Get("type").String()) {
	case "text", "string", "memo":
		return TextValue(value.String()), nil
	case "number", "integer", "decimal", "double":
		return NumberValue(value.Float()), nil
	case "boolean":
		return BooleanValue(value.Bool()), nil
	case "date", "datetime":
		s := value.String()
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = time.Parse("2006-01-02", s)
		}
		if err != nil {
			return AttributeValue{}, fmt.Errorf("invalid date %q", s)
		}
		return DateValue(t), nil
	case "money":
		d, err := decimal.NewFromString(value.String())
		if err != nil {
			return AttributeValue{}, fmt.Errorf("invalid money amount %q %w", value.String(), err)
		}
		return MoneyValue(d), nil
	case "optionset", "picklist", "state", "status":
		return OptionSetValue(int(value.Int())), nil
	case "reference", "lookup":
		ref := EntityReference{
			LogicalName: value.Get("logicalName").String(),
			Name:        value.Get("name").String(),
		}
		if id := value.Get("id").String(); id != "" {
			parsed, err := uuid.Parse(id)
			if err != nil {
				return AttributeValue{}, fmt.Errorf("invalid reference id %q %w", id, err)
			}
			ref.ID = parsed
		}
		return ReferenceValue(ref), nil
	default:
		return UnknownValue(value.Value()), nil
	}
}
