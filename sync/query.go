package sync

// FilterType joins the conditions and child filters of a QueryFilter.
type FilterType string

const (
	FilterAnd FilterType = "and"
	FilterOr  FilterType = "or"
)

// Condition is a single attribute comparison, using FetchXML operator names (eq, ne, in, null...).
type Condition struct {
	Attribute string
	Operator  string
	Values    []string
}

// QueryFilter is a tree of conditions understood by the CRM query layer.
type QueryFilter struct {
	Type       FilterType
	Conditions []Condition
	Filters    []QueryFilter
}

// Query is an ad-hoc query against a CRM entity. A Top of zero means no limit.
type Query struct {
	Entity  string
	Columns []string
	Filter  *QueryFilter
	Top     int
}

// ActiveRecordsFilter matches records whose statecode is active.
func ActiveRecordsFilter() QueryFilter {
	return QueryFilter{
		Type:       FilterAnd,
		Conditions: []Condition{{Attribute: "statecode", Operator: "eq", Values: []string{"0"}}},
	}
}

// Equal returns an eq condition.
func Equal(attribute string, value string) Condition {
	return Condition{Attribute: attribute, Operator: "eq", Values: []string{value}}
}

// And returns a filter requiring both the filter and the extra conditions.
// The original filter is nested unchanged so its own and/or semantics are kept.
func (f QueryFilter) And(conditions ...Condition) QueryFilter {
	return QueryFilter{
		Type:       FilterAnd,
		Conditions: conditions,
		Filters:    []QueryFilter{f.clone()},
	}
}

func (f QueryFilter) clone() QueryFilter {
	result := QueryFilter{Type: f.Type}
	for _, c := range f.Conditions {
		values := make([]string, len(c.Values))
		copy(values, c.Values)
		result.Conditions = append(result.Conditions, Condition{Attribute: c.Attribute, Operator: c.Operator, Values: values})
	}
	for _, child := range f.Filters {
		result.Filters = append(result.Filters, child.clone())
	}
	return result
}
