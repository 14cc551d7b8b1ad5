package sync

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type fetchDocument struct {
	XMLName xml.Name    `xml:"fetch"`
	Version string      `xml:"version,attr,omitempty"`
	Mapping string      `xml:"mapping,attr,omitempty"`
	Top     string      `xml:"top,attr,omitempty"`
	Entity  fetchEntity `xml:"entity"`
}

type fetchEntity struct {
	Name       string           `xml:"name,attr"`
	Attributes []fetchAttribute `xml:"attribute"`
	Filters    []fetchFilter    `xml:"filter"`
}

type fetchAttribute struct {
	Name string `xml:"name,attr"`
}

type fetchFilter struct {
	Type       string           `xml:"type,attr,omitempty"`
	Conditions []fetchCondition `xml:"condition"`
	Filters    []fetchFilter    `xml:"filter"`
}

type fetchCondition struct {
	Attribute string   `xml:"attribute,attr"`
	Operator  string   `xml:"operator,attr"`
	Value     string   `xml:"value,attr,omitempty"`
	Values    []string `xml:"value"`
}

// ParseFetchXML reads the primary entity criteria of a FetchXML query.
// Several entity level filters are combined with and. Link entities, orders
// and columns are ignored.
func ParseFetchXML(fetchxml string) (*QueryFilter, error) {
	var doc fetchDocument
	if err := xml.Unmarshal([]byte(fetchxml), &doc); err != nil {
		return nil, fmt.Errorf("invalid fetchxml %w", err)
	}
	if doc.Entity.Name == "" {
		return nil, errors.New("invalid fetchxml missing entity")
	}

	var filters []QueryFilter
	for _, f := range doc.Entity.Filters {
		qf, err := f.toQueryFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, qf)
	}

	switch len(filters) {
	case 0:
		return &QueryFilter{Type: FilterAnd}, nil
	case 1:
		return &filters[0], nil
	default:
		return &QueryFilter{Type: FilterAnd, Filters: filters}, nil
	}
}

func (f fetchFilter) toQueryFilter() (QueryFilter, error) {
	var result QueryFilter
	switch strings.ToLower(strings.TrimSpace(f.Type)) {
	case "", "and":
		result.Type = FilterAnd
	case "or":
		result.Type = FilterOr
	default:
		return result, fmt.Errorf("invalid fetchxml filter type %q", f.Type)
	}
	for _, c := range f.Conditions {
		if c.Attribute == "" || c.Operator == "" {
			return result, errors.New("invalid fetchxml condition missing attribute or operator")
		}
		condition := Condition{Attribute: c.Attribute, Operator: c.Operator}
		if c.Value != "" {
			condition.Values = append(condition.Values, c.Value)
		}
		for _, v := range c.Values {
			condition.Values = append(condition.Values, strings.TrimSpace(v))
		}
		result.Conditions = append(result.Conditions, condition)
	}
	for _, child := range f.Filters {
		qf, err := child.toQueryFilter()
		if err != nil {
			return result, err
		}
		result.Filters = append(result.Filters, qf)
	}
	return result, nil
}

func fromQueryFilter(f QueryFilter) fetchFilter {
	result := fetchFilter{Type: string(f.Type)}
	if result.Type == "" {
		result.Type = string(FilterAnd)
	}
	for _, c := range f.Conditions {
		fc := fetchCondition{Attribute: c.Attribute, Operator: c.Operator}
		if len(c.Values) == 1 {
			fc.Value = c.Values[0]
		} else {
			fc.Values = c.Values
		}
		result.Conditions = append(result.Conditions, fc)
	}
	for _, child := range f.Filters {
		result.Filters = append(result.Filters, fromQueryFilter(child))
	}
	return result
}

// FetchXML renders the query as a FetchXML document.
func (q Query) FetchXML() (string, error) {
	if q.Entity == "" {
		return "", errors.New("query has no entity")
	}
	doc := fetchDocument{
		Version: "1.0",
		Mapping: "logical",
		Entity:  fetchEntity{Name: q.Entity},
	}
	if q.Top > 0 {
		doc.Top = strconv.Itoa(q.Top)
	}
	for _, c := range q.Columns {
		doc.Entity.Attributes = append(doc.Entity.Attributes, fetchAttribute{Name: c})
	}
	if q.Filter != nil {
		doc.Entity.Filters = []fetchFilter{fromQueryFilter(*q.Filter)}
	}
	b, err := xml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
