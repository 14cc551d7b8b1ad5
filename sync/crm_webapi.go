package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	gosync "sync"

	"github.com/carlmjohnson/requests"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// CRMWebAPIPath is the Dataverse Web API root, relative to the organisation endpoint.
const CRMWebAPIPath = "/api/data/v9.2"

// CRMError is the error body returned by the Dataverse Web API.
type CRMError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CRMWebAPIClient implements CRMService and MetadataService against the Dataverse Web API.
type CRMWebAPIClient struct {
	Endpoint string
	Token    string
	// RecordRequests, when set, is the directory requests and responses are recorded to.
	RecordRequests string

	entitySets gosync.Map // entity logical name -> entity set name
}

func NewCRMWebAPIClient(endpoint string, token string) *CRMWebAPIClient {
	return &CRMWebAPIClient{Endpoint: strings.TrimSuffix(endpoint, "/"), Token: token}
}

// CRMAPIBuilder returns a new requests.Builder configured for the Dataverse Web API.
func (c *CRMWebAPIClient) CRMAPIBuilder() *requests.Builder {
	result := requests.
		URL(c.Endpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		Bearer(c.Token).
		Accept("application/json").
		Header("OData-MaxVersion", "4.0").
		Header("OData-Version", "4.0")
	if c.RecordRequests != "" {
		result = result.Transport(requests.Record(nil, c.RecordRequests))
	}
	return result
}

func (c *CRMWebAPIClient) get(ctx context.Context, b *requests.Builder) (gjson.Result, error) {
	crmError := CRMError{}
	var json string
	err := b.
		ToString(&json).
		ErrorJSON(&crmError).
		Fetch(ctx)
	if err != nil {
		if crmError.Error.Message != "" {
			log.Printf("CRM Error: %s %s", crmError.Error.Code, crmError.Error.Message)
		}
		return gjson.Result{}, err
	}
	if !gjson.Valid(json) {
		log.Printf("Invalid CRM Response:\n%s", json)
		return gjson.Result{}, errors.New("invalid json response")
	}
	return gjson.Parse(json), nil
}

func (c *CRMWebAPIClient) entitySetName(ctx context.Context, entity string) (string, error) {
	if v, ok := c.entitySets.Load(entity); ok {
		return v.(string), nil
	}
	m, err := c.RetrieveEntityMetadata(ctx, entity)
	if err != nil {
		return "", err
	}
	return m.EntitySetName, nil
}

// RetrieveRecord reads the given columns of one record, rendered as text.
// Columns the record has no value for are returned empty.
func (c *CRMWebAPIClient) RetrieveRecord(ctx context.Context, entity string, id uuid.UUID, columns []string) (map[string]string, error) {
	set, err := c.entitySetName(ctx, entity)
	if err != nil {
		return nil, err
	}
	b := c.CRMAPIBuilder().Pathf("%s/%s(%s)", CRMWebAPIPath, set, id)
	if len(columns) > 0 {
		b = b.Param("$select", strings.Join(columns, ","))
	}
	record, err := c.get(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s %s %w", entity, id, err)
	}
	result := make(map[string]string, len(columns))
	for _, col := range columns {
		result[col] = record.Get(gjsonEscape(col)).String()
	}
	return result, nil
}

// RetrieveSavedView reads a system view. The bool is false when no view has the id.
func (c *CRMWebAPIClient) RetrieveSavedView(ctx context.Context, id uuid.UUID) (SavedView, bool, error) {
	result := SavedView{ID: id}
	view, err := c.get(ctx, c.CRMAPIBuilder().
		Pathf("%s/savedqueries(%s)", CRMWebAPIPath, id).
		Param("$select", "name,fetchxml"))
	if err != nil {
		if requests.HasStatusErr(err, http.StatusNotFound) {
			return result, false, nil
		}
		return result, false, fmt.Errorf("failed to retrieve saved view %s %w", id, err)
	}
	result.Name = view.Get("name").String()
	result.FetchXML = view.Get("fetchxml").String()
	return result, true, nil
}

// CountRecords runs the query as FetchXML and returns the number of records it returned.
// The count is bounded by the query's Top.
func (c *CRMWebAPIClient) CountRecords(ctx context.Context, query Query) (int, error) {
	fetchXML, err := query.FetchXML()
	if err != nil {
		return 0, err
	}
	set, err := c.entitySetName(ctx, query.Entity)
	if err != nil {
		return 0, err
	}
	records, err := c.get(ctx, c.CRMAPIBuilder().
		Pathf("%s/%s", CRMWebAPIPath, set).
		Param("fetchXml", fetchXML))
	if err != nil {
		return 0, fmt.Errorf("failed to query %s %w", query.Entity, err)
	}
	return int(records.Get("value.#").Int()), nil
}

// RetrieveEntityMetadata reads an entity definition with its attributes.
func (c *CRMWebAPIClient) RetrieveEntityMetadata(ctx context.Context, entity string) (EntityMetadata, error) {
	result := EntityMetadata{LogicalName: entity}
	definition, err := c.get(ctx, c.CRMAPIBuilder().
		Pathf("%s/EntityDefinitions(LogicalName='%s')", CRMWebAPIPath, entity).
		Param("$select", "LogicalName,EntitySetName,PrimaryNameAttribute").
		Param("$expand", "Attributes($select=LogicalName,AttributeType,DisplayName)"))
	if err != nil {
		return result, fmt.Errorf("failed to retrieve entity definition %s %w", entity, err)
	}
	result.EntitySetName = definition.Get("EntitySetName").String()
	result.PrimaryNameAttribute = definition.Get("PrimaryNameAttribute").String()
	definition.Get("Attributes").ForEach(func(_, a gjson.Result) bool {
		result.Attributes = append(result.Attributes, AttributeDescriptor{
			LogicalName:   a.Get("LogicalName").String(),
			AttributeType: a.Get("AttributeType").String(),
			DisplayLabel:  a.Get("DisplayName.UserLocalizedLabel.Label").String(),
		})
		return true
	})
	if result.EntitySetName != "" {
		c.entitySets.Store(entity, result.EntitySetName)
	}
	return result, nil
}

// RetrieveOptionSetOptions reads the options of a picklist, state or status attribute.
func (c *CRMWebAPIClient) RetrieveOptionSetOptions(ctx context.Context, entity string, attribute string) ([]OptionMetadata, error) {
	attributePath := fmt.Sprintf("%s/EntityDefinitions(LogicalName='%s')/Attributes(LogicalName='%s')", CRMWebAPIPath, entity, attribute)
	a, err := c.get(ctx, c.CRMAPIBuilder().
		Path(attributePath).
		Param("$select", "AttributeType"))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve attribute %s.%s %w", entity, attribute, err)
	}
	var cast string
	switch t := a.Get("AttributeType").String(); strings.ToLower(t) {
	case "picklist":
		cast = "PicklistAttributeMetadata"
	case "state":
		cast = "StateAttributeMetadata"
	case "status":
		cast = "StatusAttributeMetadata"
	default:
		return nil, fmt.Errorf("attribute %s.%s is not an option set (%s)", entity, attribute, t)
	}
	metadata, err := c.get(ctx, c.CRMAPIBuilder().
		Pathf("%s/Microsoft.Dynamics.CRM.%s", attributePath, cast).
		Param("$select", "LogicalName").
		Param("$expand", "OptionSet($select=Options)"))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve options for %s.%s %w", entity, attribute, err)
	}
	var result []OptionMetadata
	metadata.Get("OptionSet.Options").ForEach(func(_, o gjson.Result) bool {
		result = append(result, OptionMetadata{
			Value: int(o.Get("Value").Int()),
			Label: o.Get("Label.UserLocalizedLabel.Label").String(),
		})
		return true
	})
	return result, nil
}

// gjsonEscape escapes the path characters gjson treats specially, so
// OData annotated names like _parentcustomerid_value@OData.Community.Display.V1.FormattedValue can be read.
func gjsonEscape(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
