package sync

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/iancoleman/strcase"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SubscriberService is the outbound port to the email service provider.
type SubscriberService interface {
	// UpsertSubscriber adds the subscriber to the list, or updates it when it already exists.
	UpsertSubscriber(ctx context.Context, listID string, email string, fields []SubscriberField) error
	Unsubscribe(ctx context.Context, listID string, email string) error
}

// CreateSendError is the error body returned by the Campaign Monitor API.
type CreateSendError struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
}

// CreateSendClient implements SubscriberService against the Campaign Monitor API.
type CreateSendClient struct {
	Endpoint string
	APIKey   string
	// RecordRequests, when set, is the directory requests and responses are recorded to.
	RecordRequests string
}

func NewCreateSendClient(endpoint string, apikey string) CreateSendClient {
	// relative paths resolve against the endpoint's version segment
	return CreateSendClient{Endpoint: strings.TrimSuffix(endpoint, "/") + "/", APIKey: apikey}
}

// CreateSendAPIBuilder returns a new requests.Builder configured for the Campaign Monitor API.
func (c CreateSendClient) CreateSendAPIBuilder() *requests.Builder {
	result := requests.
		URL(c.Endpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		BasicAuth(c.APIKey, "x")
	if c.RecordRequests != "" {
		result = result.Transport(requests.Record(nil, c.RecordRequests))
	}
	return result
}

func (c CreateSendClient) send(ctx context.Context, b *requests.Builder, operation string) error {
	cmError := CreateSendError{}
	err := b.
		ContentType("application/json").
		ErrorJSON(&cmError).
		Fetch(ctx)
	if err != nil {
		if cmError.Message != "" {
			log.Printf("Campaign Monitor Error: %d %s", cmError.Code, cmError.Message)
			return NewRemoteCallError(fmt.Sprintf("failed to %s (%d %s)", operation, cmError.Code, cmError.Message), err)
		}
		return NewRemoteCallError(fmt.Sprintf("failed to %s", operation), err)
	}
	return nil
}

// subscriberBody builds the add/update subscriber request body.
func subscriberBody(email string, fields []SubscriberField) (string, error) {
	body := `{"CustomFields":[]}`
	var err error
	body, err = sjson.Set(body, "EmailAddress", email)
	if err != nil {
		return body, err
	}
	for i, f := range fields {
		body, err = sjson.Set(body, fmt.Sprintf("CustomFields.%d.Key", i), f.Key)
		if err != nil {
			return body, err
		}
		body, err = sjson.Set(body, fmt.Sprintf("CustomFields.%d.Value", i), f.Value)
		if err != nil {
			return body, err
		}
	}
	body, err = sjson.Set(body, "Resubscribe", true)
	if err != nil {
		return body, err
	}
	return sjson.Set(body, "ConsentToTrack", "Unchanged")
}

func (c CreateSendClient) UpsertSubscriber(ctx context.Context, listID string, email string, fields []SubscriberField) error {
	body, err := subscriberBody(email, fields)
	if err != nil {
		return fmt.Errorf("failed to build subscriber body %w", err)
	}
	return c.send(ctx, c.CreateSendAPIBuilder().
		Pathf("subscribers/%s.json", listID).
		BodyBytes([]byte(body)),
		"upsert subscriber")
}

func (c CreateSendClient) Unsubscribe(ctx context.Context, listID string, email string) error {
	body, err := sjson.Set(`{}`, "EmailAddress", email)
	if err != nil {
		return fmt.Errorf("failed to build unsubscribe body %w", err)
	}
	return c.send(ctx, c.CreateSendAPIBuilder().
		Pathf("subscribers/%s/unsubscribe.json", listID).
		BodyBytes([]byte(body)),
		"unsubscribe")
}

// CheckCustomFields returns the field names that have no matching custom field on the list.
// Campaign Monitor keys a custom field by its name in brackets with the spaces removed,
// so "Region Territory" and "RegionTerritory" both match [RegionTerritory].
func (c CreateSendClient) CheckCustomFields(ctx context.Context, listID string, names []string) ([]string, error) {
	var json string
	cmError := CreateSendError{}
	err := c.CreateSendAPIBuilder().
		Pathf("lists/%s/customfields.json", listID).
		ToString(&json).
		ErrorJSON(&cmError).
		Fetch(ctx)
	if err != nil {
		return nil, NewRemoteCallError(fmt.Sprintf("failed to list custom fields (%d %s)", cmError.Code, cmError.Message), err)
	}
	keys := make(map[string]bool)
	gjson.Parse(json).ForEach(func(_, f gjson.Result) bool {
		key := strings.Trim(f.Get("Key").String(), "[]")
		keys[strings.ToLower(key)] = true
		return true
	})
	var missing []string
	for _, n := range names {
		if !keys[strings.ToLower(customFieldKey(n))] {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

// customFieldKey derives the Campaign Monitor key (without brackets) for a field name.
func customFieldKey(name string) string {
	if strings.ContainsAny(name, " _-") {
		return strcase.ToCamel(name)
	}
	return name
}
