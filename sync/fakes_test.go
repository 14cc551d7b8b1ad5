package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/google/uuid"
)

var errFakeUnavailable = errors.New("service unavailable")

type fakeMetadataService struct {
	mu          gosync.Mutex
	entities    map[string]EntityMetadata
	options     map[string][]OptionMetadata // entity:attribute
	entityCalls int
	optionCalls int
	delay       time.Duration
	err         error
}

func newFakeMetadataService() *fakeMetadataService {
	return &fakeMetadataService{
		entities: map[string]EntityMetadata{
			ContactEntity: {
				LogicalName:          ContactEntity,
				EntitySetName:        "contacts",
				PrimaryNameAttribute: "fullname",
				Attributes: []AttributeDescriptor{
					{LogicalName: "emailaddress1", AttributeType: "String"},
					{LogicalName: "region", AttributeType: "Picklist", DisplayLabel: "Region"},
					{LogicalName: "new_territory", AttributeType: "String", DisplayLabel: "Region/Territory"},
					{LogicalName: "new_path", AttributeType: "String", DisplayLabel: `Home\Away`},
					{LogicalName: "birthdate", AttributeType: "DateTime", DisplayLabel: "Birthday"},
					{LogicalName: "parentcustomerid", AttributeType: "Lookup", DisplayLabel: "Company Name"},
					{LogicalName: "statecode", AttributeType: "State", DisplayLabel: "Status"},
					{LogicalName: "mobilephone", AttributeType: "String", DisplayLabel: "Mobile Phone"},
				},
			},
			"account": {
				LogicalName:          "account",
				EntitySetName:        "accounts",
				PrimaryNameAttribute: "name",
			},
		},
		options: map[string][]OptionMetadata{
			"contact:region": {
				{Value: 1, Label: "North"},
				{Value: 2, Label: "South"},
			},
		},
	}
}

func (f *fakeMetadataService) RetrieveEntityMetadata(ctx context.Context, entity string) (EntityMetadata, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entityCalls++
	if f.err != nil {
		return EntityMetadata{}, f.err
	}
	m, ok := f.entities[entity]
	if !ok {
		return EntityMetadata{}, errors.New("entity not found")
	}
	return m, nil
}

func (f *fakeMetadataService) RetrieveOptionSetOptions(ctx context.Context, entity string, attribute string) ([]OptionMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.options[entity+":"+attribute], nil
}

func (f *fakeMetadataService) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entityCalls, f.optionCalls
}

type fakeCRMService struct {
	mu       gosync.Mutex
	records  map[uuid.UUID]map[string]string
	views    map[uuid.UUID]SavedView
	viewErr  error
	count    int
	countErr error
	queries  []Query
}

func newFakeCRMService() *fakeCRMService {
	return &fakeCRMService{
		records: make(map[uuid.UUID]map[string]string),
		views:   make(map[uuid.UUID]SavedView),
		count:   1,
	}
}

func (f *fakeCRMService) RetrieveRecord(ctx context.Context, entity string, id uuid.UUID, columns []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	result := make(map[string]string)
	for _, c := range columns {
		result[c] = r[c]
	}
	return result, nil
}

func (f *fakeCRMService) RetrieveSavedView(ctx context.Context, id uuid.UUID) (SavedView, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.viewErr != nil {
		return SavedView{}, false, f.viewErr
	}
	v, ok := f.views[id]
	return v, ok, nil
}

func (f *fakeCRMService) CountRecords(ctx context.Context, query Query) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeCRMService) lastQuery() (Query, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return Query{}, false
	}
	return f.queries[len(f.queries)-1], true
}

type upsertCall struct {
	ListID string
	Email  string
	Fields []SubscriberField
}

type unsubscribeCall struct {
	ListID string
	Email  string
}

type fakeSubscriberService struct {
	mu           gosync.Mutex
	upserts      []upsertCall
	unsubscribes []unsubscribeCall
	err          error
}

func (f *fakeSubscriberService) UpsertSubscriber(ctx context.Context, listID string, email string, fields []SubscriberField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, upsertCall{ListID: listID, Email: email, Fields: fields})
	return nil
}

func (f *fakeSubscriberService) Unsubscribe(ctx context.Context, listID string, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.unsubscribes = append(f.unsubscribes, unsubscribeCall{ListID: listID, Email: email})
	return nil
}

func (f *fakeSubscriberService) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts) + len(f.unsubscribes)
}

func staticConfig(s SyncConfiguration) ConfigurationLoader {
	return ConfigurationLoaderFunc(func(ctx context.Context) (Config, error) {
		return Config{Sync: s}, nil
	})
}

func testSyncConfiguration() SyncConfiguration {
	return SyncConfiguration{
		ListID:                "list-1",
		PrimaryEmailAttribute: "EmailAddress1",
		MappedAttributes:      []string{"emailaddress1", "region"},
	}
}

func contactWith(id uuid.UUID, attributes map[string]AttributeValue) ContactRecord {
	return ContactRecord{ID: id, Attributes: attributes}
}
