package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SavedView is a stored CRM query definition.
type SavedView struct {
	ID       uuid.UUID
	Name     string
	FetchXML string
}

// CRMService is the record, view and query surface of the CRM platform the sync engine uses.
type CRMService interface {
	// RetrieveRecord fetches the given columns of a record. Values are returned as text.
	RetrieveRecord(ctx context.Context, entity string, id uuid.UUID, columns []string) (map[string]string, error)
	// RetrieveSavedView fetches a saved view. The bool is false when the view does not exist.
	RetrieveSavedView(ctx context.Context, id uuid.UUID) (SavedView, bool, error)
	// CountRecords executes the query and returns how many records matched, at most query.Top when set.
	CountRecords(ctx context.Context, query Query) (int, error)
}

// ConfigFilterResolver turns a saved view into a query filter.
type ConfigFilterResolver struct {
	crm CRMService
}

func NewConfigFilterResolver(crm CRMService) *ConfigFilterResolver {
	return &ConfigFilterResolver{crm: crm}
}

// ResolveViewFilter returns the criteria of the saved view, or nil if the view does not
// exist or has no stored definition. A definition that cannot be parsed is a ConfigurationError.
func (r *ConfigFilterResolver) ResolveViewFilter(ctx context.Context, viewid uuid.UUID) (*QueryFilter, error) {
	if viewid == uuid.Nil {
		return nil, nil
	}
	view, exists, err := r.crm.RetrieveSavedView(ctx, viewid)
	if err != nil {
		return nil, NewRemoteCallError(fmt.Sprintf("failed to retrieve saved view %s", viewid), err)
	}
	if !exists || view.FetchXML == "" {
		return nil, nil
	}
	filter, err := ParseFetchXML(view.FetchXML)
	if err != nil {
		return nil, NewConfigurationError(fmt.Sprintf("failed to parse filter of saved view %s", viewid), err)
	}
	return filter, nil
}
