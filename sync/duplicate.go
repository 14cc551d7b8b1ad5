package sync

import (
	"context"
	"log"
)

// duplicateCheckTop is the most records a duplicate check asks for; two is enough to know.
const duplicateCheckTop = 2

// DuplicateEmailChecker reports whether an email is shared by more than one contact in scope.
//
// The check and the ESP call that follows are not transactional: two contacts created with
// the same email at the same moment can both pass the check.
type DuplicateEmailChecker struct {
	crm     CRMService
	filters *ConfigFilterResolver
}

func NewDuplicateEmailChecker(crm CRMService, filters *ConfigFilterResolver) *DuplicateEmailChecker {
	if filters == nil {
		filters = NewConfigFilterResolver(crm)
	}
	return &DuplicateEmailChecker{crm: crm, filters: filters}
}

// IsDuplicate returns true when two or more contacts in the configured scope have the email.
// The scope is the configured saved view's criteria, or active contacts when no view
// is configured or the view cannot be found.
func (d *DuplicateEmailChecker) IsDuplicate(ctx context.Context, primaryemailattribute string, email string, scope SyncConfiguration) (bool, error) {
	filter := ActiveRecordsFilter()
	if scope.HasSyncView() {
		viewFilter, err := d.filters.ResolveViewFilter(ctx, scope.SyncViewID)
		if err != nil {
			return false, err
		}
		if viewFilter != nil {
			filter = *viewFilter
		} else {
			log.Printf("Warning: sync view %s not found, checking duplicates against active contacts", scope.SyncViewID)
		}
	}

	scoped := filter.And(Equal(primaryemailattribute, email))
	query := Query{
		Entity:  ContactEntity,
		Columns: []string{"contactid"},
		Filter:  &scoped,
		Top:     duplicateCheckTop,
	}
	count, err := d.crm.CountRecords(ctx, query)
	if err != nil {
		return false, NewRemoteCallError("failed to query contacts for duplicate email", err)
	}
	if count >= duplicateCheckTop {
		log.Printf("duplicate check: %d contacts in scope share %s %q", count, primaryemailattribute, email)
		return true, nil
	}
	return false, nil
}
