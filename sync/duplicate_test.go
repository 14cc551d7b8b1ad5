package sync

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveViewFilter(t *testing.T) {
	crm := newFakeCRMService()
	viewID := uuid.New()
	crm.views[viewID] = SavedView{ID: viewID, Name: "Newsletter contacts", FetchXML: testViewFetchXML}
	resolver := NewConfigFilterResolver(crm)
	ctx := context.Background()

	filter, err := resolver.ResolveViewFilter(ctx, viewID)
	require.NoError(t, err)
	require.NotNil(t, filter)
	assert.Equal(t, FilterOr, filter.Type)

	filter, err = resolver.ResolveViewFilter(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, filter)

	filter, err = resolver.ResolveViewFilter(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, filter)
}

func TestResolveViewFilter_Errors(t *testing.T) {
	crm := newFakeCRMService()
	viewID := uuid.New()
	crm.views[viewID] = SavedView{ID: viewID, FetchXML: "<fetch>"}
	resolver := NewConfigFilterResolver(crm)

	_, err := resolver.ResolveViewFilter(context.Background(), viewID)
	var cfgErr ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	crm.viewErr = errFakeUnavailable
	_, err = resolver.ResolveViewFilter(context.Background(), viewID)
	var remoteErr RemoteCallError
	assert.ErrorAs(t, err, &remoteErr)
	assert.ErrorIs(t, err, errFakeUnavailable)
}

func TestIsDuplicate_CountsMatchesInScope(t *testing.T) {
	crm := newFakeCRMService()
	checker := NewDuplicateEmailChecker(crm, nil)
	scope, err := testSyncConfiguration().Normalise()
	require.NoError(t, err)
	ctx := context.Background()

	for count, expected := range map[int]bool{0: false, 1: false, 2: true} {
		crm.count = count
		duplicate, err := checker.IsDuplicate(ctx, scope.PrimaryEmailAttribute, "a@b.com", scope)
		require.NoError(t, err)
		assert.Equal(t, expected, duplicate, "count %d", count)
	}

	query, ok := crm.lastQuery()
	require.True(t, ok)
	assert.Equal(t, ContactEntity, query.Entity)
	assert.Equal(t, 2, query.Top)
	assert.Equal(t, ActiveRecordsFilter().And(Equal("emailaddress1", "a@b.com")), *query.Filter)
}

func TestIsDuplicate_UsesViewCriteria(t *testing.T) {
	crm := newFakeCRMService()
	viewID := uuid.New()
	crm.views[viewID] = SavedView{ID: viewID, FetchXML: testViewFetchXML}
	checker := NewDuplicateEmailChecker(crm, nil)
	scope := testSyncConfiguration()
	scope.SyncView = viewID.String()
	scope, err := scope.Normalise()
	require.NoError(t, err)

	_, err = checker.IsDuplicate(context.Background(), scope.PrimaryEmailAttribute, "a@b.com", scope)
	require.NoError(t, err)

	view, err := ParseFetchXML(testViewFetchXML)
	require.NoError(t, err)
	query, _ := crm.lastQuery()
	assert.Equal(t, view.And(Equal("emailaddress1", "a@b.com")), *query.Filter)
}

func TestIsDuplicate_UnknownViewFallsBackToActiveContacts(t *testing.T) {
	crm := newFakeCRMService()
	checker := NewDuplicateEmailChecker(crm, nil)
	scope := testSyncConfiguration()
	scope.SyncView = uuid.New().String()
	scope, err := scope.Normalise()
	require.NoError(t, err)

	_, err = checker.IsDuplicate(context.Background(), scope.PrimaryEmailAttribute, "a@b.com", scope)
	require.NoError(t, err)

	query, _ := crm.lastQuery()
	assert.Equal(t, ActiveRecordsFilter().And(Equal("emailaddress1", "a@b.com")), *query.Filter)
}

func TestIsDuplicate_QueryFailureIsRemoteCallError(t *testing.T) {
	crm := newFakeCRMService()
	crm.countErr = errFakeUnavailable
	checker := NewDuplicateEmailChecker(crm, nil)
	scope, err := testSyncConfiguration().Normalise()
	require.NoError(t, err)

	_, err = checker.IsDuplicate(context.Background(), scope.PrimaryEmailAttribute, "a@b.com", scope)
	var remoteErr RemoteCallError
	assert.ErrorAs(t, err, &remoteErr)
}
