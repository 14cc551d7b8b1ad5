package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type createSendRequest struct {
	Method string
	Path   string
	Body   string
}

type fakeCreateSend struct {
	mu       gosync.Mutex
	requests []createSendRequest
	fail     bool
}

func (f *fakeCreateSend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, createSendRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if user, _, ok := r.BasicAuth(); !ok || user != "cm-key" {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"Code":50,"Message":"Must supply a valid HTTP Basic Authorization header"}`)
		return
	}
	if f.fail {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"Code":1,"Message":"Invalid Email Address"}`)
		return
	}
	switch r.URL.Path {
	case "/api/v3.3/subscribers/list-1.json":
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `"a@b.com"`)
	case "/api/v3.3/subscribers/list-1/unsubscribe.json":
		w.WriteHeader(http.StatusOK)
	case "/api/v3.3/lists/list-1/customfields.json":
		fmt.Fprint(w, `[
		  {"FieldName":"Region","Key":"[Region]","DataType":"Text"},
		  {"FieldName":"Region Territory","Key":"[RegionTerritory]","DataType":"Text"}
		]`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"Code":404,"Message":"not found"}`)
	}
}

func newTestCreateSend(t *testing.T) (CreateSendClient, *fakeCreateSend) {
	api := &fakeCreateSend{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return NewCreateSendClient(server.URL+"/api/v3.3", "cm-key"), api
}

func TestCreateSendClient_UpsertSubscriber(t *testing.T) {
	client, api := newTestCreateSend(t)
	err := client.UpsertSubscriber(context.Background(), "list-1", "a@b.com", []SubscriberField{
		{Key: "emailaddress1", Value: "a@b.com"},
		{Key: "Region", Value: "North"},
	})
	require.NoError(t, err)
	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v3.3/subscribers/list-1.json", req.Path)

	body := gjson.Parse(req.Body)
	assert.Equal(t, "a@b.com", body.Get("EmailAddress").String())
	assert.True(t, body.Get("Resubscribe").Bool())
	assert.Equal(t, "Unchanged", body.Get("ConsentToTrack").String())
	assert.Equal(t, int64(2), body.Get("CustomFields.#").Int())
	assert.Equal(t, "Region", body.Get("CustomFields.1.Key").String())
	assert.Equal(t, "North", body.Get("CustomFields.1.Value").String())
}

func TestCreateSendClient_UpsertSubscriberWithoutFields(t *testing.T) {
	client, api := newTestCreateSend(t)
	require.NoError(t, client.UpsertSubscriber(context.Background(), "list-1", "a@b.com", nil))
	assert.True(t, gjson.Get(api.requests[0].Body, "CustomFields").IsArray())
}

func TestCreateSendClient_Unsubscribe(t *testing.T) {
	client, api := newTestCreateSend(t)
	require.NoError(t, client.Unsubscribe(context.Background(), "list-1", "a@b.com"))
	require.Len(t, api.requests, 1)
	assert.Equal(t, "/api/v3.3/subscribers/list-1/unsubscribe.json", api.requests[0].Path)
	assert.JSONEq(t, `{"EmailAddress":"a@b.com"}`, api.requests[0].Body)
}

func TestCreateSendClient_FailureIsRemoteCallError(t *testing.T) {
	client, api := newTestCreateSend(t)
	api.fail = true
	err := client.UpsertSubscriber(context.Background(), "list-1", "not-an-email", nil)
	var remoteErr RemoteCallError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, err.Error(), "Invalid Email Address")

	client.APIKey = "wrong"
	api.fail = false
	err = client.Unsubscribe(context.Background(), "list-1", "a@b.com")
	assert.ErrorAs(t, err, &remoteErr)
}

func TestCreateSendClient_CheckCustomFields(t *testing.T) {
	client, _ := newTestCreateSend(t)
	missing, err := client.CheckCustomFields(context.Background(), "list-1", []string{"Region", "RegionTerritory", "Region Territory", "Birthday", "emailaddress1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Birthday", "emailaddress1"}, missing)
}
