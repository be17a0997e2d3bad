package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gqlServer stubs the platform endpoint, capturing the last request and
// replying with a canned body.
func gqlServer(t *testing.T, respond func(query string, variables map[string]any) string) (*httptest.Server, *http.Request) {
	t.Helper()

	var captured http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r.Clone(r.Context())

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(req.Query, req.Variables)))
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestGraphQLClient_RequiresEndpoint(t *testing.T) {
	_, err := NewGraphQLClient(GraphQLConfig{})
	assert.Error(t, err)
}

func TestFetchOrder_DecodesAndAuthenticates(t *testing.T) {
	server, captured := gqlServer(t, func(_ string, variables map[string]any) string {
		assert.Equal(t, "order-1", variables["id"])
		return `{"data": {"order": {
			"id": "order-1",
			"lines": [{
				"id": "l1",
				"quantity": 5,
				"unitPrice": {"gross": {"amount": "100"}},
				"variant": {"id": "v1", "product": {"id": "prod-a", "metadata": [
					{"key": "bulk_eligible", "value": "true"}
				]}},
				"privateMetadata": []
			}]
		}}}`
	})

	client, err := NewGraphQLClient(GraphQLConfig{Endpoint: server.URL, Token: "app-token"})
	require.NoError(t, err)

	order, err := client.FetchOrder(context.Background(), "order-1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer app-token", captured.Header.Get("Authorization"))

	require.Len(t, order.Lines, 1)
	line := order.Lines[0]
	assert.Equal(t, 5, line.Quantity)
	require.NotNil(t, line.ResolveProduct())
	assert.Equal(t, "prod-a", line.ResolveProduct().ID)
	require.NotNil(t, line.UnitPrice)
	assert.Equal(t, "100", line.UnitPrice.Gross.Amount.String())
}

func TestFetchOrder_NotFound(t *testing.T) {
	server, _ := gqlServer(t, func(string, map[string]any) string {
		return `{"data": {"order": null}}`
	})
	client, err := NewGraphQLClient(GraphQLConfig{Endpoint: server.URL})
	require.NoError(t, err)

	_, err = client.FetchOrder(context.Background(), "order-missing")
	assert.ErrorContains(t, err, "not found")
}

func TestDo_SurfacesTopLevelErrors(t *testing.T) {
	server, _ := gqlServer(t, func(string, map[string]any) string {
		return `{"errors": [{"message": "permission denied"}]}`
	})
	client, err := NewGraphQLClient(GraphQLConfig{Endpoint: server.URL})
	require.NoError(t, err)

	_, err = client.FetchOrder(context.Background(), "order-1")
	assert.ErrorContains(t, err, "permission denied")
}

func TestUpdateLineDiscount_SurfacesMutationErrors(t *testing.T) {
	server, _ := gqlServer(t, func(_ string, variables map[string]any) string {
		assert.Equal(t, "l1", variables["orderLineId"])
		return `{"data": {"orderLineDiscountUpdate": {"errors": [
			{"field": "value", "message": "invalid discount value"}
		]}}}`
	})
	client, err := NewGraphQLClient(GraphQLConfig{Endpoint: server.URL})
	require.NoError(t, err)

	err = client.UpdateLineDiscount(context.Background(), "l1", DiscountInput{
		ValueType: ValueTypePercentage,
		Value:     "10",
	})
	assert.ErrorContains(t, err, "invalid discount value")
}

func TestUpdateLinePrivateMetadata_Succeeds(t *testing.T) {
	server, _ := gqlServer(t, func(_ string, variables map[string]any) string {
		assert.Equal(t, "l1", variables["id"])
		return `{"data": {"updatePrivateMetadata": {"errors": []}}}`
	})
	client, err := NewGraphQLClient(GraphQLConfig{Endpoint: server.URL})
	require.NoError(t, err)

	err = client.UpdateLinePrivateMetadata(context.Background(), "l1", []MetadataItem{
		{Key: "bulk_pack", Value: "true"},
	})
	assert.NoError(t, err)
}

func TestDo_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client, err := NewGraphQLClient(GraphQLConfig{Endpoint: server.URL})
	require.NoError(t, err)

	_, err = client.FetchOrder(context.Background(), "order-1")
	assert.ErrorContains(t, err, "unexpected status 502")
}
