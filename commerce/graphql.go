/*
graphql.go - GraphQL-over-HTTP client for the host platform

PURPOSE:
  Implements Client against the platform's GraphQL endpoint. The app needs
  exactly three operations (one query, two mutations), so queries are
  plain string constants and requests are marshalled with encoding/json -
  no GraphQL client library is carried for three documents.

AUTH:
  Requests carry the app token as a bearer Authorization header. The
  token is SENSITIVE - never logged.

ERROR HANDLING:
  Transport errors, non-2xx statuses, top-level GraphQL errors, and
  mutation-level error lists all surface as wrapped Go errors. Partial
  mutation failures are the caller's to retry; this client never retries
  on its own.
*/
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// GRAPHQL DOCUMENTS
// =============================================================================

const queryFetchOrder = `
  query FetchOrder($id: ID!) {
    order(id: $id) {
      id
      lines {
        id
        quantity
        quantityFulfilled
        unitPrice {
          gross {
            amount
          }
        }
        variant {
          id
          product {
            id
            metadata {
              key
              value
            }
          }
        }
        privateMetadata {
          key
          value
        }
      }
    }
  }
`

const mutationUpdateLineDiscount = `
  mutation OrderLineDiscountUpdate($orderLineId: ID!, $input: OrderDiscountCommonInput!) {
    orderLineDiscountUpdate(orderLineId: $orderLineId, input: $input) {
      orderLine {
        id
      }
      errors {
        field
        message
      }
    }
  }
`

const mutationUpdatePrivateMetadata = `
  mutation UpdateLineMetadata($id: ID!, $input: [MetadataInput!]!) {
    updatePrivateMetadata(id: $id, input: $input) {
      item {
        ... on OrderLine {
          id
        }
      }
      errors {
        field
        message
      }
    }
  }
`

// =============================================================================
// CLIENT
// =============================================================================

// GraphQLClient implements Client over the platform's GraphQL endpoint.
type GraphQLClient struct {
	httpClient *http.Client
	endpoint   string
	// token is SENSITIVE - never logged.
	token string
}

// GraphQLConfig configures the client.
type GraphQLConfig struct {
	// Endpoint is the platform GraphQL URL.
	Endpoint string

	// Token is the app auth token. SENSITIVE: never log this value.
	Token string

	// HTTPClient is an optional custom HTTP client (for testing).
	HTTPClient *http.Client

	// Timeout is the request timeout (default 30s).
	Timeout time.Duration
}

// NewGraphQLClient creates a client for the given endpoint.
func NewGraphQLClient(cfg GraphQLConfig) (*GraphQLClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("commerce: endpoint is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &GraphQLClient{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
	}, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// do posts one GraphQL document and decodes data into out.
func (c *GraphQLClient) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("commerce: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("commerce: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("commerce: unexpected status %d", resp.StatusCode)
	}

	var envelope gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("commerce: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("commerce: graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("commerce: decode data: %w", err)
		}
	}
	return nil
}

// mutationErrors is the platform's per-mutation error list shape.
type mutationErrors struct {
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (m mutationErrors) toError(op string) error {
	if len(m.Errors) == 0 {
		return nil
	}
	e := m.Errors[0]
	return fmt.Errorf("commerce: %s: field %q: %s", op, e.Field, e.Message)
}

// FetchOrder implements Client.
func (c *GraphQLClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var data struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, queryFetchOrder, map[string]any{"id": orderID}, &data); err != nil {
		return nil, err
	}
	if data.Order == nil {
		return nil, fmt.Errorf("commerce: order %s not found", orderID)
	}
	return data.Order, nil
}

// UpdateLineDiscount implements Client.
func (c *GraphQLClient) UpdateLineDiscount(ctx context.Context, lineID string, input DiscountInput) error {
	var data struct {
		Result mutationErrors `json:"orderLineDiscountUpdate"`
	}
	variables := map[string]any{"orderLineId": lineID, "input": input}
	if err := c.do(ctx, mutationUpdateLineDiscount, variables, &data); err != nil {
		return err
	}
	return data.Result.toError("orderLineDiscountUpdate")
}

// UpdateLinePrivateMetadata implements Client.
func (c *GraphQLClient) UpdateLinePrivateMetadata(ctx context.Context, lineID string, items []MetadataItem) error {
	var data struct {
		Result mutationErrors `json:"updatePrivateMetadata"`
	}
	variables := map[string]any{"id": lineID, "input": items}
	if err := c.do(ctx, mutationUpdatePrivateMetadata, variables, &data); err != nil {
		return err
	}
	return data.Result.toError("updatePrivateMetadata")
}

// Compile-time check that GraphQLClient implements Client.
var _ Client = (*GraphQLClient)(nil)
