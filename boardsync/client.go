package boardsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// BoardAPI is the remote board surface the pipeline needs. Satisfied by
// *Client in production and by fakes in tests.
type BoardAPI interface {
	ListGroups(ctx context.Context, boardId string) (map[string]string, error)
	CreateGroup(ctx context.Context, boardId, groupName string) (string, error)
	CreateItem(ctx context.Context, boardId, itemName string, columnValues map[string]interface{}, groupId string) (string, error)
}

// Client talks GraphQL-over-HTTP to the board API. Every call sends a single
// query/mutation with bound variables and the API key header. The client does
// not retry; transport and application errors both surface to the caller.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
	logger *logrus.Logger
}

func NewClient(apiURL, apiKey string, logger *logrus.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("board api key is empty")
	}
	if strings.TrimSpace(apiURL) == "" {
		return nil, errors.New("board api url is empty")
	}
	return &Client{
		apiURL: strings.TrimRight(strings.TrimSpace(apiURL), "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}, nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The board API returns structured error detail; log the body to aid diagnosis.
		c.logger.WithFields(logrus.Fields{
			"module": "boardsync",
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(body)),
		}).Error("board api request failed")
		return fmt.Errorf("board api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode board response: %w", err)
	}
	if len(envelope.Errors) > 0 && !hasData(envelope.Data) {
		c.logger.WithFields(logrus.Fields{
			"module": "boardsync",
			"body":   strings.TrimSpace(string(body)),
		}).Error("board api returned errors")
		return fmt.Errorf("board api: %s", envelope.Errors[0].Message)
	}
	if out != nil && hasData(envelope.Data) {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode board data: %w", err)
		}
	}
	return nil
}

func hasData(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

// ListGroups returns the board's groups as a label -> group id map. An empty
// map means the board has no groups yet.
func (c *Client) ListGroups(ctx context.Context, boardId string) (map[string]string, error) {
	const query = `query ($boardId: [ID!]) {
		boards (ids: $boardId) {
			groups {
				id
				title
			}
		}
	}`

	var data struct {
		Boards []struct {
			Groups []struct {
				Id    string `json:"id"`
				Title string `json:"title"`
			} `json:"groups"`
		} `json:"boards"`
	}
	if err := c.execute(ctx, query, map[string]interface{}{"boardId": []string{boardId}}, &data); err != nil {
		return nil, err
	}

	groups := make(map[string]string)
	if len(data.Boards) > 0 {
		for _, group := range data.Boards[0].Groups {
			groups[group.Title] = group.Id
		}
	}
	return groups, nil
}

// CreateGroup creates a new group and returns its id. The remote side does
// not deduplicate by name, so callers must check ListGroups first. A request
// that succeeds without producing an id returns "" with a nil error.
func (c *Client) CreateGroup(ctx context.Context, boardId, groupName string) (string, error) {
	const mutation = `mutation ($boardId: ID!, $groupName: String!) {
		create_group (board_id: $boardId, group_name: $groupName) {
			id
		}
	}`

	var data struct {
		CreateGroup struct {
			Id string `json:"id"`
		} `json:"create_group"`
	}
	err := c.execute(ctx, mutation, map[string]interface{}{
		"boardId":   boardId,
		"groupName": groupName,
	}, &data)
	if err != nil {
		return "", err
	}
	return data.CreateGroup.Id, nil
}

// CreateItem creates one item on the board. When groupId is non-empty the
// item is placed directly into that group, avoiding a separate move call.
// Column values travel as a JSON-encoded string, which is what the API's
// JSON scalar expects.
func (c *Client) CreateItem(ctx context.Context, boardId, itemName string, columnValues map[string]interface{}, groupId string) (string, error) {
	const mutation = `mutation ($boardId: ID!, $itemName: String!, $columnValues: JSON!, $groupId: String) {
		create_item (board_id: $boardId, item_name: $itemName, column_values: $columnValues, group_id: $groupId) {
			id
		}
	}`

	encoded, err := json.Marshal(columnValues)
	if err != nil {
		return "", err
	}
	variables := map[string]interface{}{
		"boardId":      boardId,
		"itemName":     itemName,
		"columnValues": string(encoded),
	}
	if groupId != "" {
		variables["groupId"] = groupId
	}

	var data struct {
		CreateItem struct {
			Id string `json:"id"`
		} `json:"create_item"`
	}
	if err := c.execute(ctx, mutation, variables, &data); err != nil {
		return "", err
	}
	return data.CreateItem.Id, nil
}
