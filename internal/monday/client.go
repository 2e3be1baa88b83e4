// Package monday is the record store client: a thin Monday.com GraphQL
// wrapper exposing the lookup, create, and file-attach operations the intake
// flow needs. Writes are append-only; the bot never edits or deletes items.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mariahq/maria/internal/reconcile"
)

const defaultTimeout = 30 * time.Second

// Options configures the client. BoardID and the column ids describe where
// intake records live.
type Options struct {
	APIURL           string
	APIToken         string
	BoardID          int64
	IdentifierColumn string
	PhoneColumn      string
	FileColumn       string
	Timeout          time.Duration
}

// Client talks to the Monday.com GraphQL API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	fileURL    string
	token      string
	boardID    int64
	identCol   string
	phoneCol   string
	fileCol    string
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(log *slog.Logger, opts Options) *Client {
	if log == nil {
		log = slog.Default()
	}
	apiURL := strings.TrimRight(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.monday.com/v2"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		fileURL:    apiURL + "/file",
		token:      opts.APIToken,
		boardID:    opts.BoardID,
		identCol:   opts.IdentifierColumn,
		phoneCol:   opts.PhoneColumn,
		fileCol:    opts.FileColumn,
		logger:     log.With(slog.String("service", "monday")),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (c *Client) execute(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call monday: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return decodeGraphQL(resp, out)
}

func decodeGraphQL(resp *http.Response, out any) error {
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("monday returned status %d: %s", resp.StatusCode, truncate(payload, 200))
	}
	var gql graphQLResponse
	if err := json.Unmarshal(payload, &gql); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(gql.Errors) > 0 {
		return fmt.Errorf("monday api error: %s", gql.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

type columnValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ColumnValues []columnValue `json:"column_values"`
}

func (c *Client) toRecord(it item) reconcile.Record {
	rec := reconcile.Record{ID: it.ID, Name: it.Name}
	for _, cv := range it.ColumnValues {
		switch cv.ID {
		case c.identCol:
			rec.Identifier = cv.Text
		case c.phoneCol:
			rec.Phone = cv.Text
		}
	}
	return rec
}

// ListRecords returns up to limit board items in board order.
func (c *Client) ListRecords(ctx context.Context, limit int) ([]reconcile.Record, error) {
	const query = `query ($board: ID!, $limit: Int!, $columns: [String!]) {
  boards(ids: [$board]) {
    items_page(limit: $limit) {
      items { id name column_values(ids: $columns) { id text } }
    }
  }
}`
	var data struct {
		Boards []struct {
			ItemsPage struct {
				Items []item `json:"items"`
			} `json:"items_page"`
		} `json:"boards"`
	}
	err := c.execute(ctx, query, map[string]any{
		"board":   c.boardID,
		"limit":   limit,
		"columns": []string{c.identCol, c.phoneCol},
	}, &data)
	if err != nil {
		return nil, err
	}
	if len(data.Boards) == 0 {
		return nil, fmt.Errorf("board %d not found", c.boardID)
	}
	items := data.Boards[0].ItemsPage.Items
	records := make([]reconcile.Record, 0, len(items))
	for _, it := range items {
		records = append(records, c.toRecord(it))
	}
	return records, nil
}

// GetRecord fetches one item by id.
func (c *Client) GetRecord(ctx context.Context, recordID string) (reconcile.Record, error) {
	const query = `query ($item: ID!, $columns: [String!]) {
  items(ids: [$item]) { id name column_values(ids: $columns) { id text } }
}`
	var data struct {
		Items []item `json:"items"`
	}
	err := c.execute(ctx, query, map[string]any{
		"item":    recordID,
		"columns": []string{c.identCol, c.phoneCol},
	}, &data)
	if err != nil {
		return reconcile.Record{}, err
	}
	if len(data.Items) == 0 {
		return reconcile.Record{}, fmt.Errorf("record %s not found", recordID)
	}
	return c.toRecord(data.Items[0]), nil
}

// CreateRecord creates a board item with the identifier and phone columns
// set. The identifier is stored exactly as declared.
func (c *Client) CreateRecord(ctx context.Context, name, identifier, phone string) (string, error) {
	columns, err := json.Marshal(map[string]string{
		c.identCol: identifier,
		c.phoneCol: phone,
	})
	if err != nil {
		return "", fmt.Errorf("encode column values: %w", err)
	}
	const mutation = `mutation ($board: ID!, $name: String!, $columns: JSON) {
  create_item(board_id: $board, item_name: $name, column_values: $columns) { id }
}`
	var data struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	}
	err = c.execute(ctx, mutation, map[string]any{
		"board":   c.boardID,
		"name":    name,
		"columns": string(columns),
	}, &data)
	if err != nil {
		return "", err
	}
	c.logger.Info("record created", slog.String("record_id", data.CreateItem.ID))
	return data.CreateItem.ID, nil
}

// AttachFile appends one file to the record's file column via the multipart
// file endpoint.
func (c *Client) AttachFile(ctx context.Context, recordID, filename string, r io.Reader, size int64) error {
	itemID, err := strconv.ParseInt(recordID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid record id %q: %w", recordID, err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	query := fmt.Sprintf(
		`mutation ($file: File!) { add_file_to_column(item_id: %d, column_id: %q, file: $file) { id } }`,
		itemID, c.fileCol,
	)
	if err := writer.WriteField("query", query); err != nil {
		return fmt.Errorf("write query field: %w", err)
	}
	part, err := writer.CreateFormFile("variables[file]", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.fileURL, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := decodeGraphQL(resp, nil); err != nil {
		return err
	}
	c.logger.Info("file attached",
		slog.String("record_id", recordID),
		slog.String("filename", filename),
		slog.Int64("size_bytes", size))
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
