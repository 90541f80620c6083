package chatflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"chatflow-tutor/pkg/api"

	"github.com/go-resty/resty/v2"
)

const (
	chatflowsPath   = "/api/v1/chatflows"
	uploadMediaPath = "/api/v1/upload-media/"
)

type Client struct {
	client  *resty.Client
	account string
}

func NewClient(baseURL, account string, timeout time.Duration) (*Client, error) {
	if account == "" {
		return nil, ErrMissingAccount
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid chatflow base url '%s': %w", baseURL, err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{client: client, account: account}, nil
}

func (c *Client) Account() string {
	return c.account
}

func (c *Client) startPath() string {
	return fmt.Sprintf("%s/%s/start/", chatflowsPath, url.PathEscape(c.account))
}

func (c *Client) notificationsPath() string {
	return fmt.Sprintf("%s/%s/chat-notifications/", chatflowsPath, url.PathEscape(c.account))
}

func (c *Client) SendMessage(ctx context.Context, req api.ChatRequest) (api.ChatResponse, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.startPath())

	var out api.ChatResponse
	if err := c.decode(res, err, "chat", &out); err != nil {
		return api.ChatResponse{}, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, sessionID string, page api.Page) (api.HistoryPage, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit":      strconv.Itoa(page.Limit),
			"offset":     strconv.Itoa(page.Offset),
			"session_id": sessionID,
		}).
		Get(c.startPath())

	var out api.HistoryPage
	if err := c.decode(res, err, "history", &out); err != nil {
		return api.HistoryPage{}, err
	}
	return out, nil
}

func (c *Client) Notifications(ctx context.Context, sessionID string) (api.NotificationStatus, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("session_id", sessionID).
		Get(c.notificationsPath())

	var out api.NotificationStatus
	if err := c.decode(res, err, "notifications", &out); err != nil {
		return api.NotificationStatus{}, err
	}
	return out, nil
}

// UploadMedia posts a file as multipart form data. A 2xx answer with
// success=false is returned as a result, not an error; the caller decides
// what to show.
func (c *Client) UploadMedia(ctx context.Context, fileName string, content io.Reader) (api.UploadResult, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetFileReader("files", fileName, content).
		SetMultipartFormData(map[string]string{
			"upload_type":  api.UploadTypeCustomer,
			"account_name": c.account,
		}).
		Post(uploadMediaPath)

	var out api.UploadResult
	if err := c.decode(res, err, "upload-media", &out); err != nil {
		return api.UploadResult{}, err
	}
	return out, nil
}

func (c *Client) decode(res *resty.Response, reqErr error, endpoint string, out any) error {
	if reqErr != nil {
		slog.Error("unable to reach chatflow service", "endpoint", endpoint, "error", reqErr)
		return fmt.Errorf("error calling %s endpoint: %w", endpoint, reqErr)
	}

	if !res.IsSuccess() {
		slog.Error("chatflow service returned error", "endpoint", endpoint, "status_code", res.StatusCode(), "body", res.String())
		berr := &BackendError{StatusCode: res.StatusCode()}
		var body api.ErrorBody
		if err := json.Unmarshal(res.Body(), &body); err == nil {
			berr.Message = body.Message.String()
			berr.Errors = body.Errors.String()
		}
		return berr
	}

	if err := unmarshalEnvelope(res.Body(), out); err != nil {
		slog.Error("error parsing response from chatflow service", "endpoint", endpoint, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

// unmarshalEnvelope decodes body into out after lifting the fields of a
// nested "data" object to the top level, where they win over same-named
// top-level fields.
func unmarshalEnvelope(body []byte, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return err
	}

	if nested, ok := fields["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			for k, v := range inner {
				fields[k] = v
			}
		}
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, out)
}
