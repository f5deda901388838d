// Package bitrix is the Bitrix24 incoming-webhook REST client. It implements
// crm.ContactDirectory and crm.TaskAPI.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"worklogbot/internal/apperr"
	"worklogbot/internal/crm"
	"worklogbot/internal/domain"
	"worklogbot/internal/httpx"
)

var contactSelectFields = []string{"ID", "NAME", "LAST_NAME", "PHONE"}

// Client calls one Bitrix24 portal through an incoming-webhook URL such as
// https://portal.bitrix24.ua/rest/1/token/crm.contact.list.json. The trailing
// method segment is swapped per call, so any method of the same webhook works.
type Client struct {
	base     *url.URL
	http     *http.Client
	validate *validator.Validate
}

var (
	_ crm.ContactDirectory = (*Client)(nil)
	_ crm.TaskAPI          = (*Client)(nil)
)

func NewClient(webhookURL string, httpClient *http.Client) (*Client, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, fmt.Errorf("bitrix webhook url is empty")
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("parsing bitrix webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bitrix webhook url must be http(s), got %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = httpx.ExternalHTTPClient()
	}
	return &Client{base: u, http: httpClient, validate: validator.New()}, nil
}

// endpoint returns the URL for method. When the webhook path ends in a
// dotted method name (crm.contact.list or crm.contact.list.json) that segment
// is replaced; otherwise method is appended.
func (c *Client) endpoint(method string) string {
	u := *c.base
	u.RawQuery = ""
	path := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	last := path[idx+1:]

	suffix := ""
	if strings.HasSuffix(last, ".json") {
		suffix = ".json"
	}
	if strings.Contains(strings.TrimSuffix(last, ".json"), ".") {
		path = path[:idx]
	}
	u.Path = path + "/" + method + suffix
	return u.String()
}

// ListContacts returns one page of contacts whose phone matches the CRM's
// own filter. Candidates still need exact verification by the caller.
func (c *Client) ListContacts(ctx context.Context, phoneFilter string, start int) (crm.ContactPage, error) {
	q := url.Values{}
	q.Set("filter[PHONE]", phoneFilter)
	for _, f := range contactSelectFields {
		q.Add("select[]", f)
	}
	q.Set("start", strconv.Itoa(start))

	var resp contactListResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(methodContactList)+"?"+q.Encode(), nil, &resp); err != nil {
		return crm.ContactPage{}, err
	}

	page := crm.ContactPage{Contacts: make([]domain.Contact, 0, len(resp.Result))}
	for _, rec := range resp.Result {
		contact := domain.Contact{
			ID:        string(rec.ID),
			FirstName: strings.TrimSpace(rec.Name),
			LastName:  strings.TrimSpace(rec.LastName),
		}
		for _, p := range rec.Phone {
			if v := strings.TrimSpace(p.Value); v != "" {
				contact.Phones = append(contact.Phones, v)
			}
		}
		page.Contacts = append(page.Contacts, contact)
	}
	if resp.Next != nil {
		page.Next = *resp.Next
		page.More = true
	}
	return page, nil
}

// CreateTask adds a task bound to the contact and returns its id. An empty
// id is returned as-is; deciding what that means is the caller's job.
func (c *Client) CreateTask(ctx context.Context, task crm.NewTask) (string, error) {
	req := taskAddRequest{
		Fields: taskFields{
			Title:         task.Title,
			Description:   task.Description,
			ResponsibleID: task.ResponsibleID,
			Deadline:      task.Deadline.Format(deadlineLayout),
			CRMBindings:   []string{"C_" + task.ContactID},
		},
		Notify: true,
	}
	if err := c.validate.Struct(req); err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "invalid task request", err).WithOp("bitrix.CreateTask")
	}

	var resp taskAddResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(methodTaskAdd), req, &resp); err != nil {
		return "", err
	}
	id, err := resp.taskID()
	if err != nil {
		return "", apperr.Upstream("unexpected task response", err).WithOp("bitrix.CreateTask")
	}
	return id, nil
}

func (c *Client) AddTimelineComment(ctx context.Context, note crm.TimelineNote) error {
	req := timelineCommentRequest{Fields: timelineFields{
		EntityID:   note.ContactID,
		EntityType: "contact",
		Comment:    note.Comment,
		AuthorID:   note.AuthorID,
	}}
	if err := c.validate.Struct(req); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid timeline comment", err).WithOp("bitrix.AddTimelineComment")
	}
	var resp envelope
	return c.do(ctx, http.MethodPost, c.endpoint(methodTimelineComment), req, &resp)
}

func (c *Client) CompleteTask(ctx context.Context, taskID string) error {
	req := taskCompleteRequest{TaskID: taskID}
	if err := c.validate.Struct(req); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid task id", err).WithOp("bitrix.CompleteTask")
	}
	var resp envelope
	return c.do(ctx, http.MethodPost, c.endpoint(methodTaskComplete), req, &resp)
}

// errorCarrier lets do inspect the shared error fields of any response type.
type errorCarrier interface {
	err() error
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, out errorCarrier) error {
	op := "bitrix." + methodName(endpoint)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperr.Wrap(apperr.KindUnknown, "encoding request", err).WithOp(op)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "creating request", err).WithOp(op)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream("CRM request failed", err).WithOp(op)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return apperr.Upstream("reading CRM response", err).WithOp(op)
	}

	if resp.StatusCode != http.StatusOK {
		// Bitrix reports most failures with a JSON error body and a 4xx status.
		var env envelope
		if json.Unmarshal(respBody, &env) == nil && env.err() != nil {
			return apperr.Upstream(fmt.Sprintf("CRM returned %d", resp.StatusCode), env.err()).WithOp(op)
		}
		return apperr.Upstream(fmt.Sprintf("CRM returned %d", resp.StatusCode),
			fmt.Errorf("%s", truncate(string(respBody), 300))).WithOp(op)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return apperr.Upstream("parsing CRM response", err).WithOp(op)
	}
	if err := out.err(); err != nil {
		return apperr.Upstream("CRM rejected the request", err).WithOp(op)
	}
	log.Printf("bitrix %s ok status=%d bytes=%d", methodName(endpoint), resp.StatusCode, len(respBody))
	return nil
}

func methodName(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		endpoint = u.Path
	}
	name := endpoint[strings.LastIndex(endpoint, "/")+1:]
	return strings.TrimSuffix(name, ".json")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
