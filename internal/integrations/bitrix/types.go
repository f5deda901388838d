package bitrix

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	methodContactList     = "crm.contact.list"
	methodTaskAdd         = "task.item.add"
	methodTimelineComment = "crm.timeline.comment.add"
	methodTaskComplete    = "tasks.task.complete"

	deadlineLayout = "2006-01-02T15:04:05-07:00"
)

// envelope is the part every Bitrix24 REST response shares.
type envelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e envelope) err() error {
	if e.Error == "" {
		return nil
	}
	if e.ErrorDescription != "" {
		return fmt.Errorf("bitrix error %s: %s", e.Error, e.ErrorDescription)
	}
	return fmt.Errorf("bitrix error %s", e.Error)
}

// flexID accepts ids sent as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", string(data))
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id is not an integer: %s", n.String())
	}
	*f = flexID(n.String())
	return nil
}

// --- crm.contact.list ---

type contactListResponse struct {
	envelope
	Result []contactRecord `json:"result"`
	Next   *int            `json:"next,omitempty"`
	Total  int             `json:"total"`
}

type contactRecord struct {
	ID       flexID       `json:"ID"`
	Name     string       `json:"NAME"`
	LastName string       `json:"LAST_NAME"`
	Phone    []multiField `json:"PHONE"`
}

type multiField struct {
	ID        flexID `json:"ID"`
	ValueType string `json:"VALUE_TYPE"`
	Value     string `json:"VALUE"`
	TypeID    string `json:"TYPE_ID"`
}

// --- task.item.add ---

type taskFields struct {
	Title         string   `json:"TITLE" validate:"required"`
	Description   string   `json:"DESCRIPTION"`
	ResponsibleID int      `json:"RESPONSIBLE_ID" validate:"gt=0"`
	Deadline      string   `json:"DEADLINE" validate:"required"`
	CRMBindings   []string `json:"UF_CRM_TASK" validate:"min=1,dive,required"`
}

type taskAddRequest struct {
	Fields taskFields `json:"fields"`
	Notify bool       `json:"notify"`
}

// taskAddResponse.Result is either the new id or {"task": {"id": ...}}.
type taskAddResponse struct {
	envelope
	Result json.RawMessage `json:"result"`
}

func (r taskAddResponse) taskID() (string, error) {
	raw := bytes.TrimSpace(r.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return "", nil
	}
	if raw[0] == '{' {
		var wrapped struct {
			Task struct {
				ID flexID `json:"id"`
			} `json:"task"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return "", fmt.Errorf("parsing task result: %w", err)
		}
		return string(wrapped.Task.ID), nil
	}
	var id flexID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("parsing task result: %w", err)
	}
	return string(id), nil
}

// --- crm.timeline.comment.add ---

type timelineFields struct {
	EntityID   string `json:"ENTITY_ID" validate:"required"`
	EntityType string `json:"ENTITY_TYPE" validate:"oneof=contact company deal lead"`
	Comment    string `json:"COMMENT" validate:"required"`
	AuthorID   int    `json:"AUTHOR_ID" validate:"gt=0"`
}

type timelineCommentRequest struct {
	Fields timelineFields `json:"fields"`
}

// --- tasks.task.complete ---

type taskCompleteRequest struct {
	TaskID string `json:"taskId" validate:"required,numeric"`
}
