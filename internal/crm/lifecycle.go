package crm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"worklogbot/internal/apperr"
	"worklogbot/internal/domain"
)

// DeadlineZone is the fixed offset task deadlines are expressed in.
var DeadlineZone = time.FixedZone("UTC+3", 3*60*60)

type NewTask struct {
	Title         string
	Description   string
	ResponsibleID int
	Deadline      time.Time
	ContactID     string
}

type TimelineNote struct {
	ContactID string
	Comment   string
	AuthorID  int
}

type TaskAPI interface {
	CreateTask(ctx context.Context, task NewTask) (string, error)
	AddTimelineComment(ctx context.Context, note TimelineNote) error
	CompleteTask(ctx context.Context, taskID string) error
}

type TaskInput struct {
	ContactID     string
	Category      domain.CategoryCode
	Note          string
	ResponsibleID int
}

// TaskOutcome reports which lifecycle steps went through.
type TaskOutcome struct {
	TaskID    string
	Commented bool
	Completed bool
}

// Lifecycle creates a CRM task for a work record, annotates the contact's
// timeline and closes the task straight away. Tasks are an audit trail, not
// open work. Nothing is retried; calling RecordTask twice creates two tasks.
type Lifecycle struct {
	api     TaskAPI
	catalog *domain.Catalog
	now     func() time.Time
}

func NewLifecycle(api TaskAPI, catalog *domain.Catalog) *Lifecycle {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	return &Lifecycle{api: api, catalog: catalog, now: time.Now}
}

func TaskTitle(label string) string {
	return "Work record: " + label
}

func TimelineComment(label, note string) string {
	return fmt.Sprintf("📌 %s: %s", label, note)
}

// RecordTask returns an error only when the task could not be created; in
// that case no timeline comment or completion is attempted. Comment and
// completion failures are logged and reflected in the outcome.
func (l *Lifecycle) RecordTask(ctx context.Context, in TaskInput) (TaskOutcome, error) {
	var out TaskOutcome
	label := l.catalog.Label(in.Category)

	taskID, err := l.api.CreateTask(ctx, NewTask{
		Title:         TaskTitle(label),
		Description:   in.Note,
		ResponsibleID: in.ResponsibleID,
		Deadline:      l.now().In(DeadlineZone).AddDate(0, 0, 1),
		ContactID:     in.ContactID,
	})
	if err != nil {
		log.Printf("crm task-create error contact=%s category=%s: %v", in.ContactID, in.Category, err)
		return out, fmt.Errorf("create task: %w", err)
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" || taskID == "0" {
		log.Printf("crm task-create returned no id contact=%s category=%s", in.ContactID, in.Category)
		return out, apperr.Upstream("CRM did not return a task id", nil).WithOp("crm.RecordTask")
	}
	out.TaskID = taskID
	log.Printf("crm task-create ok task=%s contact=%s responsible=%d", taskID, in.ContactID, in.ResponsibleID)

	err = l.api.AddTimelineComment(ctx, TimelineNote{
		ContactID: in.ContactID,
		Comment:   TimelineComment(label, in.Note),
		AuthorID:  in.ResponsibleID,
	})
	if err != nil {
		log.Printf("crm timeline-comment error (non-fatal) task=%s contact=%s: %v", taskID, in.ContactID, err)
	} else {
		out.Commented = true
	}

	if err := l.api.CompleteTask(ctx, taskID); err != nil {
		log.Printf("crm task-complete error (non-fatal) task=%s: %v", taskID, err)
	} else {
		out.Completed = true
	}
	return out, nil
}
