// Package worklog turns one inbound chat message into exactly one reply:
// a work record saved to the CRM and the ledger, a customer report, help, or
// an error explaining what to fix. Transports only move text in and out.
package worklog

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"worklogbot/internal/apperr"
	"worklogbot/internal/crm"
	"worklogbot/internal/domain"
	"worklogbot/internal/integrations/llm"
	"worklogbot/internal/parser"
	"worklogbot/internal/phone"
	"worklogbot/internal/report"
)

// Incoming is a transport-neutral chat message.
type Incoming struct {
	UserID      string
	DisplayName string
	Text        string
	Source      string
}

type ContactResolver interface {
	Resolve(ctx context.Context, canonical string) (*domain.Contact, bool)
}

type TaskRecorder interface {
	RecordTask(ctx context.Context, in crm.TaskInput) (crm.TaskOutcome, error)
}

type RecordWriter interface {
	Append(ctx context.Context, rec domain.WorkRecord) error
}

type ReportSource interface {
	Aggregate(ctx context.Context, canonical string, days int) (domain.AggregateReport, error)
}

type NotesSummarizer interface {
	SummarizeNotes(ctx context.Context, customerPhone string, records []domain.WorkRecord) (string, llm.Usage, error)
}

// Deps are the collaborators of a Service. Summarizer is optional.
type Deps struct {
	Directory  *domain.Directory
	Catalog    *domain.Catalog
	Resolver   ContactResolver
	Tasks      TaskRecorder
	Writer     RecordWriter
	Reports    ReportSource
	Summarizer NotesSummarizer
	Location   *time.Location
}

type Service struct {
	deps Deps
	now  func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Directory == nil:
		return nil, fmt.Errorf("worklog: employee directory is required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("worklog: contact resolver is required")
	case deps.Tasks == nil:
		return nil, fmt.Errorf("worklog: task recorder is required")
	case deps.Writer == nil:
		return nil, fmt.Errorf("worklog: ledger writer is required")
	case deps.Reports == nil:
		return nil, fmt.Errorf("worklog: report source is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = domain.DefaultCatalog()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Service{deps: deps, now: time.Now}, nil
}

// HandleText processes one message. handled is false for chatter that is
// neither a command nor a coded line; such messages get no reply.
func (s *Service) HandleText(ctx context.Context, in Incoming) (reply string, handled bool) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", false
	}
	msgID := uuid.NewString()[:8]

	if isHelpCommand(text) {
		log.Printf("worklog msg=%s source=%s user=%s kind=help", msgID, in.Source, in.UserID)
		return s.HelpText(), true
	}

	if q, ok, err := parser.ParseInfoCommand(text); ok {
		if err != nil {
			log.Printf("worklog msg=%s source=%s user=%s kind=info validation: %v", msgID, in.Source, in.UserID, err)
			return "⚠️ " + apperr.UserMessage(err), true
		}
		return s.handleInfo(ctx, msgID, in, q), true
	}

	msg, ok, err := parser.ParseWorkMessage(text)
	if !ok {
		return "", false
	}
	if err != nil {
		log.Printf("worklog msg=%s source=%s user=%s kind=work validation: %v", msgID, in.Source, in.UserID, err)
		return "⚠️ " + apperr.UserMessage(err) + "\n" + parser.WorkUsage, true
	}
	return s.handleWork(ctx, msgID, in, msg), true
}

func (s *Service) handleWork(ctx context.Context, msgID string, in Incoming, msg parser.WorkMessage) string {
	emp, known := s.deps.Directory.Lookup(in.UserID, in.DisplayName)
	label := s.deps.Catalog.Label(msg.Category)
	log.Printf("worklog msg=%s source=%s user=%s employee=%q known=%t kind=work category=%s phone=%s",
		msgID, in.Source, in.UserID, emp.Name, known, msg.Category, msg.Phone)
	if !phone.Plausible(msg.Phone) {
		log.Printf("worklog msg=%s implausible phone=%s (accepted)", msgID, msg.Phone)
	}

	contact, found := s.deps.Resolver.Resolve(ctx, msg.Phone)
	if !found {
		log.Printf("worklog msg=%s contact not found phone=%s", msgID, msg.Phone)
		return fmt.Sprintf("❌ No customer with phone %s found in the CRM. Nothing was saved.", phone.Display(msg.Phone))
	}

	outcome, taskErr := s.deps.Tasks.RecordTask(ctx, crm.TaskInput{
		ContactID:     contact.ID,
		Category:      msg.Category,
		Note:          msg.Note,
		ResponsibleID: emp.CRMResponsibleID,
	})
	if taskErr != nil {
		log.Printf("worklog msg=%s crm task skipped contact=%s: %v", msgID, contact.ID, taskErr)
	}

	err := s.deps.Writer.Append(ctx, domain.WorkRecord{
		Timestamp:    s.now(),
		EmployeeName: emp.Name,
		Category:     msg.Category,
		Phone:        msg.Phone,
		Note:         msg.Note,
		Status:       domain.StatusDone,
	})
	if err != nil {
		log.Printf("worklog msg=%s ledger write failed: %v", msgID, err)
		return "⚠️ " + apperr.UserMessage(err)
	}

	name := contact.DisplayName()
	if name == "" {
		name = "contact #" + contact.ID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %s recorded for %s (%s).", label, name, phone.Display(msg.Phone))
	switch {
	case taskErr != nil:
		b.WriteString("\nThe CRM task could not be created.")
	case !outcome.Completed:
		fmt.Fprintf(&b, "\nCRM task #%s was created but not closed.", outcome.TaskID)
	}
	log.Printf("worklog msg=%s done contact=%s task=%s commented=%t completed=%t",
		msgID, contact.ID, outcome.TaskID, outcome.Commented, outcome.Completed)
	return b.String()
}

func (s *Service) handleInfo(ctx context.Context, msgID string, in Incoming, q parser.InfoQuery) string {
	log.Printf("worklog msg=%s source=%s user=%s kind=info phone=%s days=%d", msgID, in.Source, in.UserID, q.Phone, q.Days)

	rep, err := s.deps.Reports.Aggregate(ctx, q.Phone, q.Days)
	if err != nil {
		log.Printf("worklog msg=%s report failed: %v", msgID, err)
		return "⚠️ " + apperr.UserMessage(err)
	}
	text := report.RenderReport(rep, s.deps.Catalog, s.deps.Location)

	if s.deps.Summarizer != nil && rep.Total > 0 {
		summary, _, err := s.deps.Summarizer.SummarizeNotes(ctx, q.Phone, rep.Recent)
		if err != nil {
			log.Printf("worklog msg=%s summary skipped: %v", msgID, err)
		} else if summary != "" {
			text += "\n\n📝 " + summary
		}
	}
	log.Printf("worklog msg=%s report total=%d", msgID, rep.Total)
	return text
}

func isHelpCommand(text string) bool {
	cmd := strings.ToLower(strings.Fields(text)[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return cmd == "/help" || cmd == "/start"
}

// HelpText lists the category codes and both message formats.
func (s *Service) HelpText() string {
	var b strings.Builder
	b.WriteString("Log a customer interaction:\n")
	b.WriteString(parser.WorkUsage)
	b.WriteString("\n\nCodes:\n")
	for _, code := range domain.AllCategories {
		fmt.Fprintf(&b, "• %s: %s", code, s.deps.Catalog.Label(code))
		if m, ok := s.deps.Catalog.Minutes(code); ok {
			fmt.Fprintf(&b, " (~%d min)", m)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nCustomer report:\n")
	b.WriteString(parser.InfoUsage)
	return b.String()
}
