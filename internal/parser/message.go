// Package parser recognizes the two inbound chat shapes: coded work-record
// lines and the /info report command.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"worklogbot/internal/apperr"
	"worklogbot/internal/domain"
	"worklogbot/internal/phone"
)

const (
	// InfoUsage is appended to every /info validation reply.
	InfoUsage = "Usage: /info <phone>, <days>\nExample: /info 0631234567, 7"
	// WorkUsage describes the coded line format.
	WorkUsage = "Format: <CODE> <phone> | <note>\nExample: CL1 0631234567 | client called back"

	maxInfoDays = 36500
)

var workLineRegex = buildWorkLineRegex(domain.AllCategories)

var infoCommandRegex = regexp.MustCompile(`(?is)^/info(?:@\S+)?(?:\s+(.*))?$`)

var infoArgsRegex = regexp.MustCompile(`(?s)^(.+?)\s*,\s*(\S+)$`)

func buildWorkLineRegex(codes []domain.CategoryCode) *regexp.Regexp {
	alts := make([]string, 0, len(codes))
	for _, c := range codes {
		alts = append(alts, regexp.QuoteMeta(string(c)))
	}
	return regexp.MustCompile(`(?is)^\s*(` + strings.Join(alts, "|") + `)\s+([+\d()\-\s]+?)\s*\|\s*(.+)$`)
}

// WorkMessage is a parsed coded line. Phone is canonical.
type WorkMessage struct {
	Category domain.CategoryCode
	Phone    string
	Note     string
}

// ParseWorkMessage matches "<CODE> <phone> | <note>".
//
// ok is false when the text is not a coded line at all; such messages are
// ordinary chatter and must be ignored. When the line matches but the phone
// cannot be normalized, ok is true and err is a validation error.
func ParseWorkMessage(text string) (WorkMessage, bool, error) {
	m := workLineRegex.FindStringSubmatch(text)
	if m == nil {
		return WorkMessage{}, false, nil
	}
	note := strings.TrimSpace(m[3])
	if note == "" {
		return WorkMessage{}, false, nil
	}
	code := domain.ParseCategoryCode(m[1])
	if code == domain.CategoryUnrecognized {
		return WorkMessage{}, false, nil
	}

	canonical, err := phone.Normalize(m[2])
	if err != nil {
		return WorkMessage{}, true, apperr.Validation("Could not read the phone number.").WithOp("parser.work").WithUsage(WorkUsage)
	}
	return WorkMessage{Category: code, Phone: canonical, Note: note}, true, nil
}

// InfoQuery is a parsed "/info <phone>, <days>" request.
type InfoQuery struct {
	Phone string
	Days  int
}

// ParseInfoCommand recognizes "/info <phone>, <days>" (also "/info@botname").
// ok is false when the text is not an /info command.
func ParseInfoCommand(text string) (InfoQuery, bool, error) {
	m := infoCommandRegex.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return InfoQuery{}, false, nil
	}
	q, err := ParseInfoArgs(m[1])
	return q, true, err
}

// ParseInfoArgs parses the "<phone>, <days>" argument part, as delivered by
// slash-command transports.
func ParseInfoArgs(args string) (InfoQuery, error) {
	args = strings.TrimSpace(args)
	m := infoArgsRegex.FindStringSubmatch(args)
	if m == nil {
		return InfoQuery{}, apperr.Validation("Wrong /info format.").WithOp("parser.info").WithUsage(InfoUsage)
	}

	days, err := strconv.Atoi(m[2])
	if err != nil || days < 0 || days > maxInfoDays {
		return InfoQuery{}, apperr.Validation("Days must be a non-negative whole number.").WithOp("parser.info").WithUsage(InfoUsage)
	}

	canonical, err := phone.Normalize(m[1])
	if err != nil {
		return InfoQuery{}, apperr.Validation("Could not read the phone number.").WithOp("parser.info").WithUsage(InfoUsage)
	}
	return InfoQuery{Phone: canonical, Days: days}, nil
}
