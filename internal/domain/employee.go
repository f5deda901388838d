package domain

import (
	"fmt"
	"strings"
)

type Employee struct {
	ChatUserID       string
	Name             string
	CRMResponsibleID int
}

// Directory maps chat user ids to employees. Immutable after NewDirectory.
type Directory struct {
	byChatID             map[string]Employee
	defaultResponsibleID int
}

func NewDirectory(employees []Employee, defaultResponsibleID int) (*Directory, error) {
	d := &Directory{
		byChatID:             make(map[string]Employee, len(employees)),
		defaultResponsibleID: defaultResponsibleID,
	}
	for _, e := range employees {
		id := strings.TrimSpace(e.ChatUserID)
		if id == "" {
			return nil, fmt.Errorf("employee %q has no chat user id", e.Name)
		}
		if _, dup := d.byChatID[id]; dup {
			return nil, fmt.Errorf("duplicate employee chat user id %s", id)
		}
		e.ChatUserID = id
		e.Name = strings.TrimSpace(e.Name)
		d.byChatID[id] = e
	}
	return d, nil
}

// Lookup returns the configured employee, or one built from the chat display
// name and the default responsible id for unknown users.
func (d *Directory) Lookup(chatUserID, fallbackName string) (Employee, bool) {
	if e, ok := d.byChatID[strings.TrimSpace(chatUserID)]; ok {
		return e, true
	}
	name := strings.TrimSpace(fallbackName)
	if name == "" {
		name = chatUserID
	}
	return Employee{
		ChatUserID:       chatUserID,
		Name:             name,
		CRMResponsibleID: d.defaultResponsibleID,
	}, false
}

func (d *Directory) Len() int {
	return len(d.byChatID)
}
