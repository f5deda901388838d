// Package crm resolves customers and records interactions in the CRM. It
// talks to the CRM only through the interfaces below; the wire client lives
// in internal/integrations/bitrix.
package crm

import (
	"context"
	"log"

	"worklogbot/internal/domain"
	"worklogbot/internal/phone"
)

const defaultMaxPages = 50

// ContactPage is one page of a filtered contact listing. When More is set,
// Next is the cursor for the following request.
type ContactPage struct {
	Contacts []domain.Contact
	Next     int
	More     bool
}

type ContactDirectory interface {
	ListContacts(ctx context.Context, phoneFilter string, start int) (ContactPage, error)
}

// Resolver finds the CRM contact that owns a canonical phone number.
type Resolver struct {
	dir      ContactDirectory
	maxPages int
}

func NewResolver(dir ContactDirectory, maxPages int) *Resolver {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Resolver{dir: dir, maxPages: maxPages}
}

// Resolve pages through every candidate the CRM filter returns, then accepts
// the first contact that has a phone equal to canonical digit-for-digit. The
// CRM filter alone is not trusted. Lookup failures are logged and reported
// as no match.
func (r *Resolver) Resolve(ctx context.Context, canonical string) (*domain.Contact, bool) {
	var candidates []domain.Contact
	start := 0
	pages := 0
	for {
		page, err := r.dir.ListContacts(ctx, canonical, start)
		if err != nil {
			log.Printf("crm contact-lookup error phone=%s start=%d: %v", canonical, start, err)
			return nil, false
		}
		pages++
		candidates = append(candidates, page.Contacts...)
		if !page.More {
			break
		}
		if pages >= r.maxPages {
			log.Printf("crm contact-lookup page cap reached phone=%s pages=%d candidates=%d", canonical, pages, len(candidates))
			break
		}
		if page.Next <= start {
			log.Printf("crm contact-lookup cursor did not advance phone=%s start=%d next=%d", canonical, start, page.Next)
			break
		}
		start = page.Next
	}

	want := phone.Clean(canonical)
	for i := range candidates {
		for _, p := range candidates[i].Phones {
			if samePhone(p, want) {
				c := candidates[i]
				log.Printf("crm contact-lookup matched phone=%s contact=%s pages=%d candidates=%d", canonical, c.ID, pages, len(candidates))
				return &c, true
			}
		}
	}
	log.Printf("crm contact-lookup no exact match phone=%s pages=%d candidates=%d", canonical, pages, len(candidates))
	return nil, false
}

// samePhone compares a stored CRM phone against the wanted digits. Stored
// numbers in local form (0631234567) are normalized before comparing.
func samePhone(stored, wantDigits string) bool {
	if phone.Clean(stored) == wantDigits {
		return true
	}
	normalized, err := phone.Normalize(stored)
	if err != nil {
		return false
	}
	return phone.Clean(normalized) == wantDigits
}
