// Package resolve maps a free-text name fragment onto stored contacts.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/storage"
)

// Kind classifies a lookup.
type Kind int

const (
	NoMatch Kind = iota
	UniqueMatch
	AmbiguousMatch
)

func (k Kind) String() string {
	switch k {
	case UniqueMatch:
		return "unique"
	case AmbiguousMatch:
		return "ambiguous"
	default:
		return "none"
	}
}

// Resolution is the outcome of resolving a fragment.
type Resolution struct {
	Kind       Kind
	Fragment   string
	Contact    model.Contact
	Candidates []model.Contact
}

// Names lists candidate names in store order.
func (r Resolution) Names() []string {
	names := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		names = append(names, c.Name)
	}
	return names
}

// IDs lists candidate ids in store order.
func (r Resolution) IDs() []string {
	ids := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

// Resolver performs case-insensitive substring lookups. It never writes;
// what to do on a miss is the caller's decision.
type Resolver struct {
	contacts storage.ContactStore
}

func New(contacts storage.ContactStore) *Resolver {
	return &Resolver{contacts: contacts}
}

// Resolve looks fragment up. A blank fragment is always NoMatch.
func (r *Resolver) Resolve(ctx context.Context, fragment string) (Resolution, error) {
	fragment = strings.TrimSpace(fragment)
	res := Resolution{Kind: NoMatch, Fragment: fragment}
	if fragment == "" {
		return res, nil
	}

	found, err := r.contacts.FindContacts(ctx, fragment)
	if err != nil {
		return res, fmt.Errorf("resolving %q: %w", fragment, err)
	}

	res.Candidates = found
	switch len(found) {
	case 0:
		res.Kind = NoMatch
	case 1:
		res.Kind = UniqueMatch
		res.Contact = found[0]
	default:
		res.Kind = AmbiguousMatch
	}
	return res, nil
}

// AmbiguityReply asks the user to disambiguate between the candidates.
func AmbiguityReply(res Resolution) string {
	return fmt.Sprintf("Found multiple contacts: %s. Please be more specific (e.g. full name or email).",
		strings.Join(res.Names(), ", "))
}
