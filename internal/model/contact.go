package model

import (
	"strings"
	"time"
)

// ----------------------------------------------------
// ================ Contacts ================

// Contact is a committed address-book entry.
type Contact struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Birthday      string    `json:"birthday,omitempty"`
	FamilyMembers string    `json:"family_members,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ContactField names one of the six collectable contact attributes.
type ContactField string

const (
	FieldName          ContactField = "name"
	FieldPhone         ContactField = "phone"
	FieldEmail         ContactField = "email"
	FieldBirthday      ContactField = "birthday"
	FieldFamilyMembers ContactField = "family_members"
	FieldDescription   ContactField = "description"
)

// RequiredContactFields is the fixed order used for completeness checks and prompts.
var RequiredContactFields = []ContactField{
	FieldName,
	FieldPhone,
	FieldEmail,
	FieldBirthday,
	FieldFamilyMembers,
	FieldDescription,
}

// Prompt returns the human readable label shown in missing-field replies.
func (f ContactField) Prompt() string {
	switch f {
	case FieldName:
		return "Full name"
	case FieldPhone:
		return "Phone number"
	case FieldEmail:
		return "Email address"
	case FieldBirthday:
		return "Birthday (YYYY-MM-DD)"
	case FieldFamilyMembers:
		return "Family members"
	case FieldDescription:
		return "Description"
	default:
		return string(f)
	}
}

// ContactDraft is a partially filled contact. An empty string means absent.
type ContactDraft struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Birthday      string `json:"birthday"`
	FamilyMembers string `json:"family_members"`
	Description   string `json:"description"`
}

// Get returns the value stored for f.
func (d ContactDraft) Get(f ContactField) string {
	switch f {
	case FieldName:
		return d.Name
	case FieldPhone:
		return d.Phone
	case FieldEmail:
		return d.Email
	case FieldBirthday:
		return d.Birthday
	case FieldFamilyMembers:
		return d.FamilyMembers
	case FieldDescription:
		return d.Description
	}
	return ""
}

func (d *ContactDraft) set(f ContactField, v string) {
	switch f {
	case FieldName:
		d.Name = v
	case FieldPhone:
		d.Phone = v
	case FieldEmail:
		d.Email = v
	case FieldBirthday:
		d.Birthday = v
	case FieldFamilyMembers:
		d.FamilyMembers = v
	case FieldDescription:
		d.Description = v
	}
}

// Merge fills only the fields of d that are still absent, taking values from
// incoming. Values already present win.
func (d ContactDraft) Merge(incoming ContactDraft) ContactDraft {
	out := d
	for _, f := range RequiredContactFields {
		if strings.TrimSpace(out.Get(f)) != "" {
			continue
		}
		if v := strings.TrimSpace(incoming.Get(f)); v != "" {
			out.set(f, v)
		}
	}
	return out
}

// Missing lists the required fields that are still absent, in canonical order.
func (d ContactDraft) Missing() []ContactField {
	var missing []ContactField
	for _, f := range RequiredContactFields {
		if strings.TrimSpace(d.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// IsEmpty reports whether no field is present.
func (d ContactDraft) IsEmpty() bool {
	return len(d.Missing()) == len(RequiredContactFields)
}

// ToContact converts a draft into a contact ready for insertion.
func (d ContactDraft) ToContact() Contact {
	return Contact{
		Name:          d.Name,
		Phone:         d.Phone,
		Email:         d.Email,
		Birthday:      d.Birthday,
		FamilyMembers: d.FamilyMembers,
		Description:   d.Description,
	}
}

// ----------------------------------------------------
// ================ Interactions ================

// Interaction is a timestamped note attached to a contact.
type Interaction struct {
	ID          string    `json:"id"`
	ContactID   string    `json:"contact_id"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
	ContactName string    `json:"contact_name,omitempty"`
}

// InteractionFilter selects interactions for a query. Zero values mean unbounded.
type InteractionFilter struct {
	ContactIDs []string
	Start      *time.Time
	End        *time.Time
	Sort       SortOrder
	Limit      int
}

// ----------------------------------------------------
// ================ Corrections ================

// CorrectionRecord is an append-only audit row for a user-corrected classification.
type CorrectionRecord struct {
	ID            string    `json:"id"`
	Message       string    `json:"message"`
	OriginalLabel Label     `json:"original_label"`
	CorrectLabel  Label     `json:"correct_label"`
	CreatedAt     time.Time `json:"created_at"`
}
