package model

// SortOrder orders interactions by timestamp.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// QueryPlan is the structured form of an interaction query. Every key is
// always serialized; nil means the constraint is absent.
type QueryPlan struct {
	ContactName *string    `json:"contact_name"`
	StartDate   *string    `json:"start_date"`
	EndDate     *string    `json:"end_date"`
	Limit       *int       `json:"limit"`
	Sort        *SortOrder `json:"sort"`
}

// SortOrDefault returns the plan's order, ascending when unset.
func (p QueryPlan) SortOrDefault() SortOrder {
	if p.Sort == nil || *p.Sort != SortDesc {
		return SortAsc
	}
	return SortDesc
}
