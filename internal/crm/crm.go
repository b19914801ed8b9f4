// Package crm defines the shapes exchanged with the lead store.
// The store itself is an opaque remote collaborator; only what the queue and
// coordinator consume or produce is modeled here.
package crm

// Record is a raw lead record as returned by a list fetch. Field names follow
// the store's API names; anything not requested comes back empty.
type Record struct {
	ID         string `json:"id"`
	FirstName  string `json:"First_Name"`
	LastName   string `json:"Last_Name"`
	FullName   string `json:"Full_Name"`
	Phone      string `json:"Phone"`
	Company    string `json:"Company"`
	LeadStatus string `json:"Lead_Status"`
	Email      string `json:"Email"`
}

// View is a server-defined filtered/sorted lead list.
type View struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// PageSelector addresses one page of a view. Exactly one of Page or PageToken
// is used, depending on the pagination mode the upstream dictated.
type PageSelector struct {
	Page      int
	PageToken string
}

// RecordPage is the result of one list fetch.
type RecordPage struct {
	Records []Record

	// MoreKnown is true when the store reported more_records explicitly.
	// When false the caller falls back to the page-fullness heuristic.
	MoreKnown bool
	More      bool

	// NextPageToken, when present, switches the view to token pagination.
	NextPageToken string
}

// Note is a free-text note attached to a lead.
type Note struct {
	LeadID  string
	Title   string
	Content string
}

// CallLog describes a completed outbound call to be logged on a lead.
type CallLog struct {
	LeadID       string
	Subject      string
	StartedAtISO string
	DurationHHMM string
	Result       string
}

// StatusUpdate changes a lead's status label.
type StatusUpdate struct {
	LeadID string
	Status string
}
