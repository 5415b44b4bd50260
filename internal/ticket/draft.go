// Package ticket defines the Halo ITSM ticket payload and the extractor
// that recovers one from free-form LLM output.
package ticket

// Ticket type IDs recognized by the Halo instance.
const (
	TypeIncident = 1
	TypeRequest  = 3
)

// Custom field IDs fixed by the Halo instance configuration.
const (
	FieldImpact  = 165 // values "1".."4": Global/VIP .. Individual User
	FieldUrgency = 166 // values "1".."4": Unable to work .. Would assist work
)

// CustomField is one {id, value} pair in a ticket's customfields list.
// Order is preserved as produced by the LLM.
type CustomField struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

// Draft is a support ticket as submitted to the Halo tickets endpoint.
// JSON tags match the Halo wire names exactly; the submission body is a
// one-element array wrapping this object.
type Draft struct {
	Summary      string        `json:"summary"`
	DetailsHTML  string        `json:"details_html"`
	TicketTypeID int           `json:"tickettype_id"`
	TeamID       int           `json:"team_id"`
	UserID       int           `json:"user_id"`
	CustomFields []CustomField `json:"customfields"`
}

// CustomField returns the value of the custom field with the given ID.
func (d *Draft) CustomField(id int) (string, bool) {
	for _, f := range d.CustomFields {
		if f.ID == id {
			return f.Value, true
		}
	}
	return "", false
}
