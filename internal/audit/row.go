package audit

import "time"

// Columns is the column order of every row written to a tabular store.
var Columns = []string{
	"task_id",
	"commanded_by",
	"executed_by",
	"action_type",
	"content",
	"timestamp",
	"status",
}

// Row is one audit record. The first seven fields map to the spreadsheet columns A:G.
type Row struct {
	TaskID      string `json:"task_id" db:"task_id"`
	CommandedBy string `json:"commanded_by" db:"commanded_by"`
	ExecutedBy  string `json:"executed_by" db:"executed_by"`
	ActionType  string `json:"action_type" db:"action_type"`
	Content     string `json:"content" db:"content"`
	Timestamp   string `json:"timestamp" db:"timestamp"`
	Status      string `json:"status" db:"status"`

	// RecordedAt is the UTC instant the row was built; not part of the sheet columns
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
	// RequestID correlates the row with the HTTP request log line
	RequestID string `json:"request_id,omitempty" db:"request_id"`
}

// Values returns the seven column values in Columns order.
func (r *Row) Values() []interface{} {
	return []interface{}{
		r.TaskID,
		r.CommandedBy,
		r.ExecutedBy,
		r.ActionType,
		r.Content,
		r.Timestamp,
		r.Status,
	}
}
