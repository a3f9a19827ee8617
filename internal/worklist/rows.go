package worklist

import (
	"sort"
	"strings"
)

// Row is a record as the store holds it: the status is the literal cell
// text, not yet classified. Database backends persist rows in this shape.
type Row struct {
	Position   int
	Name       string
	Phone      string
	ExternalID string
	LastLogin  string
	Status     string
}

// Record classifies the row's status against schema.
func (r Row) Record(schema Schema) Record {
	return Record{
		Position:   r.Position,
		Name:       r.Name,
		Phone:      r.Phone,
		ExternalID: r.ExternalID,
		LastLogin:  r.LastLogin,
		Status:     schema.Classify(r.Status),
	}
}

// RowsFromTable extracts rows from a header and the cells below it. Short
// rows are padded with empty cells; fully blank rows keep their position so
// row numbers stay aligned with the source sheet.
func RowsFromTable(header []string, cells [][]string, cols Columns) ([]Row, error) {
	idx, err := ColumnIndex(header, cols)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(cells))
	for i, line := range cells {
		cell := func(col int) string {
			if col < 0 || col >= len(line) {
				return ""
			}
			return strings.TrimSpace(line[col])
		}
		rows = append(rows, Row{
			Position:   i + FirstPosition,
			Name:       cell(idx.Name),
			Phone:      cell(idx.Phone),
			ExternalID: cell(idx.ID),
			LastLogin:  cell(idx.LastLogin),
			Status:     cell(idx.Status),
		})
	}
	return rows, nil
}

// FromRows classifies rows into a snapshot ordered by position.
func FromRows(rows []Row, schema Schema) Snapshot {
	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Record(schema))
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Position < records[j].Position })
	return Snapshot{Records: records}
}
