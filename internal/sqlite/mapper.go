// File path: internal/sqlite/mapper.go
package sqlite

import (
	"github.com/nicodishanthj/accelmatch/internal/corpus"
)

// RequestFields is the fixed ordered field list joined into request record
// texts. It matches the request CSV export columns.
var RequestFields = []string{
	"number",
	"capability",
	"company",
	"description",
	"initiative_title",
	"primary_category",
}

// ToRow converts a stored record to the corpus row shape.
func ToRow(rec RequestRecord) corpus.Row {
	return corpus.Row{
		"number":           rec.Number,
		"capability":       rec.Capability,
		"company":          rec.Company,
		"description":      rec.Description,
		"initiative_title": rec.InitiativeTitle,
		"primary_category": rec.PrimaryCategory,
	}
}

// FromRow converts a corpus row to a storable record. Missing fields map
// to empty column values.
func FromRow(row corpus.Row) RequestRecord {
	return RequestRecord{
		Number:          row["number"],
		Capability:      row["capability"],
		Company:         row["company"],
		Description:     row["description"],
		InitiativeTitle: row["initiative_title"],
		PrimaryCategory: row["primary_category"],
	}
}

// ToRows converts stored records preserving order.
func ToRows(records []RequestRecord) []corpus.Row {
	rows := make([]corpus.Row, len(records))
	for i, rec := range records {
		rows[i] = ToRow(rec)
	}
	return rows
}

// FromRows converts supplier rows preserving order.
func FromRows(rows []corpus.Row) []RequestRecord {
	records := make([]RequestRecord, len(rows))
	for i, row := range rows {
		records[i] = FromRow(row)
	}
	return records
}
