// Package row converts one decoded CSV record into a canonical key-value
// document and derives its content fingerprint. The fingerprint depends
// only on the header/value pairs, never on column order or on which file
// the record came from.
package row

import (
	"encoding/json"
	"strings"

	"github.com/civicdata/survload/internal/str"
	"github.com/gnames/gnuuid"
)

// Filter is the per-deployment row filter. A row is discarded before any
// identity or answer work when the trash indicator column is truthy, or
// the status column is present and not the kept value.
type Filter struct {
	// Disabled switches row filtering off entirely.
	Disabled bool `yaml:"disabled"`

	// TrashColumn is a boolean indicator column; default "trashed".
	TrashColumn string `yaml:"trash_column"`

	// StatusColumn holds a moderation status; default "trashedStatus".
	StatusColumn string `yaml:"status_column"`

	// KeptValue is the accepted status; default "kept".
	KeptValue string `yaml:"kept_value"`
}

func (f Filter) withDefaults() Filter {
	if f.TrashColumn == "" {
		f.TrashColumn = "trashed"
	}
	if f.StatusColumn == "" {
		f.StatusColumn = "trashedStatus"
	}
	if f.KeptValue == "" {
		f.KeptValue = "kept"
	}
	return f
}

// Doc is the normalized document of one record: every header mapped to its
// trimmed raw value, missing cells absent rather than null-padded. Cells
// keep header order for iteration; identity ignores it.
type Doc struct {
	keys []string
	vals map[string]string
}

// New builds a Doc from a header list and a record. Records shorter than
// the header list are tolerated; surplus cells are dropped.
func New(headers, record []string) Doc {
	d := Doc{
		keys: make([]string, 0, len(headers)),
		vals: make(map[string]string, len(headers)),
	}
	for i, h := range headers {
		if i >= len(record) {
			break
		}
		k := strings.TrimSpace(h)
		if k == "" {
			continue
		}
		d.keys = append(d.keys, k)
		d.vals[k] = strings.TrimSpace(record[i])
	}
	return d
}

// Get returns the value of a column, empty when the cell is absent.
func (d Doc) Get(col string) string {
	return d.vals[col]
}

// Has reports whether the column exists in the document.
func (d Doc) Has(col string) bool {
	_, ok := d.vals[col]
	return ok
}

// Len returns the number of cells.
func (d Doc) Len() int {
	return len(d.keys)
}

// CanonicalJSON serializes the document deterministically: a JSON object
// with keys in lexical order. Two documents with the same header/value
// pairs produce identical bytes. encoding/json is used here on purpose;
// it guarantees sorted map keys, which jsoniter-backed encoders do not.
func (d Doc) CanonicalJSON() ([]byte, error) {
	return json.Marshal(d.vals)
}

// Fingerprint is the content fingerprint of the document: a UUID v5
// derived from the canonical JSON. It is the contribution's dedup key.
func (d Doc) Fingerprint() (string, error) {
	bs, err := d.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return gnuuid.New(string(bs)).String(), nil
}

// Trashed reports whether the row filter discards this document.
func (d Doc) Trashed(f Filter) bool {
	if f.Disabled {
		return false
	}
	f = f.withDefaults()
	if str.Truthy(d.Get(f.TrashColumn)) {
		return true
	}
	status := strings.ToLower(d.Get(f.StatusColumn))
	return status != "" && status != strings.ToLower(f.KeptValue)
}
