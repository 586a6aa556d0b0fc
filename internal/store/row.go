package store

// Row is one data row. Index is the zero-based position below the header.
// Field access is case- and whitespace-insensitive.
type Row struct {
	Index  int
	header []string
	values map[string]string
}

// NewRow builds a row from cells laid out in header order
func NewRow(index int, header []string, cells []string) *Row {
	r := &Row{
		Index:  index,
		header: header,
		values: make(map[string]string, len(header)),
	}
	for i, h := range header {
		if i < len(cells) {
			r.values[Normalise(h)] = cells[i]
		}
	}
	return r
}

// Get returns a field value, or "" if absent
func (r *Row) Get(field string) string {
	return r.values[Normalise(field)]
}

// Set stages a field value; it is persisted by Table.SaveRow.
// Fields not in the header are not persisted.
func (r *Row) Set(field, value string) {
	r.values[Normalise(field)] = value
}

// Cells returns the row's values in header order
func (r *Row) Cells() []string {
	cells := make([]string, len(r.header))
	for i, h := range r.header {
		cells[i] = r.values[Normalise(h)]
	}
	return cells
}

// Record returns the row's values keyed by header name
func (r *Row) Record() Record {
	rec := make(Record, len(r.header))
	for _, h := range r.header {
		rec[h] = r.values[Normalise(h)]
	}
	return rec
}

// Cells lays out a record in header order, leaving unknown columns blank
func Cells(header []string, record Record) []string {
	byColumn := make(map[string]string, len(record))
	for k, v := range record {
		byColumn[Normalise(k)] = v
	}

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = byColumn[Normalise(h)]
	}
	return cells
}

// ColumnName converts a one-based column number to its A1 letters
func ColumnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}
