package record

// Table is the tabular projection of a Record: one row per timestep, one
// column per metric. Rows are indexed by (Run, Index[i]).
type Table struct {
	Run     string
	Index   []float64
	Columns []string
	Rows    [][]Scalar
}

// ToTable projects the record's series into a Table.
func (r *Record) ToTable() Table {
	t := Table{
		Run:     r.Name,
		Index:   append([]float64(nil), r.Timesteps...),
		Columns: append([]string(nil), r.Metrics...),
		Rows:    make([][]Scalar, len(r.Timesteps)),
	}
	for i := range r.Timesteps {
		row := make([]Scalar, len(r.Metrics))
		for j, name := range r.Metrics {
			if values := r.Series[name]; i < len(values) {
				row[j] = values[i]
			}
		}
		t.Rows[i] = row
	}
	return t
}

// Shape returns the number of rows and columns.
func (t Table) Shape() (rows, cols int) {
	return len(t.Rows), len(t.Columns)
}

// Column returns the values of one metric, or false if absent.
func (t Table) Column(name string) ([]Scalar, bool) {
	idx := -1
	for j, c := range t.Columns {
		if c == name {
			idx = j
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	out := make([]Scalar, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}
