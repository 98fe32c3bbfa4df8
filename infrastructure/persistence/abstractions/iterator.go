package abstractions

// SliceIterator walks a materialized result set
type SliceIterator struct {
	rows   []Row
	pos    int
	err    error
	closed bool
}

// NewSliceIterator returns an iterator over rows
func NewSliceIterator(rows []Row) *SliceIterator {
	return &SliceIterator{rows: rows, pos: -1}
}

// ErrorIterator returns an iterator that yields nothing and reports err
func ErrorIterator(err error) *SliceIterator {
	return &SliceIterator{pos: -1, err: err}
}

func (it *SliceIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if it.pos+1 >= len(it.rows) {
		it.pos = len(it.rows)
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Row() Row {
	if it.pos < 0 || it.pos >= len(it.rows) {
		return nil
	}
	return it.rows[it.pos]
}

func (it *SliceIterator) Err() error {
	return it.err
}

func (it *SliceIterator) Close() error {
	it.closed = true
	return nil
}

// Collect drains up to max rows from it (all rows when max <= 0) and closes it
func Collect(it Iterator, max int) ([]Row, error) {
	defer it.Close()

	var rows []Row
	for it.Next() {
		rows = append(rows, it.Row())
		if max > 0 && len(rows) >= max {
			break
		}
	}
	if err := it.Err(); err != nil {
		return rows, err
	}
	return rows, nil
}

// limitIterator stops after n rows
type limitIterator struct {
	Iterator
	remaining int
}

// Limit wraps it so that at most n rows are returned. n <= 0 means unbounded.
func Limit(it Iterator, n int) Iterator {
	if n <= 0 {
		return it
	}
	return &limitIterator{Iterator: it, remaining: n}
}

func (l *limitIterator) Next() bool {
	if l.remaining <= 0 {
		return false
	}
	if !l.Iterator.Next() {
		return false
	}
	l.remaining--
	return true
}
