package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"go.uber.org/zap"
)

// DefaultMaxBatch bounds atomic batches the same way the remote engines do
const DefaultMaxBatch = 25

// FaultFunc is consulted before every write. Returning an error fails the
// write (or the whole batch) without applying anything.
type FaultFunc func(kind abstractions.StatementKind, table string) error

// Session is an in-process wide-column store. Partitions are kept sorted in
// clustering order so reads behave like the remote engines.
type Session struct {
	validator *abstractions.Validator
	logger    *zap.Logger
	maxBatch  int

	mu     sync.RWMutex
	tables map[string]map[string]*partition
	types  map[string]bool
	fault  FaultFunc
	closed bool
}

type partition struct {
	rows []abstractions.Row
}

// NewSession creates an empty in-memory store over reg
func NewSession(reg *schema.Registry, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		validator: abstractions.NewValidator(reg),
		logger:    logger,
		maxBatch:  DefaultMaxBatch,
		tables:    make(map[string]map[string]*partition),
		types:     make(map[string]bool),
	}
}

// NewBootstrappedSession creates a session with every registry table defined
func NewBootstrappedSession(reg *schema.Registry, logger *zap.Logger) *Session {
	s := NewSession(reg, logger)
	if err := schema.NewBootstrap(reg, s).Migrate(context.Background(), 2); err != nil {
		panic(fmt.Sprintf("memory: bootstrap failed: %v", err))
	}
	return s
}

// SetMaxBatch changes the batch size limit
func (s *Session) SetMaxBatch(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBatch = n
}

// SetFault installs (or clears, with nil) a write fault hook
func (s *Session) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// CreateType records a user type
func (s *Session) CreateType(ctx context.Context, ut *schema.UserType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[ut.Name] = true
	return nil
}

// CreateTable defines a table. Defining an existing table is a no-op.
func (s *Session) CreateTable(ctx context.Context, t *schema.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[t.Name]; !ok {
		s.tables[t.Name] = make(map[string]*partition)
		s.logger.Debug("table created", zap.String("table", t.Name))
	}
	return nil
}

func (s *Session) Upsert(ctx context.Context, table string, row abstractions.Row) error {
	return s.write(ctx, abstractions.UpsertStmt(table, row))
}

func (s *Session) Append(ctx context.Context, table string, row abstractions.Row) error {
	return s.write(ctx, abstractions.AppendStmt(table, row))
}

func (s *Session) Increment(ctx context.Context, table string, key abstractions.Row, deltas map[string]int64) error {
	return s.write(ctx, abstractions.IncrementStmt(table, key, deltas))
}

func (s *Session) Delete(ctx context.Context, table string, key abstractions.Row) error {
	return s.write(ctx, abstractions.DeleteStmt(table, key))
}

func (s *Session) write(ctx context.Context, st abstractions.Statement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	checked, table, err := s.validator.CheckStatement(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.precheck(checked); err != nil {
		return err
	}
	return s.apply(table, checked)
}

// Batch applies every statement or none
func (s *Session) Batch(ctx context.Context, stmts []abstractions.Statement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	limit := s.maxBatch
	s.mu.RUnlock()

	checked, err := s.validator.CheckBatch(stmts, limit)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range checked {
		if err := s.precheck(st); err != nil {
			return err
		}
		if st.Kind == abstractions.KindAppend {
			table, _ := s.validator.Registry().Table(st.Table)
			if _, exists := s.find(table, st.Row); exists {
				return abstractions.ErrRowExists
			}
		}
	}
	for _, st := range checked {
		table, _ := s.validator.Registry().Table(st.Table)
		if err := s.apply(table, st); err != nil {
			return err
		}
	}
	return nil
}

// precheck runs with s.mu held
func (s *Session) precheck(st abstractions.Statement) error {
	if s.closed {
		return abstractions.ErrClosed
	}
	if _, ok := s.tables[st.Table]; !ok {
		return fmt.Errorf("table %s has not been created", st.Table)
	}
	if s.fault != nil {
		if err := s.fault(st.Kind, st.Table); err != nil {
			return err
		}
	}
	return nil
}

// apply runs with s.mu held
func (s *Session) apply(table *schema.Table, st abstractions.Statement) error {
	part := s.partition(table, st.Row)
	idx, exists := s.locate(table, part, st.Row)

	switch st.Kind {
	case abstractions.KindDelete:
		if exists {
			part.rows = append(part.rows[:idx], part.rows[idx+1:]...)
		}
		return nil
	case abstractions.KindUpsert:
		if exists {
			part.rows[idx] = st.Row.Clone()
			return nil
		}
	case abstractions.KindAppend:
		if exists {
			return abstractions.ErrRowExists
		}
	case abstractions.KindIncrement:
		if exists {
			row := part.rows[idx]
			for name, d := range st.Deltas {
				cur, _ := row[name].(int64)
				row[name] = cur + d
			}
			return nil
		}
		row := st.Row.Clone()
		for _, c := range table.RegularColumns() {
			row[c.Name] = st.Deltas[c.Name]
		}
		st.Row = row
	}

	part.rows = append(part.rows, nil)
	copy(part.rows[idx+1:], part.rows[idx:])
	part.rows[idx] = st.Row.Clone()
	return nil
}

func (s *Session) partition(table *schema.Table, row abstractions.Row) *partition {
	parts := s.tables[table.Name]
	key := partitionKey(table, row)
	p, ok := parts[key]
	if !ok {
		p = &partition{}
		parts[key] = p
	}
	return p
}

func (s *Session) find(table *schema.Table, row abstractions.Row) (abstractions.Row, bool) {
	p, ok := s.tables[table.Name][partitionKey(table, row)]
	if !ok {
		return nil, false
	}
	idx, exists := s.locate(table, p, row)
	if !exists {
		return nil, false
	}
	return p.rows[idx], true
}

// locate finds the insertion point of row in clustering order
func (s *Session) locate(table *schema.Table, p *partition, row abstractions.Row) (int, bool) {
	idx := sort.Search(len(p.rows), func(i int) bool {
		return abstractions.CompareRows(table, p.rows[i], row) >= 0
	})
	return idx, idx < len(p.rows) && abstractions.CompareRows(table, p.rows[idx], row) == 0
}

// Query snapshots the matching rows of one partition
func (s *Session) Query(ctx context.Context, q abstractions.Query) (abstractions.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pq, err := s.validator.Prepare(q)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, abstractions.ErrClosed
	}
	parts, ok := s.tables[pq.Table.Name]
	if !ok {
		return nil, fmt.Errorf("table %s has not been created", pq.Table.Name)
	}
	p, ok := parts[partitionKey(pq.Table, pq.Partition)]
	if !ok {
		return abstractions.NewSliceIterator(nil), nil
	}

	var rows []abstractions.Row
	for i := range p.rows {
		row := p.rows[i]
		if pq.Reverse {
			row = p.rows[len(p.rows)-1-i]
		}
		if !pq.Matches(row) {
			continue
		}
		rows = append(rows, row.Clone())
		if pq.Limit > 0 && len(rows) >= pq.Limit {
			break
		}
	}
	return abstractions.NewSliceIterator(rows), nil
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func partitionKey(table *schema.Table, row abstractions.Row) string {
	parts := make([]string, 0, len(table.PartitionKey))
	for _, v := range abstractions.PartitionKeyOf(table, row) {
		switch x := v.(type) {
		case time.Time:
			parts = append(parts, x.UTC().Format(time.RFC3339Nano))
		default:
			parts = append(parts, fmt.Sprint(x))
		}
	}
	return strings.Join(parts, "\x00")
}
