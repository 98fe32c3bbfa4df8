package cassandra

import (
	"context"
	"fmt"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/gocql/gocql"
	"go.uber.org/zap"
)

// Config holds cluster connection settings
type Config struct {
	Hosts       []string
	Consistency string
	Timeout     time.Duration
	PageSize    int
	MaxBatch    int
}

// Session runs statements against a Cassandra cluster
type Session struct {
	session   *gocql.Session
	keyspace  string
	pageSize  int
	maxBatch  int
	validator *abstractions.Validator
	reg       *schema.Registry
	logger    *zap.Logger
}

// Open connects to the cluster and makes sure the keyspace exists
func Open(ctx context.Context, cfg Config, reg *schema.Registry, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = parseConsistency(cfg.Consistency)
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}

	gs, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}

	s := &Session{
		session:   gs,
		keyspace:  reg.Keyspace().Name,
		pageSize:  cfg.PageSize,
		maxBatch:  cfg.MaxBatch,
		validator: abstractions.NewValidator(reg),
		reg:       reg,
		logger:    logger,
	}
	if s.pageSize <= 0 {
		s.pageSize = 100
	}

	if err := gs.Query(reg.KeyspaceCQL()).WithContext(ctx).Exec(); err != nil {
		gs.Close()
		return nil, fmt.Errorf("failed to create keyspace: %w", err)
	}

	logger.Info("Connected to Cassandra",
		zap.Strings("hosts", cfg.Hosts),
		zap.String("keyspace", s.keyspace),
		zap.String("consistency", cluster.Consistency.String()),
	)
	return s, nil
}

func parseConsistency(s string) gocql.Consistency {
	if s == "" {
		return gocql.LocalQuorum
	}
	c, err := gocql.ParseConsistencyWrapper(s)
	if err != nil {
		return gocql.LocalQuorum
	}
	return c
}

func (s *Session) CreateType(ctx context.Context, ut *schema.UserType) error {
	return s.session.Query(s.reg.TypeCQL(ut)).WithContext(ctx).Exec()
}

func (s *Session) CreateTable(ctx context.Context, t *schema.Table) error {
	return s.session.Query(s.reg.TableCQL(t)).WithContext(ctx).Exec()
}

func (s *Session) Upsert(ctx context.Context, table string, row abstractions.Row) error {
	checked, t, err := s.validator.CheckStatement(abstractions.UpsertStmt(table, row))
	if err != nil {
		return err
	}
	stmt := insertStatement(s.keyspace, t, checked)
	if err := s.session.Query(stmt.cql, stmt.args...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

// Append inserts with IF NOT EXISTS
func (s *Session) Append(ctx context.Context, table string, row abstractions.Row) error {
	checked, t, err := s.validator.CheckStatement(abstractions.AppendStmt(table, row))
	if err != nil {
		return err
	}
	stmt := insertStatement(s.keyspace, t, checked)
	applied, err := s.session.Query(stmt.cql, stmt.args...).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", table, err)
	}
	if !applied {
		return abstractions.ErrRowExists
	}
	return nil
}

func (s *Session) Delete(ctx context.Context, table string, key abstractions.Row) error {
	checked, t, err := s.validator.CheckStatement(abstractions.DeleteStmt(table, key))
	if err != nil {
		return err
	}
	stmt := deleteStatement(s.keyspace, t, checked)
	if err := s.session.Query(stmt.cql, stmt.args...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

func (s *Session) Increment(ctx context.Context, table string, key abstractions.Row, deltas map[string]int64) error {
	checked, t, err := s.validator.CheckStatement(abstractions.IncrementStmt(table, key, deltas))
	if err != nil {
		return err
	}
	stmt := counterStatement(s.keyspace, t, checked)
	if err := s.session.Query(stmt.cql, stmt.args...).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to increment %s: %w", table, err)
	}
	return nil
}

// Batch runs a logged batch. Lightweight transactions cannot span
// partitions, so appends inside a batch are written as plain inserts.
func (s *Session) Batch(ctx context.Context, stmts []abstractions.Statement) error {
	checked, err := s.validator.CheckBatch(stmts, s.maxBatch)
	if err != nil {
		return err
	}
	if len(checked) == 0 {
		return nil
	}

	b := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, st := range checked {
		t, _ := s.reg.Table(st.Table)
		var stmt statement
		if st.Kind == abstractions.KindDelete {
			stmt = deleteStatement(s.keyspace, t, st)
		} else {
			st.Kind = abstractions.KindUpsert
			stmt = insertStatement(s.keyspace, t, st)
		}
		b.Query(stmt.cql, stmt.args...)
	}
	if err := s.session.ExecuteBatch(b); err != nil {
		return fmt.Errorf("failed to execute batch of %d: %w", len(checked), err)
	}
	return nil
}

// Query pages through one partition lazily
func (s *Session) Query(ctx context.Context, q abstractions.Query) (abstractions.Iterator, error) {
	pq, err := s.validator.Prepare(q)
	if err != nil {
		return nil, err
	}
	stmt := selectStatement(s.keyspace, pq)
	iter := s.session.Query(stmt.cql, stmt.args...).
		WithContext(ctx).
		PageSize(s.pageSize).
		Iter()
	return &rowIterator{iter: iter, table: pq.Table, reg: s.reg}, nil
}

func (s *Session) Close() error {
	s.session.Close()
	return nil
}

type rowIterator struct {
	iter  *gocql.Iter
	table *schema.Table
	reg   *schema.Registry
	row   abstractions.Row
	err   error
	done  bool
}

func (it *rowIterator) Next() bool {
	if it.done {
		return false
	}
	raw := make(map[string]interface{}, len(it.table.Columns))
	if !it.iter.MapScan(raw) {
		it.finish()
		return false
	}

	row := make(abstractions.Row, len(raw))
	for _, c := range it.table.Columns {
		v, err := fromDriver(it.reg, c.Type, raw[c.Name])
		if err != nil {
			it.err = fmt.Errorf("column %s: %w", c.Name, err)
			it.finish()
			return false
		}
		if v != nil {
			row[c.Name] = v
		}
	}
	it.row = row
	return true
}

func (it *rowIterator) finish() {
	if it.done {
		return
	}
	it.done = true
	if err := it.iter.Close(); err != nil && it.err == nil {
		it.err = fmt.Errorf("failed to read %s: %w", it.table.Name, err)
	}
}

func (it *rowIterator) Row() abstractions.Row {
	return it.row
}

func (it *rowIterator) Err() error {
	return it.err
}

func (it *rowIterator) Close() error {
	it.finish()
	return it.err
}
