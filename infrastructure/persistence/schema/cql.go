package schema

import (
	"fmt"
	"strings"
)

// KeyspaceCQL renders the CREATE KEYSPACE statement
func (r *Registry) KeyspaceCQL() string {
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = {'class': '%s', 'replication_factor': %d}",
		QuoteIdent(r.keyspace.Name), r.keyspace.ReplicationClass, r.keyspace.ReplicationFactor)
}

// TypeCQL renders the CREATE TYPE statement for a user type
func (r *Registry) TypeCQL(ut *UserType) string {
	fields := make([]string, 0, len(ut.Fields))
	for _, f := range ut.Fields {
		fields = append(fields, fmt.Sprintf("%s %s", QuoteIdent(f.Name), f.Type))
	}
	return fmt.Sprintf("CREATE TYPE IF NOT EXISTS %s.%s (%s)",
		QuoteIdent(r.keyspace.Name), QuoteIdent(ut.Name), strings.Join(fields, ", "))
}

// TableCQL renders the CREATE TABLE statement for a table
func (r *Registry) TableCQL(t *Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (", QuoteIdent(r.keyspace.Name), QuoteIdent(t.Name))
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "%s %s, ", QuoteIdent(c.Name), c.Type)
	}

	partition := quoteAll(t.PartitionKey)
	clustering := make([]string, 0, len(t.Clustering))
	for _, c := range t.Clustering {
		clustering = append(clustering, QuoteIdent(c.Name))
	}
	key := "(" + strings.Join(partition, ", ") + ")"
	if len(clustering) > 0 {
		key += ", " + strings.Join(clustering, ", ")
	}
	fmt.Fprintf(&b, "PRIMARY KEY (%s))", key)

	if len(t.Clustering) > 0 {
		orders := make([]string, 0, len(t.Clustering))
		for _, c := range t.Clustering {
			orders = append(orders, fmt.Sprintf("%s %s", QuoteIdent(c.Name), strings.ToUpper(string(c.Order))))
		}
		fmt.Fprintf(&b, " WITH CLUSTERING ORDER BY (%s)", strings.Join(orders, ", "))
	}
	return b.String()
}

// CQL renders the whole schema: keyspace, types, then tables
func (r *Registry) CQL() []string {
	stmts := []string{r.KeyspaceCQL()}
	for _, ut := range r.UserTypes() {
		stmts = append(stmts, r.TypeCQL(ut))
	}
	for _, t := range r.Tables() {
		stmts = append(stmts, r.TableCQL(t))
	}
	return stmts
}

// QuoteIdent quotes an identifier unless it is a plain lower-case name
func QuoteIdent(s string) string {
	if isSafeIdent(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, QuoteIdent(n))
	}
	return out
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			if i == 0 && (r >= '0' && r <= '9') {
				return false
			}
			continue
		}
		return false
	}
	return true
}
