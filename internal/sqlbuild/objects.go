package sqlbuild

import (
	"fmt"
	"strings"
)

// qualifiedIdent escapes an optionally schema-qualified name
// (EMPLOYEES or HR.EMPLOYEES).
func qualifiedIdent(name string) (string, error) {
	parts := strings.SplitN(name, ".", 2)
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		e, err := EscapeIdentifier(p)
		if err != nil {
			return "", err
		}
		escaped = append(escaped, e)
	}
	return strings.Join(escaped, "."), nil
}

// CreateView builds CREATE [OR REPLACE] VIEW over a single SELECT.
func (b *Builder) CreateView(name, query string, orReplace bool) (Statement, error) {
	if err := b.checkObjectTarget(name); err != nil {
		return Statement{}, err
	}
	view, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	source, err := selectSource(query)
	if err != nil {
		return Statement{}, err
	}

	head := "CREATE VIEW "
	if orReplace {
		head = "CREATE OR REPLACE VIEW "
	}
	return Statement{SQL: head + view + " AS " + source}, nil
}

// DropView builds DROP VIEW; system objects are refused.
func (b *Builder) DropView(name string) (Statement, error) {
	if err := b.checkObjectTarget(name); err != nil {
		return Statement{}, err
	}
	view, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DROP VIEW " + view}, nil
}

// CreateSynonym builds CREATE [PUBLIC] SYNONYM for a possibly
// schema-qualified target.
func (b *Builder) CreateSynonym(name, target string, public bool) (Statement, error) {
	syn, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	if err := b.checkObjectTarget(target); err != nil {
		return Statement{}, err
	}
	tgt, err := qualifiedIdent(target)
	if err != nil {
		return Statement{}, err
	}

	head := "CREATE SYNONYM "
	if public {
		head = "CREATE PUBLIC SYNONYM "
	}
	return Statement{SQL: head + syn + " FOR " + tgt}, nil
}

// DropSynonym builds DROP [PUBLIC] SYNONYM.
func (b *Builder) DropSynonym(name string, public bool) (Statement, error) {
	syn, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	head := "DROP SYNONYM "
	if public {
		head = "DROP PUBLIC SYNONYM "
	}
	return Statement{SQL: head + syn}, nil
}

// RebuildIndex builds ALTER INDEX ... REBUILD.
func (b *Builder) RebuildIndex(name string, online bool) (Statement, error) {
	idx, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	stmt := "ALTER INDEX " + idx + " REBUILD"
	if online {
		stmt += " ONLINE"
	}
	return Statement{SQL: stmt}, nil
}

// SequenceSpec describes CREATE SEQUENCE. Zero values take Oracle's
// defaults of start 1, increment 1.
type SequenceSpec struct {
	Name        string
	StartWith   int64
	IncrementBy int64
	Cache       int
	Cycle       bool
}

// CreateSequence builds CREATE SEQUENCE.
func (b *Builder) CreateSequence(spec SequenceSpec) (Statement, error) {
	seq, err := EscapeIdentifier(spec.Name)
	if err != nil {
		return Statement{}, err
	}
	start := spec.StartWith
	if start == 0 {
		start = 1
	}
	incr := spec.IncrementBy
	if incr == 0 {
		incr = 1
	}

	stmt := fmt.Sprintf("CREATE SEQUENCE %s START WITH %d INCREMENT BY %d", seq, start, incr)
	if spec.Cache > 0 {
		stmt += fmt.Sprintf(" CACHE %d", spec.Cache)
	}
	if spec.Cycle {
		stmt += " CYCLE"
	}
	return Statement{SQL: stmt}, nil
}

// DropSequence builds DROP SEQUENCE.
func (b *Builder) DropSequence(name string) (Statement, error) {
	seq, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DROP SEQUENCE " + seq}, nil
}

// CreateRole builds CREATE ROLE. The system-user denylist applies so
// reserved account names cannot be shadowed by a role.
func (b *Builder) CreateRole(name string) (Statement, error) {
	if err := b.checkUserTarget(name); err != nil {
		return Statement{}, err
	}
	role, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "CREATE ROLE " + role}, nil
}

// DropRole builds DROP ROLE; denylisted names are refused.
func (b *Builder) DropRole(name string) (Statement, error) {
	if err := b.checkUserTarget(name); err != nil {
		return Statement{}, err
	}
	role, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DROP ROLE " + role}, nil
}

// FlashbackTable builds FLASHBACK TABLE ... TO BEFORE DROP, restoring
// a table from the recycle bin.
func (b *Builder) FlashbackTable(name, renameTo string) (Statement, error) {
	if err := b.checkObjectTarget(name); err != nil {
		return Statement{}, err
	}
	table, err := EscapeIdentifier(name)
	if err != nil {
		return Statement{}, err
	}

	stmt := "FLASHBACK TABLE " + table + " TO BEFORE DROP"
	if renameTo != "" {
		renamed, err := EscapeIdentifier(renameTo)
		if err != nil {
			return Statement{}, err
		}
		stmt += " RENAME TO " + renamed
	}
	return Statement{SQL: stmt}, nil
}

// CommentOn builds COMMENT ON TABLE or COMMENT ON COLUMN. The comment
// is a string literal, so quotes are doubled.
func (b *Builder) CommentOn(table, column, comment string) (Statement, error) {
	if err := b.checkObjectTarget(table); err != nil {
		return Statement{}, err
	}
	tbl, err := EscapeIdentifier(table)
	if err != nil {
		return Statement{}, err
	}

	target := "TABLE " + tbl
	if column != "" {
		col, err := EscapeIdentifier(column)
		if err != nil {
			return Statement{}, err
		}
		target = "COLUMN " + tbl + "." + col
	}

	literal := "'" + strings.ReplaceAll(comment, "'", "''") + "'"
	return Statement{SQL: "COMMENT ON " + target + " IS " + literal}, nil
}
