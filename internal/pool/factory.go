package pool

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/orahub/oracle-mcp/internal/secret"
)

// sqlSession adapts a dedicated *sql.Conn to the Session interface.
type sqlSession struct {
	conn *sql.Conn
}

func (s sqlSession) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

func (s sqlSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

func (s sqlSession) PrepareContext(ctx context.Context, query string) (PreparedStatement, error) {
	stmt, err := s.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

func (s sqlSession) PingContext(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s sqlSession) Close() error {
	return s.conn.Close()
}

// Connect opens the go-ora database handle and returns a Factory that
// dials dedicated sessions from it. The *sql.DB's own pooling is
// disabled-by-sizing: this pool does the bookkeeping.
func Connect(rawURL, user string, password secret.Password, maxSize int) (*sql.DB, Factory, error) {
	dsn, err := BuildDSN(rawURL, user, password)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open oracle: %w", err)
	}
	// One driver connection per pool entry; the outer pool enforces the
	// real bound and lifecycle.
	db.SetMaxOpenConns(maxSize)
	db.SetMaxIdleConns(maxSize)
	db.SetConnMaxLifetime(0)

	factory := func(ctx context.Context) (Session, error) {
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return sqlSession{conn: conn}, nil
	}
	return db, factory, nil
}

// BuildDSN turns a JDBC-style Oracle URL into a go-ora connection
// string. Accepted forms:
//
//	oracle://host:1521/SERVICE
//	tcps://host:2484/SERVICE
//	host:1521/SERVICE
//	host:1521:SID
func BuildDSN(rawURL, user string, password secret.Password) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("oracle url is empty")
	}

	ssl := false
	trimmed := rawURL
	switch {
	case strings.HasPrefix(rawURL, "oracle://"):
		trimmed = strings.TrimPrefix(rawURL, "oracle://")
	case strings.HasPrefix(rawURL, "tcps://"):
		trimmed = strings.TrimPrefix(rawURL, "tcps://")
		ssl = true
	}

	// host:port:sid is the legacy JDBC thin form.
	var host, service string
	port := 1521
	if parts := strings.Split(trimmed, ":"); len(parts) == 3 && !strings.Contains(trimmed, "/") {
		host = parts[0]
		p, err := strconv.Atoi(parts[1])
		if err != nil {
			return "", fmt.Errorf("invalid port in oracle url %q", rawURL)
		}
		port = p
		service = parts[2]
	} else {
		hostport, svc, ok := strings.Cut(trimmed, "/")
		if !ok || svc == "" {
			return "", fmt.Errorf("oracle url %q lacks a service name", rawURL)
		}
		service = svc
		if h, p, found := strings.Cut(hostport, ":"); found {
			host = h
			n, err := strconv.Atoi(p)
			if err != nil {
				return "", fmt.Errorf("invalid port in oracle url %q", rawURL)
			}
			port = n
		} else {
			host = hostport
		}
	}
	if host == "" {
		return "", fmt.Errorf("oracle url %q lacks a host", rawURL)
	}

	options := map[string]string{}
	if ssl {
		options["SSL"] = "TRUE"
	}
	dsn := go_ora.BuildUrl(host, port, service, user, password.Reveal(), options)
	// Sanity check only; BuildUrl escapes credentials itself.
	if _, err := url.Parse(dsn); err != nil {
		return "", fmt.Errorf("constructed oracle dsn is invalid: %w", err)
	}
	return dsn, nil
}
