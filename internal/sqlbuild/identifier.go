// Package sqlbuild generates Oracle DDL/DML text and bind plans from
// structured inputs. No caller-supplied string reaches a SQL body
// without identifier escaping, a whitelist check, or a bind parameter.
package sqlbuild

import (
	"regexp"
	"strings"

	"github.com/orahub/oracle-mcp/internal/oraerr"
)

// unquotedIdent is the shape of a valid unquoted Oracle identifier.
var unquotedIdent = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*$`)

// identStrip removes every byte Oracle does not allow in an identifier.
var identStrip = regexp.MustCompile(`[^A-Za-z0-9_$#]`)

// maxIdentLen is Oracle's identifier length limit (12.2+; older releases
// allow 30, which this bound also satisfies for generated names).
const maxIdentLen = 128

// systemUsers is the built-in denylist of accounts that destructive
// operations must never touch.
var systemUsers = map[string]bool{
	"SYS":               true,
	"SYSTEM":            true,
	"SYSAUX":            true,
	"SYSBACKUP":         true,
	"SYSDG":             true,
	"SYSKM":             true,
	"SYSRAC":            true,
	"DBSNMP":            true,
	"OUTLN":             true,
	"XDB":               true,
	"CTXSYS":            true,
	"MDSYS":             true,
	"ORDSYS":            true,
	"ORDDATA":           true,
	"OLAPSYS":           true,
	"WMSYS":             true,
	"APPQOSSYS":         true,
	"AUDSYS":            true,
	"DVSYS":             true,
	"DVF":               true,
	"LBACSYS":           true,
	"OJVMSYS":           true,
	"GSMADMIN_INTERNAL": true,
	"REMOTE_SCHEDULER_AGENT": true,
}

// systemObjectPrefixes marks dictionary and dynamic performance views.
// Reads are allowed; destructive operations are blocked.
var systemObjectPrefixes = []string{"V$", "GV$", "X$", "DBA_", "CDB_"}

// EscapeIdentifier normalizes a caller-supplied identifier: strips every
// character outside Oracle's identifier alphabet, uppercases it, and
// validates the result. The output is safe to place in a SQL body.
func EscapeIdentifier(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", oraerr.Validation(oraerr.CodeInvalidIdent, "identifier is empty")
	}

	cleaned := identStrip.ReplaceAllString(trimmed, "")
	if cleaned == "" {
		return "", oraerr.Validation(oraerr.CodeInvalidIdent, "identifier %q contains no valid characters", s)
	}
	if len(cleaned) > maxIdentLen {
		return "", oraerr.Validation(oraerr.CodeInvalidIdent, "identifier exceeds %d characters", maxIdentLen)
	}
	if !unquotedIdent.MatchString(cleaned) {
		return "", oraerr.Validation(oraerr.CodeInvalidIdent, "identifier %q must start with a letter", s)
	}
	return strings.ToUpper(cleaned), nil
}

// QuoteIdentifier wraps a name in double quotes for case-sensitive use.
// Embedded quotes are stripped, never doubled: a quote inside an
// identifier is an escape attempt, not a name.
func QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}

// IsSystemUser reports whether name is in the built-in system account
// denylist (case-insensitive).
func IsSystemUser(name string) bool {
	return systemUsers[strings.ToUpper(strings.TrimSpace(name))]
}

// IsSystemObject reports whether name refers to a dictionary or dynamic
// performance object.
func IsSystemObject(name string) bool {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, prefix := range systemObjectPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// ValidateSingleStatement rejects SQL text that carries more than one
// statement. Semicolons inside string literals, quoted identifiers, and
// PL/SQL blocks are legitimate; anything else is a smuggling attempt.
func ValidateSingleStatement(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return oraerr.Validation(oraerr.CodeInvalidParam, "statement is empty")
	}

	if isPLSQLBlock(trimmed) {
		return nil
	}

	inString := false
	inQuoted := false
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case inString:
			if c == '\'' {
				inString = false
			}
		case inQuoted:
			if c == '"' {
				inQuoted = false
			}
		case c == '\'':
			inString = true
		case c == '"':
			inQuoted = true
		case c == ';':
			// A single trailing semicolon is tolerated; anything before
			// other content is a second statement.
			if strings.TrimSpace(trimmed[i+1:]) != "" {
				return oraerr.Security(oraerr.CodeMultiStatement, "multiple statements in a single call are not allowed")
			}
		}
	}
	if inString || inQuoted {
		return oraerr.Validation(oraerr.CodeInvalidParam, "unterminated quote in statement")
	}
	return nil
}

// CheckPredicate vets a caller-supplied WHERE/filter fragment. It cannot
// fully parse SQL; it rejects the constructs injection payloads depend
// on: statement separators and comment tokens.
func CheckPredicate(pred string) error {
	if strings.ContainsRune(pred, ';') {
		return oraerr.Security(oraerr.CodeMultiStatement, "predicate must not contain a statement separator")
	}
	for _, tok := range []string{"--", "/*", "*/"} {
		if strings.Contains(pred, tok) {
			return oraerr.Security(oraerr.CodeMultiStatement, "predicate must not contain comment tokens")
		}
	}
	return nil
}

func isPLSQLBlock(trimmed string) bool {
	upper := strings.ToUpper(trimmed)
	return strings.HasPrefix(upper, "BEGIN") || strings.HasPrefix(upper, "DECLARE")
}
