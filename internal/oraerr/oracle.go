package oraerr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// oraCodePattern matches the ORA-NNNNN token the driver embeds in its
// error strings.
var oraCodePattern = regexp.MustCompile(`ORA-(\d{5})`)

// hints carries remediation text for well-known Oracle codes.
var hints = map[int]string{
	942:   "table or view does not exist, or the connected user lacks privileges on it",
	1017:  "invalid username or password; verify oracle.user and oracle.password",
	1031:  "insufficient privileges; grant the required privilege to the connected user",
	1:     "unique constraint violated; a row with this key already exists",
	12541: "no listener at the configured host/port; verify oracle.url and that the listener is running",
	28000: "the account is locked; unlock it with ALTER USER ... ACCOUNT UNLOCK",
}

// kindForOracleCode maps an ORA code to a taxonomy kind.
func kindForOracleCode(code int) Kind {
	switch code {
	case 942, 1031, 1017, 28000:
		return KindPrivilege
	case 12541, 12514, 12170, 3113, 3114, 12537:
		return KindDriver
	case 1013:
		// ORA-01013: user requested cancel of current operation.
		return KindCancelled
	case 900, 904, 907, 911, 922, 933, 923:
		return KindDialect
	default:
		return KindDriver
	}
}

// FromOracle translates a driver error into the taxonomy. The ORA code is
// preserved in Code; the message is rewritten so SQL text never reaches
// the client.
func FromOracle(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, CodeTimeout, "statement exceeded its deadline")
	}
	if errors.Is(err, context.Canceled) {
		return New(KindCancelled, CodeCancelled, "statement cancelled by client")
	}

	msg := err.Error()
	match := oraCodePattern.FindStringSubmatch(msg)
	if match == nil {
		// Connectivity faults from the driver frequently surface without
		// an ORA code (dial errors, EOF on a dead socket).
		return Wrap(KindDriver, "E_DRIVER", sanitizeDriverMessage(msg), err)
	}

	code, _ := strconv.Atoi(match[1])
	out := Wrap(kindForOracleCode(code), fmt.Sprintf("ORA-%05d", code), oracleMessage(code, msg), err)
	if hint, ok := hints[code]; ok {
		out = out.WithHint(hint)
	}
	return out
}

// oracleMessage extracts the first line of the Oracle error text, which
// is safe to show: it never includes the statement body.
func oracleMessage(code int, raw string) string {
	idx := strings.Index(raw, fmt.Sprintf("ORA-%05d", code))
	if idx < 0 {
		return fmt.Sprintf("oracle error ORA-%05d", code)
	}
	line := raw[idx:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	return strings.TrimSpace(line)
}

// sanitizeDriverMessage trims driver noise while keeping the failure
// class recognizable.
func sanitizeDriverMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if nl := strings.IndexByte(msg, '\n'); nl >= 0 {
		msg = msg[:nl]
	}
	const max = 200
	if len(msg) > max {
		msg = msg[:max]
	}
	return msg
}
