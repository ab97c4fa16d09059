package oraerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromOracleMapsKnownCodes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantCode string
		wantHint bool
	}{
		{
			name:     "missing table",
			raw:      "ORA-00942: table or view does not exist",
			wantKind: KindPrivilege,
			wantCode: "ORA-00942",
			wantHint: true,
		},
		{
			name:     "bad credentials",
			raw:      "ORA-01017: invalid username/password; logon denied",
			wantKind: KindPrivilege,
			wantCode: "ORA-01017",
			wantHint: true,
		},
		{
			name:     "no listener",
			raw:      "ORA-12541: TNS:no listener",
			wantKind: KindDriver,
			wantCode: "ORA-12541",
			wantHint: true,
		},
		{
			name:     "unique violation",
			raw:      "ORA-00001: unique constraint (HR.PK_EMP) violated",
			wantKind: KindDriver,
			wantCode: "ORA-00001",
			wantHint: true,
		},
		{
			name:     "locked account",
			raw:      "ORA-28000: the account is locked",
			wantKind: KindPrivilege,
			wantCode: "ORA-28000",
			wantHint: true,
		},
		{
			name:     "syntax error is dialect",
			raw:      "ORA-00933: SQL command not properly ended",
			wantKind: KindDialect,
			wantCode: "ORA-00933",
			wantHint: false,
		},
		{
			name:     "user cancel",
			raw:      "ORA-01013: user requested cancel of current operation",
			wantKind: KindCancelled,
			wantCode: "ORA-01013",
			wantHint: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromOracle(errors.New(tt.raw))
			require.NotNil(t, e)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantHint, e.Hint != "", "hint presence")
		})
	}
}

func TestFromOracleStripsStatementBody(t *testing.T) {
	raw := "ORA-00942: table or view does not exist\nSQL: SELECT secret FROM hidden_table"
	e := FromOracle(errors.New(raw))
	assert.NotContains(t, e.Message, "hidden_table")
}

func TestFromOracleContextErrors(t *testing.T) {
	assert.Equal(t, KindTimeout, FromOracle(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindCancelled, FromOracle(context.Canceled).Kind)
}

func TestFromOracleWithoutCode(t *testing.T) {
	e := FromOracle(errors.New("dial tcp 127.0.0.1:1521: connect: connection refused"))
	assert.Equal(t, KindDriver, e.Kind)
	assert.Equal(t, "E_DRIVER", e.Code)
}

func TestAsErrorPassthroughAndWrap(t *testing.T) {
	orig := New(KindSecurity, CodeSystemUser, "blocked")
	assert.Same(t, orig, AsError(orig))

	wrapped := AsError(fmt.Errorf("outer: %w", orig))
	assert.Equal(t, KindSecurity, wrapped.Kind)

	internal := AsError(errors.New("boom"))
	assert.Equal(t, KindInternal, internal.Kind)
	assert.Equal(t, "internal server error", internal.Message)
}

func TestWithHintAndCorrelationDoNotMutate(t *testing.T) {
	base := New(KindDriver, "E_DRIVER", "fault")
	withHint := base.WithHint("check the listener")
	assert.Empty(t, base.Hint)
	assert.Equal(t, "check the listener", withHint.Hint)

	withID := base.WithCorrelation("abc-123")
	assert.Empty(t, base.CorrelationID)
	assert.Equal(t, "abc-123", withID.CorrelationID)
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(KindTimeout, CodeTimeout, "slow"))
	assert.True(t, IsKind(err, KindTimeout))
	assert.False(t, IsKind(err, KindDriver))
	assert.False(t, IsKind(nil, KindTimeout))
}
