package models

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerErrorMatching(t *testing.T) {
	err := fmt.Errorf("bind: %w", NewError(AlreadyBound, "not a new user"))

	assert.ErrorIs(t, err, ErrAlreadyBound)
	assert.NotErrorIs(t, err, ErrInviterNotFound)
	assert.Equal(t, AlreadyBound, KindOf(err))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New(`pq: relation "account" does not exist`)

	le := AsLedgerError(cause)
	assert.Equal(t, InternalError, le.Kind)
	assert.NotContains(t, le.Error(), "pq:")
	assert.ErrorIs(t, le, cause)
	assert.Equal(t, InternalError, KindOf(sql.ErrConnDone))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestFailEnvelope(t *testing.T) {
	res := Fail(NewError(InsufficientBalance, "too much withdrawal amount"))
	assert.Equal(t, 500, res.StatusCode)
	assert.Equal(t, "InsufficientBalance: too much withdrawal amount", res.Msg)
	assert.Equal(t, map[string]string{"kind": "InsufficientBalance"}, res.Data)

	ok := Success(true)
	assert.Equal(t, 200, ok.StatusCode)
	assert.Equal(t, true, ok.Data)
}
