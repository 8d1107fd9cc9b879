package errors

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapExternal(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{stderrors.New("429 rate limit exceeded"), ErrTransient},
		{stderrors.New("request timeout talking to provider"), ErrTransient},
		{stderrors.New("connection refused"), ErrTransient},
		{stderrors.New("database is locked"), ErrTransient},
		{stderrors.New("resource not found"), ErrUnknownSession},
		{stderrors.New("bad request: missing field"), ErrInvalidInput},
		{stderrors.New("something exploded"), ErrInternal},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, MapExternal(tc.in), tc.want, "input: %v", tc.in)
	}

	assert.ErrorIs(t, MapExternal(context.DeadlineExceeded), ErrTransient)
	assert.ErrorIs(t, MapExternal(context.Canceled), context.Canceled)
	assert.NoError(t, MapExternal(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Storage(stderrors.New("disk io"))))
	assert.True(t, IsRetryable(ComplianceWrite(stderrors.New("disk io"))))
	assert.True(t, IsRetryable(MapExternal(stderrors.New("rate limit"))))
	assert.False(t, IsRetryable(ErrInvalidInput))
	assert.False(t, IsRetryable(UnknownSession("sess-1")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(nil))
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "UnknownSession", Category(UnknownSession("sess-1")))
	assert.Equal(t, "InvalidTransition", Category(InvalidTransition("ended", "active")))
	assert.Equal(t, "ComplianceWriteFailure", Category(ComplianceWrite(stderrors.New("x"))))
	assert.Equal(t, "GenerationFailure", Category(Generation(stderrors.New("x"))))
	assert.Equal(t, "StorageFailure", Category(Storage(stderrors.New("x"))))
	assert.Equal(t, "Unknown", Category(stderrors.New("mystery")))
	assert.Equal(t, "", Category(nil))
}

func TestWrapPreservesCategory(t *testing.T) {
	err := Wrap(Storage(stderrors.New("disk io")), "commit turn")
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "commit turn")
	assert.NoError(t, Wrap(nil, "anything"))
}
