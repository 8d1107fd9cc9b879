package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tlerrors "github.com/tellerline/tellerline/internal/errors"
	"github.com/tellerline/tellerline/internal/store"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		from, to string
		wantErr  error
	}{
		{store.StatusActive, store.StatusEscalated, nil},
		{store.StatusActive, store.StatusEnded, nil},
		{store.StatusEscalated, store.StatusEnded, nil},
		{store.StatusActive, store.StatusActive, nil},
		{store.StatusEscalated, store.StatusEscalated, nil},
		{store.StatusEnded, store.StatusEnded, nil},
		{store.StatusEscalated, store.StatusActive, tlerrors.ErrInvalidTransition},
		{store.StatusEnded, store.StatusActive, tlerrors.ErrSessionEnded},
		{store.StatusEnded, store.StatusEscalated, tlerrors.ErrSessionEnded},
	}

	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.wantErr == nil {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			assert.ErrorIs(t, err, tc.wantErr, "%s -> %s", tc.from, tc.to)
		}
	}
}
