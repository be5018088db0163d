package common

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestHelpers_WrapSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		reason   string
	}{
		{"bad request", BadRequestf("page and older_than can't be used together"), ErrBadRequest, "page and older_than can't be used together"},
		{"not found", NotFoundf("group %s doesn't exist", "x"), ErrNotFound, "group x doesn't exist"},
		{"forbidden", Forbiddenf("no rights"), ErrForbidden, "no rights"},
		{"conflict", Conflictf("object exists with different type"), ErrConflict, "object exists with different type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.reason, Reason(tt.err))
		})
	}
}

func TestReason_StdlibWrapping(t *testing.T) {
	err := fmt.Errorf("lookup: %w", ErrNotFound)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "lookup", Reason(err))
	assert.Equal(t, "not found", Reason(ErrNotFound))
	assert.Equal(t, "", Reason(nil))
}
