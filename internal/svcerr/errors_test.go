package svcerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcristin/stockguard/internal/svcerr"
)

func TestKindOf_ClassifiesTaggedErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind svcerr.Kind
	}{
		{svcerr.ProductNotFound(1), svcerr.KindProductNotFound},
		{svcerr.ProductAlreadyExists("widget"), svcerr.KindProductAlreadyExists},
		{svcerr.InsufficientStock(1, 5, 2), svcerr.KindInsufficientStock},
		{svcerr.LockAcquisitionFailure("stock:1"), svcerr.KindLockAcquisitionFailure},
		{svcerr.ConcurrentCreationInProgress("widget"), svcerr.KindConcurrentCreationInProgress},
		{svcerr.Internal("boom", errors.New("io")), svcerr.KindInternal},
		{errors.New("untagged"), svcerr.KindInternal},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, svcerr.KindOf(c.err), c.err.Error())
	}
}

func TestErrorsIs_MatchesSentinels(t *testing.T) {
	err := svcerr.InsufficientStock(1, 5, 2)
	assert.True(t, errors.Is(err, svcerr.ErrInsufficientStock))
	assert.False(t, errors.Is(err, svcerr.ErrProductNotFound))
}

func TestWrap_PreservesCauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := svcerr.Wrap(svcerr.KindLockAcquisitionFailure, "lock acquisition exhausted", cause)

	require.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, svcerr.ErrLockAcquisitionFailure))
	assert.Equal(t, svcerr.KindLockAcquisitionFailure, svcerr.KindOf(err))
}

func TestIsRetryable_TransientKindsOnly(t *testing.T) {
	assert.True(t, svcerr.IsRetryable(svcerr.LockAcquisitionFailure("stock:1")))
	assert.True(t, svcerr.IsRetryable(svcerr.ConcurrentCreationInProgress("widget")))
	assert.False(t, svcerr.IsRetryable(svcerr.InsufficientStock(1, 5, 2)))
	assert.False(t, svcerr.IsRetryable(svcerr.ProductNotFound(1)))
	assert.False(t, svcerr.IsRetryable(svcerr.Internal("boom", nil)))
}
