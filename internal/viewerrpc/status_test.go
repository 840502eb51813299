package viewerrpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code codes.Code
	}{
		{debuggee.ErrInvalidSymbol, codes.NotFound},
		{debuggee.ErrUnknownType, codes.NotFound},
		{debuggee.ErrNotABuffer, codes.FailedPrecondition},
		{debuggee.ErrNullBuffer, codes.FailedPrecondition},
		{debuggee.ErrEmptyBuffer, codes.FailedPrecondition},
		{debuggee.ErrOversizedBuffer, codes.FailedPrecondition},
		{debuggee.ErrUnreadableMemory, codes.Unavailable},
	} {
		err := &debuggee.FetchError{Name: "img", Err: fmt.Errorf("%w: details", tc.err)}
		st := StatusError(err)
		require.Equal(t, tc.code, status.Code(st))

		back := FromStatus(st, Trailer(err))
		require.ErrorIs(t, back, tc.err)
		require.Contains(t, back.Error(), "details")
	}
}

func TestStatusWithoutKind(t *testing.T) {
	err := errors.New("boom")
	st := StatusError(err)
	require.Equal(t, codes.Internal, status.Code(st))
	require.Nil(t, Trailer(err))
	require.Equal(t, st, FromStatus(st, nil))

	require.NoError(t, StatusError(nil))
	require.NoError(t, FromStatus(nil, nil))
}
