package viewerrpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// ErrorKindKey is the trailer carrying debuggee.Kind of a failed request.
const ErrorKindKey = "bufwatch-error-kind"

// Code returns the status code reported for err.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, debuggee.ErrInvalidSymbol), errors.Is(err, debuggee.ErrUnknownType):
		return codes.NotFound
	case errors.Is(err, debuggee.ErrNotABuffer),
		errors.Is(err, debuggee.ErrNullBuffer),
		errors.Is(err, debuggee.ErrEmptyBuffer),
		errors.Is(err, debuggee.ErrOversizedBuffer):
		return codes.FailedPrecondition
	case errors.Is(err, debuggee.ErrUnreadableMemory):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// StatusError converts err into a status error.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(Code(err), err.Error())
}

// Trailer returns the trailer that lets the client recover the kind of err,
// or nil when err has no kind.
func Trailer(err error) metadata.MD {
	if k := debuggee.Kind(err); k != "" {
		return metadata.Pairs(ErrorKindKey, k)
	}
	return nil
}

// FromStatus is the inverse of StatusError and Trailer: if trailer names a
// kind, the returned error wraps the matching debuggee sentinel.
func FromStatus(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	vals := trailer.Get(ErrorKindKey)
	if len(vals) == 0 {
		return err
	}
	sentinel := debuggee.KindError(vals[0])
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, status.Convert(err).Message())
}
