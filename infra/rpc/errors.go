package rpc

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/remote"
)

// errorKeyHeader names the sentinel a server error maps back to on the
// client.
const errorKeyHeader = "Ctramp-Error"

var sentinels = []struct {
	key  string
	err  error
	code connect.Code
}{
	{"unsupported_format", matrix.ErrUnsupportedFormat, connect.CodeInvalidArgument},
	{"no_reader", matrix.ErrNoReader, connect.CodeFailedPrecondition},
	{"unknown_zone", matrix.ErrUnknownZone, connect.CodeNotFound},
	{"unknown_household", household.ErrUnknownHousehold, connect.CodeNotFound},
	{"out_of_range", household.ErrOutOfRange, connect.CodeOutOfRange},
}

// toConnect converts a service error for the wire.
func toConnect(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			ce := connect.NewError(s.code, err)
			ce.Meta().Set(errorKeyHeader, s.key)
			return ce
		}
	}
	return connect.NewError(connect.CodeInternal, err)
}

// classify turns a client call error into the remote taxonomy. Unavailable
// is transient; everything else, including errors the server raised, is
// permanent.
func classify(procedure string, err error) error {
	if err == nil {
		return nil
	}
	code := connect.CodeOf(err)
	if code == connect.CodeUnavailable {
		return remote.Transient(fmt.Errorf("%s: %w", procedure, err))
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		key := ce.Meta().Get(errorKeyHeader)
		for _, s := range sentinels {
			if s.key == key {
				return remote.Permanent(fmt.Errorf("%s: %w: %s", procedure, s.err, ce.Message()))
			}
		}
	}
	return remote.Permanent(fmt.Errorf("%s: %w", procedure, err))
}
