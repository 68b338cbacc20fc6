package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/remote"
)

// NewMatrixHandler serves svc and returns the path to mount it on.
func NewMatrixHandler(svc matrix.Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{codecOption()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(GetMatrixProcedure, connect.NewUnaryHandler(GetMatrixProcedure,
		func(ctx context.Context, req *connect.Request[GetMatrixRequest]) (*connect.Response[GetMatrixResponse], error) {
			m, err := svc.GetMatrix(ctx, req.Msg.Entry)
			if err != nil {
				return nil, toConnect(err)
			}
			return connect.NewResponse(&GetMatrixResponse{Matrix: m}), nil
		}, opts...))
	mux.Handle(ClearProcedure, connect.NewUnaryHandler(ClearProcedure,
		func(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[Empty], error) {
			if err := svc.Clear(ctx); err != nil {
				return nil, toConnect(err)
			}
			return connect.NewResponse(&Empty{}), nil
		}, opts...))
	mux.Handle(PingProcedure, connect.NewUnaryHandler(PingProcedure,
		func(ctx context.Context, req *connect.Request[PingRequest]) (*connect.Response[PingResponse], error) {
			name, err := svc.Ping(ctx, req.Msg.Caller)
			if err != nil {
				return nil, toConnect(err)
			}
			return connect.NewResponse(&PingResponse{Server: name}), nil
		}, opts...))
	return "/" + MatrixServiceName + "/", mux
}

// MatrixClient implements matrix.Service against a remote matrix server.
type MatrixClient struct {
	get   *connect.Client[GetMatrixRequest, GetMatrixResponse]
	clear *connect.Client[Empty, Empty]
	ping  *connect.Client[PingRequest, PingResponse]
	call  caller
}

var _ matrix.Service = (*MatrixClient)(nil)

func NewMatrixClient(ep remote.Endpoint, opts ClientOptions) (*MatrixClient, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	hc, base, co := opts.httpClient(), ep.URL(), opts.connectOptions()
	return &MatrixClient{
		get:   connect.NewClient[GetMatrixRequest, GetMatrixResponse](hc, base+GetMatrixProcedure, co...),
		clear: connect.NewClient[Empty, Empty](hc, base+ClearProcedure, co...),
		ping:  connect.NewClient[PingRequest, PingResponse](hc, base+PingProcedure, co...),
		call:  newCaller(opts),
	}, nil
}

func (c *MatrixClient) GetMatrix(ctx context.Context, e matrix.DataEntry) (*matrix.Matrix, error) {
	res, err := unary(ctx, c.call, c.get, GetMatrixProcedure, &GetMatrixRequest{Entry: e})
	if err != nil {
		return nil, err
	}
	return res.Matrix, nil
}

func (c *MatrixClient) Clear(ctx context.Context) error {
	_, err := unary(ctx, c.call, c.clear, ClearProcedure, &Empty{})
	return err
}

func (c *MatrixClient) Ping(ctx context.Context, caller string) (string, error) {
	res, err := unary(ctx, c.call, c.ping, PingProcedure, &PingRequest{Caller: caller})
	if err != nil {
		return "", err
	}
	return res.Server, nil
}
