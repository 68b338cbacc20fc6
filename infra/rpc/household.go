package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kilianp07/ctramp/core/household"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/core/remote"
)

func handle[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *Req) (*Res, error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, toConnect(err)
			}
			return connect.NewResponse(res), nil
		}, opts...))
}

// NewHouseholdHandler serves svc and returns the path to mount it on.
func NewHouseholdHandler(svc household.Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{codecOption()}, opts...)
	mux := http.NewServeMux()
	handle(mux, LenProcedure, func(ctx context.Context, _ *Empty) (*LenResponse, error) {
		n, err := svc.Len(ctx)
		return &LenResponse{Len: n}, err
	}, opts)
	handle(mux, IndexProcedure, func(ctx context.Context, req *IndexRequest) (*IndexResponse, error) {
		i, err := svc.Index(ctx, req.HouseholdID)
		return &IndexResponse{Index: i}, err
	}, opts)
	handle(mux, RangeProcedure, func(ctx context.Context, req *RangeRequest) (*RangeResponse, error) {
		hhs, err := svc.Range(ctx, req.First, req.Last)
		return &RangeResponse{Households: hhs}, err
	}, opts)
	handle(mux, SetRangeProcedure, func(ctx context.Context, req *SetRangeRequest) (*Empty, error) {
		return &Empty{}, svc.SetRange(ctx, req.Households, req.Start)
	}, opts)
	handle(mux, RandomOrderProcedure, func(ctx context.Context, req *RandomOrderRequest) (*OrderResponse, error) {
		order, err := svc.RandomOrder(ctx, req.N)
		return &OrderResponse{Order: order}, err
	}, opts)
	handle(mux, HomeZoneProcedure, func(ctx context.Context, req *HomeZoneOrderRequest) (*OrderResponse, error) {
		order, err := svc.HomeZoneOrder(ctx, req.HouseholdIDs)
		return &OrderResponse{Order: order}, err
	}, opts)
	handle(mux, MarkStageProcedure, func(ctx context.Context, req *StageRequest) (*Empty, error) {
		return &Empty{}, svc.MarkStage(ctx, req.Stage)
	}, opts)
	handle(mux, ResetStageProcedure, func(ctx context.Context, req *StageRequest) (*Empty, error) {
		return &Empty{}, svc.ResetStage(ctx, req.Stage)
	}, opts)
	return "/" + HouseholdServiceName + "/", mux
}

// HouseholdClient implements household.Service against a remote store.
type HouseholdClient struct {
	length     *connect.Client[Empty, LenResponse]
	index      *connect.Client[IndexRequest, IndexResponse]
	rng        *connect.Client[RangeRequest, RangeResponse]
	setRange   *connect.Client[SetRangeRequest, Empty]
	random     *connect.Client[RandomOrderRequest, OrderResponse]
	homeZone   *connect.Client[HomeZoneOrderRequest, OrderResponse]
	markStage  *connect.Client[StageRequest, Empty]
	resetStage *connect.Client[StageRequest, Empty]
	call       caller
}

var _ household.Service = (*HouseholdClient)(nil)

func NewHouseholdClient(ep remote.Endpoint, opts ClientOptions) (*HouseholdClient, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	hc, base, co := opts.httpClient(), ep.URL(), opts.connectOptions()
	return &HouseholdClient{
		length:     connect.NewClient[Empty, LenResponse](hc, base+LenProcedure, co...),
		index:      connect.NewClient[IndexRequest, IndexResponse](hc, base+IndexProcedure, co...),
		rng:        connect.NewClient[RangeRequest, RangeResponse](hc, base+RangeProcedure, co...),
		setRange:   connect.NewClient[SetRangeRequest, Empty](hc, base+SetRangeProcedure, co...),
		random:     connect.NewClient[RandomOrderRequest, OrderResponse](hc, base+RandomOrderProcedure, co...),
		homeZone:   connect.NewClient[HomeZoneOrderRequest, OrderResponse](hc, base+HomeZoneProcedure, co...),
		markStage:  connect.NewClient[StageRequest, Empty](hc, base+MarkStageProcedure, co...),
		resetStage: connect.NewClient[StageRequest, Empty](hc, base+ResetStageProcedure, co...),
		call:       newCaller(opts),
	}, nil
}

func (c *HouseholdClient) Len(ctx context.Context) (int, error) {
	res, err := unary(ctx, c.call, c.length, LenProcedure, &Empty{})
	if err != nil {
		return 0, err
	}
	return res.Len, nil
}

func (c *HouseholdClient) Index(ctx context.Context, householdID int) (int, error) {
	res, err := unary(ctx, c.call, c.index, IndexProcedure, &IndexRequest{HouseholdID: householdID})
	if err != nil {
		return 0, err
	}
	return res.Index, nil
}

func (c *HouseholdClient) Range(ctx context.Context, first, last int) ([]*model.Household, error) {
	res, err := unary(ctx, c.call, c.rng, RangeProcedure, &RangeRequest{First: first, Last: last})
	if err != nil {
		return nil, err
	}
	return res.Households, nil
}

func (c *HouseholdClient) SetRange(ctx context.Context, hhs []*model.Household, start int) error {
	_, err := unary(ctx, c.call, c.setRange, SetRangeProcedure, &SetRangeRequest{Start: start, Households: hhs})
	return err
}

func (c *HouseholdClient) RandomOrder(ctx context.Context, n int) ([]int, error) {
	res, err := unary(ctx, c.call, c.random, RandomOrderProcedure, &RandomOrderRequest{N: n})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

func (c *HouseholdClient) HomeZoneOrder(ctx context.Context, householdIDs []int) ([]int, error) {
	res, err := unary(ctx, c.call, c.homeZone, HomeZoneProcedure, &HomeZoneOrderRequest{HouseholdIDs: householdIDs})
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

func (c *HouseholdClient) MarkStage(ctx context.Context, stage random.Stage) error {
	_, err := unary(ctx, c.call, c.markStage, MarkStageProcedure, &StageRequest{Stage: stage})
	return err
}

func (c *HouseholdClient) ResetStage(ctx context.Context, stage random.Stage) error {
	_, err := unary(ctx, c.call, c.resetStage, ResetStageProcedure, &StageRequest{Stage: stage})
	return err
}
