package rpc

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/kilianp07/ctramp/core/logger"
	"github.com/kilianp07/ctramp/core/metrics"
	"github.com/kilianp07/ctramp/core/remote"
)

// ClientOptions configures the matrix and household clients.
type ClientOptions struct {
	Policy  remote.Policy
	Metrics metrics.MetricsSink
	Log     logger.Logger
	// HTTPClient defaults to NewHTTPClient.
	HTTPClient connect.HTTPClient
	Connect    []connect.ClientOption
}

// caller runs unary calls through the retry policy.
type caller struct {
	worker string
	policy remote.Policy
	sink   metrics.MetricsSink
	log    logger.Logger
}

func newCaller(opts ClientOptions) caller {
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = remote.DefaultPolicy()
	}
	return caller{policy: opts.Policy, sink: opts.Metrics, log: logger.OrNop(opts.Log)}
}

func (o ClientOptions) httpClient() connect.HTTPClient {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return NewHTTPClient()
}

func (o ClientOptions) connectOptions() []connect.ClientOption {
	out := []connect.ClientOption{codecOption(), connect.WithInterceptors(RequestIDInterceptor())}
	return append(out, o.Connect...)
}

// unary invokes c with req and classifies failures.
func unary[Req, Res any](ctx context.Context, k caller, c *connect.Client[Req, Res], procedure string, req *Req) (*Res, error) {
	p := k.policy
	user := p.OnRetry
	p.OnRetry = func(attempt int, err error) {
		k.log.Warnf("%s attempt %d failed, retrying: %v", procedure, attempt, err)
		if r, ok := k.sink.(metrics.RetryRecorder); ok {
			_ = r.RecordRemoteRetry(metrics.RemoteRetryEvent{Procedure: procedure, Attempt: attempt, Error: err.Error(), Time: time.Now()})
		}
		if user != nil {
			user(attempt, err)
		}
	}
	return remote.Invoke(ctx, p, func(ctx context.Context) (*Res, error) {
		res, err := c.CallUnary(ctx, connect.NewRequest(req))
		if err != nil {
			return nil, classify(procedure, err)
		}
		return res.Msg, nil
	})
}
