package toast

import (
	"context"
	"fmt"
	"strconv"

	"github.com/WelcomerTeam/Toast/rest"
	"github.com/WelcomerTeam/Toast/toastjson"
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// BaseResponse wraps every status api response.
type BaseResponse struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type StatusResponse struct {
	Version         string          `json:"version"`
	Manager         ManagerSnapshot `json:"manager"`
	InvalidRequests int             `json:"invalid_requests"`
	Published       int64           `json:"published"`
	PublishFailed   int64           `json:"publish_failed"`
}

// StatusServer serves the fleet status and prometheus metrics.
type StatusServer struct {
	Logger zerolog.Logger

	manager  *Manager
	client   *rest.Client
	producer *Producer

	server *fasthttp.Server
}

// NewStatusServer creates the status api. client and producer may be nil.
func NewStatusServer(logger zerolog.Logger, manager *Manager, client *rest.Client, producer *Producer) *StatusServer {
	statusServer := &StatusServer{
		Logger:   logger,
		manager:  manager,
		client:   client,
		producer: producer,
	}

	statusServer.server = &fasthttp.Server{
		Handler: statusServer.Handler(),
		Name:    "toast",
	}

	return statusServer
}

func (s *StatusServer) Handler() fasthttp.RequestHandler {
	r := router.New()

	r.GET("/api/status", s.handleStatus)
	r.GET("/api/shards/{shard_id}", s.handleShard)
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	return s.requestLogger(r.Handler)
}

func (s *StatusServer) ListenAndServe(address string) error {
	s.Logger.Info().Str("address", address).Msg("Starting status api")

	if err := s.server.ListenAndServe(address); err != nil {
		return fmt.Errorf("failed to serve status api: %w", err)
	}

	return nil
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.server.ShutdownWithContext(ctx)
}

func (s *StatusServer) requestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)

		s.Logger.Debug().
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", ctx.Response.StatusCode()).
			Msg("Handled request")
	}
}

func (s *StatusServer) handleStatus(ctx *fasthttp.RequestCtx) {
	status := StatusResponse{
		Version: Version,
		Manager: s.manager.Snapshot(),
	}

	if s.client != nil {
		status.InvalidRequests = s.client.InvalidRequests()
	}

	if s.producer != nil {
		status.Published, status.PublishFailed = s.producer.Counts()
	}

	writeResponse(ctx, fasthttp.StatusOK, BaseResponse{Ok: true, Data: status})
}

func (s *StatusServer) handleShard(ctx *fasthttp.RequestCtx) {
	shardIDStr, _ := ctx.UserValue("shard_id").(string)

	shardID, err := strconv.ParseInt(shardIDStr, 10, 32)
	if err != nil {
		writeResponse(ctx, fasthttp.StatusBadRequest, BaseResponse{Error: "invalid shard id"})

		return
	}

	shard, ok := s.manager.Shard(int32(shardID))
	if !ok {
		writeResponse(ctx, fasthttp.StatusNotFound, BaseResponse{Error: "shard not found"})

		return
	}

	writeResponse(ctx, fasthttp.StatusOK, BaseResponse{Ok: true, Data: shard.Snapshot()})
}

func writeResponse(ctx *fasthttp.RequestCtx, statusCode int, response BaseResponse) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(statusCode)

	if err := toastjson.MarshalToWriter(ctx, response); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}
