package handler

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/gophchat-server/internal/api/wire"
	"github.com/dtroode/gophchat-server/internal/hub"
	"github.com/dtroode/gophchat-server/internal/logger"
	"github.com/dtroode/gophchat-server/internal/metrics"
	"github.com/dtroode/gophchat-server/internal/model"
)

type ChatOptions struct {
	SendBuffer        int
	MessageBurst      int
	MessagesPerSecond float64
}

// Chat handles gophchat.v1.Chat streams.
type Chat struct {
	hub            *hub.Hub
	contextManager model.ContextManager
	opts           ChatOptions
	logger         *logger.Logger
	metrics        *metrics.Metrics
}

func NewChat(h *hub.Hub, contextManager model.ContextManager, opts ChatOptions, logger *logger.Logger, m *metrics.Metrics) *Chat {
	return &Chat{
		hub:            h,
		contextManager: contextManager,
		opts:           opts,
		logger:         logger,
		metrics:        m,
	}
}

// Connect registers the stream with the hub, forwards hub events to the
// client and submits the client's frames until either side goes away.
func (h *Chat) Connect(stream ChatConnectServer) error {
	ctx := stream.Context()
	identity, ok := h.contextManager.GetIdentityFromContext(ctx)
	if !ok {
		identity = model.NewAnonymousIdentity()
	}

	conn := hub.NewMailbox(uuid.NewString(), h.opts.SendBuffer, nil)
	log := h.logger.With("connection_id", conn.ID())

	if err := h.hub.Register(context.WithoutCancel(ctx), conn, identity); err != nil {
		log.Warn("Chat handler: registration refused",
			"error", err.Error())
		return status.Error(codes.Unavailable, "server is shutting down")
	}
	log.Info("Chat handler: stream opened",
		"sender", identity.Label,
		"anonymous", identity.Anonymous)

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- h.sendLoop(stream, conn)
	}()

	recvDone := make(chan error, 1)
	go func() {
		recvDone <- h.recvLoop(stream, conn, log)
	}()

	var err error
	select {
	case err = <-recvDone:
	case err = <-sendDone:
	case <-conn.Closed():
		err = status.Error(codes.Unavailable, "connection closed by server")
	}

	h.hub.Deregister(conn)
	conn.Close()
	go func() {
		<-sendDone
		conn.Finish()
	}()

	if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
		log.Info("Chat handler: stream closed")
		return nil
	}
	log.Info("Chat handler: stream ended",
		"error", err.Error())
	return handleError(err)
}

func (h *Chat) sendLoop(stream ChatConnectServer, conn *hub.Mailbox) error {
	for {
		select {
		case event := <-conn.Events():
			frame, err := structpb.NewStruct(wire.EventMap(event))
			if err != nil {
				h.logger.Error("Chat handler: failed to encode event",
					"connection_id", conn.ID(),
					"error", err.Error())
				continue
			}
			if err := stream.Send(frame); err != nil {
				return err
			}
		case <-conn.Closed():
			return status.Error(codes.Unavailable, "connection closed by server")
		}
	}
}

func (h *Chat) recvLoop(stream ChatConnectServer, conn *hub.Mailbox, log *logger.Logger) error {
	limiter := rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), h.opts.MessageBurst)
	ctx := context.WithoutCancel(stream.Context())

	for {
		frame, err := stream.Recv()
		if err != nil {
			return err
		}

		if !limiter.Allow() {
			h.metrics.MessageRejected(metrics.RejectRateLimited)
			log.Debug("Chat handler: rate limit exceeded, discarding message")
			continue
		}

		fields := frame.AsMap()
		event, _ := fields["event"].(string)
		in, err := wire.DecodeEvent(event, fields["data"])
		if err != nil {
			h.metrics.MessageRejected(metrics.RejectMalformed)
			log.Debug("Chat handler: discarding malformed frame",
				"error", err.Error())
			continue
		}

		if _, err := h.hub.Submit(ctx, conn, in); err != nil {
			log.Debug("Chat handler: submission dropped",
				"error", err.Error())
		}
	}
}
