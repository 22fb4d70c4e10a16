package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/resilience"
)

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("knowledge-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishIngest enqueues one document for asynchronous ingestion.
func (q *Queue) PublishIngest(ctx context.Context, doc domain.SourceDocument) error {
	msg, err := newIngestMsg(q.subject, doc)
	if err != nil {
		return err
	}
	err = q.execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	})
	return publishError(doc.Filename, err)
}

// RequestIngest publishes one document and waits for the consumer's result.
// Without a running consumer it fails fast with ErrUnavailable.
func (q *Queue) RequestIngest(ctx context.Context, doc domain.SourceDocument) (*domain.IngestResult, error) {
	msg, err := newIngestMsg(q.subject, doc)
	if err != nil {
		return nil, err
	}
	var reply *nats.Msg
	err = q.execute(ctx, "nats.request", func(callCtx context.Context) error {
		resp, reqErr := q.conn.RequestMsgWithContext(callCtx, msg)
		if reqErr != nil {
			return fmt.Errorf("nats request: %w", reqErr)
		}
		reply = resp
		return nil
	})
	if err != nil {
		return nil, publishError(doc.Filename, err)
	}
	return decodeReply(doc.Filename, reply.Data)
}

func (q *Queue) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if q.executor == nil {
		return call(ctx)
	}
	return q.executor.Execute(ctx, operation, call, classifyNATSError)
}

// IngestHandler ingests one queued document.
type IngestHandler func(context.Context, domain.SourceDocument) (*domain.IngestResult, error)

// SubscribeIngest consumes ingest messages in the "ingestors" queue group until
// ctx is done. Messages sent with RequestIngest get the handler's outcome back.
func (q *Queue) SubscribeIngest(ctx context.Context, handler IngestHandler) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "ingestors", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		doc, err := decodeIngestMsg(msg)
		if err != nil {
			q.logger.Warn("ingest_message_invalid", "filename", msg.Header.Get(headerFilename), "error", err)
			q.respond(msg, nil, domain.WrapError(domain.ErrInvalidInput, "queue", err))
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		result, err := handler(handlerCtx, doc)
		if err != nil {
			q.logger.Error("ingest_handler_failed",
				"filename", doc.Filename,
				"fingerprint", msg.Header.Get(headerFingerprint),
				"error", err,
			)
		}
		q.respond(msg, result, err)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) respond(msg *nats.Msg, result *domain.IngestResult, err error) {
	if msg.Reply == "" {
		return
	}
	if respondErr := msg.Respond(encodeReply(result, err)); respondErr != nil {
		q.logger.Warn("ingest_reply_failed", "reply", msg.Reply, "error", respondErr)
	}
}
