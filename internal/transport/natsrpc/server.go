// Package natsrpc serves fraud scoring over NATS request-reply, for services
// that already talk to each other over the message bus.
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/jobs"
	"github.com/dvloznov/fraud-scoring/internal/logger"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Defaults for the subject and queue group scorers listen on.
const (
	DefaultSubject    = "fraud.score"
	DefaultQueueGroup = "fraud-scorers"
)

// AsyncSuffix is appended to the subject for fire-and-forget requests that
// are scored in the background and recorded on the ledger.
const AsyncSuffix = ".async"

// Reply is the response body. A rejected request still carries the
// non-fraud default so callers that ignore Error keep working.
type Reply struct {
	domain.ScoringResult
	Error string `json:"error,omitempty"`
}

// AsyncReply acknowledges an enqueued request.
type AsyncReply struct {
	JobID string `json:"job_id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Scorer is the scoring entry point the transport depends on.
type Scorer interface {
	Score(ctx context.Context, tx domain.Transaction, userID string) domain.ScoringResult
}

// Server answers scoring requests on a NATS queue group, so several
// instances share the load.
type Server struct {
	nc        *nats.Conn
	subject   string
	queue     string
	scorer    Scorer
	publisher jobs.Publisher
	log       zerolog.Logger

	ctx  context.Context
	subs []*nats.Subscription
}

// NewServer creates a server. publisher may be nil, in which case only the
// synchronous subject is served.
func NewServer(nc *nats.Conn, subject, queue string, scorer Scorer, publisher jobs.Publisher, log zerolog.Logger) *Server {
	if subject == "" {
		subject = DefaultSubject
	}
	if queue == "" {
		queue = DefaultQueueGroup
	}
	return &Server{
		nc:        nc,
		subject:   subject,
		queue:     queue,
		scorer:    scorer,
		publisher: publisher,
		log:       log.With().Str("subject", subject).Logger(),
	}
}

// Start subscribes to the scoring subjects. Handlers run with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx

	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, func(m *nats.Msg) {
		s.respond(m, s.handle(s.ctx, m.Data))
	})
	if err != nil {
		return fmt.Errorf("Start: subscribing to %s: %w", s.subject, err)
	}
	s.subs = append(s.subs, sub)

	if s.publisher != nil {
		async := s.subject + AsyncSuffix
		sub, err := s.nc.QueueSubscribe(async, s.queue, func(m *nats.Msg) {
			reply := s.handleAsync(s.ctx, m.Data)
			if m.Reply != "" {
				s.respond(m, reply)
			}
		})
		if err != nil {
			s.Drain()
			return fmt.Errorf("Start: subscribing to %s: %w", async, err)
		}
		s.subs = append(s.subs, sub)
	}

	s.log.Info().Str("queue_group", s.queue).Bool("async", s.publisher != nil).Msg("NATS scoring server started")
	return nil
}

// Drain stops taking new requests and lets in-flight ones finish.
func (s *Server) Drain() {
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			s.log.Warn().Err(err).Str("subject", sub.Subject).Msg("Failed to drain subscription")
		}
	}
	s.subs = nil
}

func (s *Server) respond(m *nats.Msg, body []byte) {
	if err := m.Respond(body); err != nil && !errors.Is(err, nats.ErrMsgNoReply) {
		s.log.Warn().Err(err).Msg("Failed to send reply")
	}
}

// handle scores one request body and returns the reply body.
func (s *Server) handle(ctx context.Context, data []byte) []byte {
	req, err := decodeRequest(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("Rejected scoring request")
		return mustMarshal(Reply{Error: err.Error()})
	}

	ctx = logger.WithContext(ctx, s.log)
	result := s.scorer.Score(ctx, req.Transaction(), req.UserID)
	return mustMarshal(Reply{ScoringResult: result})
}

// handleAsync enqueues one request body and returns the acknowledgement.
func (s *Server) handleAsync(ctx context.Context, data []byte) []byte {
	req, err := decodeRequest(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("Rejected async scoring request")
		return mustMarshal(AsyncReply{Error: err.Error()})
	}

	job := &jobs.ScoreTransactionJob{Request: req}
	if err := s.publisher.PublishScore(ctx, job); err != nil {
		s.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to enqueue scoring job")
		return mustMarshal(AsyncReply{Error: "failed to enqueue scoring job"})
	}
	return mustMarshal(AsyncReply{JobID: job.JobID})
}

func decodeRequest(data []byte) (domain.ScoreRequest, error) {
	var req domain.ScoreRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// mustMarshal encodes reply types, which contain only plain fields.
func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("natsrpc: marshaling %T: %v", v, err))
	}
	return b
}
