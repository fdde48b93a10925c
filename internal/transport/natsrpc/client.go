package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/nats-io/nats.go"
)

// ErrRejected is returned when the server refused the request body.
var ErrRejected = errors.New("scoring request rejected")

// DefaultRequestTimeout applies when the caller's context has no deadline.
const DefaultRequestTimeout = 3 * time.Second

// Client asks a Server for scores.
type Client struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// NewClient creates a client for subject, DefaultSubject when empty.
func NewClient(nc *nats.Conn, subject string) *Client {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Client{nc: nc, subject: subject, timeout: DefaultRequestTimeout}
}

// Score requests a synchronous score.
func (c *Client) Score(ctx context.Context, req domain.ScoreRequest) (domain.ScoringResult, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return domain.ScoringResult{}, fmt.Errorf("Score: encoding request: %w", err)
	}

	msg, err := c.request(ctx, c.subject, data)
	if err != nil {
		return domain.ScoringResult{}, fmt.Errorf("Score: %w", err)
	}
	return decodeReply(msg.Data)
}

// ScoreAsync enqueues a request and returns the job id.
func (c *Client) ScoreAsync(ctx context.Context, req domain.ScoreRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("ScoreAsync: encoding request: %w", err)
	}

	msg, err := c.request(ctx, c.subject+AsyncSuffix, data)
	if err != nil {
		return "", fmt.Errorf("ScoreAsync: %w", err)
	}

	var reply AsyncReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return "", fmt.Errorf("ScoreAsync: decoding reply: %w", err)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRejected, reply.Error)
	}
	return reply.JobID, nil
}

func (c *Client) request(ctx context.Context, subject string, data []byte) (*nats.Msg, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", subject, err)
	}
	return msg, nil
}

func decodeReply(data []byte) (domain.ScoringResult, error) {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return domain.ScoringResult{}, fmt.Errorf("decoding reply: %w", err)
	}
	if reply.Error != "" {
		return reply.ScoringResult, fmt.Errorf("%w: %s", ErrRejected, reply.Error)
	}
	return reply.ScoringResult, nil
}
