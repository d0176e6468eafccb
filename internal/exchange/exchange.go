package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brunelhq/brunel-support/internal/automation"
	"github.com/brunelhq/brunel-support/internal/storage"
	"github.com/brunelhq/brunel-support/internal/tokens"
)

// errUnusableResponse reports a one-shot or terminal payload that did
// not normalize into the canonical shape.
var errUnusableResponse = errors.New("automation response did not contain a usable payload")

// transportError wraps a network-level failure talking to the
// automation endpoint.
type transportError struct {
	err error
}

func (e *transportError) Error() string {
	return e.err.Error()
}

func (e *transportError) Unwrap() error {
	return e.err
}

// ProvisionalMessage is the in-memory placeholder for an assistant reply
// still being assembled. Its ID carries the temp- prefix so consumers can
// recognize and discard it once the durable message lands.
type ProvisionalMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProgressFunc receives a snapshot of the provisional message on every
// accepted content change, in decode order.
type ProgressFunc func(msg ProvisionalMessage)

// Option configures the service.
type Option func(*Service)

// WithEstimator enables token usage logging for completed exchanges.
func WithEstimator(est *tokens.Estimator) Option {
	return func(s *Service) {
		s.estimator = est
	}
}

// WithAllocator overrides the provisional ID allocator.
func WithAllocator(ids *Allocator) Option {
	return func(s *Service) {
		s.ids = ids
	}
}

// Service reconciles one user prompt into exactly one durable assistant
// message. It exclusively owns the provisional message lifecycle and is
// the only writer of the durable outcome.
type Service struct {
	store     storage.ConversationStore
	client    *automation.Client
	ids       *Allocator
	estimator *tokens.Estimator
	logger    *slog.Logger
}

// NewService wires the controller against its collaborators.
func NewService(store storage.ConversationStore, client *automation.Client, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		client: client,
		ids:    NewAllocator(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send runs one exchange: it records the user's message, relays the
// prompt to the automation endpoint, drives the streaming or one-shot
// decode path, and persists exactly one durable outcome message. When
// the exchange fails that message carries a synthesized failure
// explanation instead of a payload. The returned
// error is non-nil only when the user message could not be recorded or
// when even the outcome write failed.
//
// Cancelling ctx stops in-flight reads; the outcome write then runs on a
// short detached context so no exchange leaves a dangling provisional
// message. Concurrent Sends against the same conversation are the
// caller's responsibility to serialize.
func (s *Service) Send(ctx context.Context, conversationID, prompt string, progress ProgressFunc) (*storage.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := &storage.Message{
		ID:      uuid.NewString(),
		Role:    storage.RoleUser,
		Content: prompt,
	}
	if err := s.store.AddMessage(ctx, conversationID, userMsg); err != nil {
		return nil, fmt.Errorf("couldn't record your message: %w", err)
	}

	payload, exchErr := s.run(ctx, conversationID, prompt, progress)

	outcome := &storage.Message{
		ID:   uuid.NewString(),
		Role: storage.RoleAssistant,
	}
	if exchErr != nil {
		s.logger.Error("exchange failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", exchErr.Error()))
		outcome.Content = failureText(exchErr)
	} else {
		outcome.Content = payload.ChatResponse
		outcome.Payload = payload
	}

	writeCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := s.store.AddMessage(writeCtx, conversationID, outcome); err != nil {
		return nil, fmt.Errorf("the exchange failed and the result couldn't be recorded: %w", err)
	}

	now := time.Now()
	update := storage.ConversationUpdate{UpdatedAt: &now}
	if title := maybeRetitle(conv.Title, prompt); title != conv.Title {
		update.Title = &title
	}
	if err := s.store.UpdateConversation(writeCtx, conversationID, update); err != nil {
		s.logger.Error("failed to update conversation metadata",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()))
	}

	s.logUsage(conversationID, prompt, outcome.Content)
	return outcome, nil
}

// run performs the network exchange and returns the normalized payload.
func (s *Service) run(ctx context.Context, conversationID, prompt string, progress ProgressFunc) (*automation.Payload, error) {
	resp, err := s.client.Send(ctx, &automation.Request{
		Prompt:         prompt,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, &transportError{err: err}
	}

	if resp.Stream != nil {
		return s.consumeStream(resp.Stream, progress)
	}

	var raw any
	if err := json.Unmarshal(resp.Document, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnusableResponse, err)
	}
	payload := automation.Normalize(raw)
	if payload == nil {
		return nil, errUnusableResponse
	}
	return payload, nil
}

// consumeStream drives the framer and interpreter over the event stream,
// reporting every accepted content change through progress.
func (s *Service) consumeStream(stream io.ReadCloser, progress ProgressFunc) (*automation.Payload, error) {
	defer stream.Close()

	provisional := ProvisionalMessage{
		ID:   s.ids.Allocate(),
		Role: storage.RoleAssistant,
	}
	if progress != nil {
		progress(provisional)
	}

	framer := &automation.LineFramer{}
	interp := automation.NewInterpreter(s.logger)
	buf := make([]byte, 4096)

	for {
		n, err := stream.Read(buf)
		if n > 0 {
			for _, line := range framer.Feed(buf[:n]) {
				s.applyLine(interp, line, &provisional, progress)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &transportError{err: err}
		}
	}
	if line, ok := framer.Flush(); ok {
		s.applyLine(interp, line, &provisional, progress)
	}

	return interp.Finalize()
}

func (s *Service) applyLine(interp *automation.Interpreter, line string, provisional *ProvisionalMessage, progress ProgressFunc) {
	ev, err := automation.ParseLine(line)
	if err != nil {
		s.logger.Warn("skipping malformed stream line", slog.String("error", err.Error()))
		return
	}
	if interp.Apply(ev) {
		provisional.Content = interp.Content()
		if progress != nil {
			progress(*provisional)
		}
	}
}

func (s *Service) logUsage(conversationID, prompt, reply string) {
	if s.estimator == nil {
		return
	}
	s.logger.Info("exchange complete",
		slog.String("conversation_id", conversationID),
		slog.Int("prompt_tokens", s.estimator.Count(prompt)),
		slog.Int("reply_tokens", s.estimator.Count(reply)))
}

// failureText renders an exchange failure as the content of the durable
// outcome message, so the caller always sees a readable explanation
// rather than a perpetually pending reply.
func failureText(err error) string {
	var streamErr *automation.StreamError
	var netErr *transportError
	switch {
	case errors.As(err, &streamErr):
		return fmt.Sprintf("The automation workflow reported an error: %s", streamErr.Message)
	case errors.Is(err, automation.ErrEmptyStream):
		return "The automation service ended the stream without sending a message."
	case errors.As(err, &netErr):
		return fmt.Sprintf("I couldn't reach the automation service: %v. Please try again in a moment.", netErr.Unwrap())
	case errors.Is(err, errUnusableResponse):
		return "I couldn't make sense of the automation service's response."
	default:
		return fmt.Sprintf("Something went wrong while handling your message: %v.", err)
	}
}
