// Package channel routes typed messages to the autofill operations and wraps
// every outcome in the {success, data} / {success: false, error, code}
// envelope.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
)

// Message is one request on the channel.
type Message struct {
	Type   domain.Operation `json:"type"`
	Data   json.RawMessage  `json:"data,omitempty"`
	PageID string           `json:"pageId,omitempty"`
}

// Response is the envelope returned for every message.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Handler serves one operation. The payload is the raw message data.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Respond receives the envelope. It is called exactly once per dispatch.
type Respond func(Response)

type route struct {
	handler Handler
	async   bool
}

// Dispatcher maps operation names to handlers.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[domain.Operation]route
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{routes: make(map[domain.Operation]route), logger: logger}
}

// Register adds an asynchronous handler: Dispatch returns immediately with
// keepOpen set and the response arrives later.
func (d *Dispatcher) Register(op domain.Operation, h Handler) {
	d.add(op, route{handler: h, async: true})
}

// RegisterSync adds a handler that responds before Dispatch returns.
func (d *Dispatcher) RegisterSync(op domain.Operation, h Handler) {
	d.add(op, route{handler: h})
}

func (d *Dispatcher) add(op domain.Operation, r route) {
	d.mu.Lock()
	d.routes[op] = r
	d.mu.Unlock()
}

// Operations returns the registered operation names.
func (d *Dispatcher) Operations() []domain.Operation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ops := make([]domain.Operation, 0, len(d.routes))
	for _, op := range domain.Operations() {
		if _, ok := d.routes[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// Dispatch routes msg and reports whether the response is still pending.
// Unknown operations are answered synchronously with UNKNOWN_OPERATION.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, respond Respond) (keepOpen bool) {
	d.mu.RLock()
	r, ok := d.routes[msg.Type]
	d.mu.RUnlock()

	if !ok {
		respond(Failure(domain.ErrUnknownOperation(string(msg.Type))))
		return false
	}

	if !r.async {
		respond(d.invoke(ctx, msg, r.handler))
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		respond(d.invoke(ctx, msg, r.handler))
	}()
	return true
}

// Call dispatches msg and waits for its response.
func (d *Dispatcher) Call(ctx context.Context, msg Message) Response {
	done := make(chan Response, 1)
	d.Dispatch(ctx, msg, func(resp Response) { done <- resp })
	return <-done
}

// Wait blocks until every pending asynchronous handler has responded.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) invoke(ctx context.Context, msg Message, h Handler) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("handler panic",
				zap.String("operation", string(msg.Type)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			resp = Failure(domain.ErrInternal(fmt.Sprintf("operation %s failed", msg.Type)))
		}
	}()

	data, err := h(ctx, msg.Data)
	if err != nil {
		d.logger.Debug("operation failed",
			zap.String("operation", string(msg.Type)),
			zap.String("code", domain.GetErrorCode(err)),
			zap.Error(err),
		)
		return Failure(err)
	}
	return Success(data)
}

// Success wraps data in a success envelope.
func Success(data any) Response {
	return Response{Success: true, Data: data}
}

// Failure wraps err in a failure envelope. The message is the user-facing
// text; details and causes stay in the logs.
func Failure(err error) Response {
	if appErr, ok := domain.AsAppError(err); ok {
		return Response{Error: appErr.Message, Code: appErr.Code}
	}
	return Response{Error: err.Error(), Code: domain.ErrCodeInternal}
}

// decode unmarshals payload into v, treating an empty payload as {}.
func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.ErrValidation("message data is not valid JSON").WithCause(err)
	}
	return nil
}
