package transport

import (
	"context"
	"fmt"

	"github.com/streamtap-project/streamtap/internal/protocol"
)

// Transport delivers batch responses until stopped.
type Transport interface {
	// Name identifies the transport in logs and state.
	Name() string
	// Start performs the handshake and begins delivery in the background.
	Start(ctx context.Context) error
	// Stop begins shutdown without waiting. It is safe to call from callbacks.
	Stop()
	// Close stops the transport and waits for its delivery goroutine to
	// finish. When ctx is one handed to a callback of this transport the
	// caller is that goroutine, and Close does not wait.
	Close(ctx context.Context) error
}

// Callbacks receive a transport's output on its delivery goroutine. Any
// field may be nil. The context marks the delivery goroutine and is never
// canceled.
type Callbacks struct {
	OnBatch       func(ctx context.Context, resp *protocol.BatchResponse)
	OnDecodeError func(ctx context.Context, err error)
	OnError       func(ctx context.Context, err error)
	OnClose       func(ctx context.Context, err error)
}

func (c Callbacks) batch(ctx context.Context, resp *protocol.BatchResponse) {
	if c.OnBatch != nil {
		c.OnBatch(ctx, resp)
	}
}

func (c Callbacks) decodeFailed(ctx context.Context, err error) {
	if c.OnDecodeError != nil {
		c.OnDecodeError(ctx, err)
	}
}

func (c Callbacks) failed(ctx context.Context, err error) {
	if c.OnError != nil {
		c.OnError(ctx, err)
	}
}

func (c Callbacks) closed(ctx context.Context, err error) {
	if c.OnClose != nil {
		c.OnClose(ctx, err)
	}
}

type deliveryKey struct{}

func deliveryContext(t Transport) context.Context {
	return context.WithValue(context.Background(), deliveryKey{}, t)
}

// inDelivery reports whether ctx was handed to a callback of t.
func inDelivery(ctx context.Context, t Transport) bool {
	owner, ok := ctx.Value(deliveryKey{}).(Transport)
	return ok && owner == t
}

// ClosedError reports a transport that stopped on its own.
type ClosedError struct {
	Transport string
	Err       error
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("%s transport closed: %v", e.Transport, e.Err)
}

func (e *ClosedError) Unwrap() error { return e.Err }
