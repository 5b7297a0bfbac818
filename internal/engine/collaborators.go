package engine

import "context"

// Ingress feeds raw wire frames into the engine. Listen blocks until ctx
// is cancelled or the transport fails, calling onFrame for every frame it
// receives with the frame bytes and an arrival timestamp in microseconds
// since epoch. The engine itself peeks the declared fee out of the frame
// to price it into the backpressure queue, so Ingress implementations
// never need to understand the wire format beyond framing.
type Ingress interface {
	Listen(ctx context.Context, onFrame func(raw []byte, arrivedAt int64)) error
}
