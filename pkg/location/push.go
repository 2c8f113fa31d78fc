package location

import "context"

// Push is the live-mode provider when positioning comes from outside the
// process: the UI watches device geolocation and relays each fix through the
// HTTP surface, which feeds the sink directly. The provider itself only marks
// the mode active.
type Push struct{}

// NewPush creates a Push provider.
func NewPush() *Push {
	return &Push{}
}

// Start is a no-op; samples arrive via the HTTP surface.
func (p *Push) Start(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (p *Push) Close() error {
	return nil
}
