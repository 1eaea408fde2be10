// Package natsbridge links a local bus to other kernel processes over NATS.
// Local messages are published to "<prefix>.<kind>" subjects and remote
// messages are republished on the local bus. Each bridge stamps its node id
// in a header so it ignores its own traffic.
package natsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/hupe1980/agentkernel/bus"
	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

// NodeHeader carries the id of the publishing bridge.
const NodeHeader = "Agentkernel-Node"

// maxInjected bounds the set of remote message ids awaiting suppression.
const maxInjected = 4096

// Options configures a Bridge.
type Options struct {
	// Prefix is the subject prefix. Defaults to "agentkernel.bus".
	Prefix string
	// NodeID identifies this process. Defaults to a random id.
	NodeID string
	Logger logging.Logger
}

// Bridge forwards messages between a local bus and NATS.
type Bridge struct {
	nc     *nats.Conn
	bus    *bus.Bus
	opts   Options
	logger logging.Logger

	mu       sync.Mutex
	injected map[string]struct{}
}

// New creates a bridge. Call Run to start forwarding.
func New(nc *nats.Conn, b *bus.Bus, optFns ...func(o *Options)) *Bridge {
	opts := Options{Prefix: "agentkernel.bus", NodeID: core.NewID(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bridge{nc: nc, bus: b, opts: opts, logger: opts.Logger, injected: map[string]struct{}{}}
}

// NodeID returns the id stamped on outgoing messages.
func (br *Bridge) NodeID() string { return br.opts.NodeID }

// Subject returns the NATS subject used for kind.
func (br *Bridge) Subject(kind core.MessageKind) string {
	return br.opts.Prefix + "." + string(kind)
}

// Run forwards in both directions until ctx is done. It returns ctx.Err()
// on cancellation or the first NATS error.
func (br *Bridge) Run(ctx context.Context) error {
	local := br.bus.SubscribeAs("nats-bridge")
	defer local.Close()

	remote, err := br.nc.Subscribe(br.opts.Prefix+".>", br.handleRemote)
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer func() { _ = remote.Unsubscribe() }()

	for {
		msg, err := local.Recv(ctx)
		var lag *bus.LaggedError
		switch {
		case errors.As(err, &lag):
			br.logger.Warn("natsbridge.lagged", "missed", lag.Missed)
			continue
		case err != nil:
			return err
		}
		if br.consumeInjected(msg.ID) {
			continue
		}
		if err := br.forward(msg); err != nil {
			return err
		}
	}
}

func (br *Bridge) forward(msg core.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		br.logger.Warn("natsbridge.encode_failed", "message_id", msg.ID, "error", err)
		return nil
	}
	out := nats.NewMsg(br.Subject(msg.Kind))
	out.Header.Set(NodeHeader, br.opts.NodeID)
	out.Data = data
	if err := br.nc.PublishMsg(out); err != nil {
		return fmt.Errorf("nats publish %s: %w", out.Subject, err)
	}
	return nil
}

func (br *Bridge) handleRemote(m *nats.Msg) {
	if m.Header.Get(NodeHeader) == br.opts.NodeID {
		return
	}
	var msg core.Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		br.logger.Warn("natsbridge.decode_failed", "subject", m.Subject, "error", err)
		return
	}
	br.markInjected(msg.ID)
	br.bus.Publish(msg)
}

func (br *Bridge) markInjected(id string) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if len(br.injected) >= maxInjected {
		br.injected = map[string]struct{}{}
	}
	br.injected[id] = struct{}{}
}

func (br *Bridge) consumeInjected(id string) bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	if _, ok := br.injected[id]; ok {
		delete(br.injected, id)
		return true
	}
	return false
}
