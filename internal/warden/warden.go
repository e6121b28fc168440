// Package warden implements the optional observer network: a
// libp2p-pubsub broadcast of finalized verifications so an independent
// warden network can track settled Sends/Merges without being
// load-bearing for program correctness (processor.Notifier).
package warden

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/multiformats/go-multiaddr"

	"github.com/elusiv/core/internal/account"
)

// FinalizedTopic is the gossip topic finalized verifications are
// broadcast on.
const FinalizedTopic = "elusiv/finalized-verifications"

// Event is the wire payload broadcast for one finalized verification.
type Event struct {
	Kind       uint8
	TokenID    uint16
	IsVerified bool
}

// Encode serializes e for publication.
func (e Event) Encode() []byte {
	buf := make([]byte, 4)
	buf[0] = e.Kind
	binary.LittleEndian.PutUint16(buf[1:3], e.TokenID)
	if e.IsVerified {
		buf[3] = 1
	}
	return buf
}

// DecodeEvent parses a published payload back into an Event.
func DecodeEvent(b []byte) (Event, bool) {
	if len(b) < 4 {
		return Event{}, false
	}
	return Event{
		Kind:       b[0],
		TokenID:    binary.LittleEndian.Uint16(b[1:3]),
		IsVerified: b[3] != 0,
	}, true
}

// Config holds warden network configuration.
type Config struct {
	ListenAddrs []string
	PrivateKey  crypto.PrivKey
}

// DefaultConfig returns the default local warden configuration.
func DefaultConfig() *Config {
	return &Config{ListenAddrs: []string{"/ip4/0.0.0.0/tcp/9500"}}
}

// Network is a processor.Notifier backed by a libp2p gossip topic.
type Network struct {
	mu sync.Mutex

	host  host.Host
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	ctx   context.Context
}

// NewNetwork joins the finalized-verifications topic on a fresh libp2p
// host.
func NewNetwork(ctx context.Context, cfg *Config) (*Network, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate warden identity: %w", err)
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid warden listen address: %w", err)
		}
		listenAddrs[i] = ma
	}

	h, err := libp2p.New(libp2p.Identity(privKey), libp2p.ListenAddrs(listenAddrs...))
	if err != nil {
		return nil, fmt.Errorf("create warden host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("create warden pubsub: %w", err)
	}

	topic, err := ps.Join(FinalizedTopic)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("join warden topic: %w", err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("subscribe warden topic: %w", err)
	}

	return &Network{host: h, topic: topic, sub: sub, ctx: ctx}, nil
}

// NotifyFinalized publishes acc's outcome, swallowing publish errors: a
// lost observer broadcast never fails the finalize instruction it
// rides on.
func (n *Network) NotifyFinalized(ctx context.Context, acc *account.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()

	verified := acc.IsVerified != nil && *acc.IsVerified
	evt := Event{Kind: uint8(acc.Kind), TokenID: acc.TokenID, IsVerified: verified}
	_ = n.topic.Publish(ctx, evt.Encode())
}

// Events returns a channel of decoded events received from peers,
// closed when ctx is cancelled.
func (n *Network) Events(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			msg, err := n.sub.Next(ctx)
			if err != nil {
				return
			}
			if msg.ReceivedFrom == n.host.ID() {
				continue
			}
			if evt, ok := DecodeEvent(msg.Data); ok {
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close shuts the warden host down.
func (n *Network) Close() error {
	n.sub.Cancel()
	return n.host.Close()
}
