package broker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// SubjectPrefix namespaces every engine event on the NATS bus.
const SubjectPrefix = "arena.events."

// Subject returns the NATS subject for an event type.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// NewPublisher connects a core-NATS watermill publisher. A non-empty nkeySeed
// authenticates with the seed's public key.
func NewPublisher(url, nkeySeed string, logger *slog.Logger) (message.Publisher, error) {
	options := []nc.Option{
		nc.Name("tle-arena"),
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
	}
	if nkeySeed != "" {
		opt, err := nkeyOption(nkeySeed)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	pub, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:               url,
			NatsOptions:       options,
			Marshaler:         &nats.NATSMarshaler{},
			JetStream:         nats.JetStreamConfig{Disabled: true},
			SubjectCalculator: nats.DefaultSubjectCalculator,
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	return pub, nil
}

func nkeyOption(seed string) (nc.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS nkey seed: %w", err)
	}
	pubKey, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive nkey public key: %w", err)
	}
	return nc.Nkey(pubKey, func(nonce []byte) ([]byte, error) {
		return kp.Sign(nonce)
	}), nil
}
