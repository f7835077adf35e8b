package mqtt

import (
	"fmt"
	"log"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is an in-process MQTT broker for installs without one.
type Broker struct {
	server *mochi.Server
}

// StartBroker listens on address and serves MQTT. When username is set, only that
// user may connect; otherwise every client is allowed.
func StartBroker(address, username, password string) (*Broker, error) {
	server := mochi.New(&mochi.Options{
		InlineClient: true,
	})

	var err error
	if username == "" {
		err = server.AddHook(new(auth.AllowHook), nil)
	} else {
		err = server.AddHook(new(auth.Hook), &auth.Options{
			Ledger: &auth.Ledger{
				Auth: auth.AuthRules{ // Auth disallows all by default
					{Username: auth.RString(username), Password: auth.RString(password), Allow: true},
				},
			},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("broker auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("broker listener %s: %w", address, err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			log.Printf("[Broker] Serve error: %v", err)
		}
	}()

	log.Printf("[Broker] Embedded MQTT broker listening on %s", address)
	return &Broker{server: server}, nil
}

// Close stops the broker and disconnects its clients.
func (b *Broker) Close() error {
	return b.server.Close()
}
