package monitor

import (
	"fmt"

	"github.com/joe-el-khoury/fbzmq/internal/observability"
	"github.com/joe-el-khoury/fbzmq/internal/transport"
	"github.com/joe-el-khoury/fbzmq/internal/wire"
)

// Broadcaster pushes publications onto the publish socket. The control
// loop is the only producer, so subscribers observe publications in
// exactly the order they were produced; overflow handling for slow
// subscribers lives in the socket's PubConfig.
type Broadcaster struct {
	sock transport.PubSocket
}

func NewBroadcaster(sock transport.PubSocket) *Broadcaster {
	return &Broadcaster{sock: sock}
}

func (b *Broadcaster) Broadcast(pub wire.Publication) error {
	if err := pub.Validate(); err != nil {
		return err
	}
	payload, err := wire.EncodeBytes(pub)
	if err != nil {
		return fmt.Errorf("monitor: encode publication: %w", err)
	}
	if err := b.sock.Send(payload); err != nil {
		return fmt.Errorf("monitor: publish: %w", err)
	}
	observability.RecordPublication(pub.Type.String())
	return nil
}
