package ledger

import (
	"context"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mosaicswap/escrow-engine/pkg/models"
)

const (
	topicConfirmedAdded = "confirmedAdded"
	topicPartialAdded   = "partialAdded"
)

// SubscribeConfirmed watches for hash confirming on address.
func (c *Client) SubscribeConfirmed(ctx context.Context, address, hash string) (Subscription, error) {
	return c.subscribe(ctx, topicConfirmedAdded, address, hash)
}

// SubscribeBondedAdded watches for hash entering the partial pool on address.
func (c *Client) SubscribeBondedAdded(ctx context.Context, address, hash string) (Subscription, error) {
	return c.subscribe(ctx, topicPartialAdded, address, hash)
}

type handshakeMessage struct {
	UID string `json:"uid"`
}

type subscribeMessage struct {
	UID       string `json:"uid"`
	Subscribe string `json:"subscribe"`
}

type eventMessage struct {
	Topic string `json:"topic"`
	Data  struct {
		Meta struct {
			Hash string `json:"hash"`
		} `json:"meta"`
	} `json:"data"`
}

// wsSubscription is a single-hash subscription over the node websocket.
type wsSubscription struct {
	conn     *websocket.Conn
	notified chan struct{}
	closing  chan struct{}
	once     sync.Once
}

var _ Subscription = (*wsSubscription)(nil)

func (s *wsSubscription) Notified() <-chan struct{} { return s.notified }

func (s *wsSubscription) Close() {
	s.once.Do(func() {
		close(s.closing)
		// Unblocks the read loop.
		_ = s.conn.Close()
	})
}

func (c *Client) subscribe(ctx context.Context, topic, address, hash string) (Subscription, error) {
	node, err := c.endpoints.Endpoint(ctx)
	if err != nil {
		return nil, err
	}

	wsURL := strings.Replace(node, "http", "ws", 1) + "/ws"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.endpoints.ReportFailure(node)
		return nil, errors.Wrapf(models.ErrNodeUnreachable, "dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	// The node opens the session by assigning a uid, which must be echoed
	// back with each subscription.
	var handshake handshakeMessage
	if err := conn.ReadJSON(&handshake); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "websocket handshake")
	}

	sub := subscribeMessage{UID: handshake.UID, Subscribe: topic + "/" + address}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "subscribe to %s", sub.Subscribe)
	}

	subscription := &wsSubscription{
		conn:     conn,
		notified: make(chan struct{}, 1),
		closing:  make(chan struct{}),
	}

	go c.readLoop(subscription, sub.Subscribe, hash)

	return subscription, nil
}

// readLoop delivers at most one notification, when an event on the
// subscribed topic matches the watched hash.
func (c *Client) readLoop(sub *wsSubscription, topic, hash string) {
	for {
		var event eventMessage
		if err := sub.conn.ReadJSON(&event); err != nil {
			select {
			case <-sub.closing:
				// Closed by the consumer; not an error.
			default:
				c.logger.Debug("websocket read on %s ended: %v", topic, err)
			}
			return
		}

		if event.Topic != topic || !strings.EqualFold(event.Data.Meta.Hash, hash) {
			continue
		}

		select {
		case sub.notified <- struct{}{}:
		default:
		}
		return
	}
}
