// Package nats connects actors to NATS subjects.
//
// A Bridge routes subjects into actors (Route for plain messages, Serve for
// request/reply), publishes on behalf of actors (Publisher) and issues NATS
// requests whose replies come back as call results (RequestAsCall).
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/actorrt/core/actor"
)

// Message codes used by the bridge. They sit above the runtime's reserved
// codes; applications should not reuse them for other meanings.
const (
	// CodeDelivery carries a *Delivery from a routed subject.
	CodeDelivery actor.Code = 5001
	// CodePublish asks a Publisher to publish a *Publication.
	CodePublish actor.Code = 5002
	// codeForward hands an incoming request to the responder actor.
	codeForward actor.Code = 5003
)

var (
	ErrBridgeClosed = errors.New("nats bridge closed")
	ErrBadPayload   = errors.New("unexpected payload")
)

// Delivery is a message received on a routed subject. Reply is empty for
// plain publications.
type Delivery struct {
	Subject string
	Reply   string
	Data    []byte
}

// responseFrame is the reply encoding used by Serve and expected by
// RequestAsCall.
type responseFrame struct {
	Data []byte `json:"data,omitempty"`
	Err  string `json:"err,omitempty"`
}

// publisher is the part of *natsgo.Conn the actors need.
type publisher interface {
	Publish(subject string, data []byte) error
}

type BridgeConfig struct {
	Runtime actor.Runtime // Runtime hosting the routed actors. Required.
	Connect Connector     // Connect is used to create the NATS connection. If nil, ConnectDefault() is used.
	Log     *slog.Logger  // Log for diagnostics (optional)
	// RequestTimeout bounds Serve'd requests inside the runtime. Defaults to 5s.
	RequestTimeout time.Duration
}

// Bridge owns one NATS connection and the subscriptions feeding actors.
type Bridge struct {
	rt      actor.Runtime
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	timeout time.Duration

	mu        sync.Mutex
	subs      map[*natsgo.Subscription]struct{}
	responder actor.ID

	closed atomic.Bool
}

func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Runtime == nil {
		return nil, errors.New("nats bridge: runtime is required")
	}
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, fmt.Errorf("nats bridge: connect: %w", err)
	}

	return &Bridge{
		rt:      cfg.Runtime,
		nc:      nc,
		closeNc: closeNc,
		log:     log.With(slog.String("bridge", "nats")),
		timeout: timeout,
		subs:    make(map[*natsgo.Subscription]struct{}),
	}, nil
}

// Conn exposes the underlying connection.
func (b *Bridge) Conn() *natsgo.Conn { return b.nc }

// Route delivers every message on subject to target as a CodeDelivery
// message. Messages on one subject keep their order.
func (b *Bridge) Route(subject string, target actor.ID) (Subscription, error) {
	return b.subscribe(subject, func(msg *natsgo.Msg) {
		b.rt.Send(target, CodeDelivery, &Delivery{Subject: msg.Subject, Reply: msg.Reply, Data: msg.Data}, 0)
	})
}

// Serve turns every request on subject into a Call to target with code and
// a *Delivery payload. The call's result is published back to the requester
// as a JSON frame: a Completed payload must be []byte, string or nil.
func (b *Bridge) Serve(subject string, target actor.ID, code actor.Code) (Subscription, error) {
	responder, err := b.ensureResponder()
	if err != nil {
		return nil, err
	}
	return b.subscribe(subject, func(msg *natsgo.Msg) {
		if msg.Reply == "" {
			b.log.Debug("dropping request without reply subject", slog.String("subject", msg.Subject))
			return
		}
		b.rt.Send(responder, codeForward, &forward{
			target: target,
			code:   code,
			req:    &Delivery{Subject: msg.Subject, Reply: msg.Reply, Data: msg.Data},
		}, 0)
	})
}

func (b *Bridge) ensureResponder() (actor.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.responder != 0 {
		return b.responder, nil
	}
	id, err := b.rt.AddActor(newResponder(b.nc, b.timeout, b.log))
	if err != nil {
		return 0, fmt.Errorf("nats bridge: add responder: %w", err)
	}
	b.responder = id
	return id, nil
}

func (b *Bridge) subscribe(subject string, h natsgo.MsgHandler) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBridgeClosed
	}
	sub, err := b.nc.Subscribe(subject, h)
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe %s: %w", subject, err)
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return &subscription{sub: sub, b: b}, nil
}

// Publisher returns an actor publishing *Publication payloads sent to it
// with CodePublish. Register it like any other actor.
func (b *Bridge) Publisher() actor.Actor {
	return &Publisher{nc: b.nc}
}

// RequestAsCall sends a request to subject off the actor threads. caller
// receives Completed with the reply data ([]byte), Error, or Cancelled.
// Replies in the Serve frame format are unwrapped.
func (b *Bridge) RequestAsCall(caller actor.ID, subject string, data []byte, timeout time.Duration) actor.CallID {
	return b.rt.RunAsCall(func(ctx context.Context) (any, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return b.Request(ctx, subject, data)
	}, caller)
}

// Request is RequestAsCall for code outside the runtime: it blocks until the
// reply arrives or ctx ends.
func (b *Bridge) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrBridgeClosed
	}
	msg, err := b.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("nats: request %s: %w", subject, err)
	}
	return decodeReply(msg.Data)
}

// Close unsubscribes everything, removes the responder and drains the
// connection.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return ErrBridgeClosed
	}
	b.mu.Lock()
	for s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.subs = map[*natsgo.Subscription]struct{}{}
	responder := b.responder
	b.responder = 0
	b.mu.Unlock()

	if responder != 0 {
		b.rt.RemoveActor(responder)
	}
	if err := b.nc.Drain(); err != nil {
		b.log.Warn("drain failed", slog.Any("error", err))
	}
	b.closeNc()
	return nil
}

// Subscription is a routed subject.
type Subscription interface {
	Unsubscribe() error
}

type subscription struct {
	sub *natsgo.Subscription
	b   *Bridge
}

func (s *subscription) Unsubscribe() error {
	err := s.sub.Unsubscribe()
	s.b.mu.Lock()
	delete(s.b.subs, s.sub)
	s.b.mu.Unlock()
	return err
}

func encodeReply(result actor.Code, payload any) []byte {
	var rf responseFrame
	switch result {
	case actor.CodeCompleted:
		switch p := payload.(type) {
		case nil:
		case []byte:
			rf.Data = p
		case string:
			rf.Data = []byte(p)
		default:
			rf.Err = fmt.Sprintf("%s: %T", ErrBadPayload, payload)
		}
	case actor.CodeError:
		if err, ok := payload.(error); ok {
			rf.Err = err.Error()
		} else {
			rf.Err = "error"
		}
	default:
		rf.Err = result.String()
	}
	b, _ := json.Marshal(rf)
	return b
}

func decodeReply(data []byte) ([]byte, error) {
	var rf responseFrame
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if rf.Err != "" {
		return nil, errors.New(rf.Err)
	}
	return rf.Data, nil
}
