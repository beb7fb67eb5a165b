package nats

import (
	"log/slog"
	"time"

	"github.com/codewandler/actorrt/core/actor"
)

type forward struct {
	target actor.ID
	code   actor.Code
	req    *Delivery
}

// responder issues the calls for served requests and publishes their
// results. Calls are made from its own handler so every result finds its
// reply subject already recorded.
type responder struct {
	nc      publisher
	timeout time.Duration
	log     *slog.Logger
	pending map[actor.CallID]string
}

func newResponder(nc publisher, timeout time.Duration, log *slog.Logger) *responder {
	return &responder{
		nc:      nc,
		timeout: timeout,
		log:     log,
		pending: make(map[actor.CallID]string),
	}
}

func (r *responder) Handle(rt actor.Runtime, self actor.ID, msg actor.Message) error {
	if msg.Code == codeForward {
		fw, ok := msg.Payload.(*forward)
		if !ok {
			return ErrBadPayload
		}
		call := rt.Call(fw.target, fw.code, fw.req, self, r.timeout)
		r.pending[call] = fw.req.Reply
		return nil
	}

	if !msg.IsResult() {
		return nil
	}
	reply, ok := r.pending[msg.CallID]
	if !ok {
		return nil
	}
	delete(r.pending, msg.CallID)
	if err := r.nc.Publish(reply, encodeReply(msg.Code, msg.Payload)); err != nil {
		r.log.Error("failed to publish reply", slog.String("reply", reply), slog.Any("error", err))
	}
	return nil
}

// Cleanup answers every request still waiting.
func (r *responder) Cleanup(actor.Runtime, actor.ID) error {
	for call, reply := range r.pending {
		_ = r.nc.Publish(reply, encodeReply(actor.CodeCancelled, nil))
		delete(r.pending, call)
	}
	return nil
}
