package nats

import (
	"github.com/codewandler/actorrt/core/actor"
)

// Publication is the payload of a CodePublish message.
type Publication struct {
	Subject string
	Data    []byte
}

// Publisher is an actor publishing to NATS. Sent with Call, the caller
// receives Completed or Error once the message was handed to the connection.
type Publisher struct {
	nc publisher
}

func (p *Publisher) Handle(rt actor.Runtime, self actor.ID, msg actor.Message) error {
	if msg.Code != CodePublish {
		return nil
	}
	pub, ok := msg.Payload.(*Publication)
	if !ok {
		if msg.CallID != 0 {
			rt.SendResult(msg.Sender, msg.CallID, actor.CodeError, ErrBadPayload, self)
		}
		return ErrBadPayload
	}

	err := p.nc.Publish(pub.Subject, pub.Data)
	if msg.CallID != 0 {
		if err != nil {
			rt.SendResult(msg.Sender, msg.CallID, actor.CodeError, err, self)
		} else {
			rt.SendResult(msg.Sender, msg.CallID, actor.CodeCompleted, nil, self)
		}
		return nil
	}
	if err != nil {
		rt.Log().Error("publish failed", err, "subject", pub.Subject)
	}
	return nil
}

func (p *Publisher) Cleanup(actor.Runtime, actor.ID) error { return nil }

var _ actor.Actor = (*Publisher)(nil)
