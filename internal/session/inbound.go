package session

import (
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/reconcile"
)

// onRelayEvent runs on a relay stream goroutine and hands the event to the
// loop. Posting preserves per-topic arrival order.
func (c *Controller) onRelayEvent(ev proto.RelayEvent) {
	c.loop.Post(func() {
		if c.state == nil {
			return
		}
		out, err := c.rec.Reconcile(ev)
		if err != nil {
			return
		}
		c.apply(out)
	})
}

// apply persists and surfaces one reconciliation outcome.
func (c *Controller) apply(out reconcile.Outcome) {
	switch out.Kind {
	case reconcile.OutcomeNone:
		return
	case reconcile.OutcomeTyping:
		c.showTyping(out.Room.ID, out.TypingUserID, out.TypingUsername)
		return
	}

	room := out.Room
	if err := c.saveMessages(c.ctx, room.ID); err != nil {
		c.log.Error().Err(err).Str("room_id", room.ID).Msg("persist inbound message")
	}
	if out.RoomCreated || out.RoomChanged {
		if err := c.saveRooms(c.ctx); err != nil {
			c.log.Error().Err(err).Msg("persist rooms")
		}
	}

	switch out.Kind {
	case reconcile.OutcomeMessageAdded:
		if out.Visible {
			c.feed.Publish(core.Event{Kind: core.EventMessageAdded, RoomID: room.ID, Message: messageCopy(out.Message)})
		}
	case reconcile.OutcomeMessageUpdated:
		c.feed.Publish(core.Event{Kind: core.EventMessageUpdated, RoomID: room.ID, Message: messageCopy(out.Message)})
	}
	if out.RoomCreated || out.RoomChanged {
		c.emitRooms()
	}
	if out.SendReceipt {
		c.scheduleReceipt(room, out.Message.ID)
	}
}

// scheduleReceipt publishes a read receipt for msgID after the receipt
// delay, unless the user switches rooms first.
func (c *Controller) scheduleReceipt(room *core.Room, msgID string) {
	if old, ok := c.receipts[msgID]; ok {
		old.Cancel()
	}
	c.receipts[msgID] = c.loop.After(c.opts.ReadReceiptDelay, func() {
		delete(c.receipts, msgID)
		if !c.state.IsActive(room) {
			return
		}
		env := c.envelope(proto.TypeReadReceipt)
		env.MessageID = proto.ID(msgID)
		env.Timestamp = c.now().UnixMilli()
		c.publish(room.Topic, env, nil)
	})
}

func (c *Controller) cancelReceipts() {
	for id, task := range c.receipts {
		task.Cancel()
		delete(c.receipts, id)
	}
}

func (c *Controller) showTyping(roomID, userID, username string) {
	key := roomID + "/" + userID
	if old, ok := c.typing[key]; ok {
		old.Cancel()
	}
	c.feed.Publish(core.Event{Kind: core.EventTyping, RoomID: roomID, UserID: userID, Username: username})
	c.typing[key] = c.loop.After(c.opts.TypingTTL, func() {
		delete(c.typing, key)
		c.feed.Publish(core.Event{Kind: core.EventTypingStopped, RoomID: roomID, UserID: userID, Username: username})
	})
}

// clearTyping drops every pending typing indicator without announcing it.
func (c *Controller) clearTyping() {
	for key, task := range c.typing {
		task.Cancel()
		delete(c.typing, key)
	}
}
