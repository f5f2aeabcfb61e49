package session

import (
	"context"
	"errors"
	"strings"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/relay"
)

// SendMessage appends an optimistic message to the active room and
// publishes it. The returned copy has status sending; the publish result
// arrives later as a message_updated event.
func (c *Controller) SendMessage(ctx context.Context, text string) (core.Message, error) {
	return c.send(ctx, text, "")
}

// SendAttachment sends a link to the active room, optionally with text.
func (c *Controller) SendAttachment(ctx context.Context, text, attachmentURL string) (core.Message, error) {
	if strings.TrimSpace(attachmentURL) == "" {
		return core.Message{}, core.ErrInvalidURL
	}
	return c.send(ctx, text, attachmentURL)
}

func (c *Controller) send(ctx context.Context, text, attachmentURL string) (core.Message, error) {
	var att *core.Attachment
	if attachmentURL != "" {
		var err error
		if att, err = core.NewAttachment(attachmentURL); err != nil {
			return core.Message{}, err
		}
	}

	var out core.Message
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room := c.state.Active
		if room == nil {
			return core.ErrNoActiveRoom
		}
		text = strings.TrimSpace(text)
		if text == "" && att == nil {
			return core.ErrEmptyText
		}

		user := c.state.User
		msg := &core.Message{
			ID:         c.newID(),
			RoomID:     room.ID,
			SenderID:   user.ID,
			SenderName: user.DisplayName,
			Avatar:     user.Avatar,
			Text:       text,
			Timestamp:  c.now().UnixMilli(),
			Status:     core.StatusSending,
			Attachment: att,
		}
		c.state.AppendMessage(room.ID, msg)
		room.Touch(msg)
		// Best effort: the publish result saves the transcript again.
		if err := c.saveMessages(c.ctx, room.ID); err != nil {
			c.log.Error().Err(err).Str("message_id", msg.ID).Msg("persist optimistic message")
		}
		if err := c.saveRooms(c.ctx); err != nil {
			c.log.Error().Err(err).Str("room_id", room.ID).Msg("persist room preview")
		}
		c.feed.Publish(core.Event{Kind: core.EventMessageAdded, RoomID: room.ID, Message: messageCopy(msg)})
		c.emitRooms()

		c.publishMessage(room, msg)
		out = msg.Clone()
		return nil
	})
	return out, err
}

// RetryMessage re-publishes a failed message of the active room under the
// same id.
func (c *Controller) RetryMessage(ctx context.Context, id string) (core.Message, error) {
	var out core.Message
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room := c.state.Active
		if room == nil {
			return core.ErrNoActiveRoom
		}
		msg := c.state.FindMessage(room.ID, id)
		if msg == nil {
			return core.ErrMessageNotFound
		}
		if msg.Status != core.StatusFailed {
			return core.ErrNotRetryable
		}
		msg.Status = core.StatusSending
		if err := c.saveMessages(c.ctx, room.ID); err != nil {
			c.log.Error().Err(err).Str("message_id", msg.ID).Msg("persist retried message")
		}
		c.feed.Publish(core.Event{Kind: core.EventMessageUpdated, RoomID: room.ID, Message: messageCopy(msg)})

		c.log.Info().Str("message_id", msg.ID).Msg("retrying message")
		c.publishMessage(room, msg)
		out = msg.Clone()
		return nil
	})
	return out, err
}

// SendTyping broadcasts a typing signal to the active room, at most once per
// throttle window. It reports whether a signal was actually sent.
func (c *Controller) SendTyping(ctx context.Context) (bool, error) {
	var sent bool
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room := c.state.Active
		if room == nil {
			return core.ErrNoActiveRoom
		}
		now := c.now()
		if !c.lastTyping.IsZero() && now.Sub(c.lastTyping) < c.opts.TypingThrottle {
			return nil
		}
		c.lastTyping = now
		env := c.envelope(proto.TypeTyping)
		env.Timestamp = now.UnixMilli()
		c.publish(room.Topic, env, nil)
		sent = true
		return nil
	})
	return sent, err
}

// React adds the local user's emoji reaction to a message of the active
// room and broadcasts it.
func (c *Controller) React(ctx context.Context, messageID, emoji string) (core.Message, error) {
	var out core.Message
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room := c.state.Active
		if room == nil {
			return core.ErrNoActiveRoom
		}
		emoji = strings.TrimSpace(emoji)
		if emoji == "" {
			return core.Errorf(core.ErrCodeEmptyInput, "emoji is empty")
		}
		msg := c.state.FindMessage(room.ID, messageID)
		if msg == nil {
			return core.ErrMessageNotFound
		}
		user := c.state.User
		out = msg.Clone()
		if !msg.AddReaction(core.Reaction{Emoji: emoji, UserID: user.ID, Username: user.DisplayName}) {
			return nil
		}
		if err := c.saveMessages(ctx, room.ID); err != nil {
			return err
		}
		c.feed.Publish(core.Event{Kind: core.EventMessageUpdated, RoomID: room.ID, Message: messageCopy(msg)})

		env := c.envelope(proto.TypeReaction)
		env.MessageID = proto.ID(msg.ID)
		env.Emoji = emoji
		env.Timestamp = c.now().UnixMilli()
		c.publish(room.Topic, env, nil)
		out = msg.Clone()
		return nil
	})
	return out, err
}

// DeleteMessage removes a message from the active transcript. Other
// participants keep their copy.
func (c *Controller) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room := c.state.Active
		if room == nil {
			return core.ErrNoActiveRoom
		}
		if !c.state.RemoveMessage(room.ID, id) {
			return core.ErrMessageNotFound
		}
		if task, ok := c.receipts[id]; ok {
			task.Cancel()
			delete(c.receipts, id)
		}

		room.LastMessage = nil
		if msgs := c.state.Transcript(room.ID); len(msgs) > 0 {
			room.Touch(msgs[len(msgs)-1])
		}
		if err := c.saveMessages(ctx, room.ID); err != nil {
			return err
		}
		if err := c.saveRooms(ctx); err != nil {
			return err
		}
		c.feed.Publish(core.Event{Kind: core.EventMessageDeleted, RoomID: room.ID, Message: &core.Message{ID: id, RoomID: room.ID}})
		c.emitRooms()
		return nil
	})
}

func (c *Controller) publishMessage(room *core.Room, msg *core.Message) {
	env := c.envelope(proto.TypeChat)
	env.Username = msg.SenderName
	env.Avatar = msg.Avatar
	env.Text = msg.Text
	env.Timestamp = msg.Timestamp
	env.MessageID = proto.ID(msg.ID)
	if a := msg.Attachment; a != nil {
		env.Attachment = &proto.Attachment{URL: a.URL, Name: a.Name}
	}

	roomID, msgID := room.ID, msg.ID
	c.publish(room.Topic, env, func(err error) {
		c.applyPublishResult(roomID, msgID, err)
	})
}

// publish sends payload off the loop. done, when set, is posted back onto
// the loop with the result.
func (c *Controller) publish(topic string, payload proto.Envelope, done func(error)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.PublishTimeout)
		defer cancel()

		err := c.relay.Publish(ctx, topic, payload)
		if err != nil {
			c.log.Warn().Err(err).Str("topic", topic).Str("type", payload.Type).Msg("publish failed")
		}
		if done != nil {
			c.loop.Post(func() { done(err) })
		}
	}()
}

// applyPublishResult moves an optimistic message to sent or failed. A
// message that was deleted meanwhile, or that already advanced past
// sending, is left alone.
func (c *Controller) applyPublishResult(roomID, msgID string, err error) {
	msg := c.state.FindMessage(roomID, msgID)
	if msg == nil || msg.Status != core.StatusSending {
		return
	}
	if err != nil {
		msg.Status = core.StatusFailed
		c.emitError(publishError(err), roomID)
	} else {
		msg.Status = core.StatusSent
	}
	if err := c.saveMessages(c.ctx, roomID); err != nil {
		c.log.Error().Err(err).Str("room_id", roomID).Msg("persist publish result")
	}
	c.feed.Publish(core.Event{Kind: core.EventMessageUpdated, RoomID: roomID, Message: messageCopy(msg)})
}

func publishError(err error) *core.CoreError {
	var pe *relay.PublishError
	if errors.As(err, &pe) {
		return core.Errorf(core.ErrCodePublishFailed, pe.Error())
	}
	return core.Errorf(core.ErrCodePublishFailed, "publish failed: "+err.Error())
}
