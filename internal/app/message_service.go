package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// NewMessage holds the fields accepted when sending a message. The date range
// applies to hospitality requests only.
type NewMessage struct {
	Subject      string
	Text         string
	RecipientIDs []string
	ReplyToID    string
	DateFrom     domain.Date
	DateTo       domain.Date
}

// MessagePatch lists the status changes a participant may request. Status is
// the hospitality request status; MessageStatus is the caller's own
// notification status.
type MessagePatch struct {
	Status        domain.State
	MessageStatus domain.State
}

// MessageService manages private messages and hospitality requests.
type MessageService struct {
	repo  domain.MessageRepository
	users domain.UserRepository
	tr    transitions
	now   func() time.Time
}

// NewMessageService creates a service with the given adapters.
func NewMessageService(repo domain.MessageRepository, users domain.UserRepository, validator domain.TransitionValidator, publisher domain.EventPublisher, opts ...Option) *MessageService {
	return &MessageService{
		repo:  repo,
		users: users,
		tr:    newTransitions(validator, publisher, opts),
		now:   time.Now,
	}
}

// Send stores a message from actor and one unread notification per
// recipient. A reply marks actor's notification of the original as replied.
func (s *MessageService) Send(ctx context.Context, actor string, kind domain.MessageKind, in NewMessage) (domain.Message, error) {
	recipients := dedupe(in.RecipientIDs, actor)

	var v domain.ValidationError
	requireText(&v, "subject", in.Subject)
	requireText(&v, "text", in.Text)
	if len(recipients) == 0 {
		v.Add("No field value for %q.", "recipient_list_ids")
	}
	switch kind {
	case domain.KindPrivateMessage:
	case domain.KindHospitalityRequest:
		if len(recipients) > 1 {
			v.Add("Must be exactly one element in %q.", "recipient_list_ids")
		}
		s.validateDates(&v, in.DateFrom, in.DateTo)
	default:
		return domain.Message{}, domain.ErrMessageNotFound
	}
	if err := v.Err(); err != nil {
		return domain.Message{}, err
	}

	for _, id := range recipients {
		if _, err := s.users.GetUser(ctx, id); err != nil {
			return domain.Message{}, err
		}
	}

	var original domain.Notification
	if in.ReplyToID != "" {
		n, err := s.repo.FindNotification(ctx, in.ReplyToID, actor)
		if err != nil {
			if errors.Is(err, domain.ErrNotificationNotFound) {
				return domain.Message{}, domain.ErrMessageNotFound
			}
			return domain.Message{}, err
		}
		original = n
	}

	id, err := generateID()
	if err != nil {
		return domain.Message{}, fmt.Errorf("generating message id: %w", err)
	}

	msg := domain.NewMessage(id, kind, actor, recipients)
	msg.Subject = strings.TrimSpace(in.Subject)
	msg.Text = in.Text
	msg.ReplyToID = in.ReplyToID
	msg.SentOn = s.now().UTC()
	if kind == domain.KindHospitalityRequest {
		msg.DateFrom = in.DateFrom
		msg.DateTo = in.DateTo
	}

	notifications := make([]domain.Notification, 0, len(recipients))
	for _, userID := range recipients {
		nid, err := generateID()
		if err != nil {
			return domain.Message{}, fmt.Errorf("generating notification id: %w", err)
		}
		notifications = append(notifications, domain.NewNotification(nid, kind, userID, id))
	}

	var reply domain.Transition
	create := func(ctx context.Context) error {
		var updated []domain.Notification
		if in.ReplyToID != "" {
			n, tr, err := s.markReplied(ctx, original, actor)
			if err != nil {
				return err
			}
			if tr.Applied {
				updated = append(updated, n)
				reply = tr
			}
		}
		if err := s.repo.CreateMessage(ctx, msg, notifications, updated...); err != nil {
			return fmt.Errorf("creating message: %w", err)
		}
		return nil
	}

	if in.ReplyToID == "" {
		err = create(ctx)
	} else {
		err = s.tr.withLock(ctx, "notification", original.ID, create)
	}
	if err != nil {
		return domain.Message{}, err
	}

	// The message is committed: from here on Send reports success.
	if err := s.tr.publish(ctx, "notification", original.ID, reply); err != nil {
		s.tr.logger.WarnContext(ctx, "reply event not published",
			"message_id", msg.ID, "notification_id", original.ID, "error", err)
	}
	return msg, nil
}

// markReplied moves the replier's notification of the original message to
// replied, in memory. A notification whose table has no edge to replied
// (deleted, archived) is left as is and the returned transition is not
// applied.
func (s *MessageService) markReplied(ctx context.Context, n domain.Notification, actor string) (domain.Notification, domain.Transition, error) {
	current, err := s.repo.FindNotification(ctx, n.MessageID, n.UserID)
	if err != nil {
		return domain.Notification{}, domain.Transition{}, err
	}

	tr, err := s.tr.apply(ctx, &current, domain.NotificationStatusField, domain.NotificationReplied, actor)
	var trErr *domain.InvalidTransitionError
	if errors.As(err, &trErr) {
		return current, domain.Transition{}, nil
	}
	if err != nil {
		return domain.Notification{}, domain.Transition{}, err
	}
	return current, tr, nil
}

func (s *MessageService) validateDates(v *domain.ValidationError, from, to domain.Date) {
	if from.IsZero() {
		v.Add("No field value for %q.", "date_from")
	}
	if to.IsZero() {
		v.Add("No field value for %q.", "date_to")
	}
	if from.IsZero() || to.IsZero() {
		return
	}
	if from.Before(domain.DateOf(s.now().UTC())) {
		v.Add("Value for %q cannot be in the past.", "date_from")
	}
	if to.Before(from) {
		v.Add("Value for %q must not precede %q.", "date_to", "date_from")
	}
}

// Get returns a message actor sent or received, rendered for actor.
func (s *MessageService) Get(ctx context.Context, actor string, kind domain.MessageKind, id string) (domain.Message, error) {
	msg, err := s.repo.GetMessage(ctx, kind, id)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.view(ctx, &msg, actor); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// List returns the messages of kind actor received or sent, rendered for actor.
func (s *MessageService) List(ctx context.Context, actor string, kind domain.MessageKind, dir domain.Direction) ([]domain.Message, error) {
	if dir != domain.DirectionIn && dir != domain.DirectionOut {
		v := &domain.ValidationError{}
		v.Add("Invalid value for %q.", "direction")
		return nil, v
	}

	msgs, err := s.repo.ListMessages(ctx, kind, actor, dir)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if err := s.view(ctx, &msgs[i], actor); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// view attaches actor's notification so message_status renders for them.
func (s *MessageService) view(ctx context.Context, msg *domain.Message, actor string) error {
	if msg.SenderID == actor {
		msg.ViewAs(nil)
		return nil
	}
	if !msg.HasRecipient(actor) {
		return &domain.ForbiddenError{Reason: "not a party to this message"}
	}
	n, err := s.repo.FindNotification(ctx, msg.ID, actor)
	if err != nil {
		return err
	}
	msg.ViewAs(&n)
	return nil
}

// Update applies patch on behalf of actor. The sender of a hospitality
// request may only cancel it; a recipient may not answer a request the
// sender canceled. MessageStatus moves actor's own notification.
func (s *MessageService) Update(ctx context.Context, actor string, kind domain.MessageKind, id string, patch MessagePatch) (domain.Message, error) {
	if patch.Status != "" {
		if kind != domain.KindHospitalityRequest {
			v := &domain.ValidationError{}
			v.Add("Field %q is not defined for %s messages.", domain.MessageStatusField, kind)
			return domain.Message{}, v
		}
		if err := s.updateRequestStatus(ctx, actor, id, patch.Status); err != nil {
			return domain.Message{}, err
		}
	}

	if patch.MessageStatus != "" {
		if err := s.updateMessageStatus(ctx, actor, kind, id, patch.MessageStatus); err != nil {
			return domain.Message{}, err
		}
	}

	return s.Get(ctx, actor, kind, id)
}

func (s *MessageService) updateRequestStatus(ctx context.Context, actor, id string, next domain.State) error {
	kind := domain.KindHospitalityRequest
	return s.tr.withLock(ctx, string(kind), id, func(ctx context.Context) error {
		msg, err := s.repo.GetMessage(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := checkRequestActor(msg, actor, next); err != nil {
			return err
		}

		tr, err := s.tr.apply(ctx, &msg, domain.MessageStatusField, next, actor)
		if err != nil || !tr.Applied {
			return err
		}

		if err := s.repo.UpdateMessage(ctx, msg); err != nil {
			return fmt.Errorf("updating %s: %w", kind, err)
		}
		return s.tr.publish(ctx, string(kind), id, tr)
	})
}

func checkRequestActor(msg domain.Message, actor string, next domain.State) error {
	switch {
	case msg.SenderID == actor:
		if next != domain.RequestCanceled {
			return &domain.ForbiddenError{Reason: "the sender can only cancel a hospitality request"}
		}
	case msg.HasRecipient(actor):
		if msg.Status.Current == domain.RequestCanceled {
			return &domain.ForbiddenError{Reason: "the request was canceled by its sender"}
		}
		if next == domain.RequestCanceled {
			return &domain.ForbiddenError{Reason: "only the sender can cancel a hospitality request"}
		}
	default:
		return &domain.ForbiddenError{Reason: "not a party to this message"}
	}
	return nil
}

func (s *MessageService) updateMessageStatus(ctx context.Context, actor string, kind domain.MessageKind, id string, next domain.State) error {
	msg, err := s.repo.GetMessage(ctx, kind, id)
	if err != nil {
		return err
	}
	if !msg.HasRecipient(actor) {
		return &domain.ForbiddenError{Reason: "only recipients have a message status"}
	}

	n, err := s.repo.FindNotification(ctx, id, actor)
	if err != nil {
		return err
	}

	return s.tr.withLock(ctx, "notification", n.ID, func(ctx context.Context) error {
		n, err := s.repo.FindNotification(ctx, id, actor)
		if err != nil {
			return err
		}

		tr, err := s.tr.apply(ctx, &n, domain.NotificationStatusField, next, actor)
		if err != nil || !tr.Applied {
			return err
		}

		if err := s.repo.UpdateNotification(ctx, n); err != nil {
			return fmt.Errorf("updating notification: %w", err)
		}
		return s.tr.publish(ctx, "notification", n.ID, tr)
	})
}

// dedupe drops empty ids, repeats and self.
func dedupe(ids []string, self string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == self || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
