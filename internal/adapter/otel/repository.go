package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/mycouch/internal/domain"
)

const tracerName = "github.com/neomorfeo/mycouch/internal/adapter/otel"

// Repository is the full persistence surface of the service.
type Repository interface {
	domain.UserRepository
	domain.CityRepository
	domain.ConnectionRepository
	domain.MessageRepository
	domain.ActivityRepository
}

// TracingRepository wraps a Repository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   Repository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements Repository.
var _ Repository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next Repository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// --- Users ---

func (r *TracingRepository) CreateUser(ctx context.Context, user domain.User) (err error) {
	ctx, span := r.start(ctx, "UserRepository.CreateUser",
		attribute.String("user.id", user.ID),
		attribute.String("city.id", user.CityID),
	)
	defer func() { finish(span, err) }()

	return r.next.CreateUser(ctx, user)
}

func (r *TracingRepository) GetUser(ctx context.Context, id string) (_ domain.User, err error) {
	ctx, span := r.start(ctx, "UserRepository.GetUser", attribute.String("user.id", id))
	defer func() { finish(span, err) }()

	return r.next.GetUser(ctx, id)
}

// --- Cities ---

func (r *TracingRepository) CreateCity(ctx context.Context, city domain.City) (err error) {
	ctx, span := r.start(ctx, "CityRepository.CreateCity",
		attribute.String("city.id", city.ID),
		attribute.String("city.slug", city.Slug),
	)
	defer func() { finish(span, err) }()

	return r.next.CreateCity(ctx, city)
}

func (r *TracingRepository) GetCity(ctx context.Context, id string) (_ domain.City, err error) {
	ctx, span := r.start(ctx, "CityRepository.GetCity", attribute.String("city.id", id))
	defer func() { finish(span, err) }()

	return r.next.GetCity(ctx, id)
}

// --- Connections ---

func (r *TracingRepository) CreateConnection(ctx context.Context, conn domain.Connection) (err error) {
	ctx, span := r.start(ctx, "ConnectionRepository.CreateConnection",
		attribute.String("connection.kind", string(conn.Kind)),
		attribute.String("connection.id", conn.ID),
	)
	defer func() { finish(span, err) }()

	return r.next.CreateConnection(ctx, conn)
}

func (r *TracingRepository) GetConnection(ctx context.Context, kind domain.ConnectionKind, id string) (_ domain.Connection, err error) {
	ctx, span := r.start(ctx, "ConnectionRepository.GetConnection",
		attribute.String("connection.kind", string(kind)),
		attribute.String("connection.id", id),
	)
	defer func() { finish(span, err) }()

	return r.next.GetConnection(ctx, kind, id)
}

func (r *TracingRepository) ListConnections(ctx context.Context, kind domain.ConnectionKind, userID string) (_ []domain.Connection, err error) {
	ctx, span := r.start(ctx, "ConnectionRepository.ListConnections",
		attribute.String("connection.kind", string(kind)),
		attribute.String("user.id", userID),
	)
	defer func() { finish(span, err) }()

	conns, err := r.next.ListConnections(ctx, kind, userID)
	span.SetAttributes(attribute.Int("result.count", len(conns)))
	return conns, err
}

func (r *TracingRepository) UpdateConnection(ctx context.Context, conn domain.Connection) (err error) {
	ctx, span := r.start(ctx, "ConnectionRepository.UpdateConnection",
		attribute.String("connection.kind", string(conn.Kind)),
		attribute.String("connection.id", conn.ID),
		attribute.Int("connection.version", conn.Version),
	)
	defer func() { finish(span, err) }()

	return r.next.UpdateConnection(ctx, conn)
}

// --- Messages ---

func (r *TracingRepository) CreateMessage(ctx context.Context, msg domain.Message, notifications []domain.Notification, updated ...domain.Notification) (err error) {
	ctx, span := r.start(ctx, "MessageRepository.CreateMessage",
		attribute.String("message.kind", string(msg.Kind)),
		attribute.String("message.id", msg.ID),
		attribute.Int("message.recipients", len(notifications)),
		attribute.Int("message.notifications_updated", len(updated)),
	)
	defer func() { finish(span, err) }()

	return r.next.CreateMessage(ctx, msg, notifications, updated...)
}

func (r *TracingRepository) GetMessage(ctx context.Context, kind domain.MessageKind, id string) (_ domain.Message, err error) {
	ctx, span := r.start(ctx, "MessageRepository.GetMessage",
		attribute.String("message.kind", string(kind)),
		attribute.String("message.id", id),
	)
	defer func() { finish(span, err) }()

	return r.next.GetMessage(ctx, kind, id)
}

func (r *TracingRepository) ListMessages(ctx context.Context, kind domain.MessageKind, userID string, dir domain.Direction) (_ []domain.Message, err error) {
	ctx, span := r.start(ctx, "MessageRepository.ListMessages",
		attribute.String("message.kind", string(kind)),
		attribute.String("user.id", userID),
		attribute.String("message.direction", string(dir)),
	)
	defer func() { finish(span, err) }()

	msgs, err := r.next.ListMessages(ctx, kind, userID, dir)
	span.SetAttributes(attribute.Int("result.count", len(msgs)))
	return msgs, err
}

func (r *TracingRepository) UpdateMessage(ctx context.Context, msg domain.Message) (err error) {
	ctx, span := r.start(ctx, "MessageRepository.UpdateMessage",
		attribute.String("message.kind", string(msg.Kind)),
		attribute.String("message.id", msg.ID),
		attribute.Int("message.version", msg.Version),
	)
	defer func() { finish(span, err) }()

	return r.next.UpdateMessage(ctx, msg)
}

func (r *TracingRepository) FindNotification(ctx context.Context, messageID, userID string) (_ domain.Notification, err error) {
	ctx, span := r.start(ctx, "MessageRepository.FindNotification",
		attribute.String("message.id", messageID),
		attribute.String("user.id", userID),
	)
	defer func() { finish(span, err) }()

	return r.next.FindNotification(ctx, messageID, userID)
}

func (r *TracingRepository) UpdateNotification(ctx context.Context, n domain.Notification) (err error) {
	ctx, span := r.start(ctx, "MessageRepository.UpdateNotification",
		attribute.String("notification.id", n.ID),
		attribute.String("message.id", n.MessageID),
		attribute.Int("notification.version", n.Version),
	)
	defer func() { finish(span, err) }()

	return r.next.UpdateNotification(ctx, n)
}

// --- Activities ---

func (r *TracingRepository) CreateActivity(ctx context.Context, a domain.Activity, rsvps ...domain.ActivityRSVP) (err error) {
	ctx, span := r.start(ctx, "ActivityRepository.CreateActivity",
		attribute.String("activity.id", a.ID),
		attribute.String("city.id", a.CityID),
		attribute.Int("activity.rsvps", len(rsvps)),
	)
	defer func() { finish(span, err) }()

	return r.next.CreateActivity(ctx, a, rsvps...)
}

func (r *TracingRepository) GetActivity(ctx context.Context, id string) (_ domain.Activity, err error) {
	ctx, span := r.start(ctx, "ActivityRepository.GetActivity",
		attribute.String("activity.id", id),
	)
	defer func() { finish(span, err) }()

	return r.next.GetActivity(ctx, id)
}

func (r *TracingRepository) ListActivities(ctx context.Context, cityID string) (_ []domain.Activity, err error) {
	ctx, span := r.start(ctx, "ActivityRepository.ListActivities",
		attribute.String("city.id", cityID),
	)
	defer func() { finish(span, err) }()

	activities, err := r.next.ListActivities(ctx, cityID)
	span.SetAttributes(attribute.Int("result.count", len(activities)))
	return activities, err
}

func (r *TracingRepository) UpdateActivity(ctx context.Context, a domain.Activity) (err error) {
	ctx, span := r.start(ctx, "ActivityRepository.UpdateActivity",
		attribute.String("activity.id", a.ID),
		attribute.Int("activity.version", a.Version),
	)
	defer func() { finish(span, err) }()

	return r.next.UpdateActivity(ctx, a)
}

func (r *TracingRepository) SetRSVP(ctx context.Context, rsvp domain.ActivityRSVP) (_ domain.ActivityRSVP, err error) {
	ctx, span := r.start(ctx, "ActivityRepository.SetRSVP",
		attribute.String("activity.id", rsvp.ActivityID),
		attribute.String("user.id", rsvp.UserID),
		attribute.String("rsvp.status", string(rsvp.Status)),
	)
	defer func() { finish(span, err) }()

	return r.next.SetRSVP(ctx, rsvp)
}

func (r *TracingRepository) ListRSVPs(ctx context.Context, activityID string) (_ []domain.ActivityRSVP, err error) {
	ctx, span := r.start(ctx, "ActivityRepository.ListRSVPs",
		attribute.String("activity.id", activityID),
	)
	defer func() { finish(span, err) }()

	rsvps, err := r.next.ListRSVPs(ctx, activityID)
	span.SetAttributes(attribute.Int("result.count", len(rsvps)))
	return rsvps, err
}
