package registration

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/crossfellowship/registrar/internal/applicants"
	"github.com/crossfellowship/registrar/internal/channel"
)

// finalize writes the application and detail record atomically, then
// deletes the session. On failure the session is kept so submit can be retried.
func (m *Machine) finalize(ctx context.Context, ev channel.Event, st *state) error {
	applicantType := st.draft.Type()
	ctx, span := m.tracer.Start(ctx, "registration.finalize", trace.WithAttributes(
		attribute.String("type", string(applicantType)),
	))
	defer span.End()

	created, err := m.createApplication(ctx, ev, st.draft)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.IncrementSubmission(string(applicantType), "failed")
		m.logger.Error("finalize application failed",
			slog.String("identity", ev.Identity),
			slog.String("type", string(applicantType)),
			slog.Any("error", err),
		)
		review := reviewPrompt(st.lang(), st.draft)
		m.deliver(ctx, ev, channel.Prompt{Text: Text(st.lang(), MsgSubmissionError), Buttons: review.Buttons}, true)
		return nil
	}

	m.metrics.IncrementSubmission(string(applicantType), "created")
	m.logger.Info("application submitted",
		slog.String("identity", ev.Identity),
		slog.Int64("applicant_id", created.ID),
		slog.String("type", string(applicantType)),
	)
	if err := m.sessions.Delete(ctx, ev.Identity); err != nil {
		m.logger.Error("delete finalized session failed", slog.String("identity", ev.Identity), slog.Any("error", err))
	}
	m.deliver(ctx, ev, textPrompt(st.lang(), MsgSubmissionSuccess), true)
	return nil
}

func (m *Machine) createApplication(ctx context.Context, ev channel.Event, draft Draft) (applicants.Applicant, error) {
	switch d := draft.(type) {
	case *SingerDraft:
		app, err := d.Application(ev.Identity, ev.Username)
		if err != nil {
			return applicants.Applicant{}, err
		}
		return m.applications.CreateSinger(ctx, app)
	case *MissionDraft:
		app, err := d.Application(ev.Identity, ev.Username)
		if err != nil {
			return applicants.Applicant{}, err
		}
		return m.applications.CreateMission(ctx, app)
	default:
		return applicants.Applicant{}, fmt.Errorf("%w: %T", ErrUnknownType, draft)
	}
}

// cancel deletes the session without persisting anything.
func (m *Machine) cancel(ctx context.Context, ev channel.Event, st *state) error {
	if err := m.sessions.Delete(ctx, ev.Identity); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.metrics.IncrementSubmission(string(st.draft.Type()), "cancelled")
	m.logger.Info("registration cancelled", slog.String("identity", ev.Identity))
	m.deliver(ctx, ev, textPrompt(st.lang(), MsgCancelled), true)
	return nil
}
