// Package registration drives the chat registration conversation: it moves a
// user's session through the question flow of their applicant type, validates
// each answer and finalizes the result into a durable application.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/crossfellowship/registrar/internal/applicants"
	"github.com/crossfellowship/registrar/internal/channel"
	"github.com/crossfellowship/registrar/internal/media"
	"github.com/crossfellowship/registrar/internal/metrics"
	"github.com/crossfellowship/registrar/internal/phone"
	"github.com/crossfellowship/registrar/internal/session"
)

var errCorruptSession = errors.New("session step does not match its draft")

// Messenger delivers prompts to a user.
type Messenger interface {
	Send(ctx context.Context, identity string, prompt channel.Prompt) (string, error)
	Edit(ctx context.Context, identity, messageRef string, prompt channel.Prompt) error
}

// Ingestor persists media attachments.
type Ingestor interface {
	IngestPhoto(ctx context.Context, identity string, attachment channel.Attachment) (media.Asset, error)
	IngestAudio(ctx context.Context, identity string, attachment channel.Attachment) (media.Asset, error)
	Discard(ctx context.Context, asset media.Asset) error
}

// Applications is the durable application store used at finalization.
type Applications interface {
	FindByTelegramID(ctx context.Context, telegramID string) (applicants.Applicant, error)
	CreateSinger(ctx context.Context, app applicants.SingerApplication) (applicants.Applicant, error)
	CreateMission(ctx context.Context, app applicants.MissionApplication) (applicants.Applicant, error)
}

type Options struct {
	// AllowResubmission lets identities with an existing application register again.
	AllowResubmission bool
	Metrics           *metrics.Metrics
	Tracer            trace.Tracer
}

// Machine handles conversation events. It is safe for concurrent use as long
// as events of one identity are not handled concurrently; see Dispatcher.
type Machine struct {
	logger       *slog.Logger
	sessions     session.Store
	messenger    Messenger
	ingestor     Ingestor
	applications Applications
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	allowResub   bool
}

func NewMachine(log *slog.Logger, sessions session.Store, messenger Messenger, ingestor Ingestor, apps Applications, opts Options) *Machine {
	if log == nil {
		log = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/crossfellowship/registrar/internal/registration")
	}
	return &Machine{
		logger:       log.With(slog.String("service", "registration")),
		sessions:     sessions,
		messenger:    messenger,
		ingestor:     ingestor,
		applications: apps,
		metrics:      opts.Metrics,
		tracer:       tracer,
		allowResub:   opts.AllowResubmission,
	}
}

type state struct {
	session session.Session
	step    Step
	draft   Draft
	flow    Flow
}

func (s *state) lang() string {
	return s.session.Language
}

// Handle processes one inbound event. Events that do not fit the current
// step are dropped. Returned errors are infrastructure failures only.
func (m *Machine) Handle(ctx context.Context, ev channel.Event) error {
	ctx, span := m.tracer.Start(ctx, "registration.handle", trace.WithAttributes(
		attribute.String("modality", ev.Modality.String()),
	))
	defer span.End()
	m.metrics.IncrementReceived(ev.Modality.String())

	err := m.handle(ctx, ev)
	if errors.Is(err, session.ErrConflict) {
		m.logger.Debug("session changed concurrently, event dropped", slog.String("identity", ev.Identity))
		m.metrics.IncrementIgnored("conflict")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *Machine) handle(ctx context.Context, ev channel.Event) error {
	if ev.Modality == channel.ModalityCommand {
		if strings.EqualFold(strings.TrimSpace(ev.Text), CommandStart) {
			return m.restart(ctx, ev)
		}
		m.ignore(ev, "", "command")
		return nil
	}

	sess, err := m.sessions.Find(ctx, ev.Identity)
	if errors.Is(err, session.ErrNotFound) {
		m.ignore(ev, "", "no_session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	st, err := loadState(sess)
	if err != nil {
		m.logger.Warn("unreadable session ignored",
			slog.String("identity", ev.Identity),
			slog.String("step", sess.Step),
			slog.Any("error", err),
		)
		m.metrics.IncrementIgnored("corrupt")
		return nil
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("step", string(st.step)))

	switch st.step {
	case StepLanguageSelection:
		return m.onLanguage(ctx, ev, st)
	case StepTypeSelection:
		return m.onType(ctx, ev, st)
	case StepName, StepChurch, StepProfession, StepBio, StepMotivation:
		return m.onText(ctx, ev, st)
	case StepPhone:
		return m.onPhone(ctx, ev, st)
	case StepAddress:
		return m.onAddress(ctx, ev, st)
	case StepWorshipMinistry, StepMissionInterest:
		return m.onYesNo(ctx, ev, st)
	case StepPhoto:
		return m.onPhoto(ctx, ev, st)
	case StepAudio:
		return m.onAudio(ctx, ev, st)
	case StepReview:
		return m.onReview(ctx, ev, st)
	default:
		m.ignore(ev, st.step, "step")
		return nil
	}
}

func loadState(sess session.Session) (*state, error) {
	draft, err := DecodeDraft(sess.Data)
	if err != nil {
		return nil, err
	}
	st := &state{session: sess, step: Step(sess.Step), draft: draft}
	if st.session.Language == "" {
		st.session.Language = session.DefaultLanguage
	}
	if st.step.IsPrelude() {
		if draft != nil {
			return nil, errCorruptSession
		}
		return st, nil
	}
	if draft == nil {
		return nil, errCorruptSession
	}
	flow, _ := FlowFor(draft.Type())
	if !flow.Contains(st.step) {
		return nil, errCorruptSession
	}
	st.flow = flow
	return st, nil
}

// restart discards any session and starts over at language selection.
func (m *Machine) restart(ctx context.Context, ev channel.Event) error {
	if err := m.sessions.Delete(ctx, ev.Identity); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if !m.allowResub {
		_, err := m.applications.FindByTelegramID(ctx, ev.Identity)
		switch {
		case err == nil:
			m.logger.Info("restart refused, application exists", slog.String("identity", ev.Identity))
			m.deliver(ctx, ev, alreadyRegisteredPrompt(), false)
			return nil
		case !errors.Is(err, applicants.ErrNotFound):
			return fmt.Errorf("check existing application: %w", err)
		}
	}
	if _, err := m.sessions.Upsert(ctx, ev.Identity, string(StepLanguageSelection), session.Fields{}, session.DefaultLanguage); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	m.logger.Info("session started", slog.String("identity", ev.Identity))
	m.deliver(ctx, ev, welcomePrompt(), false)
	return nil
}

func (m *Machine) onLanguage(ctx context.Context, ev channel.Event, st *state) error {
	if ev.Modality != channel.ModalityButton {
		m.ignore(ev, st.step, "modality")
		return nil
	}
	lang, ok := parseLanguageAction(ev.Action)
	if !ok {
		m.ignore(ev, st.step, "action")
		return nil
	}
	st.session.Language = lang
	return m.advance(ctx, ev, st, StepTypeSelection, mainMenuPrompt(lang), true)
}

func (m *Machine) onType(ctx context.Context, ev channel.Event, st *state) error {
	if ev.Modality != channel.ModalityButton {
		m.ignore(ev, st.step, "modality")
		return nil
	}
	t, ok := parseTypeAction(ev.Action)
	if !ok {
		m.ignore(ev, st.step, "action")
		return nil
	}
	draft, err := NewDraft(t)
	if err != nil {
		return err
	}
	flow, _ := FlowFor(t)
	st.draft = draft
	st.flow = flow
	next := flow.First()
	return m.advance(ctx, ev, st, next, stepPrompt(st.lang(), next), true)
}

// onText records free-text answers verbatim.
func (m *Machine) onText(ctx context.Context, ev channel.Event, st *state) error {
	if ev.Modality != channel.ModalityText {
		m.ignore(ev, st.step, "modality")
		return nil
	}
	text := ptr(ev.Text)
	base := st.draft.Base()
	switch st.step {
	case StepName:
		base.Name = text
	case StepChurch:
		base.Church = text
	default:
		mission, ok := st.draft.(*MissionDraft)
		if !ok {
			m.ignore(ev, st.step, "step")
			return nil
		}
		switch st.step {
		case StepProfession:
			mission.Profession = text
		case StepBio:
			mission.Bio = text
		case StepMotivation:
			mission.Motivation = text
		}
	}
	return m.advanceInFlow(ctx, ev, st, false)
}

func (m *Machine) onPhone(ctx context.Context, ev channel.Event, st *state) error {
	var number string
	switch ev.Modality {
	case channel.ModalityContact:
		if ev.Contact == nil {
			m.ignore(ev, st.step, "modality")
			return nil
		}
		number = phone.FromContact(ev.Contact.PhoneNumber)
	case channel.ModalityText:
		normalized, err := phone.Normalize(ev.Text)
		if err != nil {
			m.reject(ctx, ev, st, "invalid_phone", phonePrompt(st.lang(), MsgInvalidPhone), err)
			return nil
		}
		number = normalized
	default:
		m.ignore(ev, st.step, "modality")
		return nil
	}
	st.draft.Base().Phone = ptr(number)
	return m.advanceInFlow(ctx, ev, st, false)
}

func (m *Machine) onAddress(ctx context.Context, ev channel.Event, st *state) error {
	if ev.Modality != channel.ModalityButton {
		m.ignore(ev, st.step, "modality")
		return nil
	}
	subcity, ok := parseAddressAction(ev.Action)
	if !ok {
		m.ignore(ev, st.step, "action")
		return nil
	}
	st.draft.Base().Address = ptr(subcity)
	return m.advanceInFlow(ctx, ev, st, true)
}

func (m *Machine) onYesNo(ctx context.Context, ev channel.Event, st *state) error {
	if ev.Modality != channel.ModalityButton {
		m.ignore(ev, st.step, "modality")
		return nil
	}
	switch d := st.draft.(type) {
	case *SingerDraft:
		v, ok := parseYesNo(ev.Action, ActionWorshipYes, ActionWorshipNo)
		if !ok || st.step != StepWorshipMinistry {
			m.ignore(ev, st.step, "action")
			return nil
		}
		d.WorshipMinistryInvolved = ptr(v)
	case *MissionDraft:
		v, ok := parseYesNo(ev.Action, ActionInterestYes, ActionInterestNo)
		if !ok || st.step != StepMissionInterest {
			m.ignore(ev, st.step, "action")
			return nil
		}
		d.MissionInterest = ptr(v)
	}
	return m.advanceInFlow(ctx, ev, st, true)
}

func (m *Machine) onPhoto(ctx context.Context, ev channel.Event, st *state) error {
	switch {
	case ev.Modality == channel.ModalityText && strings.EqualFold(strings.TrimSpace(ev.Text), SkipToken):
		st.draft.Base().PhotoURL = ptr("")
		return m.advanceInFlow(ctx, ev, st, false)
	case (ev.Modality == channel.ModalityPhoto || ev.Modality == channel.ModalityDocument) && ev.Attachment != nil:
	default:
		m.ignore(ev, st.step, "modality")
		return nil
	}

	start := time.Now()
	asset, err := m.ingestor.IngestPhoto(ctx, ev.Identity, *ev.Attachment)
	m.metrics.ObserveIngest(string(media.CategoryPhoto), time.Since(start))
	if err != nil {
		m.reject(ctx, ev, st, rejectionReason(err), textPrompt(st.lang(), MsgInvalidPhoto), err)
		return nil
	}
	st.draft.Base().PhotoURL = ptr(asset.Path)
	if err := m.advanceInFlow(ctx, ev, st, false); err != nil {
		m.discard(asset)
		return err
	}
	return nil
}

func (m *Machine) onAudio(ctx context.Context, ev channel.Event, st *state) error {
	singer, ok := st.draft.(*SingerDraft)
	if !ok || ev.Attachment == nil || !isAudioEvent(ev) {
		m.ignore(ev, st.step, "modality")
		return nil
	}

	start := time.Now()
	asset, err := m.ingestor.IngestAudio(ctx, ev.Identity, *ev.Attachment)
	m.metrics.ObserveIngest(string(media.CategoryAudio), time.Since(start))
	if err != nil {
		m.reject(ctx, ev, st, rejectionReason(err), textPrompt(st.lang(), MsgInvalidAudio), err)
		return nil
	}
	singer.AudioURL = ptr(asset.Path)
	singer.AudioDuration = ptr(int(math.Round(asset.Duration.Seconds())))
	if err := m.advanceInFlow(ctx, ev, st, false); err != nil {
		m.discard(asset)
		return err
	}
	return nil
}

func isAudioEvent(ev channel.Event) bool {
	switch ev.Modality {
	case channel.ModalityAudio, channel.ModalityVoice:
		return true
	case channel.ModalityDocument:
		return strings.HasPrefix(strings.ToLower(ev.Attachment.Mime), "audio/")
	default:
		return false
	}
}

func (m *Machine) onReview(ctx context.Context, ev channel.Event, st *state) error {
	if ev.Modality != channel.ModalityButton {
		m.ignore(ev, st.step, "modality")
		return nil
	}
	switch ev.Action {
	case ActionSubmit:
		return m.finalize(ctx, ev, st)
	case ActionCancel:
		return m.cancel(ctx, ev, st)
	default:
		m.ignore(ev, st.step, "action")
		return nil
	}
}

// advanceInFlow moves to the next step of the applicant's flow and asks its
// question, rendering the review summary when the next step is review.
func (m *Machine) advanceInFlow(ctx context.Context, ev channel.Event, st *state, edit bool) error {
	next, ok := st.flow.Next(st.step)
	if !ok {
		return fmt.Errorf("%w: no step after %s", errCorruptSession, st.step)
	}
	prompt := stepPrompt(st.lang(), next)
	if next == StepReview {
		prompt = reviewPrompt(st.lang(), st.draft)
	}
	return m.advance(ctx, ev, st, next, prompt, edit)
}

// advance persists the new step and draft with a version check, then
// delivers prompt. Button-driven transitions edit the message carrying the
// buttons.
func (m *Machine) advance(ctx context.Context, ev channel.Event, st *state, next Step, prompt channel.Prompt, edit bool) error {
	fields, err := EncodeDraft(st.draft)
	if err != nil {
		return err
	}
	st.session.Step = string(next)
	st.session.Data = fields
	saved, err := m.sessions.Save(ctx, st.session)
	if err != nil {
		if errors.Is(err, session.ErrConflict) {
			return err
		}
		return fmt.Errorf("save session: %w", err)
	}
	st.session = saved
	m.logger.Debug("step advanced",
		slog.String("identity", ev.Identity),
		slog.String("from", string(st.step)),
		slog.String("to", string(next)),
	)
	st.step = next
	m.deliver(ctx, ev, prompt, edit)
	return nil
}

func (m *Machine) deliver(ctx context.Context, ev channel.Event, prompt channel.Prompt, edit bool) {
	if prompt.IsEmpty() {
		return
	}
	if edit && ev.MessageRef != "" {
		err := m.messenger.Edit(ctx, ev.Identity, ev.MessageRef, prompt)
		if err == nil {
			return
		}
		m.logger.Warn("edit prompt failed, sending instead", slog.String("identity", ev.Identity), slog.Any("error", err))
	}
	if _, err := m.messenger.Send(ctx, ev.Identity, prompt); err != nil {
		m.logger.Warn("deliver prompt failed", slog.String("identity", ev.Identity), slog.Any("error", err))
	}
}

// reject re-prompts without changing state.
func (m *Machine) reject(ctx context.Context, ev channel.Event, st *state, reason string, prompt channel.Prompt, cause error) {
	m.metrics.IncrementRejection(string(st.step), reason)
	attrs := []any{
		slog.String("identity", ev.Identity),
		slog.String("step", string(st.step)),
		slog.String("reason", reason),
		slog.Any("error", cause),
	}
	if reason == "retrieval" || reason == "infra" {
		m.logger.Warn("input rejected", attrs...)
	} else {
		m.logger.Info("input rejected", attrs...)
	}
	m.deliver(ctx, ev, prompt, false)
}

func (m *Machine) ignore(ev channel.Event, step Step, reason string) {
	m.metrics.IncrementIgnored(reason)
	m.logger.Debug("event ignored",
		slog.String("identity", ev.Identity),
		slog.String("step", string(step)),
		slog.String("modality", ev.Modality.String()),
		slog.String("reason", reason),
	)
}

// discard removes an asset that never made it into the session.
func (m *Machine) discard(asset media.Asset) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.ingestor.Discard(ctx, asset); err != nil {
		m.logger.Warn("discard media failed", slog.String("key", asset.Key), slog.Any("error", err))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, media.ErrAssetTooLarge):
		return "too_large"
	case errors.Is(err, media.ErrAudioTooLong):
		return "too_long"
	case errors.Is(err, media.ErrDurationUnknown):
		return "duration_unknown"
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrMissingReference):
		return "unsupported"
	case errors.Is(err, media.ErrRetrieval), errors.Is(err, media.ErrAssetNotFound):
		return "retrieval"
	default:
		return "infra"
	}
}
