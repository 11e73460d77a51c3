// Package telegram connects the registration conversation to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/crossfellowship/registrar/internal/channel"
	"github.com/crossfellowship/registrar/internal/media"
)

const (
	telegramMaxMessageLength = 4096
	defaultPollTimeout       = 30
	defaultDownloadTimeout   = 60 * time.Second
)

// ErrInvalidTarget reports an identity or message ref that is not a Telegram chat.
var ErrInvalidTarget = errors.New("telegram: invalid target")

// botClient is the subset of *tgbotapi.BotAPI used by the adapter.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Options struct {
	PollTimeout     int
	DownloadTimeout time.Duration
	Debug           bool
}

// Adapter converts Telegram updates into channel events and delivers prompts.
type Adapter struct {
	logger      *slog.Logger
	bot         botClient
	client      *http.Client
	pollTimeout int
}

// NewAdapter authenticates token against the Bot API.
func NewAdapter(log *slog.Logger, token string, opts Options) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("adapter", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})
	bot, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		logger.Error("create bot failed", slog.Any("error", err))
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = opts.Debug
	logger.Info("authorized", slog.String("bot", bot.Self.UserName))
	return newAdapter(logger, bot, opts), nil
}

func newAdapter(log *slog.Logger, bot botClient, opts Options) *Adapter {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = defaultDownloadTimeout
	}
	return &Adapter{
		logger:      log,
		bot:         bot,
		client:      &http.Client{Timeout: opts.DownloadTimeout},
		pollTimeout: opts.PollTimeout,
	}
}

// Connection is a running long-poll loop.
type Connection struct {
	stop func(context.Context) error
	once sync.Once
	err  error
}

// Stop ends polling and waits for the loop to exit.
func (c *Connection) Stop(ctx context.Context) error {
	c.once.Do(func() { c.err = c.stop(ctx) })
	return c.err
}

// Connect starts long-polling and hands every recognised update to handler.
// Callback queries are always answered so the client stops its spinner.
func (a *Adapter) Connect(ctx context.Context, handler channel.InboundHandler) (*Connection, error) {
	if handler == nil {
		return nil, errors.New("telegram: inbound handler is required")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.pollTimeout
	updateConfig.AllowedUpdates = []string{"message", "callback_query"}
	updates := a.bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.logger.Info("start polling", slog.Int("timeout", a.pollTimeout))
	go func() {
		defer close(done)
		for {
			select {
			case <-connCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				if update.CallbackQuery != nil {
					a.answerCallback(update.CallbackQuery.ID)
				}
				ev, ok := toEvent(update)
				if !ok {
					continue
				}
				a.logger.Debug("inbound received",
					slog.String("identity", ev.Identity),
					slog.String("modality", ev.Modality.String()),
				)
				if err := handler(connCtx, ev); err != nil {
					a.logger.Error("handle inbound failed", slog.String("identity", ev.Identity), slog.Any("error", err))
				}
			}
		}
	}()

	stop := func(stopCtx context.Context) error {
		a.logger.Info("stop polling")
		a.bot.StopReceivingUpdates()
		cancel()
		// Drain so the library's polling goroutine can exit and release the
		// getUpdates session held by the in-flight long poll.
		go func() {
			for range updates {
			}
		}()
		select {
		case <-done:
			return nil
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}
	return &Connection{stop: stop}, nil
}

func (a *Adapter) answerCallback(id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	if _, err := a.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		a.logger.Warn("answer callback failed", slog.Any("error", err))
	}
}

// toEvent maps an update from a private chat to a channel event.
func toEvent(update tgbotapi.Update) (channel.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || !isPrivate(cq.Message.Chat) {
			return channel.Event{}, false
		}
		return channel.Event{
			Identity:   strconv.FormatInt(cq.From.ID, 10),
			Username:   strings.TrimSpace(cq.From.UserName),
			Modality:   channel.ModalityButton,
			Action:     cq.Data,
			MessageRef: formatMessageRef(cq.Message.Chat.ID, cq.Message.MessageID),
			ReceivedAt: time.Now().UTC(),
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || !isPrivate(msg.Chat) {
		return channel.Event{}, false
	}
	ev := channel.Event{
		Identity:   strconv.FormatInt(msg.From.ID, 10),
		Username:   strings.TrimSpace(msg.From.UserName),
		ReceivedAt: msg.Time().UTC(),
	}
	switch {
	case msg.IsCommand():
		ev.Modality = channel.ModalityCommand
		ev.Text = strings.ToLower(msg.Command())
	case msg.Contact != nil:
		ev.Modality = channel.ModalityContact
		ev.Contact = &channel.Contact{
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
		}
		if msg.Contact.UserID != 0 {
			ev.Contact.UserID = strconv.FormatInt(msg.Contact.UserID, 10)
		}
	case len(msg.Photo) > 0:
		photo := pickTelegramPhoto(msg.Photo)
		ev.Modality = channel.ModalityPhoto
		ev.Attachment = &channel.Attachment{Ref: photo.FileID, Size: int64(photo.FileSize)}
	case msg.Document != nil:
		ev.Modality = channel.ModalityDocument
		ev.Attachment = &channel.Attachment{
			Ref:  msg.Document.FileID,
			Name: strings.TrimSpace(msg.Document.FileName),
			Mime: strings.TrimSpace(msg.Document.MimeType),
			Size: int64(msg.Document.FileSize),
		}
	case msg.Audio != nil:
		ev.Modality = channel.ModalityAudio
		ev.Attachment = &channel.Attachment{
			Ref:      msg.Audio.FileID,
			Name:     strings.TrimSpace(msg.Audio.FileName),
			Mime:     strings.TrimSpace(msg.Audio.MimeType),
			Size:     int64(msg.Audio.FileSize),
			Duration: time.Duration(msg.Audio.Duration) * time.Second,
		}
	case msg.Voice != nil:
		ev.Modality = channel.ModalityVoice
		ev.Attachment = &channel.Attachment{
			Ref:      msg.Voice.FileID,
			Mime:     strings.TrimSpace(msg.Voice.MimeType),
			Size:     int64(msg.Voice.FileSize),
			Duration: time.Duration(msg.Voice.Duration) * time.Second,
		}
	case msg.Text != "":
		ev.Modality = channel.ModalityText
		ev.Text = msg.Text
	default:
		return channel.Event{}, false
	}
	return ev, true
}

func isPrivate(chat *tgbotapi.Chat) bool {
	return chat != nil && chat.IsPrivate()
}

func formatMessageRef(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

// parseMessageRef accepts "chat:message" or a bare message id in the
// identity's private chat.
func parseMessageRef(identity, ref string) (int64, int, error) {
	chatPart, msgPart, found := strings.Cut(strings.TrimSpace(ref), ":")
	if !found {
		chatPart, msgPart = identity, chatPart
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatPart), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: chat in message ref %q", ErrInvalidTarget, ref)
	}
	messageID, err := strconv.Atoi(strings.TrimSpace(msgPart))
	if err != nil || messageID <= 0 {
		return 0, 0, fmt.Errorf("%w: message in message ref %q", ErrInvalidTarget, ref)
	}
	return chatID, messageID, nil
}

func parseChatID(identity string) (int64, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(identity), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: identity must be a chat id: %q", ErrInvalidTarget, identity)
	}
	return chatID, nil
}

// Send delivers prompt as a new message and returns its message ref.
func (a *Adapter) Send(ctx context.Context, identity string, prompt channel.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	chatID, err := parseChatID(identity)
	if err != nil {
		return "", err
	}
	message := tgbotapi.NewMessage(chatID, truncateTelegramText(sanitizeTelegramText(prompt.Text)))
	message.ParseMode = tgbotapi.ModeHTML
	if markup := replyMarkup(prompt); markup != nil {
		message.ReplyMarkup = markup
	}
	sent, err := a.bot.Send(message)
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	if sent.Chat != nil {
		chatID = sent.Chat.ID
	}
	return formatMessageRef(chatID, sent.MessageID), nil
}

// Edit replaces the message at ref. Prompts that need a reply keyboard cannot
// be attached on edit and are sent as a new message instead.
func (a *Adapter) Edit(ctx context.Context, identity, ref string, prompt channel.Prompt) error {
	if prompt.ContactRequest != "" || prompt.RemoveKeyboard {
		_, err := a.Send(ctx, identity, prompt)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, messageID, err := parseMessageRef(identity, ref)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, truncateTelegramText(sanitizeTelegramText(prompt.Text)))
	edit.ParseMode = tgbotapi.ModeHTML
	if len(prompt.Buttons) > 0 {
		markup := inlineKeyboard(prompt.Buttons)
		edit.ReplyMarkup = &markup
	}
	if _, err := a.bot.Send(edit); err != nil {
		if isTelegramMessageNotModified(err) {
			return nil
		}
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func replyMarkup(prompt channel.Prompt) any {
	switch {
	case len(prompt.Buttons) > 0:
		return inlineKeyboard(prompt.Buttons)
	case prompt.ContactRequest != "":
		keyboard := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(prompt.ContactRequest)),
		)
		keyboard.OneTimeKeyboard = true
		keyboard.ResizeKeyboard = true
		return keyboard
	case prompt.RemoveKeyboard:
		return tgbotapi.NewRemoveKeyboard(false)
	default:
		return nil
	}
}

func inlineKeyboard(rows [][]channel.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

// ResolveAttachment downloads a Telegram file by id, or by URL when one is set.
func (a *Adapter) ResolveAttachment(ctx context.Context, attachment channel.Attachment) (channel.AttachmentPayload, error) {
	fileID := strings.TrimSpace(attachment.Ref)
	downloadURL := strings.TrimSpace(attachment.URL)
	if fileID == "" && downloadURL == "" {
		return channel.AttachmentPayload{}, media.ErrMissingReference
	}
	if downloadURL == "" {
		var err error
		downloadURL, err = a.bot.GetFileDirectURL(fileID)
		if err != nil {
			return channel.AttachmentPayload{}, classifyFileError(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return channel.AttachmentPayload{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return channel.AttachmentPayload{}, fmt.Errorf("download attachment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return channel.AttachmentPayload{}, media.ErrAssetNotFound
		}
		return channel.AttachmentPayload{}, fmt.Errorf("download attachment status: %d", resp.StatusCode)
	}
	mime := strings.TrimSpace(attachment.Mime)
	if mime == "" {
		mime = strings.TrimSpace(resp.Header.Get("Content-Type"))
		if idx := strings.Index(mime, ";"); idx >= 0 {
			mime = strings.TrimSpace(mime[:idx])
		}
	}
	size := attachment.Size
	if resp.ContentLength > 0 {
		size = resp.ContentLength
	}
	return channel.AttachmentPayload{
		Reader: resp.Body,
		Mime:   mime,
		Size:   size,
	}, nil
}

// classifyFileError maps getFile failures onto media errors. The Bot API
// refuses downloads above its own size cap with "file is too big".
func classifyFileError(err error) error {
	apiErr, ok := asAPIError(err)
	if ok && apiErr.Code == http.StatusBadRequest {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case strings.Contains(msg, "file is too big"):
			return fmt.Errorf("%w: %s", media.ErrAssetTooLarge, apiErr.Message)
		case strings.Contains(msg, "file_id"), strings.Contains(msg, "file not found"):
			return fmt.Errorf("%w: %s", media.ErrAssetNotFound, apiErr.Message)
		}
	}
	return fmt.Errorf("resolve telegram file url: %w", err)
}

func asAPIError(err error) (tgbotapi.Error, bool) {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var apiErr tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return tgbotapi.Error{}, false
}

// IsRetryable reports whether a delivery error may clear on its own: rate
// limits, server errors and transport failures.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrInvalidTarget) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

func isTelegramMessageNotModified(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "message is not modified")
}

func pickTelegramPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}

// sanitizeTelegramText strips invalid UTF-8 sequences.
func sanitizeTelegramText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// truncateTelegramText truncates text to telegramMaxMessageLength on a valid
// UTF-8 rune boundary, appending "..." when truncation occurs.
func truncateTelegramText(text string) string {
	if len(text) <= telegramMaxMessageLength {
		return text
	}
	const suffix = "..."
	limit := telegramMaxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}

type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
