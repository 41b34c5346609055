package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"transcribot/internal/config"
	"transcribot/internal/entities"
	"transcribot/internal/interfaces"
	"transcribot/internal/repository"
)

// Pipeline orchestrates one inbound message end to end: policy filter, media
// download, audio re-validation, transcription, template rendering, delivery
// and persistence. Every failure is isolated to the message that caused it;
// nothing here ever takes the process down.
type Pipeline struct {
	cfg         config.MessageConfig
	transport   interfaces.Transport
	transcriber interfaces.Transcriber
	filter      *PolicyFilter
	renderer    *TemplateRenderer
	store       interfaces.Store
	notifier    interfaces.Notifier // optional
	limiter     *rate.Limiter
	logger      *slog.Logger
}

func NewPipeline(
	cfg config.WhatsAppConfig,
	sendRate config.SendRateConfig,
	transport interfaces.Transport,
	transcriber interfaces.Transcriber,
	store interfaces.Store,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg.Transcription.Message,
		transport:   transport,
		transcriber: transcriber,
		filter:      NewPolicyFilter(cfg.Transcription, transport),
		renderer:    NewTemplateRenderer(cfg.Transcription.Message.Template, transport),
		store:       store,
		limiter:     rate.NewLimiter(rate.Limit(sendRate.PerMinute/60), sendRate.Burst),
		logger:      logger,
	}
}

// WithNotifier attaches an optional side channel that delivered transcripts
// are mirrored to.
func (p *Pipeline) WithNotifier(n interfaces.Notifier) *Pipeline {
	p.notifier = n
	return p
}

// Handle processes a single inbound message. Rejection by policy and
// messages without media are normal outcomes, not errors.
func (p *Pipeline) Handle(ctx context.Context, msg entities.Message) {
	log := p.logger.With(messageAttrs(msg)...)
	log.Debug("received message")

	ok, err := p.filter.ShouldTranscribe(ctx, msg)
	if err != nil {
		log.Error("policy evaluation failed", "error", err)
		return
	}
	if !ok {
		log.Debug("message filtered out")
		return
	}
	if !msg.HasMedia {
		log.Debug("no downloadable media")
		return
	}

	media, err := p.transport.DownloadMedia(ctx, msg)
	if err != nil {
		log.Error("media download failed", "error", err)
		return
	}
	log = log.With("mime_type", media.MimeType, "filename", media.Filename, "size", media.Size)

	// The kind check at filter time is coarse; the downloaded media may
	// disagree with it, so re-validate before spending a backend call.
	if !isAudio(msg, media) {
		log.Warn("non-audio media after filtering, skipping")
		return
	}

	// Persistence is a side effect, it never gates delivery.
	mediaRec := p.persistMessage(ctx, log, msg, media)

	text, err := p.transcriber.Transcribe(ctx, media.Data)
	if err != nil {
		log.Error("transcription failed", "error", err)
		return
	}

	rendered, err := p.renderer.Render(ctx, msg, text)
	if err != nil {
		log.Error("template rendering failed", "error", err)
		return
	}

	if err := p.deliver(ctx, msg, rendered); err != nil {
		log.Error("delivery failed", "error", err)
		return
	}
	log.Info("transcription delivered", "mode", p.cfg.Mode)

	if mediaRec.ID != 0 {
		_, err := p.store.InsertTranscription(ctx, repository.TranscriptionRecord{
			MediaID: mediaRec.ID,
			Text:    text,
		})
		if err != nil {
			log.Error("persisting transcription failed", "error", err)
		}
	}

	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, rendered); err != nil {
			log.Error("mirror notification failed", "error", err)
		}
	}
}

// deliver routes the rendered text per the configured mode, throttled by the
// outbound rate limiter.
func (p *Pipeline) deliver(ctx context.Context, msg entities.Message, text string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	switch p.cfg.Mode {
	case config.ModeSelf:
		return p.transport.SendToSelf(ctx, text, msg)
	case config.ModeReply:
		return p.transport.Reply(ctx, msg, text)
	default:
		// Caught by config validation at startup; kept for completeness.
		return fmt.Errorf("unknown delivery mode %q", p.cfg.Mode)
	}
}

// persistMessage writes the message and media rows and returns the media row
// (zero ID if persistence failed). Store errors are logged and swallowed.
func (p *Pipeline) persistMessage(ctx context.Context, log *slog.Logger, msg entities.Message, media entities.Media) repository.MediaRecord {
	msgRec, err := p.store.InsertMessage(ctx, repository.MessageRecord{
		WwjsID:    msg.ID,
		ChatID:    msg.ChatID,
		AuthorID:  msg.SenderID,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		log.Error("persisting message failed", "error", err)
		return repository.MediaRecord{}
	}

	mediaRec, err := p.store.InsertMedia(ctx, repository.MediaRecord{
		MessageID: msgRec.ID,
		MimeType:  media.MimeType,
		Filename:  media.Filename,
		Size:      media.Size,
	})
	if err != nil {
		log.Error("persisting media failed", "error", err)
		return repository.MediaRecord{}
	}
	return mediaRec
}

// isAudio confirms the message kind and the downloaded media's declared MIME
// type agree that this is audio.
func isAudio(msg entities.Message, media entities.Media) bool {
	return msg.Kind.IsAudio() && strings.HasPrefix(media.MimeType, "audio/")
}

func messageAttrs(msg entities.Message) []any {
	return []any{
		"type", msg.Kind.String(),
		"chat", msg.ChatName,
		"chat_id", msg.ChatID,
		"author", msg.SenderName,
		"author_id", msg.SenderID,
	}
}
