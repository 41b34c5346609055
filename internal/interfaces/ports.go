package interfaces

import (
	"context"

	"transcribot/internal/entities"
	"transcribot/internal/repository"
)

// Transcriber converts raw audio bytes into text. A failed call surfaces as a
// single wrapped error; callers do not get a finer backend error taxonomy.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ContactResolver looks up the sender of a message. Resolution may hit the
// transport, so it takes a context.
type ContactResolver interface {
	ResolveContact(ctx context.Context, senderID string) (entities.Contact, error)
}

// Transport is what the pipeline needs from the chat platform client.
type Transport interface {
	ContactResolver

	DownloadMedia(ctx context.Context, msg entities.Message) (entities.Media, error)

	// SendToSelf sends text to the operator's own account, quoting the
	// original message so it threads visibly.
	SendToSelf(ctx context.Context, text string, quoted entities.Message) error

	// Reply sends text as a direct reply into the message's original chat.
	Reply(ctx context.Context, msg entities.Message, text string) error
}

// Store is the append-only persistence log consumed by the pipeline.
type Store interface {
	InsertMessage(ctx context.Context, msg repository.MessageRecord) (repository.MessageRecord, error)
	InsertMedia(ctx context.Context, media repository.MediaRecord) (repository.MediaRecord, error)
	InsertTranscription(ctx context.Context, tr repository.TranscriptionRecord) (repository.TranscriptionRecord, error)
}

// Notifier mirrors a delivered transcript to a side channel. Best effort;
// failures are logged by the caller and never fail the message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
