package usecases

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"transcribot/internal/config"
	"transcribot/internal/entities"
	"transcribot/internal/repository"
)

// mockTransport implements interfaces.Transport with canned data and call
// counters.
type mockTransport struct {
	contacts    map[string]entities.Contact
	resolveErr  error
	lookups     int
	media       entities.Media
	downloadErr error
	downloads   int
	selfSends   []string
	selfQuoted  []entities.Message
	replies     []string
	sendErr     error
}

func (m *mockTransport) ResolveContact(_ context.Context, senderID string) (entities.Contact, error) {
	m.lookups++
	if m.resolveErr != nil {
		return entities.Contact{}, m.resolveErr
	}
	if c, ok := m.contacts[senderID]; ok {
		return c, nil
	}
	return entities.Contact{ID: senderID}, nil
}

func (m *mockTransport) DownloadMedia(_ context.Context, _ entities.Message) (entities.Media, error) {
	m.downloads++
	if m.downloadErr != nil {
		return entities.Media{}, m.downloadErr
	}
	return m.media, nil
}

func (m *mockTransport) SendToSelf(_ context.Context, text string, quoted entities.Message) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.selfSends = append(m.selfSends, text)
	m.selfQuoted = append(m.selfQuoted, quoted)
	return nil
}

func (m *mockTransport) Reply(_ context.Context, _ entities.Message, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.replies = append(m.replies, text)
	return nil
}

type mockTranscriber struct {
	text  string
	err   error
	calls int
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	m.calls++
	return m.text, m.err
}

type mockStore struct {
	messages       []repository.MessageRecord
	media          []repository.MediaRecord
	transcriptions []repository.TranscriptionRecord
	insertErr      error
}

func (m *mockStore) InsertMessage(_ context.Context, msg repository.MessageRecord) (repository.MessageRecord, error) {
	if m.insertErr != nil {
		return repository.MessageRecord{}, m.insertErr
	}
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *mockStore) InsertMedia(_ context.Context, media repository.MediaRecord) (repository.MediaRecord, error) {
	if m.insertErr != nil {
		return repository.MediaRecord{}, m.insertErr
	}
	media.ID = int64(len(m.media) + 1)
	m.media = append(m.media, media)
	return media, nil
}

func (m *mockStore) InsertTranscription(_ context.Context, tr repository.TranscriptionRecord) (repository.TranscriptionRecord, error) {
	if m.insertErr != nil {
		return repository.TranscriptionRecord{}, m.insertErr
	}
	tr.ID = int64(len(m.transcriptions) + 1)
	m.transcriptions = append(m.transcriptions, tr)
	return tr, nil
}

type mockNotifier struct {
	notes []string
	err   error
}

func (m *mockNotifier) Notify(_ context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.notes = append(m.notes, text)
	return nil
}

var errBoom = errors.New("boom")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func voiceMessage() entities.Message {
	return entities.Message{
		ID:        "MSG1",
		ChatID:    "12345@s.whatsapp.net",
		ChatName:  "Alice",
		SenderID:  "12345@s.whatsapp.net",
		Body:      "",
		Timestamp: 1700000000,
		Kind:      entities.KindVoiceNote,
		HasMedia:  true,
	}
}

func allowAllConfig(mode string) config.WhatsAppConfig {
	return config.WhatsAppConfig{
		Transcription: config.TranscriptionConfig{
			AllowAll: true,
			Message: config.MessageConfig{
				Mode:     mode,
				Template: "{author} @ {chat}:\n{text}",
			},
		},
	}
}

func sendRate() config.SendRateConfig {
	return config.SendRateConfig{PerMinute: 6000, Burst: 100}
}
