package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"transcribot/internal/entities"
)

// ErrNotLoggedIn is returned by outbound operations before pairing completes.
var ErrNotLoggedIn = errors.New("whatsapp client is not logged in")

// pendingTTL bounds how long downloadable payloads of messages that were
// never downloaded (e.g. filtered out by policy) are kept around.
const pendingTTL = 10 * time.Minute

type pendingMedia struct {
	audio *waProto.AudioMessage
	seen  time.Time
}

// WhatsAppClient wraps the whatsmeow client behind the transport interface
// the pipeline consumes: an inbound message feed, media download, contact
// resolution and the two outbound send variants.
type WhatsAppClient struct {
	client *whatsmeow.Client
	logger *slog.Logger

	qrCode string
	qrLock sync.RWMutex

	// Downloadable payloads keyed by message id, kept until downloaded or
	// expired. whatsmeow needs the raw proto to decrypt the media.
	pending     map[string]pendingMedia
	pendingLock sync.Mutex
}

// NewWhatsAppClient opens the whatsmeow session store at dbPath and builds a
// client around the first stored device (creating one for a fresh pairing).
func NewWhatsAppClient(dbPath string, logger *slog.Logger) (*WhatsAppClient, error) {
	dbLog := waLog.Stdout("Database", "WARN", true)
	container, err := sqlstore.New(context.Background(), "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	clientLog := waLog.Stdout("Client", "WARN", true)
	w := &WhatsAppClient{
		client:  whatsmeow.NewClient(deviceStore, clientLog),
		logger:  logger,
		pending: make(map[string]pendingMedia),
	}
	go w.cleanupPending()
	return w, nil
}

// Connect establishes the WhatsApp connection. For an unpaired device it
// starts the QR pairing flow; the current code is kept for the HTTP endpoint
// and also logged for terminal pairing.
func (w *WhatsAppClient) Connect() error {
	if w.client.Store.ID == nil {
		qrChan, _ := w.client.GetQRChannel(context.Background())
		if err := w.client.Connect(); err != nil {
			return err
		}
		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					w.qrLock.Lock()
					w.qrCode = evt.Code
					w.qrLock.Unlock()
					w.logger.Info("QR ready", "qr", evt.Code)
				} else {
					w.logger.Info("login event", "event", evt.Event)
				}
			}
		}()
		return nil
	}

	if err := w.client.Connect(); err != nil {
		return err
	}
	w.logger.Info("connected with existing session")
	return nil
}

func (w *WhatsAppClient) Disconnect() {
	w.client.Disconnect()
}

// GetQR returns the current pairing code, empty once paired.
func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.client.Store.ID != nil
}

func (w *WhatsAppClient) IsConnected() bool {
	return w.client.IsConnected() && w.client.Store.ID != nil
}

// OnMessage registers handler for every inbound message-created event. Other
// event kinds are handled here or dropped.
func (w *WhatsAppClient) OnMessage(handler func(entities.Message)) {
	w.client.AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			handler(w.parseMessage(v))
		case *events.Connected:
			w.qrLock.Lock()
			w.qrCode = ""
			w.qrLock.Unlock()
			w.logger.Info("client is ready")
		case *events.LoggedOut:
			w.logger.Warn("logged out", "reason", v.Reason)
		}
	})
}

// parseMessage converts a whatsmeow event into the transport-independent
// message model. Audio payloads are parked for a later DownloadMedia call.
func (w *WhatsAppClient) parseMessage(evt *events.Message) entities.Message {
	waMsg := evt.Message
	audio := waMsg.GetAudioMessage()

	kind := entities.KindOther
	switch {
	case audio != nil && audio.GetPTT():
		kind = entities.KindVoiceNote
	case audio != nil:
		kind = entities.KindAudio
	case waMsg.GetConversation() != "" || waMsg.GetExtendedTextMessage() != nil:
		kind = entities.KindText
	}

	hasMedia := audio != nil ||
		waMsg.GetImageMessage() != nil ||
		waMsg.GetVideoMessage() != nil ||
		waMsg.GetDocumentMessage() != nil ||
		waMsg.GetStickerMessage() != nil

	if audio != nil {
		w.pendingLock.Lock()
		w.pending[evt.Info.ID] = pendingMedia{audio: audio, seen: time.Now()}
		w.pendingLock.Unlock()
	}

	body := waMsg.GetConversation()
	if body == "" && waMsg.GetExtendedTextMessage() != nil {
		body = waMsg.GetExtendedTextMessage().GetText()
	}

	return entities.Message{
		ID:         evt.Info.ID,
		ChatID:     evt.Info.Chat.String(),
		ChatName:   w.chatName(context.Background(), evt.Info.Chat, evt.Info.IsGroup),
		IsGroup:    evt.Info.IsGroup,
		SenderID:   evt.Info.Sender.String(),
		SenderName: evt.Info.PushName,
		Body:       body,
		Timestamp:  evt.Info.Timestamp.Unix(),
		Kind:       kind,
		HasMedia:   hasMedia,
	}
}

// DownloadMedia fetches and decrypts the audio payload parked for msg.
func (w *WhatsAppClient) DownloadMedia(ctx context.Context, msg entities.Message) (entities.Media, error) {
	w.pendingLock.Lock()
	pend, ok := w.pending[msg.ID]
	delete(w.pending, msg.ID)
	w.pendingLock.Unlock()

	if !ok {
		return entities.Media{}, fmt.Errorf("no downloadable media for message %s", msg.ID)
	}

	data, err := w.client.Download(ctx, pend.audio)
	if err != nil {
		return entities.Media{}, fmt.Errorf("download media: %w", err)
	}
	return entities.Media{
		Data:     data,
		MimeType: pend.audio.GetMimetype(),
		Size:     int64(len(data)),
	}, nil
}

// ResolveContact looks the sender up in the device's contact store.
func (w *WhatsAppClient) ResolveContact(ctx context.Context, senderID string) (entities.Contact, error) {
	jid, err := types.ParseJID(senderID)
	if err != nil {
		return entities.Contact{}, fmt.Errorf("invalid sender id %q: %w", senderID, err)
	}

	info, err := w.client.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return entities.Contact{}, fmt.Errorf("contact lookup for %s: %w", senderID, err)
	}

	return entities.Contact{
		ID:       senderID,
		Name:     info.FullName,
		PushName: info.PushName,
		Number:   jid.User,
	}, nil
}

// SendToSelf sends text to the operator's own account, quoting the original
// message so it threads visibly.
func (w *WhatsAppClient) SendToSelf(ctx context.Context, text string, quoted entities.Message) error {
	if w.client.Store.ID == nil {
		return ErrNotLoggedIn
	}
	self := w.client.Store.ID.ToNonAD()
	return w.sendQuoted(ctx, self, text, quoted)
}

// Reply sends text as a direct reply into the message's original chat.
func (w *WhatsAppClient) Reply(ctx context.Context, msg entities.Message, text string) error {
	chat, err := types.ParseJID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}
	return w.sendQuoted(ctx, chat, text, msg)
}

func (w *WhatsAppClient) sendQuoted(ctx context.Context, to types.JID, text string, quoted entities.Message) error {
	_, err := w.client.SendMessage(ctx, to, &waProto.Message{
		ExtendedTextMessage: &waProto.ExtendedTextMessage{
			Text: proto.String(text),
			ContextInfo: &waProto.ContextInfo{
				StanzaID:      proto.String(quoted.ID),
				Participant:   proto.String(quoted.SenderID),
				RemoteJID:     proto.String(quoted.ChatID),
				QuotedMessage: &waProto.Message{Conversation: proto.String(quoted.Body)},
			},
		},
	})
	return err
}

// chatName resolves a display name for the chat: the group subject for
// groups, the contact display name for direct chats. Falls back to the raw
// user part of the JID.
func (w *WhatsAppClient) chatName(ctx context.Context, chat types.JID, isGroup bool) string {
	if isGroup {
		info, err := w.client.GetGroupInfo(ctx, chat)
		if err != nil {
			w.logger.Debug("group info lookup failed", "chat_id", chat.String(), "error", err)
			return chat.User
		}
		return info.Name
	}

	contact, err := w.client.Store.Contacts.GetContact(ctx, chat)
	if err != nil {
		return chat.User
	}
	switch {
	case contact.FullName != "":
		return contact.FullName
	case contact.PushName != "":
		return contact.PushName
	default:
		return chat.User
	}
}

// cleanupPending drops parked media payloads that were never downloaded.
func (w *WhatsAppClient) cleanupPending() {
	ticker := time.NewTicker(pendingTTL / 2)
	for range ticker.C {
		w.pendingLock.Lock()
		now := time.Now()
		for id, pend := range w.pending {
			if now.Sub(pend.seen) > pendingTTL {
				delete(w.pending, id)
			}
		}
		w.pendingLock.Unlock()
	}
}
