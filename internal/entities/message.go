package entities

// MessageKind classifies an inbound message by payload type.
type MessageKind int

const (
	KindText MessageKind = iota
	KindAudio
	KindVoiceNote // push-to-talk recording
	KindOther
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAudio:
		return "audio"
	case KindVoiceNote:
		return "voice-note"
	default:
		return "other"
	}
}

// IsAudio reports whether the kind carries an audio recording.
func (k MessageKind) IsAudio() bool {
	return k == KindAudio || k == KindVoiceNote
}

// Message is a transport-independent view of an inbound chat message.
type Message struct {
	ID         string // platform-assigned message id
	ChatID     string
	ChatName   string
	IsGroup    bool
	SenderID   string // JID of the actual author (participant in groups)
	SenderName string // push name carried on the event, may be empty
	Body       string
	Timestamp  int64 // epoch seconds
	Kind       MessageKind
	HasMedia   bool
}

// Contact is the resolved sender of a message. Name fields may be empty.
type Contact struct {
	ID       string
	Name     string // saved contact name
	PushName string // self-reported profile name
	Number   string // raw phone number
}

// Media is a downloaded attachment plus its descriptor.
type Media struct {
	Data     []byte
	MimeType string
	Filename string
	Size     int64
}
