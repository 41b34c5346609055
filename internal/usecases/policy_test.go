package usecases

import (
	"context"
	"testing"

	"transcribot/internal/config"
	"transcribot/internal/entities"
)

func audioFrom(number string) entities.Message {
	return entities.Message{
		SenderID: number + "@s.whatsapp.net",
		Kind:     entities.KindVoiceNote,
		HasMedia: true,
	}
}

func contactsFor(numbers ...string) map[string]entities.Contact {
	contacts := make(map[string]entities.Contact, len(numbers))
	for _, n := range numbers {
		contacts[n+"@s.whatsapp.net"] = entities.Contact{Number: n}
	}
	return contacts
}

func TestPolicyFilter_NonAudioSkipsContactLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind entities.MessageKind
	}{
		{"text", entities.KindText},
		{"other", entities.KindOther},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			transport := &mockTransport{}
			filter := NewPolicyFilter(config.TranscriptionConfig{AllowAll: true}, transport)

			ok, err := filter.ShouldTranscribe(context.Background(), entities.Message{Kind: tc.kind})
			if err != nil {
				t.Fatalf("ShouldTranscribe: %v", err)
			}
			if ok {
				t.Error("non-audio message should be rejected")
			}
			if transport.lookups != 0 {
				t.Errorf("expected no contact lookups, got %d", transport.lookups)
			}
		})
	}
}

func TestPolicyFilter_BlacklistPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		allowAll  bool
		whitelist []string
	}{
		{"over allow-all", true, nil},
		{"over whitelist", false, []string{"111"}},
		{"over both", true, []string{"111"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			filter := NewPolicyFilter(config.TranscriptionConfig{
				AllowAll:  tc.allowAll,
				Whitelist: tc.whitelist,
				Blacklist: []string{"111"},
			}, &mockTransport{contacts: contactsFor("111")})

			ok, err := filter.ShouldTranscribe(context.Background(), audioFrom("111"))
			if err != nil {
				t.Fatalf("ShouldTranscribe: %v", err)
			}
			if ok {
				t.Error("blacklisted sender must be rejected")
			}
		})
	}
}

func TestPolicyFilter_AllowAll(t *testing.T) {
	t.Parallel()
	filter := NewPolicyFilter(config.TranscriptionConfig{
		AllowAll:  true,
		Whitelist: []string{"somebody-else"},
	}, &mockTransport{contacts: contactsFor("222")})

	ok, err := filter.ShouldTranscribe(context.Background(), audioFrom("222"))
	if err != nil {
		t.Fatalf("ShouldTranscribe: %v", err)
	}
	if !ok {
		t.Error("allow-all should accept senders not in the blacklist")
	}
}

func TestPolicyFilter_WhitelistOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{"whitelisted", "111", true},
		{"unknown", "222", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			filter := NewPolicyFilter(config.TranscriptionConfig{
				Whitelist: []string{"111"},
			}, &mockTransport{contacts: contactsFor("111", "222")})

			ok, err := filter.ShouldTranscribe(context.Background(), audioFrom(tc.number))
			if err != nil {
				t.Fatalf("ShouldTranscribe: %v", err)
			}
			if ok != tc.want {
				t.Errorf("ShouldTranscribe(%s) = %v, want %v", tc.number, ok, tc.want)
			}
		})
	}
}

func TestPolicyFilter_ResolveErrorPropagates(t *testing.T) {
	t.Parallel()
	filter := NewPolicyFilter(config.TranscriptionConfig{AllowAll: true},
		&mockTransport{resolveErr: errBoom})

	_, err := filter.ShouldTranscribe(context.Background(), audioFrom("111"))
	if err == nil {
		t.Fatal("expected error from contact resolution")
	}
}
