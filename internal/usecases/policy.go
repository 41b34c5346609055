package usecases

import (
	"context"
	"strings"

	"transcribot/internal/config"
	"transcribot/internal/entities"
	"transcribot/internal/interfaces"
)

// PolicyFilter decides which inbound messages qualify for transcription.
// List entries are normalized at construction time for O(1) lookups.
type PolicyFilter struct {
	allowAll  bool
	whitelist map[string]struct{}
	blacklist map[string]struct{}
	resolver  interfaces.ContactResolver
}

func NewPolicyFilter(cfg config.TranscriptionConfig, resolver interfaces.ContactResolver) *PolicyFilter {
	return &PolicyFilter{
		allowAll:  cfg.AllowAll,
		whitelist: toSet(cfg.Whitelist),
		blacklist: toSet(cfg.Blacklist),
		resolver:  resolver,
	}
}

// ShouldTranscribe evaluates the policy in a fixed order, cheapest check
// first:
//
//  1. non-audio messages are rejected without any contact lookup
//  2. the sender's contact is resolved (may hit the transport)
//  3. blacklist wins over everything, including allow-all
//  4. allow-all accepts
//  5. otherwise accept iff whitelisted; deny by default
func (f *PolicyFilter) ShouldTranscribe(ctx context.Context, msg entities.Message) (bool, error) {
	if !msg.Kind.IsAudio() {
		return false, nil
	}

	contact, err := f.resolver.ResolveContact(ctx, msg.SenderID)
	if err != nil {
		return false, err
	}

	number := normalize(contact.Number)
	if _, blocked := f.blacklist[number]; blocked {
		return false, nil
	}
	if f.allowAll {
		return true, nil
	}
	_, allowed := f.whitelist[number]
	return allowed, nil
}

func toSet(entries []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[normalize(e)] = struct{}{}
	}
	return set
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}
