package usecases

import (
	"context"
	"strings"

	"transcribot/internal/entities"
	"transcribot/internal/interfaces"
)

// TemplateRenderer substitutes chat name, author name and transcribed text
// into the configured message template. Substitution is a literal
// first-occurrence replacement of each token; a token repeated in the
// template is only replaced once. No escaping is performed.
type TemplateRenderer struct {
	template string
	resolver interfaces.ContactResolver
}

func NewTemplateRenderer(template string, resolver interfaces.ContactResolver) *TemplateRenderer {
	return &TemplateRenderer{template: template, resolver: resolver}
}

// Render resolves display names for msg and fills the template with them and
// the transcribed text.
func (r *TemplateRenderer) Render(ctx context.Context, msg entities.Message, text string) (string, error) {
	contact, err := r.resolver.ResolveContact(ctx, msg.SenderID)
	if err != nil {
		return "", err
	}

	author := displayName(contact, msg.ChatName)

	rendered := r.template
	rendered = strings.Replace(rendered, "{chat}", msg.ChatName, 1)
	rendered = strings.Replace(rendered, "{author}", author, 1)
	rendered = strings.Replace(rendered, "{text}", text, 1)
	return rendered, nil
}

// displayName picks the author name from an ordered list of candidate
// sources; first non-empty wins, the chat name is the last resort.
func displayName(contact entities.Contact, chatName string) string {
	for _, candidate := range []string{contact.Name, contact.PushName, contact.Number, chatName} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
