package content

import (
	"context"
	"fmt"

	"github.com/aimkt/marketing-api/internal/model"
)

// TemplateGenerator renders campaign copy from per-language templates. It
// is the built-in generator; accounts with an external copy provider plug
// in their own Generator.
type TemplateGenerator struct {
	templates map[string]map[model.Channel]string
}

// Default per-language bodies. WhatsApp copy is shorter by design of the
// channel, not an abbreviation of the email body.
var defaultTemplates = map[string]map[model.Channel]string{
	"en": {
		model.ChannelEmail:    "Hi {{first_name}},\n\nWe thought you'd love {{product_name}}. Take a look before it's gone.\n\nThe %s team",
		model.ChannelWhatsApp: "Hi {{first_name}}! {{product_name}} is waiting for you. Reply STOP to opt out. — %s",
	},
	"es": {
		model.ChannelEmail:    "Hola {{first_name}},\n\nPensamos que te encantaría {{product_name}}. Échale un vistazo antes de que se agote.\n\nEl equipo de %s",
		model.ChannelWhatsApp: "¡Hola {{first_name}}! {{product_name}} te está esperando. Responde STOP para darte de baja. — %s",
	},
}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{templates: defaultTemplates}
}

func (g *TemplateGenerator) Generate(_ context.Context, campaign *model.Campaign, channel model.Channel, language string) (string, error) {
	byChannel, ok := g.templates[language]
	if !ok {
		byChannel = g.templates["en"]
	}
	tmpl, ok := byChannel[channel]
	if !ok {
		return "", fmt.Errorf("no template for channel %s", channel)
	}
	return fmt.Sprintf(tmpl, campaign.Name), nil
}
