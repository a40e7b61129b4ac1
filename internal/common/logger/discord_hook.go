package logger

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/cfcheck-fixtures/internal/common/discord"
)

// DiscordHook forwards error and fatal events to a Discord webhook.
type DiscordHook struct {
	client *discord.Client
}

func NewDiscordHook(webhookURL string) *DiscordHook {
	return &DiscordHook{client: discord.NewClient(webhookURL)}
}

func (h *DiscordHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.ErrorLevel || level > zerolog.FatalLevel {
		return
	}
	name := strings.ToUpper(level.String())
	if level == zerolog.FatalLevel {
		// the process exits right after a fatal event
		_ = h.client.SendLogMessage(name, msg, nil)
		return
	}
	go func() {
		_ = h.client.SendLogMessage(name, msg, nil)
	}()
}
