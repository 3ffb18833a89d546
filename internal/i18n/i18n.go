// Package i18n renders the few user-facing strings the engine emits itself:
// the default title of click-created events, the resize delta label and the
// month overflow link.
package i18n

import (
	"embed"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	appLog "calgrid/internal/log"
)

//go:embed active.*.toml
var localeFS embed.FS

const (
	MsgNewEventTitle = "NewEventTitle"
	MsgResizeDelta   = "ResizeDelta"
	MsgMoreEvents    = "MoreEvents"
	MsgAllDay        = "AllDay"
)

// Translator localizes messages for one configured locale with English as
// the fallback.
type Translator struct {
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	tag       language.Tag
}

// New builds a Translator for locale (e.g. "ko", "en-GB"). Unknown or empty
// locales fall back to English.
func New(locale string) *Translator {
	tag := language.English
	if locale != "" {
		parsed, err := language.Parse(locale)
		if err != nil {
			appLog.Warn("i18n: unknown locale, using English", "locale", locale, "err", err)
		} else {
			tag = parsed
		}
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range []string{"active.en.toml", "active.ko.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			appLog.Error("i18n: failed to load messages", err, "file", file)
		}
	}

	return &Translator{
		bundle:    bundle,
		localizer: i18n.NewLocalizer(bundle, tag.String(), language.English.String()),
		tag:       tag,
	}
}

// Language returns the tag the translator was built for.
func (t *Translator) Language() language.Tag { return t.tag }

// T renders the message id. count selects the plural form when non-nil.
// Missing messages render as the id itself.
func (t *Translator) T(id string, data map[string]any, count any) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
		PluralCount:  count,
	})
	if err != nil {
		appLog.Debug("i18n: localize failed", "id", id, "lang", t.tag.String(), "err", err)
		return id
	}
	return msg
}

func (t *Translator) NewEventTitle() string {
	return t.T(MsgNewEventTitle, nil, nil)
}

// ResizeDelta renders a signed minute offset such as "+30 min".
func (t *Translator) ResizeDelta(minutes int) string {
	abs := minutes
	if abs < 0 {
		abs = -abs
	}
	return t.T(MsgResizeDelta, map[string]any{"Delta": fmt.Sprintf("%+d", minutes)}, abs)
}

func (t *Translator) MoreEvents(n int) string {
	return t.T(MsgMoreEvents, map[string]any{"Count": n}, n)
}

func (t *Translator) AllDayLabel() string {
	return t.T(MsgAllDay, nil, nil)
}
