package bot

import (
	tele "gopkg.in/telebot.v4"

	"lectio/pkg/tgui"
)

// AckMarkup is the "done reading" control attached to every chapter
// broadcast.
func AckMarkup() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("✅ I read it", cbAck)).
		Markup()
}

func adminMarkup() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("📤 Send chapter now", cbAdminSend)).
		Row(tgui.Btn("🔁 Change book", cbAdminPick)).
		Row(tgui.Btn("🔀 Reroll passage", cbAdminRoll)).
		Row(tgui.Btn("📊 Stats", cbAdminStats)).
		Row(tgui.Btn("📖 Who has read", cbAdminRead)).
		Row(tgui.Btn("📕 Who has not", cbAdminMiss)).
		Markup()
}

func chooseMarkup(labels []string) *tele.ReplyMarkup {
	buttons := make([]tele.Btn, 0, len(labels))
	for _, label := range labels {
		buttons = append(buttons, tgui.Btn(label, cbChoose+label))
	}
	return tgui.Grid(2, buttons)
}
