// Package bot wires Telegram updates onto the core services. Handlers
// hold no business logic: each inbound event maps to exactly one core
// operation and renders its result.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"lectio/internal/reading"
	"lectio/internal/transport"
)

const handlerTimeout = 30 * time.Second

// Callback routes. Buttons carry raw callback_data.
const (
	cbAck        = "ack"
	cbAdminSend  = "admin:send"
	cbAdminPick  = "admin:change"
	cbAdminStats = "admin:stats"
	cbAdminRead  = "admin:readers"
	cbAdminMiss  = "admin:notread"
	cbAdminRoll  = "admin:reroll"
	cbChoose     = "choose:" // + label
)

type Router struct {
	svc      *reading.Service
	resolver transport.IdentityResolver
	log      zerolog.Logger
	adminID  int64

	baseCtx context.Context
}

func NewRouter(svc *reading.Service, resolver transport.IdentityResolver, adminID int64, log zerolog.Logger) *Router {
	return &Router{svc: svc, resolver: resolver, adminID: adminID, log: log, baseCtx: context.Background()}
}

// Attach registers all handlers on the bot. ctx bounds handler work
// started after Attach; cancelling it fails in-flight handlers fast.
func (r *Router) Attach(ctx context.Context, b *tele.Bot) {
	r.baseCtx = ctx
	b.Handle("/start", r.wrap(r.onStart))
	b.Handle("/current", r.wrap(r.onCurrent))
	b.Handle("/admin", r.wrap(r.onAdmin))
	b.Handle(tele.OnCallback, r.wrap(r.onCallback))
}

// wrap gives every handler a bounded context and keeps handler panics
// and errors out of the telebot poll loop.
func (r *Router) wrap(h func(ctx context.Context, c tele.Context) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(r.baseCtx, handlerTimeout)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Interface("panic", rec).Msg("panic in update handler")
			}
		}()
		if err := h(ctx, c); err != nil {
			r.log.Warn().Err(err).Str("update", updateName(c)).Msg("handler failed")
		}
		return nil
	}
}

func (r *Router) isAdmin(c tele.Context) bool {
	s := c.Sender()
	return s != nil && s.ID == r.adminID
}

func (r *Router) onStart(ctx context.Context, c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	unit, err := r.svc.Register(ctx, sender.ID, sender.Username)
	switch {
	case errors.Is(err, reading.ErrNoActiveUnit):
		return c.Send("⚠️ No book is selected yet. Waiting for the administrator.")
	case err != nil:
		return err
	}
	return c.Send(fmt.Sprintf("📖 Now reading: <b>%s</b>", unit), tele.ModeHTML)
}

func (r *Router) onCurrent(ctx context.Context, c tele.Context) error {
	unit, err := r.svc.Current(ctx)
	switch {
	case errors.Is(err, reading.ErrNoActiveUnit):
		return c.Send("⚠️ No book is selected yet. Waiting for the administrator.")
	case err != nil:
		return err
	}
	return c.Send(fmt.Sprintf("📖 Now reading: <b>%s</b>", unit), tele.ModeHTML)
}

func (r *Router) onAdmin(ctx context.Context, c tele.Context) error {
	if !r.isAdmin(c) {
		return c.Send("⛔ No access.")
	}
	return c.Send("⚙️ Admin panel:", adminMarkup())
}

func (r *Router) onCallback(ctx context.Context, c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	data := strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f")

	if data == cbAck {
		return r.onAcknowledge(ctx, c)
	}

	// Everything else is the administrator surface.
	if !r.isAdmin(c) {
		return c.Respond(&tele.CallbackResponse{Text: "No access"})
	}
	switch {
	case data == cbAdminSend:
		return r.onAdminSend(ctx, c)
	case data == cbAdminPick:
		return c.Edit("📚 Pick a book:", chooseMarkup(r.svc.Catalog().Labels()))
	case data == cbAdminStats:
		return r.onAdminStats(ctx, c)
	case data == cbAdminRead:
		return r.onAdminReaders(ctx, c, true)
	case data == cbAdminMiss:
		return r.onAdminReaders(ctx, c, false)
	case data == cbAdminRoll:
		return r.onAdminReroll(ctx, c)
	case strings.HasPrefix(data, cbChoose):
		return r.onAdminChoose(ctx, c, strings.TrimPrefix(data, cbChoose))
	default:
		r.log.Debug().Str("data", data).Msg("unknown callback")
		return c.Respond(&tele.CallbackResponse{})
	}
}

func (r *Router) onAcknowledge(ctx context.Context, c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	err := r.svc.Acknowledge(ctx, sender.ID)
	switch {
	case errors.Is(err, reading.ErrNoActiveUnit):
		return c.Respond(&tele.CallbackResponse{Text: "Nothing to mark yet"})
	case err != nil:
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: "✅ Marked as read 🙏"})
}

func (r *Router) onAdminSend(ctx context.Context, c tele.Context) error {
	unit, rep, err := r.svc.SendCurrent(ctx)
	switch {
	case errors.Is(err, reading.ErrNoActiveUnit):
		return c.Respond(&tele.CallbackResponse{Text: "⚠️ No book selected"})
	case errors.Is(err, reading.ErrExhausted):
		return c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("✅ %q is finished", unit.Label)})
	case err != nil:
		return err
	}
	return c.Respond(&tele.CallbackResponse{
		Text: fmt.Sprintf("Sent %s: %d ok, %d failed", unit, rep.Sent, rep.Failed),
	})
}

func (r *Router) onAdminChoose(ctx context.Context, c tele.Context, label string) error {
	unit, err := r.svc.Select(ctx, label)
	if err != nil {
		return c.Edit("⚠️ " + err.Error())
	}
	return c.Edit(fmt.Sprintf("✅ Book selected: <b>%s</b>", unit.Label), tele.ModeHTML)
}

func (r *Router) onAdminStats(ctx context.Context, c tele.Context) error {
	st, err := r.svc.Stats(ctx, r.svc.Today())
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("📊 Read today: %d/%d", st.Read, st.Total))
}

func (r *Router) onAdminReaders(ctx context.Context, c tele.Context, readers bool) error {
	period := r.svc.Today()
	if readers {
		list, err := r.svc.Readers(ctx, period)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			return c.Send("❌ Nobody has read yet.")
		}
		return c.Send("📖 Have read:\n" + r.formatSubscribers(ctx, list))
	}
	list, err := r.svc.NonReaders(ctx, period)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return c.Send("✅ Everyone has read!")
	}
	return c.Send("📕 Have not read:\n" + r.formatSubscribers(ctx, list))
}

func (r *Router) onAdminReroll(ctx context.Context, c tele.Context) error {
	unit, err := r.svc.Reroll(ctx)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "⚠️ " + err.Error()})
	}
	return c.Respond(&tele.CallbackResponse{Text: "🔀 Today's passage: " + unit.String()})
}

func updateName(c tele.Context) string {
	if cb := c.Callback(); cb != nil {
		return "callback"
	}
	if m := c.Message(); m != nil {
		return m.Text
	}
	return "unknown"
}
