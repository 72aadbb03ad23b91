package reading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lectio/internal/broadcast"
	"lectio/internal/catalog"
	"lectio/internal/progress"
	"lectio/internal/storage"
	"lectio/internal/transport"
)

// Policy selects how the next unit is chosen on a scheduled send.
type Policy string

const (
	// PolicySequential walks chapter by chapter through the book the
	// administrator selected.
	PolicySequential Policy = "sequential"
	// PolicyRandomDaily sends one random passage per day.
	PolicyRandomDaily Policy = "random-daily"
)

// Actions dispatched by the scheduler. Kept as strings so the scheduler
// package stays decoupled from this one.
const (
	ActionSend   = "send"
	ActionRemind = "remind"
)

type ServiceConfig struct {
	Policy  Policy
	AdminID int64
	// Location is the campaign timezone; period keys and trigger times
	// are derived from it.
	Location *time.Location
	// AckMarkup is the adapter-specific "done reading" keyboard attached
	// to broadcast messages. Optional.
	AckMarkup any
}

// Service is the orchestrator: every broadcast, scheduled or
// administrator-triggered, goes through SendCurrent, so there is exactly
// one code path for advancement and fan-out.
type Service struct {
	cfg    ServiceConfig
	state  *State
	picker *RandomDaily
	cat    *catalog.Catalog
	store  storage.Store
	ledger *progress.Ledger
	engine *broadcast.Engine
	sender transport.Sender
	log    zerolog.Logger

	now func() time.Time
}

func NewService(cfg ServiceConfig, state *State, picker *RandomDaily, cat *catalog.Catalog,
	store storage.Store, ledger *progress.Ledger, engine *broadcast.Engine,
	sender transport.Sender, log zerolog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicySequential
	}
	return &Service{
		cfg:    cfg,
		state:  state,
		picker: picker,
		cat:    cat,
		store:  store,
		ledger: ledger,
		engine: engine,
		sender: sender,
		log:    log,
		now:    time.Now,
	}
}

// Today returns the current period key in the campaign timezone.
func (s *Service) Today() string {
	return progress.DayKey(s.now().In(s.cfg.Location))
}

func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// Register records a subscriber (idempotent) and returns the current
// unit so the caller can show what is being read. ErrNoActiveUnit is
// expected while the administrator has not picked a book.
func (s *Service) Register(ctx context.Context, id int64, username string) (Unit, error) {
	if err := s.store.UpsertSubscriber(ctx, storage.Subscriber{ID: id, Username: username}); err != nil {
		return Unit{}, fmt.Errorf("register subscriber: %w", err)
	}
	s.log.Info().Int64("user", id).Str("username", username).Msg("subscriber registered")
	return s.state.Current(ctx)
}

func (s *Service) Current(ctx context.Context) (Unit, error) {
	return s.state.Current(ctx)
}

// Select is the administrator override: switch to a label and reset the
// position to zero. The next send delivers chapter 1.
func (s *Service) Select(ctx context.Context, label string) (Unit, error) {
	u, err := s.state.Set(ctx, label, 0)
	if err != nil {
		return Unit{}, err
	}
	s.log.Info().Str("label", label).Msg("reading unit selected")
	return u, nil
}

// Reroll replaces today's cached random pick. Only meaningful under the
// random-daily policy.
func (s *Service) Reroll(ctx context.Context) (Unit, error) {
	if s.picker == nil || s.cfg.Policy != PolicyRandomDaily {
		return Unit{}, errors.New("reroll requires the random-daily policy")
	}
	return s.picker.Reroll(ctx, s.Today())
}

// SendCurrent advances to the next unit per the configured policy and
// fans it out to all subscribers with the acknowledgement control
// attached. Both the scheduler tick and the administrator's "send now"
// land here.
func (s *Service) SendCurrent(ctx context.Context) (Unit, broadcast.Report, error) {
	var (
		unit Unit
		err  error
	)
	switch s.cfg.Policy {
	case PolicyRandomDaily:
		unit, err = s.picker.Pick(ctx, s.Today())
		if err == nil {
			_, err = s.state.Set(ctx, unit.Label, unit.Position)
		}
	default:
		unit, err = s.state.Advance(ctx)
	}
	if err != nil {
		return unit, broadcast.Report{}, err
	}

	targets, err := s.targets(ctx)
	if err != nil {
		return unit, broadcast.Report{}, err
	}
	text := fmt.Sprintf("📖 Today we read:\n<b>%s</b>", unit)
	opt := &transport.SendOptions{ParseMode: "HTML", ReplyMarkup: s.cfg.AckMarkup}
	rep := s.engine.Broadcast(ctx, text, opt, targets)
	return unit, rep, nil
}

// Remind messages subscribers who have not acknowledged today's unit.
func (s *Service) Remind(ctx context.Context) (Unit, broadcast.Report, error) {
	unit, err := s.state.Current(ctx)
	if err != nil {
		return Unit{}, broadcast.Report{}, err
	}
	pending, err := s.ledger.NonReaders(ctx, s.Today())
	if err != nil {
		return unit, broadcast.Report{}, err
	}
	targets := make([]transport.ChatTarget, 0, len(pending))
	for _, sub := range pending {
		targets = append(targets, transport.ChatTarget{ChatID: sub.ID})
	}
	text := fmt.Sprintf("⏰ Reminder: don't forget to read %s 🙏", unit)
	rep := s.engine.Broadcast(ctx, text, nil, targets)
	return unit, rep, nil
}

// Acknowledge records that a subscriber finished the current unit for
// today's period.
func (s *Service) Acknowledge(ctx context.Context, userID int64) error {
	unit, err := s.state.Current(ctx)
	if err != nil {
		return err
	}
	return s.ledger.Acknowledge(ctx, userID, unit.Ref(), s.Today())
}

// Stats summarizes today's completion.
type Stats struct {
	Period string
	Unit   Unit
	Read   int
	Total  int
}

func (s *Service) Stats(ctx context.Context, period string) (Stats, error) {
	read, total, err := s.ledger.Completion(ctx, period)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Period: period, Read: read, Total: total}
	if u, err := s.state.Current(ctx); err == nil {
		st.Unit = u
	}
	return st, nil
}

func (s *Service) Readers(ctx context.Context, period string) ([]storage.Subscriber, error) {
	return s.ledger.Readers(ctx, period)
}

func (s *Service) NonReaders(ctx context.Context, period string) ([]storage.Subscriber, error) {
	return s.ledger.NonReaders(ctx, period)
}

// HandleAction is the scheduler dispatch boundary. Domain conditions are
// reported to the administrator; storage trouble is logged and reported
// without ever propagating a panic or crash into the trigger loop.
func (s *Service) HandleAction(ctx context.Context, action string) error {
	switch action {
	case ActionSend:
		unit, rep, err := s.SendCurrent(ctx)
		switch {
		case errors.Is(err, ErrNoActiveUnit):
			s.notifyAdmin(ctx, "⚠️ No book is selected yet. Nothing was sent.")
			return nil
		case errors.Is(err, ErrExhausted):
			s.notifyAdmin(ctx, fmt.Sprintf("✅ Book %q is finished! Pick the next one.", unit.Label))
			return nil
		case err != nil:
			s.notifyAdmin(ctx, "⚠️ Scheduled send failed: "+err.Error())
			return err
		}
		s.log.Info().Stringer("unit", unit).Int("sent", rep.Sent).Int("failed", rep.Failed).
			Msg("scheduled chapter sent")
		return nil
	case ActionRemind:
		unit, rep, err := s.Remind(ctx)
		switch {
		case errors.Is(err, ErrNoActiveUnit):
			// Nothing to remind about; stay quiet.
			return nil
		case err != nil:
			s.notifyAdmin(ctx, "⚠️ Scheduled reminder failed: "+err.Error())
			return err
		}
		s.log.Info().Stringer("unit", unit).Int("sent", rep.Sent).Int("failed", rep.Failed).
			Msg("reminder sent")
		return nil
	default:
		return fmt.Errorf("unknown scheduled action %q", action)
	}
}

func (s *Service) notifyAdmin(ctx context.Context, text string) {
	if s.cfg.AdminID == 0 {
		return
	}
	if _, err := s.sender.SendText(ctx, transport.ChatTarget{ChatID: s.cfg.AdminID}, text, nil); err != nil {
		s.log.Warn().Err(err).Msg("admin notification failed")
	}
}

func (s *Service) targets(ctx context.Context) ([]transport.ChatTarget, error) {
	subs, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	out := make([]transport.ChatTarget, 0, len(subs))
	for _, sub := range subs {
		out = append(out, transport.ChatTarget{ChatID: sub.ID})
	}
	return out, nil
}
