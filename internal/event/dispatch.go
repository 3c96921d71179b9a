package event

import (
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/glizzus/livesfx/internal/schedule"
	"github.com/glizzus/livesfx/internal/settings"
)

// DefaultLikeInterval spaces the sounds of one like burst.
const DefaultLikeInterval = 1200 * time.Millisecond

// Gift price tier boundaries, inclusive.
const (
	GiftTier1Max = 1000
	GiftTier2Max = 10000
)

// Trigger starts a sound for an event.
type Trigger interface {
	Trigger(event string, volume float64) bool
}

// Recorder observes dispatched events.
type Recorder interface {
	EventDispatched(kind string)
}

// Result describes what dispatching a payload did. Attempts counts the
// trigger attempts made or scheduled, before probability gating.
type Result struct {
	Kind     Kind
	Event    string
	Attempts int
}

// Dispatcher applies the dispatch table to event payloads.
type Dispatcher struct {
	sink         Trigger
	policy       atomic.Pointer[settings.Policy]
	random       func() float64
	likeInterval time.Duration
	recorder     Recorder
}

type Option func(*Dispatcher)

// WithRandom replaces the uniform [0, 1) source used for probability gates.
// Like bursts call it from their own goroutines, so it must be safe for
// concurrent use.
func WithRandom(random func() float64) Option {
	return func(d *Dispatcher) {
		d.random = random
	}
}

func WithLikeInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		d.likeInterval = interval
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

func NewDispatcher(sink Trigger, policy *settings.Policy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:         sink,
		random:       rand.Float64,
		likeInterval: DefaultLikeInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.SetPolicy(policy)
	return d
}

// SetPolicy replaces the policy used by later dispatches. Like bursts
// already scheduled keep the values they started with.
func (d *Dispatcher) SetPolicy(p *settings.Policy) {
	if p == nil {
		p = settings.Default()
	}
	d.policy.Store(p)
}

// Dispatch parses body and triggers the sounds its event calls for. Like
// bursts are scheduled in the background and Dispatch returns without
// waiting for them.
func (d *Dispatcher) Dispatch(body []byte) (Result, error) {
	p, err := Parse(body)
	if err != nil {
		return Result{}, err
	}
	if d.recorder != nil {
		d.recorder.EventDispatched(string(p.Kind))
	}

	policy := d.policy.Load()
	res := Result{Kind: p.Kind}

	switch p.Kind {
	case KindLike:
		res.Event = settings.EventLike
		res.Attempts = LikeAttempts(p.LikeCount, policy.MultiLike)
		probability := policy.Probability(settings.EventLike)
		slog.Info("Received like", "uid", p.UID, "uname", p.UName, "count", p.LikeCount, "attempts", res.Attempts)
		schedule.Repeat(res.Attempts, d.likeInterval, func(int) {
			d.gated(settings.EventLike, probability)
		})
	case KindGift:
		res.Event = GiftTier(p.Price)
		res.Attempts = 1
		slog.Info("Received gift", "uid", p.UID, "price", p.Price, "event", res.Event)
		d.sink.Trigger(res.Event, 1)
	case KindMessage:
		res.Event = settings.EventMessage
		res.Attempts = 1
		slog.Debug("Received message", "uid", p.UID)
		d.gated(settings.EventMessage, policy.Probability(settings.EventMessage))
	case KindSuperChat, KindGuard, KindEnter:
		res.Event = string(p.Kind)
		res.Attempts = 1
		slog.Info("Received event", "kind", p.Kind, "uid", p.UID)
		d.sink.Trigger(res.Event, 1)
	case KindInteract:
		if p.MsgType != FollowMsgType {
			slog.Debug("Ignoring interaction", "msg_type", p.MsgType)
			break
		}
		res.Event = settings.EventFollow
		res.Attempts = 1
		slog.Info("Received follow", "uid", p.UID)
		d.sink.Trigger(res.Event, 1)
	default:
		slog.Debug("Ignoring event", "cmd", p.Cmd)
	}

	return res, nil
}

func (d *Dispatcher) gated(event string, probability float64) {
	if d.random() < probability {
		d.sink.Trigger(event, 1)
	}
}

// LikeAttempts returns how many sounds a like burst of count plays: one when
// multi-like is off, otherwise count capped at settings.MaxLikeRepeats.
func LikeAttempts(count int64, multiLike bool) int {
	if !multiLike {
		return 1
	}
	return int(min(max(count, 0), settings.MaxLikeRepeats))
}

// GiftTier maps a gift price to the event it plays.
func GiftTier(price int64) string {
	switch {
	case price <= GiftTier1Max:
		return settings.EventGift1
	case price <= GiftTier2Max:
		return settings.EventGift2
	default:
		return settings.EventGift3
	}
}
