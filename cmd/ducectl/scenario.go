package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wippyai/duce/channel"
	"github.com/wippyai/duce/composition"
	"github.com/wippyai/duce/notify"
	"github.com/wippyai/duce/resource"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/wire"
)

// scenario drives one rendering context through its whole channel
// lifecycle, one step at a time.
type scenario struct {
	dialer    transport.Dialer
	cfg       composition.Config
	resources int

	sys     *composition.System
	manager *composition.Manager
	brushes []*channel.Resource
	target  channel.Resource
	root    channel.Resource
	sink    notify.ChanSink

	notifications int
	results       []stepResult
	final         channel.Stats
}

type step struct {
	name string
	run  func(ctx context.Context) (string, error)
}

type stepResult struct {
	name    string
	detail  string
	err     error
	elapsed time.Duration
}

// report is the summary printed after a run.
type report struct {
	Steps         []stepResult
	Manager       composition.Stats
	Channel       channel.Stats
	Notifications int
}

func newScenario(dialer transport.Dialer, cfg composition.Config, resources int) *scenario {
	return &scenario{
		dialer:    dialer,
		cfg:       cfg,
		resources: resources,
		sink:      make(notify.ChanSink, 256),
	}
}

func (s *scenario) steps() []step {
	return []step{
		{"acquire system", s.acquire},
		{"create channels", s.createChannels},
		{"allocate sync channels", s.exercisePool},
		{"create resources", s.createResources},
		{"update gradients", s.updateGradients},
		{"commit and present", s.commitAndPresent},
		{"release resources", s.releaseResources},
		{"remove channels", s.removeChannels},
		{"release system", s.releaseSystem},
	}
}

// run executes one step and records its outcome.
func (s *scenario) run(ctx context.Context, st step) stepResult {
	start := time.Now()
	detail, err := st.run(ctx)
	r := stepResult{name: st.name, detail: detail, err: err, elapsed: time.Since(start)}
	s.results = append(s.results, r)
	return r
}

// runAll executes every step, stopping at the first failure. Teardown
// runs regardless so connections are not leaked.
func (s *scenario) runAll(ctx context.Context) (report, error) {
	for _, st := range s.steps() {
		if r := s.run(ctx, st); r.err != nil {
			s.teardown()
			return s.report(), fmt.Errorf("%s: %w", st.name, r.err)
		}
	}
	return s.report(), nil
}

func (s *scenario) teardown() {
	if s.manager != nil {
		s.manager.RemoveChannels()
	}
	if s.sys != nil && s.sys.RefCount() > 0 {
		s.sys.Release()
	}
}

func (s *scenario) report() report {
	r := report{Steps: s.results, Notifications: s.notifications, Channel: s.final}
	if s.manager != nil {
		r.Manager = s.manager.Stats()
		if ch := s.manager.Channel(); ch != nil {
			r.Channel = ch.Stats()
		}
	}
	return r
}

func (s *scenario) acquire(ctx context.Context) (string, error) {
	s.sys = composition.NewSystem(s.dialer)
	if err := s.sys.Acquire(ctx); err != nil {
		return "", err
	}
	m, err := composition.NewManager(s.sys, s.cfg)
	if err != nil {
		return "", err
	}
	s.manager = m
	return fmt.Sprintf("system %s, service channel %d", s.sys.ID(), s.sys.ServiceChannel().ID()), nil
}

func (s *scenario) createChannels(ctx context.Context) (string, error) {
	if err := s.manager.CreateChannels(ctx); err != nil {
		return "", err
	}
	ch := s.manager.Channel()
	if err := ch.SetNotificationSink(s.sink, 0x0400); err != nil {
		return "", err
	}
	return fmt.Sprintf("channel %d, out-of-band %d", ch.ID(), s.manager.OutOfBandChannel().ID()), nil
}

// exercisePool allocates more sync channels than the pool keeps and hands
// them all back.
func (s *scenario) exercisePool(ctx context.Context) (string, error) {
	n := s.cfg.MaxFreeSyncChannels + 2
	held := make([]*channel.Channel, 0, n)
	for range n {
		ch, err := s.manager.AllocateSyncChannel(ctx)
		if err != nil {
			return "", err
		}
		held = append(held, ch)
	}
	for _, ch := range held {
		if err := s.manager.ReleaseSyncChannel(ch); err != nil {
			return "", err
		}
	}
	st := s.manager.Stats()
	return fmt.Sprintf("%d allocated, %d pooled, %d closed", n, st.FreeSyncChannels, st.SyncClosed), nil
}

func (s *scenario) createResources(ctx context.Context) (string, error) {
	ch := s.manager.Channel()
	if _, err := s.target.CreateOrAddRefOnChannel(nil, ch, resource.TypeCompositionTarget); err != nil {
		return "", err
	}
	if _, err := s.root.CreateOrAddRefOnChannel(nil, ch, resource.TypeVisual); err != nil {
		return "", err
	}
	err := ch.SendCommand(wire.Encode(wire.TargetSetRoot{Target: s.target.Handle(ch), Root: s.root.Handle(ch)}), true)
	if err != nil {
		return "", err
	}

	for i := range s.resources {
		r := &channel.Resource{}
		if _, err := r.CreateOrAddRefOnChannel(i, ch, resource.TypeLinearGradientBrush); err != nil {
			return "", err
		}
		// A second owner shares the brush.
		if _, err := r.CreateOrAddRefOnChannel(i, ch, resource.TypeLinearGradientBrush); err != nil {
			return "", err
		}
		s.brushes = append(s.brushes, r)
	}
	return fmt.Sprintf("%d brushes, %d handles live", len(s.brushes), ch.Stats().Resources), nil
}

func (s *scenario) updateGradients(ctx context.Context) (string, error) {
	ch := s.manager.Channel()
	for i, r := range s.brushes {
		stops := []wire.GradientStop{
			{Offset: 0, Color: wire.Color{R: 1, A: 1}},
			{Offset: float64(i%10) / 10, Color: wire.Color{G: 1, A: 1}},
			{Offset: 1, Color: wire.Color{B: 1, A: 1}},
		}
		brush := wire.LinearGradientBrush{
			Handle:    r.Handle(ch),
			Opacity:   1,
			EndX:      1,
			EndY:      1,
			StopCount: uint32(len(stops)),
		}
		hdr := brush.Header()
		if err := ch.BeginCommand(hdr, len(hdr), brush.ExtraSize()); err != nil {
			return "", err
		}
		if err := ch.AppendCommandData(wire.EncodeGradientStops(stops)); err != nil {
			return "", err
		}
		if err := ch.EndCommand(); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%d commands pending in %d batches", ch.Stats().Commands, ch.Stats().Pending), nil
}

func (s *scenario) commitAndPresent(ctx context.Context) (string, error) {
	ch := s.manager.Channel()
	if err := ch.Commit(ctx); err != nil {
		return "", err
	}
	if err := ch.Present(ctx); err != nil {
		return "", err
	}
	if err := ch.SyncFlush(ctx); err != nil {
		return "", err
	}
	s.drain()
	st := ch.Stats()
	return fmt.Sprintf("%d batches, %d bytes, %d notifications", st.Batches, st.Bytes, s.notifications), nil
}

func (s *scenario) releaseResources(ctx context.Context) (string, error) {
	ch := s.manager.Channel()
	destroyed := 0
	for _, r := range s.brushes {
		for r.IsOnChannel(ch) {
			gone, err := r.ReleaseOnChannel(ch)
			if err != nil {
				return "", err
			}
			if gone {
				destroyed++
			}
		}
	}
	s.brushes = nil

	err := ch.SendCommand(wire.Encode(wire.TargetSetRoot{Target: s.target.Handle(ch)}), false)
	if err != nil {
		return "", err
	}
	for _, r := range []*channel.Resource{&s.root, &s.target} {
		if _, err := r.ReleaseOnChannel(ch); err != nil {
			return "", err
		}
		destroyed++
	}
	if err := ch.SyncFlush(ctx); err != nil {
		return "", err
	}
	s.drain()
	return fmt.Sprintf("%d destroyed, %d handles live", destroyed, ch.Stats().Resources), nil
}

func (s *scenario) removeChannels(ctx context.Context) (string, error) {
	s.final = s.manager.Channel().Stats()
	if err := s.manager.RemoveChannels(); err != nil {
		return "", err
	}
	// Idempotent; a second call must leave the same state.
	if err := s.manager.RemoveChannels(); err != nil {
		return "", err
	}
	return "manager reset", nil
}

func (s *scenario) releaseSystem(ctx context.Context) (string, error) {
	if err := s.sys.Release(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d references left", s.sys.RefCount()), nil
}

func (s *scenario) drain() {
	for {
		select {
		case <-s.sink:
			s.notifications++
		default:
			return
		}
	}
}
