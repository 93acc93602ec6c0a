package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signalengine/internal/model"
)

type staticSweeper struct {
	sigs  []model.Signal
	calls int
}

func (s *staticSweeper) Scan(context.Context, []model.Instrument) []model.Signal {
	s.calls++
	return s.sigs
}

type recordingPublisher struct {
	got  []model.Signal
	fail bool
}

func (p *recordingPublisher) Publish(_ context.Context, sig model.Signal) error {
	if p.fail {
		return errors.New("bus closed")
	}
	p.got = append(p.got, sig)
	return nil
}

func TestRadar_ThresholdAndDedup(t *testing.T) {
	sweeper := &staticSweeper{sigs: []model.Signal{
		{Asset: "BTC/USDT", Direction: model.DirectionBuy, Confidence: 88},
		{Asset: "EURUSD=X", Direction: model.DirectionSell, Confidence: 74.9},
		{Asset: "GC=F", Direction: model.DirectionSell, Confidence: 75},
	}}
	pub := &recordingPublisher{}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	r := NewRadar(RadarConfig{}, sweeper, pub, nil).WithClock(func() time.Time { return now })

	assert.Equal(t, 2, r.Sweep(context.Background()))
	assert.Equal(t, []string{"BTC/USDT", "GC=F"}, assets(pub.got))

	now = now.Add(59 * time.Minute)
	assert.Zero(t, r.Sweep(context.Background()), "repeat within the window is suppressed")

	now = now.Add(time.Minute)
	assert.Equal(t, 2, r.Sweep(context.Background()))
	assert.Len(t, pub.got, 4)
}

func TestRadar_OppositeDirectionIsNotADuplicate(t *testing.T) {
	sweeper := &staticSweeper{sigs: []model.Signal{{Asset: "BTC/USDT", Direction: model.DirectionBuy, Confidence: 90}}}
	pub := &recordingPublisher{}
	r := NewRadar(RadarConfig{}, sweeper, pub, nil)

	r.Sweep(context.Background())
	sweeper.sigs[0].Direction = model.DirectionSell
	assert.Equal(t, 1, r.Sweep(context.Background()))
}

func TestRadar_FailedPublishIsRetried(t *testing.T) {
	sweeper := &staticSweeper{sigs: []model.Signal{{Asset: "1HZ100V", Direction: model.DirectionBuy, Confidence: 90}}}
	pub := &recordingPublisher{fail: true}
	r := NewRadar(RadarConfig{}, sweeper, pub, nil)

	assert.Zero(t, r.Sweep(context.Background()))
	pub.fail = false
	assert.Equal(t, 1, r.Sweep(context.Background()))
}

func TestRadar_RunSweepsUntilCancelled(t *testing.T) {
	sweeper := &staticSweeper{}
	r := NewRadar(RadarConfig{Interval: 10 * time.Millisecond}, sweeper, &recordingPublisher{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, sweeper.calls, 2)
}
