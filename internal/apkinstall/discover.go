// Package apkinstall installs an APK on every attached Android device.
//
// Device discovery retries with capped exponential backoff, restarting the
// adb server between attempts. Installs then run in parallel, one
// independent unit of work per device: a failure on one device does not
// stop the others.
package apkinstall

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildtools/internal/logging"
)

// ErrNoDevices is returned when no device showed up after all attempts.
var ErrNoDevices = errors.New("no connected devices")

// DeviceNotAttachedError reports a requested device that adb does not list.
type DeviceNotAttachedError struct {
	Serial   string
	Attached []string
}

func (e *DeviceNotAttachedError) Error() string {
	return fmt.Sprintf("%s not in attached devices %s", e.Serial, strings.Join(e.Attached, ","))
}

// DeviceLister is the part of the adb client used for discovery.
type DeviceLister interface {
	AttachedSerials(ctx context.Context) ([]string, error)
	KillServer(ctx context.Context) error
}

// RetryPolicy bounds device discovery.
type RetryPolicy struct {
	// Attempts is the number of times devices are listed (at least 1).
	Attempts int
	// Interval is the first wait; it doubles after each empty attempt.
	Interval time.Duration
	// MaxInterval caps the wait; 0 means uncapped.
	MaxInterval time.Duration
}

// DefaultRetryPolicy waits 15s, 30s, 60s and 120s between five attempts.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, Interval: 15 * time.Second, MaxInterval: 2 * time.Minute}

// Delays returns the waits between consecutive attempts.
func (p RetryPolicy) Delays() []time.Duration {
	n := p.Attempts - 1
	if n <= 0 {
		return nil
	}
	out := make([]time.Duration, 0, n)
	d := p.Interval
	for i := 0; i < n; i++ {
		if p.MaxInterval > 0 && d > p.MaxInterval {
			d = p.MaxInterval
		}
		out = append(out, d)
		d *= 2
	}
	return out
}

// Discoverer finds the devices to install on.
type Discoverer struct {
	Lister DeviceLister
	Policy RetryPolicy
	Logger *zap.Logger
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Discover returns the serials to install on. When wanted is non-empty only
// that device is returned, and it is an error if other devices are attached
// but wanted is not among them. When nothing is attached the adb server is
// killed and discovery retried according to the policy.
func (d *Discoverer) Discover(ctx context.Context, wanted string) ([]string, error) {
	log := logging.OrNop(d.Logger)
	sleep := d.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	delays := d.Policy.Delays()

	for attempt := 0; ; attempt++ {
		serials, err := d.Lister.AttachedSerials(ctx)
		if err != nil {
			return nil, err
		}
		if len(serials) > 0 {
			if wanted == "" {
				return serials, nil
			}
			if !slices.Contains(serials, wanted) {
				return nil, &DeviceNotAttachedError{Serial: wanted, Attached: serials}
			}
			return []string{wanted}, nil
		}

		if attempt >= len(delays) {
			return nil, ErrNoDevices
		}
		wait := delays[attempt]
		log.Warn("no connected devices found, killing adb server and retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", wait))
		if err := d.Lister.KillServer(ctx); err != nil {
			log.Warn("kill adb server", zap.Error(err))
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
