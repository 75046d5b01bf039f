// Package clockcfg implements the Pipeline Clock & PTP concern (spec
// §4.8): selecting the pipeline clock before any element is added, and
// judging PTP clock corrections for significance. Grounded on the
// teacher's internal/domain/session clock-selection step in its tuner
// lease lifecycle, which likewise configures a hardware-backed resource
// before any dependent object is constructed.
package clockcfg

import (
	"github.com/eyevinn-osaas/strom-sub002/internal/engine"
	"github.com/eyevinn-osaas/strom-sub002/internal/flow"
	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
	"github.com/eyevinn-osaas/strom-sub002/internal/types"
)

// SignificantThreshold is the PTP clock correction magnitude above which
// a correction is tagged significant (spec §4.8: "Clock corrections >
// 100 µs are additionally tagged as significant").
const SignificantThreshold = 100e-6 // seconds

// Configure assigns pipe's clock according to props, before any element
// is added to it (spec §4.4 step 2, §4.8). For ClockPTP it additionally
// forces direct-media-clock timing (base_time=0, start_time=None), the
// RFC 7273 mediaclk:direct=0 signal.
func Configure(f engine.Factory, pipe engine.Pipeline, props flow.FlowProperties) error {
	switch props.ClockType {
	case types.ClockPTP:
		domain := 0
		if props.PTPDomain != nil {
			domain = *props.PTPDomain
		}
		clk, err := f.NewPTPClock(domain)
		if err != nil {
			return rerr.Wrap(rerr.InvalidConfiguration, err, "ptp clock domain %d", domain)
		}
		if err := pipe.SetClock(clk); err != nil {
			return rerr.Wrap(rerr.InvalidConfiguration, err, "setting ptp clock")
		}
		pipe.SetDirectMediaClock()
		return nil
	case "":
		return pipe.SetClock(f.SystemClock(types.ClockMonotonic))
	default:
		if err := pipe.SetClock(f.SystemClock(props.ClockType)); err != nil {
			return rerr.Wrap(rerr.InvalidConfiguration, err, "setting clock %s", props.ClockType)
		}
		return nil
	}
}

// Significant reports whether a PTP clock offset exceeds the
// significant-correction threshold.
func Significant(offsetSeconds float64) bool {
	if offsetSeconds < 0 {
		offsetSeconds = -offsetSeconds
	}
	return offsetSeconds > SignificantThreshold
}
