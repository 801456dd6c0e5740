package simulator

import (
	"context"
	"fmt"

	"github.com/okian/stillcap/pkg/logger"
)

// verifyCaptures checks the stored frames against the session it reports.
func verifyCaptures(ctx context.Context, client *Client, stats *Stats, verbose bool) error {
	st, err := client.Session(ctx)
	if err != nil {
		return err
	}
	list, err := client.Captures(ctx)
	if err != nil {
		return err
	}
	stats.FinalState = st.State
	stats.Captures = st.Stats.CaptureCount

	if err := checkCaptures(st, list); err != nil {
		return err
	}
	if verbose {
		for i, f := range list.Frames {
			logger.Get().Info(ctx, "capture",
				logger.Int("n", i+1),
				logger.String("id", f.ID),
				logger.Int64("capturedAtMs", f.CapturedAtMs),
				logger.Int("size", f.Size))
		}
	}
	logger.Get().Info(ctx, "captures verified", logger.Int("count", list.Count))
	return nil
}

// checkCaptures enforces the gate as seen from outside: no more stills than
// the target and consecutive stills strictly more than a cooldown apart.
// Frames carry the time of the tick that captured them.
func checkCaptures(st *SessionStatus, list *CaptureList) error {
	if list.Count != len(list.Frames) {
		return fmt.Errorf("capture list count %d disagrees with %d frames", list.Count, len(list.Frames))
	}
	if list.Count > st.Stats.CaptureCount {
		return fmt.Errorf("%d frames stored but session counted %d", list.Count, st.Stats.CaptureCount)
	}
	if st.Stats.CaptureCount > st.Settings.TargetCount {
		return fmt.Errorf("session captured %d past its target %d", st.Stats.CaptureCount, st.Settings.TargetCount)
	}
	for i := 1; i < len(list.Frames); i++ {
		prev, cur := list.Frames[i-1], list.Frames[i]
		if gap := cur.CapturedAtMs - prev.CapturedAtMs; gap <= st.Settings.CooldownMs {
			return fmt.Errorf("frames %s and %s are %d ms apart, cooldown is %d ms",
				prev.ID, cur.ID, gap, st.Settings.CooldownMs)
		}
	}
	return nil
}
