package browser

import (
	"context"
	"math/rand/v2"
	"time"
)

// scrollScript smooth-scrolls the window and every scrollable element to the
// bottom so infinite-scroll lists load their next page.
const scrollScript = `() => {
	const scrollable = [document.scrollingElement || document.documentElement];
	for (const el of document.querySelectorAll('*')) {
		if (el.scrollHeight <= el.clientHeight) continue;
		const style = window.getComputedStyle(el);
		if (style.overflowY === 'auto' || style.overflowY === 'scroll') {
			scrollable.push(el);
		}
	}
	for (const el of scrollable) {
		el.scrollTo({ top: el.scrollHeight, behavior: 'smooth' });
	}
	return scrollable.length;
}`

// RandomDuration picks a duration in [min, max].
func RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
