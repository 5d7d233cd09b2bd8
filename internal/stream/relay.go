package stream

import (
	"context"

	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

// Relay forwards snapshot summaries and notices to the hub until ctx is
// cancelled or both channels close.
func Relay(ctx context.Context, h *Hub, snaps <-chan *syncer.Snapshot, notices <-chan notifications.Notice) {
	for snaps != nil || notices != nil {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			h.Broadcast(Event{Type: EventSnapshot, Data: snap.Summary(), Principal: snap.PrincipalID})
		case n, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			h.Broadcast(Event{Type: EventNotice, Data: n})
		}
	}
}
