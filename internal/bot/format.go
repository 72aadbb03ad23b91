package bot

import (
	"context"
	"strconv"
	"strings"

	"lectio/internal/storage"
)

// formatSubscribers renders one bullet per subscriber. Preference order:
// username captured at registration, live identity lookup, raw ID.
func (r *Router) formatSubscribers(ctx context.Context, subs []storage.Subscriber) string {
	var b strings.Builder
	for i, s := range subs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(r.displayName(ctx, s))
	}
	return b.String()
}

func (r *Router) displayName(ctx context.Context, s storage.Subscriber) string {
	if s.Username != "" {
		return "@" + s.Username
	}
	if r.resolver != nil {
		if name, err := r.resolver.LookupIdentity(ctx, s.ID); err == nil && name != "" {
			return name
		}
	}
	return strconv.FormatInt(s.ID, 10)
}
