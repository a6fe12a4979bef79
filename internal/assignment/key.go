package assignment

import (
	"net/url"
	"slices"
	"strings"

	"github.com/vietddude/flagfetch/internal/core/domain"
)

const (
	tokenSep = "|"
	flagSep  = ","
)

// DeriveKey builds the cache key for a fetch.
//
// The key is the prefix followed by user=<id>, device=<id> and
// flags=<sorted,deduplicated list>, each only when present, joined by "|".
// Targeting context other than the identity is not part of the key.
func DeriveKey(prefix string, user *domain.User, opts *domain.FetchOptions) string {
	var b strings.Builder
	b.WriteString(prefix)

	if user != nil {
		if user.UserID != "" {
			b.WriteString(tokenSep + "user=" + url.PathEscape(user.UserID))
		}
		if user.DeviceID != "" {
			b.WriteString(tokenSep + "device=" + url.PathEscape(user.DeviceID))
		}
	}

	if opts != nil && len(opts.FlagKeys) > 0 {
		keys := slices.Clone(opts.FlagKeys)
		slices.Sort(keys)
		keys = slices.Compact(keys)
		for i, k := range keys {
			keys[i] = url.PathEscape(k)
		}
		b.WriteString(tokenSep + "flags=" + strings.Join(keys, flagSep))
	}

	return b.String()
}
