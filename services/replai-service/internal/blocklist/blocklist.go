// Package blocklist decides whether a sender is on a user's block list.
package blocklist

import (
	"strings"

	"github.com/samber/lo"
)

// IsBlocked reports whether from matches an entry of list. An entry blocks
// an exact address, an exact domain, or any subdomain of that domain.
func IsBlocked(from string, list []string) bool {
	if len(list) == 0 {
		return false
	}
	address := senderAddress(from)
	if address == "" {
		return false
	}
	domain := ""
	if at := strings.LastIndex(address, "@"); at >= 0 {
		domain = address[at+1:]
	}

	for _, raw := range list {
		entry := normalizeEntry(raw)
		if entry == "" {
			continue
		}
		if address == entry {
			return true
		}
		if domain != "" && (domain == entry || strings.HasSuffix(domain, "."+entry)) {
			return true
		}
	}
	return false
}

// Normalize lowercases and trims entries, strips a leading "@", drops empty
// entries and removes duplicates while keeping the original order.
func Normalize(list []string) []string {
	out := lo.Uniq(lo.FilterMap(list, func(raw string, _ int) (string, bool) {
		entry := normalizeEntry(raw)
		return entry, entry != ""
	}))
	if out == nil {
		return []string{}
	}
	return out
}

func normalizeEntry(raw string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "@")
}

// senderAddress accepts both "Name <addr>" and bare forms.
func senderAddress(from string) string {
	s := strings.TrimSpace(from)
	open := strings.LastIndex(s, "<")
	end := strings.LastIndex(s, ">")
	if open >= 0 && end > open {
		s = s[open+1 : end]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
