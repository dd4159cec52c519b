// Package classify derives category, sentiment and urgency/bulk flags from a
// message using keyword and sender-domain heuristics.
package classify

import (
	"strings"

	"github.com/samber/lo"
	"github.com/stoik/replai/internal/models"
)

// bodyScanLimit bounds how much of the body the keyword scans read.
const bodyScanLimit = 1000

// keywordThreshold is the number of keyword hits a category needs to win.
const keywordThreshold = 2

type senderRule struct {
	pattern  string
	category models.Category
	// domain rules match the sender domain or any subdomain of it;
	// the others match anywhere in the address.
	domain bool
}

// senderRules is evaluated in order. Social networks come first so that they
// win over any later pattern or keyword.
var senderRules = []senderRule{
	{"facebook.com", models.CategorySocial, true},
	{"facebookmail.com", models.CategorySocial, true},
	{"twitter.com", models.CategorySocial, true},
	{"linkedin.com", models.CategorySocial, true},
	{"instagram.com", models.CategorySocial, true},
	{"pinterest.com", models.CategorySocial, true},
	{"tiktok.com", models.CategorySocial, true},
	{"snapchat.com", models.CategorySocial, true},
	{"youtube.com", models.CategorySocial, true},
	{"reddit.com", models.CategorySocial, true},
	{"tumblr.com", models.CategorySocial, true},
	{"mailchimp.com", models.CategoryPromotions, true},
	{"mcsv.net", models.CategoryPromotions, true},
	{"sendgrid.net", models.CategoryPromotions, true},
	{"klaviyomail.com", models.CategoryPromotions, true},
	{"constantcontact.com", models.CategoryPromotions, true},
	{"googlegroups.com", models.CategoryForums, true},
	{"groups.io", models.CategoryForums, true},
	{"discoursemail.com", models.CategoryForums, true},
	{"newsletter", models.CategoryUpdates, false},
	{"notification", models.CategoryUpdates, false},
	{"alerts@", models.CategoryUpdates, false},
	{"marketing", models.CategoryPromotions, false},
	{"promo", models.CategoryPromotions, false},
	{"offers@", models.CategoryPromotions, false},
	{"deals@", models.CategoryPromotions, false},
	{"forum", models.CategoryForums, false},
}

var automatedMarkers = []string{"noreply", "no-reply", "donotreply", "do-not-reply"}

var importantKeywords = []string{
	"urgent", "critical", "deadline", "asap", "immediately", "action required",
	"important", "time-sensitive", "time sensitive", "emergency",
}

type keywordTable struct {
	category models.Category
	keywords []string
}

// keywordTables is scanned in order; the first table reaching the threshold wins.
var keywordTables = []keywordTable{
	{models.CategorySocial, []string{
		"friend request", "followed you", "mentioned you", "tagged you", "new follower",
		"connection request", "commented on", "liked your", "shared a post", "invitation to connect",
	}},
	{models.CategoryPromotions, []string{
		"sale", "discount", "% off", "coupon", "promo code", "limited time", "shop now",
		"free shipping", "exclusive offer", "deal", "special offer", "buy now",
	}},
	{models.CategoryUpdates, []string{
		"update", "notification", "alert", "confirm", "verification", "your account",
		"security", "statement", "shipped", "delivered", "password", "reminder",
	}},
	{models.CategoryForums, []string{
		"forum", "thread", "discussion", "community", "digest", "group",
		"posted", "topic", "mailing list", "moderator",
	}},
}

var transactionalKeywords = []string{"receipt", "invoice", "order", "payment", "transaction"}

// Categorize assigns a message to exactly one category following a strict
// precedence: sender patterns, automated senders, important keywords, keyword
// tables, transactional subjects, then primary.
func Categorize(subject, body, from string) models.Category {
	address := strings.ToLower(strings.TrimSpace(senderAddress(from)))
	local, domain := splitAddress(address)

	for _, rule := range senderRules {
		if rule.domain {
			if domain == rule.pattern || strings.HasSuffix(domain, "."+rule.pattern) {
				return rule.category
			}
			continue
		}
		if strings.Contains(address, rule.pattern) {
			return rule.category
		}
	}

	if containsAny(local, automatedMarkers) {
		return models.CategoryUpdates
	}

	text := strings.ToLower(subject + " " + truncate(body, bodyScanLimit))
	if containsAny(text, importantKeywords) {
		return models.CategoryImportant
	}

	for _, table := range keywordTables {
		hits := lo.CountBy(table.keywords, func(k string) bool {
			return strings.Contains(text, k)
		})
		if hits >= keywordThreshold {
			return table.category
		}
	}

	if containsAny(strings.ToLower(subject), transactionalKeywords) {
		return models.CategoryUpdates
	}

	return models.CategoryPrimary
}

// senderAddress strips a display name: "Jane <jane@x.com>" becomes "jane@x.com".
func senderAddress(from string) string {
	open := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if open >= 0 && end > open {
		return from[open+1 : end]
	}
	return from
}

func splitAddress(address string) (local, domain string) {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return address, ""
	}
	return address[:at], address[at+1:]
}

func containsAny(text string, needles []string) bool {
	return lo.ContainsBy(needles, func(n string) bool {
		return strings.Contains(text, n)
	})
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
