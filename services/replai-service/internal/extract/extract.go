// Package extract turns Gmail API message payloads into the provider-neutral
// models.MessageContent. Every function is pure and never fails: undecodable
// parts read as empty.
package extract

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/stoik/replai/internal/models"
	gm "google.golang.org/api/gmail/v1"
)

// NoContent is the plain body reported when a message carries no readable text.
const NoContent = "(No content found)"

// FromGmail extracts subject, addresses, bodies, headers and attachments from msg.
func FromGmail(msg *gm.Message) models.MessageContent {
	content := models.MessageContent{
		ProviderMessageID: msg.Id,
		ThreadID:          msg.ThreadId,
		Snippet:           msg.Snippet,
		PlainBody:         NoContent,
		Headers:           map[string]string{},
	}

	payload := msg.Payload
	if payload == nil {
		content.ReceivedAt = receivedAt(msg.InternalDate, "")
		return content
	}

	for _, h := range payload.Headers {
		if _, seen := content.Headers[h.Name]; !seen {
			content.Headers[h.Name] = h.Value
		}
	}

	content.Subject = Header(payload.Headers, "Subject")
	content.From = ParseAddress(Header(payload.Headers, "From"))
	content.To = ParseAddressList(Header(payload.Headers, "To"))
	content.Date = Header(payload.Headers, "Date")
	content.MessageIDHeader = Header(payload.Headers, "Message-ID")
	content.ReceivedAt = receivedAt(msg.InternalDate, content.Date)
	content.PlainBody = PlainBody(payload)
	content.HTMLBody = HTMLBody(payload)
	content.Attachments = Attachments(payload)

	return content
}

// PlainBody returns the first text/plain part. A payload without parts falls
// back to its own body. Nothing readable yields NoContent.
func PlainBody(payload *gm.MessagePart) string {
	if payload == nil {
		return NoContent
	}
	if len(payload.Parts) == 0 {
		if text := partData(payload); text != "" {
			return text
		}
		return NoContent
	}
	if part := findPart(payload.Parts, "text/plain"); part != nil {
		if text := partData(part); text != "" {
			return text
		}
	}
	return NoContent
}

// HTMLBody returns the first text/html part, or nil when there is none.
func HTMLBody(payload *gm.MessagePart) *string {
	if payload == nil {
		return nil
	}
	var part *gm.MessagePart
	if len(payload.Parts) == 0 {
		if strings.EqualFold(payload.MimeType, "text/html") {
			part = payload
		}
	} else {
		part = findPart(payload.Parts, "text/html")
	}
	if part == nil {
		return nil
	}
	html := partData(part)
	if html == "" {
		return nil
	}
	return &html
}

// Attachments lists every part carrying a filename, depth first.
func Attachments(payload *gm.MessagePart) []models.Attachment {
	var attachments []models.Attachment

	var scan func(parts []*gm.MessagePart)
	scan = func(parts []*gm.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" {
				att := models.Attachment{
					Filename: part.Filename,
					MimeType: part.MimeType,
				}
				if part.Body != nil {
					att.Size = part.Body.Size
					att.AttachmentID = part.Body.AttachmentId
				}
				attachments = append(attachments, att)
			}
			if len(part.Parts) > 0 {
				scan(part.Parts)
			}
		}
	}

	if payload != nil {
		scan(payload.Parts)
	}
	return attachments
}

// Header looks up a header value by case-insensitive name.
func Header(headers []*gm.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HeaderValue is Header over an extracted header map.
func HeaderValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ParseAddress splits `Name <addr>` into its parts. Without angle brackets the
// whole string is the email and the name is empty.
func ParseAddress(s string) models.Address {
	s = strings.TrimSpace(s)
	open := strings.LastIndex(s, "<")
	end := strings.LastIndex(s, ">")
	if open < 0 || end < open {
		return models.Address{Email: s}
	}
	name := strings.TrimSpace(s[:open])
	name = strings.Trim(name, `"'`)
	return models.Address{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(s[open+1 : end]),
	}
}

// ParseAddressList parses a comma separated address header. Commas inside
// quoted display names do not split.
func ParseAddressList(s string) []models.Address {
	var (
		out     []models.Address
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if a := strings.TrimSpace(current.String()); a != "" {
			out = append(out, ParseAddress(a))
		}
		current.Reset()
	}
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case r == ',' && !quoted:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return out
}

// findPart walks parts depth first for the first part of the given media type
// that carries inline data.
func findPart(parts []*gm.MessagePart, mimeType string) *gm.MessagePart {
	for _, part := range parts {
		if strings.EqualFold(part.MimeType, mimeType) && part.Filename == "" && part.Body != nil && part.Body.Data != "" {
			return part
		}
		if len(part.Parts) > 0 {
			if found := findPart(part.Parts, mimeType); found != nil {
				return found
			}
		}
	}
	return nil
}

func partData(part *gm.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	decoded, err := DecodeBase64URL(part.Body.Data)
	if err != nil {
		return ""
	}
	return decoded
}

// DecodeBase64URL decodes Gmail's base64url content with or without padding.
func DecodeBase64URL(data string) (string, error) {
	data = strings.TrimRight(strings.TrimSpace(data), "=")
	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		// Some senders emit standard alphabet bodies.
		decoded, err = base64.RawStdEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}

func receivedAt(internalDate int64, dateHeader string) time.Time {
	if internalDate > 0 {
		return time.UnixMilli(internalDate).UTC()
	}
	if dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
