// Package composer drafts a reply with a generative-text service and wraps
// it in a MIME message ready for the provider's send call.
package composer

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/extract"
)

// Generator produces reply text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Input is everything needed to draft one reply.
type Input struct {
	// Mailbox is the connected address the reply is sent from.
	Mailbox      string
	DisplayName  string
	CustomPrompt string
	Original     models.MessageContent
}

// Reply is a drafted reply.
type Reply struct {
	Text      string
	Subject   string
	To        string
	InReplyTo string
	// Raw is the MIME message, base64url encoded without padding.
	Raw string
}

// Composer drafts replies.
type Composer struct {
	gen Generator
}

// New returns a Composer backed by gen.
func New(gen Generator) *Composer {
	return &Composer{gen: gen}
}

// Compose resolves the prompt, calls the generator once and builds the MIME
// reply. A generator failure aborts this reply only.
func (c *Composer) Compose(ctx context.Context, in Input) (Reply, error) {
	prompt := BuildPrompt(in)

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return Reply{}, apperr.Provider("generate reply", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, apperr.Provider("generate reply", fmt.Errorf("empty completion"))
	}

	r := Reply{
		Text:      text,
		Subject:   "Re: " + in.Original.Subject,
		To:        in.Original.From.Email,
		InReplyTo: in.Original.MessageIDHeader,
	}
	references := extract.HeaderValue(in.Original.Headers, "References")
	r.Raw = EncodeRaw(BuildMIME(in.Mailbox, r.To, r.Subject, r.InReplyTo, references, r.Text))
	return r, nil
}

const defaultPrompt = `You are replying to an email on behalf of %[4]s.

From: %[1]s
Subject: %[2]s
Body:
%[3]s

Write a brief, casual reply to this email. Use plain text only, no markdown
formatting. Do not repeat the original message. Sign the reply as %[4]s.`

// BuildPrompt returns the default prompt, or the user's custom prompt when
// one is saved. A custom prompt replaces the default entirely; its
// {{from}}, {{subject}}, {{body}} and {{name}} placeholders are substituted.
// A custom prompt without any placeholder gets the message appended so the
// model still sees what it is answering.
func BuildPrompt(in Input) string {
	from := formatSender(in.Original.From)
	name := in.DisplayName
	if name == "" {
		name = in.Mailbox
	}

	custom := strings.TrimSpace(in.CustomPrompt)
	if custom == "" {
		return fmt.Sprintf(defaultPrompt, from, in.Original.Subject, in.Original.PlainBody, name)
	}

	replacer := strings.NewReplacer(
		"{{from}}", from,
		"{{subject}}", in.Original.Subject,
		"{{body}}", in.Original.PlainBody,
		"{{name}}", name,
	)
	resolved := replacer.Replace(custom)
	if resolved == custom && !strings.Contains(custom, "{{") {
		resolved += fmt.Sprintf("\n\nFrom: %s\nSubject: %s\nBody:\n%s", from, in.Original.Subject, in.Original.PlainBody)
	}
	return resolved
}

func formatSender(a models.Address) string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// RFC 2045 caps encoded body lines at 76 characters.
const mimeLineLength = 76

// BuildMIME renders a plain-text UTF-8 reply with a base64 body. A non-ASCII
// subject is RFC 2047 encoded. Threading headers are only written when the
// original Message-ID is known.
func BuildMIME(from, to, subject, inReplyTo, references, body string) string {
	var b strings.Builder
	header := func(name, value string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	if inReplyTo != "" {
		header("In-Reply-To", inReplyTo)
		if references != "" {
			header("References", references+" "+inReplyTo)
		} else {
			header("References", inReplyTo)
		}
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "base64")
	b.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	for len(encoded) > mimeLineLength {
		b.WriteString(encoded[:mimeLineLength])
		b.WriteString("\r\n")
		encoded = encoded[mimeLineLength:]
	}
	b.WriteString(encoded)
	return b.String()
}

// EncodeRaw encodes a MIME message for the Gmail raw field.
func EncodeRaw(msg string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(msg))
}
