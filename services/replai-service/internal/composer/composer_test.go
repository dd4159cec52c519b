package composer

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func testInput() Input {
	return Input{
		Mailbox:     "me@example.com",
		DisplayName: "Sam",
		Original: models.MessageContent{
			Subject:         "Lunch on Friday",
			PlainBody:       "Are you free for lunch on Friday?",
			From:            models.Address{Name: "Jane Doe", Email: "jane@x.com"},
			MessageIDHeader: "<abc@mail.x.com>",
		},
	}
}

func decodeRaw(t *testing.T, raw string) string {
	t.Helper()
	assert.NotContains(t, raw, "=")
	b, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	return string(b)
}

// mimeBody decodes the base64 body of a message built by BuildMIME.
func mimeBody(t *testing.T, msg string) string {
	t.Helper()
	_, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	for _, line := range strings.Split(body, "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\r\n", ""))
	require.NoError(t, err)
	return string(b)
}

func TestCompose(t *testing.T) {
	gen := &fakeGenerator{reply: "  Sure, Friday works!\n\nSam  "}
	c := New(gen)

	reply, err := c.Compose(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)

	assert.Equal(t, "Sure, Friday works!\n\nSam", reply.Text)
	assert.Equal(t, "Re: Lunch on Friday", reply.Subject)
	assert.Equal(t, "jane@x.com", reply.To)

	msg := decodeRaw(t, reply.Raw)
	assert.Contains(t, msg, "From: me@example.com\r\n")
	assert.Contains(t, msg, "To: jane@x.com\r\n")
	assert.Contains(t, msg, "Subject: Re: Lunch on Friday\r\n")
	assert.Contains(t, msg, "In-Reply-To: <abc@mail.x.com>\r\n")
	assert.Contains(t, msg, "References: <abc@mail.x.com>\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	assert.Contains(t, msg, "Content-Transfer-Encoding: base64\r\n")
	assert.Equal(t, "Sure, Friday works!\n\nSam", mimeBody(t, msg))
}

func TestCompose_AlwaysPrefixesRe(t *testing.T) {
	in := testInput()
	in.Original.Subject = "Re: Lunch"
	reply, err := New(&fakeGenerator{reply: "ok"}).Compose(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Re: Re: Lunch", reply.Subject)
}

func TestCompose_GeneratorFailure(t *testing.T) {
	_, err := New(&fakeGenerator{err: errors.New("quota")}).Compose(context.Background(), testInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrProvider)

	_, err = New(&fakeGenerator{reply: "   "}).Compose(context.Background(), testInput())
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

func TestBuildPrompt_Default(t *testing.T) {
	p := BuildPrompt(testInput())
	assert.Contains(t, p, "From: Jane Doe <jane@x.com>")
	assert.Contains(t, p, "Subject: Lunch on Friday")
	assert.Contains(t, p, "Are you free for lunch on Friday?")
	assert.Contains(t, p, "Sign the reply as Sam")
	assert.Contains(t, p, "no markdown")
}

func TestBuildPrompt_CustomReplacesDefault(t *testing.T) {
	in := testInput()
	in.CustomPrompt = "Reply formally to {{from}} about {{subject}}. Sign as {{name}}."
	p := BuildPrompt(in)
	assert.Equal(t, "Reply formally to Jane Doe <jane@x.com> about Lunch on Friday. Sign as Sam.", p)
	assert.NotContains(t, p, "casual")
}

func TestBuildPrompt_CustomWithoutPlaceholders(t *testing.T) {
	in := testInput()
	in.CustomPrompt = "Always answer in French."
	p := BuildPrompt(in)
	assert.True(t, strings.HasPrefix(p, "Always answer in French."))
	assert.Contains(t, p, "Are you free for lunch on Friday?")
	assert.NotContains(t, p, "casual")
}

func TestBuildMIME_WithoutMessageID(t *testing.T) {
	msg := BuildMIME("me@example.com", "jane@x.com", "Re: Hi", "", "", "hello")
	assert.NotContains(t, msg, "In-Reply-To")
	assert.NotContains(t, msg, "References")
	assert.Contains(t, msg, "MIME-Version: 1.0\r\n")
}

func TestBuildMIME_ChainsReferences(t *testing.T) {
	msg := BuildMIME("me@example.com", "jane@x.com", "Re: Hi", "<b@x>", "<a@x>", "hello")
	assert.Contains(t, msg, "References: <a@x> <b@x>\r\n")
}

func TestBuildMIME_EncodesNonASCII(t *testing.T) {
	body := strings.Repeat("Merci beaucoup, à vendredi ! ", 10)
	msg := BuildMIME("me@example.com", "jane@x.com", "Re: Déjeuner vendredi", "", "", body)

	assert.Contains(t, msg, "Subject: =?utf-8?q?Re:_D=C3=A9jeuner_vendredi?=\r\n")
	headers, _, _ := strings.Cut(msg, "\r\n\r\n")
	assert.NotContains(t, headers, "é")
	assert.Equal(t, body, mimeBody(t, msg))
}

func TestBuildMIME_ASCIISubjectUnchanged(t *testing.T) {
	msg := BuildMIME("me@example.com", "jane@x.com", "Re: Hi", "", "", "hello")
	assert.Contains(t, msg, "Subject: Re: Hi\r\n")
	assert.Equal(t, "hello", mimeBody(t, msg))
}
