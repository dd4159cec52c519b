package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/stoik/replai/services/mock-server/internal/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGmailClientAgainstMock(t *testing.T) {
	mailbox := mock.NewMailbox("me@example.com")
	id := mailbox.Deliver("Ann <ann@example.com>", "Hello", "Are you free?", time.Now())

	srv := httptest.NewServer(newRouter(mailbox))
	defer srv.Close()

	ctx := context.Background()
	svc, err := gm.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.EmailAddress)

	list, err := svc.Users.Messages.List("me").Q("is:unread").MaxResults(5).Context(ctx).Do()
	require.NoError(t, err)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, id, list.Messages[0].Id)

	msg, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	require.NoError(t, err)
	assert.Equal(t, "t"+id, msg.ThreadId)

	raw := base64.RawURLEncoding.EncodeToString([]byte("To: ann@example.com\r\nSubject: Re: Hello\r\n\r\nYes"))
	sent, err := svc.Users.Messages.Send("me", &gm.Message{Raw: raw, ThreadId: msg.ThreadId}).Context(ctx).Do()
	require.NoError(t, err)
	assert.Equal(t, msg.ThreadId, sent.ThreadId)
	assert.Len(t, mailbox.Sent(), 1)

	_, err = svc.Users.Messages.Modify("me", id, &gm.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}).Context(ctx).Do()
	require.NoError(t, err)
	assert.Empty(t, mailbox.ListUnread(10))
}

func TestChatCompletionEndpoint(t *testing.T) {
	router := newRouter(mock.NewMailbox("me@example.com"))

	body, _ := json.Marshal(mock.ChatRequest{
		Model:    "mock-model",
		Messages: []mock.ChatMessage{{Role: "user", Content: "Subject: Lunch"}},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp mock.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Contains(t, resp.Choices[0].Message.Content, "Lunch")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader([]byte(`{"model":"m"}`))))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminDeliver(t *testing.T) {
	mailbox := mock.NewMailbox("me@example.com")
	router := newRouter(mailbox)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/emails", bytes.NewReader([]byte(`{"count":3}`))))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, mailbox.ListUnread(0), 3)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/emails", bytes.NewReader([]byte(`{"from":"x@y.com","subject":"s","body":"b"}`))))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, mailbox.ListUnread(0), 4)
}
