package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestMetaProvider_SendText(t *testing.T) {
	var got metaTextMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	p := NewMetaProvider(MetaConfig{AccessToken: "token", PhoneNumberID: "12345", GraphURL: srv.URL}, srv.Client())

	id, err := p.SendText(context.Background(), p.FormatAddress("+5561999990000"), "olá")

	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", id)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "5561999990000", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "olá", got.Text.Body)
}

func TestMetaProvider_HTTPErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewMetaProvider(MetaConfig{AccessToken: "t", PhoneNumberID: "1", GraphURL: srv.URL}, srv.Client())

	_, err := p.SendText(context.Background(), "55", "x")
	assert.ErrorContains(t, err, "HTTP 401")
}

func TestMetaProvider_NotConfigured(t *testing.T) {
	p := NewMetaProvider(MetaConfig{}, nil)

	assert.ErrorIs(t, p.Configured(), ErrNotConfigured)
	_, err := p.SendText(context.Background(), "55", "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type fakeTwilioAPI struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeTwilioAPI) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioProvider_SendText(t *testing.T) {
	api := &fakeTwilioAPI{}
	p := NewTwilioProvider(TwilioConfig{AccountSID: "AC1", AuthToken: "tok", From: "+14155238886"}, api)

	id, err := p.SendText(context.Background(), p.FormatAddress("+5561999990000"), "oi")

	require.NoError(t, err)
	assert.Equal(t, "SM123", id)
	require.Len(t, api.params, 1)
	assert.Equal(t, "whatsapp:+5561999990000", *api.params[0].To)
	assert.Equal(t, "whatsapp:+14155238886", *api.params[0].From)
	assert.Equal(t, "oi", *api.params[0].Body)
}

func TestTwilioProvider_Errors(t *testing.T) {
	p := NewTwilioProvider(TwilioConfig{}, &fakeTwilioAPI{})
	assert.ErrorIs(t, p.Configured(), ErrNotConfigured)

	boom := errors.New("21211 invalid To")
	p = NewTwilioProvider(TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}, &fakeTwilioAPI{err: boom})
	_, err := p.SendText(context.Background(), "whatsapp:+55", "x")
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_TwilioChunksByUTF16Units(t *testing.T) {
	api := &fakeTwilioAPI{}
	p := NewTwilioProvider(TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}, api)
	d := newDispatcher([]string{"twilio"}, p)

	text := strings.Repeat("😀", 1000)
	delivery := d.Send(context.Background(), "+5561999990000", text)

	require.True(t, delivery.Delivered)
	assert.Equal(t, 2, delivery.Chunks)
	require.Len(t, api.params, 2)
	for _, params := range api.params {
		assert.LessOrEqual(t, len(utf16.Encode([]rune(*params.Body))), TwilioMaxLength)
	}
}
