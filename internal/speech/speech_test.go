package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcribe", r.URL.Path)

		var req transcribeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 10.0, req.MaxDurationSeconds)

		json.NewEncoder(w).Encode(transcribeResponse{Text: " set a timer for 5 minutes "})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL)
	got, err := tr.Transcribe(context.Background(), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "set a timer for 5 minutes", got)
}

func TestHTTPTranscriberSilence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transcribeResponse{Text: "  "})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL)
	_, err := tr.Transcribe(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestHTTPTranscriberDown(t *testing.T) {
	tr := NewHTTPTranscriber("http://127.0.0.1:1")
	_, err := tr.Transcribe(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestHTTPSynthesizer(t *testing.T) {
	var got speakRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/speak", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(srv.URL, "amy")
	require.NoError(t, s.Speak(context.Background(), "Timer set for 5 minutes."))
	assert.Equal(t, "Timer set for 5 minutes.", got.Input)
	assert.Equal(t, "amy", got.Voice)
}

func TestHTTPSynthesizerDown(t *testing.T) {
	s := NewHTTPSynthesizer("http://127.0.0.1:1", "")
	err := s.Speak(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestSimTranscriberCycles(t *testing.T) {
	tr := NewSimTranscriberWithUtterances([]string{"first", "second"})
	ctx := context.Background()

	a, err := tr.Transcribe(ctx, time.Second)
	require.NoError(t, err)
	b, _ := tr.Transcribe(ctx, time.Second)
	c, _ := tr.Transcribe(ctx, time.Second)

	assert.Equal(t, "first", a)
	assert.Equal(t, "second", b)
	assert.Equal(t, "first", c)
}

func TestSimSynthesizer(t *testing.T) {
	s := NewSimSynthesizer()
	assert.NoError(t, s.Speak(context.Background(), "hello"))
}

func TestTextTranscriber(t *testing.T) {
	tr := NewTextTranscriber(strings.NewReader("\n  \nwhat time is it\nbye\n"))
	ctx := context.Background()

	got, err := tr.Transcribe(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "what time is it", got)

	got, err = tr.Transcribe(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "bye", got)

	_, err = tr.Transcribe(ctx, time.Second)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestTextSynthesizer(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSynthesizer(&buf)

	require.NoError(t, s.Speak(context.Background(), "It's currently 3:04 PM."))
	assert.Equal(t, "Parvis: It's currently 3:04 PM.\n", buf.String())
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimTranscriber().Transcribe(ctx, time.Second)
	assert.Error(t, err)
	assert.Error(t, NewTextSynthesizer(&bytes.Buffer{}).Speak(ctx, "x"))
}
