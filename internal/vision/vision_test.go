package vision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		objects map[string]int
		want    string
	}{
		{"empty", nil, "I don't see anything I recognize right now."},
		{"single", map[string]int{"dog": 1}, "I can see a dog."},
		{"vowel article", map[string]int{"orange": 1}, "I can see an orange."},
		{"counted", map[string]int{"person": 2}, "I can see two people."},
		{"pair", map[string]int{"person": 2, "dog": 1}, "I can see a dog and two people."},
		{"many", map[string]int{"person": 3, "chair": 2, "cup": 1}, "I can see two chairs, a cup, and three people."},
		{"large count", map[string]int{"book": 12}, "I can see 12 books."},
		{"blank label skipped", map[string]int{"": 1, "dog": 1}, "I can see a dog."},
		{"only blank label", map[string]int{"": 1}, "I don't see anything I recognize right now."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.objects))
		})
	}
}

func TestHTTPDescriberObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/describe", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"objects":{"person":2,"dog":1}}`))
	}))
	defer srv.Close()

	d := NewHTTPDescriber(srv.URL)
	got, err := d.DescribeScene(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I can see a dog and two people.", got)
}

func TestHTTPDescriberPrefersDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"description":"I can see a sunny garden.","objects":{"tree":4}}`))
	}))
	defer srv.Close()

	d := NewHTTPDescriber(srv.URL)
	got, err := d.DescribeScene(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I can see a sunny garden.", got)
}

func TestHTTPDescriberSidecarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"camera busy"}`))
	}))
	defer srv.Close()

	d := NewHTTPDescriber(srv.URL)
	_, err := d.DescribeScene(context.Background())
	assert.ErrorIs(t, err, ErrDetectionFailed)
}

func TestHTTPDescriberDown(t *testing.T) {
	d := NewHTTPDescriber("http://127.0.0.1:1")
	_, err := d.DescribeScene(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
}

func TestHTTPDescriberBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "detector crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDescriber(srv.URL)
	_, err := d.DescribeScene(context.Background())
	assert.ErrorIs(t, err, ErrDetectionFailed)
}

func TestCannedDescriber(t *testing.T) {
	d := NewCannedDescriber()
	got, err := d.DescribeScene(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I can see two chairs and a person.", got)
}
