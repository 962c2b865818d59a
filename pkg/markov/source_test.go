package markov

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPSourcePlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("a line of corpus text\nand another one"))
	}))
	t.Cleanup(srv.Close)

	source := NewHTTPSource([]string{srv.URL}, srv.Client())
	payload, err := source.FetchCorpus(context.Background())
	if err != nil {
		t.Fatalf("FetchCorpus returned error: %v", err)
	}

	if !strings.Contains(payload.Text, "a line of corpus text") {
		t.Errorf("payload text missing body content: %q", payload.Text)
	}
	if payload.Stats == nil || payload.Stats.Lines != 2 {
		t.Errorf("computed stats = %+v, want 2 lines", payload.Stats)
	}
}

func TestHTTPSourceJSONPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"corpus from json","stats":{"lines":1,"chars":16}}`))
	}))
	t.Cleanup(srv.Close)

	source := NewHTTPSource([]string{srv.URL}, srv.Client())
	payload, err := source.FetchCorpus(context.Background())
	if err != nil {
		t.Fatalf("FetchCorpus returned error: %v", err)
	}

	if payload.Text != "corpus from json" {
		t.Errorf("payload text = %q, want %q", payload.Text, "corpus from json")
	}
	if payload.Stats == nil || payload.Stats.Chars != 16 {
		t.Errorf("payload stats = %+v, want the upstream stats", payload.Stats)
	}
}

func TestHTTPSourcePartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("the only working source"))
	}))
	t.Cleanup(good.Close)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	source := NewHTTPSource([]string{bad.URL, good.URL}, nil)
	payload, err := source.FetchCorpus(context.Background())
	if err != nil {
		t.Fatalf("FetchCorpus returned error despite a working source: %v", err)
	}
	if !strings.Contains(payload.Text, "the only working source") {
		t.Errorf("payload text = %q, want the working source's body", payload.Text)
	}
}

func TestHTTPSourceAllFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	source := NewHTTPSource([]string{srv.URL}, srv.Client())
	if _, err := source.FetchCorpus(context.Background()); err == nil {
		t.Fatal("expected an error when every source fails")
	}
}

func TestHTTPSourceNoURLs(t *testing.T) {
	source := NewHTTPSource(nil, nil)
	if _, err := source.FetchCorpus(context.Background()); err == nil {
		t.Fatal("expected an error with no configured urls")
	}
}

func TestHTTPSourceConcatenatesSources(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("first body"))
	}))
	t.Cleanup(first.Close)

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("second body"))
	}))
	t.Cleanup(second.Close)

	source := NewHTTPSource([]string{first.URL, second.URL}, nil)
	payload, err := source.FetchCorpus(context.Background())
	if err != nil {
		t.Fatalf("FetchCorpus returned error: %v", err)
	}
	if payload.Text != "first body\nsecond body" {
		t.Errorf("payload text = %q, want both bodies joined", payload.Text)
	}
}
