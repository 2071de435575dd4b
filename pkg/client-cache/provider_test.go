package clientcache

import (
	"testing"
	"time"
)

func providers() map[string]CacheProvider {
	return map[string]CacheProvider{
		"sqlite": NewSQLiteCache(""),
		"memory": NewMemoryCache(),
	}
}

func TestPutAndGet(t *testing.T) {
	for name, provider := range providers() {
		entry := Entry{
			URL:       "http://localhost/catalogueWithETag",
			ETag:      "7",
			Body:      []byte(`{"version":7,"items":{"Tea":500}}`),
			FetchedAt: time.Now(),
		}
		if err := provider.Put(entry); err != nil {
			t.Fatalf("%s: put failed: %s", name, err)
		}
		got, ok, err := provider.Get(entry.URL)
		if err != nil || !ok {
			t.Fatalf("%s: get failed: ok=%v err=%s", name, ok, err)
		}
		if got.ETag != "7" || string(got.Body) != string(entry.Body) {
			t.Fatalf("%s: got entry %+v", name, got)
		}
	}
}

func TestGetMissing(t *testing.T) {
	for name, provider := range providers() {
		_, ok, err := provider.Get("http://localhost/nothing")
		if err != nil {
			t.Fatalf("%s: miss should not error: %s", name, err)
		}
		if ok {
			t.Fatalf("%s: miss reported as hit", name)
		}
	}
}

func TestPutReplaces(t *testing.T) {
	for name, provider := range providers() {
		url := "http://localhost/catalogueWithETag"
		provider.Put(Entry{URL: url, ETag: "1", Body: []byte("a"), FetchedAt: time.Now()})
		provider.Put(Entry{URL: url, ETag: "2", Body: []byte("b"), FetchedAt: time.Now()})
		got, ok, _ := provider.Get(url)
		if !ok || got.ETag != "2" || string(got.Body) != "b" {
			t.Fatalf("%s: got entry %+v", name, got)
		}
	}
}

func TestGetReturnsIndependentBody(t *testing.T) {
	for name, provider := range providers() {
		url := "http://localhost/catalogueWithETag"
		original := []byte(`{"version":1,"items":{"Tea":101}}`)
		provider.Put(Entry{URL: url, ETag: "1", Body: append([]byte(nil), original...), FetchedAt: time.Now()})

		got, ok, err := provider.Get(url)
		if err != nil || !ok {
			t.Fatalf("%s: get failed: ok=%v err=%s", name, ok, err)
		}
		for i := range got.Body {
			got.Body[i] = 'x'
		}

		again, ok, _ := provider.Get(url)
		if !ok || string(again.Body) != string(original) {
			t.Fatalf("%s: cached body corrupted by caller, got %s", name, again.Body)
		}
	}
}

func TestPurge(t *testing.T) {
	for name, provider := range providers() {
		url := "http://localhost/catalogueWithETag"
		provider.Put(Entry{URL: url, ETag: "1", FetchedAt: time.Now()})
		if !provider.Has(url) {
			t.Fatalf("%s: entry missing after put", name)
		}
		provider.Purge(url)
		if provider.Has(url) {
			t.Fatalf("%s: entry still present after purge", name)
		}
	}
}
