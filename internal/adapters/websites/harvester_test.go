package websites

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"domainfinder/internal/domain"
)

const homePage = `<html><body>
<a href="https://shop.nordickraft.com/products">Shop</a>
<a href="http://www.nordickraft-energi.no">Energi</a>
<a href="https://facebook.com/nordickraft">Facebook</a>
<a href="https://nordickraft.co.uk/">UK</a>
<a href="/about">About</a>
<a href="mailto:post@nordickraft.no">Mail</a>
<a href="https://nordic.org">Nordic</a>
</body></html>`

func TestRegistrable(t *testing.T) {
	tests := []struct {
		link string
		want string
		ok   bool
	}{
		{"https://shop.nordickraft.com/x", "nordickraft.com", true},
		{"http://WWW.Statoil.NO.", "statoil.no", true},
		{"https://nordickraft.co.uk/", "", false},
		{"https://example.io", "", false},
		{"/relative", "", false},
		{"https://no/", "", false},
	}
	for _, tt := range tests {
		got, ok := Registrable(tt.link)
		assert.Equal(t, tt.ok, ok, "link=%q", tt.link)
		assert.Equal(t, tt.want, got, "link=%q", tt.link)
	}
}

func TestHarvester_Expand(t *testing.T) {
	var (
		mu    sync.Mutex
		gotUA string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA = r.Header.Get("User-Agent")
		mu.Unlock()
		fmt.Fprint(w, homePage)
	}))
	defer srv.Close()

	h := New(Config{UserAgent: "test-agent"}, WithPageURL(func(string) string { return srv.URL + "/" }))
	e := domain.Entity{domain.FieldName: "Nordic Kraft AS"}

	got := h.Expand(context.Background(), e, []string{"nordickraft.no"})
	assert.Equal(t, []string{"nordic.org", "nordickraft-energi.no", "nordickraft.com"}, got)
	mu.Lock()
	assert.Equal(t, "test-agent", gotUA)
	mu.Unlock()
}

func TestHarvester_ShortOrMissingToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, homePage)
	}))
	defer srv.Close()
	h := New(Config{}, WithPageURL(func(string) string { return srv.URL }))

	assert.Empty(t, h.Expand(context.Background(), domain.Entity{domain.FieldName: "Ab AS"}, []string{"ab.no"}))
	assert.Empty(t, h.Expand(context.Background(), domain.Entity{}, []string{"x.no"}))
	assert.Zero(t, calls.Load())
}

func TestHarvester_MaxPagesAndErrors(t *testing.T) {
	var (
		mu    sync.Mutex
		hosts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.URL.Query().Get("host")
		mu.Lock()
		hosts = append(hosts, host)
		mu.Unlock()
		if host == "broken.no" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `<a href="https://kiwi-butikk.no">x</a>`)
	}))
	defer srv.Close()

	h := New(Config{MaxPages: 2}, WithPageURL(func(host string) string {
		return srv.URL + "/?host=" + url.QueryEscape(host)
	}))
	got := h.Expand(context.Background(), domain.Entity{domain.FieldName: "Kiwi"},
		[]string{"broken.no", "kiwi.no", "kiwi.com"})

	assert.Equal(t, []string{"kiwi-butikk.no"}, got)
	mu.Lock()
	assert.Equal(t, []string{"broken.no", "kiwi.no"}, hosts)
	mu.Unlock()
}

func TestNew_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		h := New(Config{}, WithLogger(nil))
		h.Expand(context.Background(), domain.Entity{domain.FieldName: "Nordic Kraft AS"}, nil)
	})
}
