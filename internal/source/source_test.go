package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/John-Robertt/PSH/internal/domain"
)

type fakeAdapter struct {
	name   string
	prefix string
}

func (f fakeAdapter) Name() string { return f.name }

func (f fakeAdapter) CanHandle(rawURL string) bool { return strings.HasPrefix(rawURL, f.prefix) }

func (f fakeAdapter) Scrape(context.Context, string, *http.Client) ([]domain.PosterRecord, error) {
	return nil, nil
}

func TestRegistry_PickFirstMatchWins(t *testing.T) {
	reg, err := NewRegistry(
		fakeAdapter{name: "a", prefix: "https://a.example/"},
		fakeAdapter{name: "b", prefix: "https://"},
	)
	if err != nil {
		t.Fatalf("NewRegistry 失败：%v", err)
	}

	got, ok := reg.Pick("https://a.example/set/1")
	if !ok || got.Name() != "a" {
		t.Fatalf("应命中先注册的 adapter，实际 %v", got)
	}
	got, ok = reg.Pick("https://b.example/set/1")
	if !ok || got.Name() != "b" {
		t.Fatalf("应回落到后注册的 adapter，实际 %v", got)
	}
	if _, ok := reg.Pick("ftp://nope"); ok {
		t.Fatalf("无人认领的 URL 不应命中")
	}
}

func TestRegistry_RejectsDuplicateAndEmptyNames(t *testing.T) {
	if _, err := NewRegistry(fakeAdapter{name: "x"}, fakeAdapter{name: "X"}); err == nil {
		t.Errorf("重名（忽略大小写）应被拒绝")
	}
	if _, err := NewRegistry(fakeAdapter{name: "  "}); err == nil {
		t.Errorf("空名应被拒绝")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Errorf("nil adapter 应被拒绝")
	}
}

func TestFetchBytes_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := FetchBytes(context.Background(), srv.Client(), srv.URL)
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusGone {
		t.Fatalf("应返回 HTTPStatusError(410)，实际 %v", err)
	}
}
