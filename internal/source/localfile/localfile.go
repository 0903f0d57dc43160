package localfile

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/PSH/internal/domain"
	sourcex "github.com/John-Robertt/PSH/internal/source"
	"github.com/John-Robertt/PSH/internal/source/posterdb"
)

// Adapter 读取本地保存的 ThePosterDB set 页面（.html）。
// 离线调试与站点限流时的兜底手段：页面结构与线上一致，
// 解析直接复用 posterdb 的网格解析。
type Adapter struct{}

func (Adapter) Name() string { return "local" }

func (Adapter) CanHandle(rawURL string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(rawURL)), ".html")
}

func (a Adapter) Scrape(ctx context.Context, rawURL string, _ *http.Client) ([]domain.PosterRecord, error) {
	path := strings.TrimSpace(rawURL)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "fetch", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse", Err: err}
	}
	recs, err := posterdb.ParseSetDocument(doc, path)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse", Err: err}
	}
	return recs, nil
}
