package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/PSH/internal/domain"
)

// Adapter 把“站点变化”限制在各自的 adapter 包内部；核心流程只依赖
// 统一接口与稳定的 PosterRecord。
//
// 约束：
// - Scrape 不做缓存、不做重试、不做限速（这些由核心 http 层与上传层统一实现）
// - 空结果是合法输出（页面上没有可用海报），不是错误
// - 多页列表内的单页失败只丢弃该页的贡献：已解析的记录与错误一起返回
type Adapter interface {
	Name() string

	// CanHandle 判断该 adapter 是否负责此 URL（域名/路径/扩展名嗅探）。
	CanHandle(rawURL string) bool

	// Scrape 抓取并解析出零或多条 PosterRecord。
	// 允许同时返回部分记录与错误（分页场景）；调用方自行决定如何呈现。
	Scrape(ctx context.Context, rawURL string, c *http.Client) ([]domain.PosterRecord, error)
}

// Registry 是 adapter 的只读注册表（按注册顺序匹配）。
// 顺序即优先级：第一个 CanHandle 的 adapter 胜出。
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) (Registry, error) {
	seen := make(map[string]struct{}, len(adapters))
	out := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return Registry{}, fmt.Errorf("adapter 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(a.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("adapter.Name 不能为空")
		}
		if _, ok := seen[name]; ok {
			return Registry{}, fmt.Errorf("重复的 adapter：%q", name)
		}
		seen[name] = struct{}{}
		out = append(out, a)
	}
	return Registry{adapters: out}, nil
}

// Pick 返回第一个声明能处理该 URL 的 adapter。
func (r Registry) Pick(rawURL string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.CanHandle(rawURL) {
			return a, true
		}
	}
	return nil, false
}

// Error 是 adapter 阶段的可追溯错误。
// 上层可以据此把失败归类为 fetch_failed / no_data_found，并写入 report。
type Error struct {
	Adapter string // adapter name（小写）
	Stage   string // "fetch" 或 "parse"
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("adapter=%s stage=%s: %v", e.Adapter, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NoDataError 表示页面抓取成功但预期的嵌入数据缺失。
// 这通常意味着站点结构发生了变化，adapter 需要维护；上层应给出醒目的诊断。
type NoDataError struct {
	URL  string
	Hint string
}

func (e *NoDataError) Error() string {
	if strings.TrimSpace(e.Hint) == "" {
		return fmt.Sprintf("页面中未找到预期数据（站点结构可能变化）：%s", e.URL)
	}
	return fmt.Sprintf("页面中未找到预期数据（%s）：%s", e.Hint, e.URL)
}

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// FetchDocument 抓取 URL 并解析为 goquery 文档（adapter 共用的最小抓取原语）。
func FetchDocument(ctx context.Context, c *http.Client, rawURL string) (*goquery.Document, error) {
	b, err := FetchBytes(ctx, c, rawURL)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(b))
}

// FetchBytes 抓取 URL 的原始字节；非 2xx 返回 HTTPStatusError。
func FetchBytes(ctx context.Context, c *http.Client, rawURL string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}
