// Package plex 是 Plex Media Server HTTP API 的最小客户端，
// 只覆盖管道需要的读路径（库/条目/季/集/合集枚举）与写路径（海报/背景上传）。
// 对外以 catalog.Library / catalog.Target 的形态暴露。
package plex

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/John-Robertt/PSH/internal/catalog"
)

// Client 持有服务器地址与访问令牌。
// 所有请求通过 X-Plex-Token 头鉴权；token 不进 URL，避免泄漏进日志。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, c *http.Client) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		http:    c,
	}
}

// ErrLibraryNotFound 表示配置引用的库名在服务器上不存在。
// 本质是配置问题而不是网络问题，上层据此归类。
var ErrLibraryNotFound = errors.New("plex: library not found")

// StatusError 表示服务器返回了非 2xx 状态码。
// 401 通常是 token 失效；404 在 children/上传路径上意味着条目不存在。
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plex: HTTP %d（%s）", e.StatusCode, e.Path)
}

// ---- XML 载荷 ----
// Plex 的列表响应统一包在 MediaContainer 里：目录型条目（库、剧、季、合集）
// 是 Directory，叶子条目（电影、单集）是 Video。

type mediaContainer struct {
	XMLName     xml.Name   `xml:"MediaContainer"`
	Directories []xmlEntry `xml:"Directory"`
	Videos      []xmlEntry `xml:"Video"`
}

type xmlEntry struct {
	Key       string `xml:"key,attr"`
	RatingKey string `xml:"ratingKey,attr"`
	Type      string `xml:"type,attr"`
	Title     string `xml:"title,attr"`
	Year      int    `xml:"year,attr"`
	Index     int    `xml:"index,attr"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out *mediaContainer) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Path: path}
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("plex: 响应解析失败（%s）：%w", path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Path: path}
	}
	return nil
}

// ---- 库 ----

// Section 是 Plex 的一个库分区，实现 catalog.Library。
type Section struct {
	c    *Client
	key  string
	name string
	kind string // "movie" 或 "show"
}

// Sections 枚举服务器上的全部库分区。
func (c *Client) Sections(ctx context.Context) ([]*Section, error) {
	var mc mediaContainer
	if err := c.get(ctx, "/library/sections", nil, &mc); err != nil {
		return nil, err
	}
	out := make([]*Section, 0, len(mc.Directories))
	for _, d := range mc.Directories {
		out = append(out, &Section{c: c, key: d.Key, name: d.Title, kind: d.Type})
	}
	return out, nil
}

// SectionsByName 按显示名取库分区；任一名字缺失即报错
// （配置里写错库名应该在启动时暴露，而不是跑到一半才发现）。
func (c *Client) SectionsByName(ctx context.Context, names []string) ([]*Section, error) {
	all, err := c.Sections(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Section, len(all))
	for _, s := range all {
		byName[s.name] = s
	}
	out := make([]*Section, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("服务器上不存在名为 %q 的库：%w", name, ErrLibraryNotFound)
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *Section) Name() string { return s.name }

// Kind 返回库类型（"movie" 或 "show"）。
func (s *Section) Kind() string { return s.kind }

// Find 按标题精确查找（忽略大小写）；year>0 时要求年份一致。
// Plex 的 ?title= 查询是子串匹配，这里在客户端收紧为全等。
func (s *Section) Find(ctx context.Context, title string, year int) ([]catalog.Target, error) {
	q := url.Values{"title": {title}}
	var mc mediaContainer
	if err := s.c.get(ctx, "/library/sections/"+s.key+"/all", q, &mc); err != nil {
		return nil, err
	}

	var out []catalog.Target
	for _, e := range append(mc.Directories, mc.Videos...) {
		if !strings.EqualFold(e.Title, title) {
			continue
		}
		if year > 0 && e.Year != year {
			continue
		}
		out = append(out, s.item(e))
	}
	return out, nil
}

// Titles 枚举库内全部条目标题，供模糊匹配做候选集。
func (s *Section) Titles(ctx context.Context) ([]string, error) {
	var mc mediaContainer
	if err := s.c.get(ctx, "/library/sections/"+s.key+"/all", nil, &mc); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(mc.Directories)+len(mc.Videos))
	for _, e := range append(mc.Directories, mc.Videos...) {
		out = append(out, e.Title)
	}
	return out, nil
}

// Collections 枚举库内全部合集。
func (s *Section) Collections(ctx context.Context) ([]catalog.Target, error) {
	var mc mediaContainer
	if err := s.c.get(ctx, "/library/sections/"+s.key+"/collections", nil, &mc); err != nil {
		return nil, err
	}
	out := make([]catalog.Target, 0, len(mc.Directories))
	for _, e := range mc.Directories {
		out = append(out, s.item(e))
	}
	return out, nil
}

func (s *Section) item(e xmlEntry) *Item {
	return &Item{c: s.c, ratingKey: e.RatingKey, title: e.Title, library: s.name}
}

// ---- 条目 ----

// Item 是一个可寻址条目（剧/季/集/电影/合集），实现 catalog.Target。
type Item struct {
	c         *Client
	ratingKey string
	title     string
	library   string
}

func (i *Item) Title() string { return i.title }

func (i *Item) LibraryName() string { return i.library }

// Season 在条目的 children 里按季号（index）定位季。
// Specials 对应 index 0。
func (i *Item) Season(ctx context.Context, n int) (catalog.Target, error) {
	return i.childByIndex(ctx, n, true)
}

// Episode 在（季条目的）children 里按集号定位单集。
func (i *Item) Episode(ctx context.Context, n int) (catalog.Target, error) {
	return i.childByIndex(ctx, n, false)
}

func (i *Item) childByIndex(ctx context.Context, n int, directory bool) (catalog.Target, error) {
	var mc mediaContainer
	if err := i.c.get(ctx, "/library/metadata/"+i.ratingKey+"/children", nil, &mc); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}

	entries := mc.Videos
	if directory {
		entries = mc.Directories
	}
	for _, e := range entries {
		if e.Index == n {
			return &Item{c: i.c, ratingKey: e.RatingKey, title: e.Title, library: i.library}, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (i *Item) SetPoster(ctx context.Context, path string) error {
	return i.upload(ctx, "posters", path)
}

func (i *Item) SetArt(ctx context.Context, path string) error {
	return i.upload(ctx, "arts", path)
}

func (i *Item) upload(ctx context.Context, slot, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("plex: 读取图片失败：%w", err)
	}
	return i.c.post(ctx, "/library/metadata/"+i.ratingKey+"/"+slot, b)
}
