package posterdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/PSH/internal/domain"
	sourcex "github.com/John-Robertt/PSH/internal/source"
)

const (
	baseURL   = "https://theposterdb.com"
	assetsURL = baseURL + "/api/assets/"

	// 用户上传列表每页固定 24 条（站点分页约定）。
	userPageSize = 24
)

// Adapter 实现 ThePosterDB 的页面抓取与 HTML 解析。
//
// 支持的 URL 形态：
// - /set/<id>：海报集页面（主形态）
// - /poster/<id>：单张海报页 => 定位所属 set 再抓取 set 页面
// - /user/<name>：用户主页 => 按上传数分页，逐页抓取
type Adapter struct{}

func (Adapter) Name() string { return "posterdb" }

func (Adapter) CanHandle(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return host == "theposterdb.com" || strings.HasSuffix(host, ".theposterdb.com")
}

func (a Adapter) Scrape(ctx context.Context, rawURL string, c *http.Client) ([]domain.PosterRecord, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "fetch", Err: err}
	}

	switch {
	case strings.Contains(u.Path, "/user/"):
		return a.scrapeUser(ctx, rawURL, c)
	case strings.Contains(u.Path, "/poster/"):
		return a.scrapeSetFromPoster(ctx, rawURL, c)
	case strings.Contains(u.Path, "/set/"):
		doc, err := sourcex.FetchDocument(ctx, c, rawURL)
		if err != nil {
			return nil, &sourcex.Error{Adapter: a.Name(), Stage: "fetch", Err: err}
		}
		recs, err := ParseSetDocument(doc, rawURL)
		if err != nil {
			return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse", Err: err}
		}
		return recs, nil
	default:
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse",
			Err: fmt.Errorf("不支持的 ThePosterDB URL 形态（期望 /set/、/poster/ 或 /user/）：%s", rawURL)}
	}
}

// scrapeSetFromPoster 处理单张海报 URL：海报详情页的结构与 set 页不同，
// 因此先定位“所属 set”的链接，再抓取并解析 set 页面。
func (a Adapter) scrapeSetFromPoster(ctx context.Context, rawURL string, c *http.Client) ([]domain.PosterRecord, error) {
	doc, err := sourcex.FetchDocument(ctx, c, rawURL)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "fetch", Err: err}
	}

	setURL := findSetLink(doc)
	if setURL == "" {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse",
			Err: &sourcex.NoDataError{URL: rawURL, Hint: "未找到所属 set 链接"}}
	}
	setURL = resolveURL(rawURL, setURL)

	setDoc, err := sourcex.FetchDocument(ctx, c, setURL)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "fetch", Err: err}
	}
	recs, err := ParseSetDocument(setDoc, setURL)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse", Err: err}
	}
	return recs, nil
}

// scrapeUser 处理用户主页：读出上传总数 => 计算页数 => 逐页抓取。
// 单页失败只丢弃该页的贡献：已解析的记录与最后一个错误一起返回。
func (a Adapter) scrapeUser(ctx context.Context, rawURL string, c *http.Client) ([]domain.PosterRecord, error) {
	doc, err := sourcex.FetchDocument(ctx, c, rawURL)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "fetch", Err: err}
	}

	pages, err := userPageCount(doc)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse",
			Err: &sourcex.NoDataError{URL: rawURL, Hint: "无法确定用户上传页数"}}
	}

	// 去掉已有 query，分页参数自己拼。
	base := rawURL
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}

	var (
		all     []domain.PosterRecord
		lastErr error
	)
	for page := 1; page <= pages; page++ {
		pageURL := fmt.Sprintf("%s?section=uploads&page=%d", base, page)

		pageDoc, err := sourcex.FetchDocument(ctx, c, pageURL)
		if err != nil {
			lastErr = &sourcex.Error{Adapter: a.Name(), Stage: "fetch",
				Err: fmt.Errorf("第 %d/%d 页抓取失败：%w", page, pages, err)}
			continue
		}
		recs, err := ParseSetDocument(pageDoc, pageURL)
		if err != nil {
			lastErr = &sourcex.Error{Adapter: a.Name(), Stage: "parse",
				Err: fmt.Errorf("第 %d/%d 页解析失败：%w", page, pages, err)}
			continue
		}
		all = append(all, recs...)
	}
	return all, lastErr
}

// ParseSetDocument 解析 set/列表页的海报网格。
// 网格缺失视为 NoDataError（站点结构漂移的信号）；网格存在但为空是合法的空结果。
//
// 该函数同时被 localfile adapter 复用（本地保存的 set 页面）。
func ParseSetDocument(doc *goquery.Document, pageURL string) ([]domain.PosterRecord, error) {
	grid := doc.Find("div.row.d-flex.flex-wrap.m-0.w-100.mx-n1.mt-n1").First()
	if grid.Length() == 0 {
		return nil, &sourcex.NoDataError{URL: pageURL, Hint: "未找到海报网格"}
	}

	var recs []domain.PosterRecord
	var lastErr error
	grid.Find("div.col-6.col-lg-2.p-1").Each(func(_ int, sel *goquery.Selection) {
		rec, err := parsePosterElement(sel)
		if err != nil {
			// 单个元素解析失败只丢弃该元素。
			lastErr = err
			return
		}
		recs = append(recs, rec)
	})
	if len(recs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return recs, nil
}

func parsePosterElement(sel *goquery.Selection) (domain.PosterRecord, error) {
	mediaType, ok := sel.Find(`a.text-white[data-toggle="tooltip"][data-placement="top"]`).First().Attr("title")
	if !ok || strings.TrimSpace(mediaType) == "" {
		return domain.PosterRecord{}, errors.New("海报元素缺少媒体类型标注")
	}

	posterID, ok := sel.Find("div.overlay").First().Attr("data-poster-id")
	if !ok || strings.TrimSpace(posterID) == "" {
		return domain.PosterRecord{}, errors.New("海报元素缺少 data-poster-id")
	}
	artworkURL := assetsURL + strings.TrimSpace(posterID)

	titleText := strings.TrimSpace(sel.Find("p.p-0.mb-1.text-break").First().Text())
	if titleText == "" {
		return domain.PosterRecord{}, errors.New("海报元素缺少标题")
	}

	switch mediaType {
	case "Show":
		return parseShowTitle(titleText, artworkURL)
	case "Movie":
		return parseMovieTitle(titleText, artworkURL)
	case "Collection":
		return domain.PosterRecord{
			Title:      titleText,
			ArtworkURL: artworkURL,
			Source:     domain.SourcePosterDB,
		}, nil
	default:
		return domain.PosterRecord{}, fmt.Errorf("未知媒体类型：%q", mediaType)
	}
}

// parseShowTitle 解析剧集标题文案。
// 站点约定："Title (Year)" 是剧封面；"Title (Year) - Season N" 是季封面；
// "Title (Year) - Specials" 对应第 0 季。格式漂移时整个元素按解析失败处理。
func parseShowTitle(titleText, artworkURL string) (domain.PosterRecord, error) {
	title := strings.Split(titleText, " (")[0]
	year := yearInParens(titleText)

	season := domain.CoverSlot()
	episode := domain.NoSlot()
	if idx := strings.LastIndex(titleText, " - "); idx >= 0 {
		suffix := titleText[idx+len(" - "):]
		switch {
		case suffix == "Specials":
			season = domain.NumberSlot(0)
		case strings.Contains(suffix, "Season"):
			fields := strings.Fields(suffix)
			if len(fields) < 2 {
				return domain.PosterRecord{}, fmt.Errorf("无法解析季号：%q", titleText)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return domain.PosterRecord{}, fmt.Errorf("无法解析季号：%q", titleText)
			}
			season = domain.NumberSlot(n)
		default:
			return domain.PosterRecord{}, fmt.Errorf("未知的剧集标题后缀：%q", titleText)
		}
	}
	if season.Kind == domain.SlotNumber {
		episode = domain.CoverSlot()
	}

	return domain.PosterRecord{
		Title:      title,
		ArtworkURL: artworkURL,
		Source:     domain.SourcePosterDB,
		Year:       year,
		Season:     season,
		Episode:    episode,
	}, nil
}

// parseMovieTitle 解析电影标题文案。
// 括号段不是 5 字符（"YYYY)"）时说明标题自带括号（例如 "Title (Extended) (2016)"），
// 需要把它保留进标题。
func parseMovieTitle(titleText, artworkURL string) (domain.PosterRecord, error) {
	parts := strings.Split(titleText, " (")
	if len(parts) < 2 {
		return domain.PosterRecord{}, fmt.Errorf("电影标题缺少年份：%q", titleText)
	}

	title := parts[0]
	if len(parts[1]) != 5 {
		title = parts[0] + " (" + parts[1]
	}

	yearStr := strings.SplitN(parts[len(parts)-1], ")", 2)[0]
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return domain.PosterRecord{}, fmt.Errorf("无法解析电影年份：%q", titleText)
	}

	return domain.PosterRecord{
		Title:      title,
		ArtworkURL: artworkURL,
		Source:     domain.SourcePosterDB,
		Year:       year,
	}, nil
}

func yearInParens(titleText string) int {
	parts := strings.Split(titleText, " (")
	if len(parts) < 2 {
		return 0
	}
	yearStr := strings.SplitN(parts[1], ")", 2)[0]
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0
	}
	return year
}

// findSetLink 在海报详情页定位所属 set 的链接。
// 先按新版结构（tooltip），再回退旧版结构（a.rounded.view_all）。
func findSetLink(doc *goquery.Document) string {
	if href, ok := doc.Find(`a[data-toggle="tooltip"][title="View Set Page"]`).First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	if href, ok := doc.Find("a.rounded.view_all").First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}

func userPageCount(doc *goquery.Document) (int, error) {
	countStr, ok := doc.Find("span.numCount").First().Attr("data-count")
	if !ok {
		return 0, errors.New("未找到 numCount")
	}
	n, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("data-count 无效：%q", countStr)
	}
	return int(math.Ceil(float64(n) / float64(userPageSize))), nil
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
