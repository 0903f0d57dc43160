package mediux

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/PSH/internal/domain"
	sourcex "github.com/John-Robertt/PSH/internal/source"
)

const assetsURL = "https://api.mediux.pro/assets/"

// 过滤器名（与配置 mediux_filters 的取值一一对应）。
const (
	FilterShowCover   = "show_cover"
	FilterSeasonCover = "season_cover"
	FilterTitleCard   = "title_card"
	FilterBackground  = "background"
)

// Adapter 实现 MediUX set 页面的抓取与嵌入数据解析。
//
// MediUX 是 Next.js 站点：海报数据不在 DOM 里，而是嵌在页面的
// self.__next_f.push 脚本中。解析路径是：定位包含 set 数据的
// <script> => 去转义 => 截取 JSON => 反序列化。
//
// Filters 非空时只保留列出的剧集图类型（show_cover / season_cover /
// title_card / background）；电影与合集海报不受过滤器影响。
type Adapter struct {
	Filters []string
}

func (Adapter) Name() string { return "mediux" }

func (Adapter) CanHandle(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	if host != "mediux.pro" && !strings.HasSuffix(host, ".mediux.pro") {
		return false
	}
	return strings.Contains(u.Path, "sets")
}

func (a Adapter) Scrape(ctx context.Context, rawURL string, c *http.Client) ([]domain.PosterRecord, error) {
	doc, err := sourcex.FetchDocument(ctx, c, rawURL)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "fetch", Err: err}
	}

	data, ok := extractSetPayload(doc)
	if !ok {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse",
			Err: &sourcex.NoDataError{URL: rawURL, Hint: "未找到嵌入的 set 数据脚本"}}
	}

	recs, err := buildRecords(data, a.Filters)
	if err != nil {
		return nil, &sourcex.Error{Adapter: a.Name(), Stage: "parse", Err: err}
	}
	return recs, nil
}

// flexID 容忍上游把 id 序列化为字符串或数字两种形态。
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type payload struct {
	Set struct {
		Files      []fileData      `json:"files"`
		Show       *showData       `json:"show"`
		Movie      *movieData      `json:"movie"`
		Collection *collectionData `json:"collection"`
	} `json:"set"`
}

type showData struct {
	Name         string       `json:"name"`
	FirstAirDate string       `json:"first_air_date"`
	Seasons      []seasonData `json:"seasons"`
}

type seasonData struct {
	ID           flexID `json:"id"`
	SeasonNumber int    `json:"season_number"`
}

type movieData struct {
	ID          flexID `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
}

type collectionData struct {
	CollectionName string      `json:"collection_name"`
	Movies         []movieData `json:"movies"`
}

type idRef struct {
	ID flexID `json:"id"`
}

type episodeRef struct {
	ID       flexID `json:"id"`
	SeasonID *struct {
		SeasonNumber int `json:"season_number"`
	} `json:"season_id"`
}

type fileData struct {
	ID             flexID      `json:"id"`
	FileType       string      `json:"fileType"`
	Title          string      `json:"title"`
	ShowID         *idRef      `json:"show_id"`
	ShowIDBackdrop *idRef      `json:"show_id_backdrop"`
	EpisodeID      *episodeRef `json:"episode_id"`
	SeasonID       *idRef      `json:"season_id"`
	MovieID        *idRef      `json:"movie_id"`
	CollectionID   *idRef      `json:"collection_id"`
}

// extractSetPayload 在页面脚本里定位并解析 set 数据。
// 命中条件：脚本文本同时包含 "files" 与 "set"，且不是链接预览片段
// （后者含 `Set Link\` 字样）。
func extractSetPayload(doc *goquery.Document) (payload, bool) {
	var (
		out   payload
		found bool
	)
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, "files") || !strings.Contains(text, "set") {
			return true
		}
		if strings.Contains(text, `Set Link\`) {
			return true
		}
		p, err := parseEmbeddedJSON(text)
		if err != nil {
			return true
		}
		if len(p.Set.Files) == 0 {
			return true
		}
		out = p
		found = true
		return false
	})
	return out, found
}

// parseEmbeddedJSON 把 Next.js 流式脚本里的转义 JSON 还原出来：
// 去掉 \\"、去掉所有反斜杠、还原 u0026，再截取首个 '{' 到末个 '}'。
func parseEmbeddedJSON(text string) (payload, error) {
	text = strings.ReplaceAll(text, `\\"`, "")
	text = strings.ReplaceAll(text, `\`, "")
	text = strings.ReplaceAll(text, "u0026", "&")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return payload{}, fmt.Errorf("脚本中没有 JSON 对象")
	}

	var p payload
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return payload{}, fmt.Errorf("set 数据反序列化失败：%w", err)
	}
	return p, nil
}

func buildRecords(p payload, filters []string) ([]domain.PosterRecord, error) {
	var (
		recs    []domain.PosterRecord
		lastErr error
	)
	for _, f := range p.Set.Files {
		rec, keep, err := buildRecord(p, f, filters)
		if err != nil {
			// 单个文件解析失败只丢弃该文件。
			lastErr = err
			continue
		}
		if keep {
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return recs, lastErr
}

func buildRecord(p payload, f fileData, filters []string) (domain.PosterRecord, bool, error) {
	if isShowFile(f) {
		return buildShowRecord(p, f, filters)
	}
	return buildMovieRecord(p, f)
}

func isShowFile(f fileData) bool {
	return f.ShowID != nil || f.ShowIDBackdrop != nil || f.EpisodeID != nil || f.SeasonID != nil
}

func buildShowRecord(p payload, f fileData, filters []string) (domain.PosterRecord, bool, error) {
	show := p.Set.Show
	if show == nil {
		return domain.PosterRecord{}, false, fmt.Errorf("文件 %s 指向剧集但 set 缺少 show 数据", f.ID)
	}

	rec := domain.PosterRecord{
		Title:      show.Name,
		ArtworkURL: assetsURL + string(f.ID),
		Source:     domain.SourceMediUX,
		Year:       yearOf(show.FirstAirDate),
	}

	var fileType string
	switch {
	case f.FileType == "title_card" && f.EpisodeID != nil:
		fileType = FilterTitleCard
		if f.EpisodeID.SeasonID == nil {
			return domain.PosterRecord{}, false, fmt.Errorf("title_card %s 缺少季号", f.ID)
		}
		rec.Season = domain.NumberSlot(f.EpisodeID.SeasonID.SeasonNumber)
		// 集号藏在标题尾部（"... S2 E5"）；解析失败时降级为季封面目标。
		if n, ok := episodeFromTitle(f.Title); ok {
			rec.Episode = domain.NumberSlot(n)
		}
	case f.FileType == "backdrop":
		fileType = FilterBackground
		rec.Season = domain.BackdropSlot()
	case f.SeasonID != nil:
		fileType = FilterSeasonCover
		n, ok := seasonNumber(show.Seasons, f.SeasonID.ID)
		if !ok {
			return domain.PosterRecord{}, false, fmt.Errorf("season_id %s 在 set 的季列表中不存在", f.SeasonID.ID)
		}
		rec.Season = domain.NumberSlot(n)
		rec.Episode = domain.CoverSlot()
	case f.ShowID != nil:
		fileType = FilterShowCover
		rec.Season = domain.CoverSlot()
	default:
		return domain.PosterRecord{}, false, fmt.Errorf("无法识别的剧集文件形态：%s（fileType=%q）", f.ID, f.FileType)
	}

	if len(filters) > 0 && !contains(filters, fileType) {
		return domain.PosterRecord{}, false, nil
	}
	return rec, true, nil
}

func buildMovieRecord(p payload, f fileData) (domain.PosterRecord, bool, error) {
	rec := domain.PosterRecord{
		ArtworkURL: assetsURL + string(f.ID),
		Source:     domain.SourceMediUX,
	}

	switch {
	case f.MovieID != nil:
		switch {
		case p.Set.Movie != nil:
			rec.Title = p.Set.Movie.Title
			rec.Year = yearOf(p.Set.Movie.ReleaseDate)
		case p.Set.Collection != nil:
			m, ok := movieByID(p.Set.Collection.Movies, f.MovieID.ID)
			if !ok {
				return domain.PosterRecord{}, false, fmt.Errorf("movie_id %s 在合集电影列表中不存在", f.MovieID.ID)
			}
			rec.Title = m.Title
			rec.Year = yearOf(m.ReleaseDate)
		default:
			return domain.PosterRecord{}, false, fmt.Errorf("文件 %s 指向电影但 set 缺少 movie/collection 数据", f.ID)
		}
	case f.CollectionID != nil:
		if p.Set.Collection == nil {
			return domain.PosterRecord{}, false, fmt.Errorf("文件 %s 指向合集但 set 缺少 collection 数据", f.ID)
		}
		rec.Title = p.Set.Collection.CollectionName
	default:
		return domain.PosterRecord{}, false, fmt.Errorf("无法识别的电影文件形态：%s（fileType=%q）", f.ID, f.FileType)
	}

	if strings.TrimSpace(rec.Title) == "" {
		return domain.PosterRecord{}, false, fmt.Errorf("文件 %s 缺少标题", f.ID)
	}
	return rec, true, nil
}

// episodeFromTitle 从标题尾部取集号（按最后一个 " E" 切分）。
func episodeFromTitle(title string) (int, bool) {
	idx := strings.LastIndex(title, " E")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(title[idx+len(" E"):]))
	if err != nil {
		return 0, false
	}
	return n, true
}

func seasonNumber(seasons []seasonData, id flexID) (int, bool) {
	for _, s := range seasons {
		if s.ID == id {
			return s.SeasonNumber, true
		}
	}
	return 0, false
}

func movieByID(movies []movieData, id flexID) (movieData, bool) {
	for _, m := range movies {
		if m.ID == id {
			return m, true
		}
	}
	return movieData{}, false
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
