package mediux

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/PSH/internal/domain"
)

func TestCanHandle(t *testing.T) {
	a := Adapter{}
	if !a.CanHandle("https://mediux.pro/sets/9100") {
		t.Errorf("应处理 mediux.pro/sets")
	}
	if !a.CanHandle("https://www.mediux.pro/sets/9100") {
		t.Errorf("应处理 www.mediux.pro/sets")
	}
	if a.CanHandle("https://mediux.pro/user/someone") {
		t.Errorf("非 sets 路径不应处理")
	}
	if a.CanHandle("https://theposterdb.com/set/1") {
		t.Errorf("不应处理 theposterdb.com")
	}
}

func TestScrape_ShowSetFixture(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "set_show.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(html)
	}))
	defer srv.Close()

	recs, err := Adapter{}.Scrape(context.Background(), srv.URL+"/sets/9100", srv.Client())
	if err != nil {
		t.Fatalf("Scrape 失败：%v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("期望 5 条记录，实际 %d", len(recs))
	}

	want := []domain.PosterRecord{
		// 剧封面
		{Title: "Severance", ArtworkURL: assetsURL + "f1", Source: domain.SourceMediUX, Year: 2022, Season: domain.CoverSlot()},
		// 背景图
		{Title: "Severance", ArtworkURL: assetsURL + "f2", Source: domain.SourceMediUX, Year: 2022, Season: domain.BackdropSlot()},
		// 季封面（season_id => season_number 查表）
		{Title: "Severance", ArtworkURL: assetsURL + "f3", Source: domain.SourceMediUX, Year: 2022, Season: domain.NumberSlot(2), Episode: domain.CoverSlot()},
		// 单集卡（标题尾部取集号）
		{Title: "Severance", ArtworkURL: assetsURL + "f4", Source: domain.SourceMediUX, Year: 2022, Season: domain.NumberSlot(2), Episode: domain.NumberSlot(5)},
		// 集号解析失败 => 降级为季目标
		{Title: "Severance", ArtworkURL: assetsURL + "f5", Source: domain.SourceMediUX, Year: 2022, Season: domain.NumberSlot(2)},
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("记录 %d 不匹配：\n实际 %+v\n期望 %+v", i, recs[i], want[i])
		}
	}
}

func TestScrape_FiltersDropUnlistedTypes(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "set_show.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(html)
	}))
	defer srv.Close()

	a := Adapter{Filters: []string{FilterShowCover, FilterSeasonCover}}
	recs, err := a.Scrape(context.Background(), srv.URL+"/sets/9100", srv.Client())
	if err != nil {
		t.Fatalf("Scrape 失败：%v", err)
	}
	// title_card x2 与 background 被过滤掉。
	if len(recs) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(recs))
	}
	if recs[0].Season != domain.CoverSlot() || recs[1].Season != domain.NumberSlot(2) {
		t.Fatalf("过滤结果不符合预期：%+v", recs)
	}
}

func TestScrape_NoEmbeddedDataIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><script>var x = 1;</script></body></html>"))
	}))
	defer srv.Close()

	_, err := Adapter{}.Scrape(context.Background(), srv.URL+"/sets/1", srv.Client())
	if err == nil {
		t.Fatalf("缺少嵌入数据应返回错误")
	}
}

func TestBuildRecords_MovieSet(t *testing.T) {
	var p payload
	p.Set.Movie = &movieData{ID: "m1", Title: "Heat", ReleaseDate: "1995-12-15"}
	p.Set.Files = []fileData{
		{ID: "f10", FileType: "poster", MovieID: &idRef{ID: "m1"}},
	}

	recs, err := buildRecords(p, nil)
	if err != nil {
		t.Fatalf("buildRecords 失败：%v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("期望 1 条记录，实际 %d", len(recs))
	}
	want := domain.PosterRecord{Title: "Heat", ArtworkURL: assetsURL + "f10", Source: domain.SourceMediUX, Year: 1995}
	if recs[0] != want {
		t.Fatalf("记录不匹配：\n实际 %+v\n期望 %+v", recs[0], want)
	}
	if recs[0].Kind() != domain.KindMovie {
		t.Fatalf("应分类为电影")
	}
}

func TestBuildRecords_CollectionSet(t *testing.T) {
	var p payload
	p.Set.Collection = &collectionData{
		CollectionName: "James Bond Collection",
		Movies: []movieData{
			{ID: "m1", Title: "Dr. No", ReleaseDate: "1962-10-05"},
			{ID: "m2", Title: "Goldfinger", ReleaseDate: "1964-09-17"},
		},
	}
	p.Set.Files = []fileData{
		{ID: "f20", FileType: "poster", CollectionID: &idRef{ID: "c1"}},
		{ID: "f21", FileType: "poster", MovieID: &idRef{ID: "m2"}},
		// 查不到的电影只丢弃该文件。
		{ID: "f22", FileType: "poster", MovieID: &idRef{ID: "m404"}},
	}

	recs, err := buildRecords(p, nil)
	if err == nil {
		t.Fatalf("存在无法解析的文件时应带回错误")
	}
	if len(recs) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(recs))
	}
	if recs[0].Title != "James Bond Collection" || recs[0].Kind() != domain.KindCollection {
		t.Errorf("合集记录不符合预期：%+v", recs[0])
	}
	if recs[1].Title != "Goldfinger" || recs[1].Year != 1964 {
		t.Errorf("合集内电影记录不符合预期：%+v", recs[1])
	}
}

func TestParseEmbeddedJSON_RestoresEscapes(t *testing.T) {
	in := `self.__next_f.push([1,"c:[\"$\",null,{\"set\":{\"files\":[],\"collection\":{\"collection_name\":\"A u0026 B\"}}}]"])`
	p, err := parseEmbeddedJSON(in)
	if err != nil {
		t.Fatalf("parseEmbeddedJSON 失败：%v", err)
	}
	if p.Set.Collection == nil || p.Set.Collection.CollectionName != "A & B" {
		t.Fatalf("u0026 未还原为 &：%+v", p.Set.Collection)
	}
}

func TestEpisodeFromTitle(t *testing.T) {
	cases := []struct {
		in string
		n  int
		ok bool
	}{
		{"Severance - S2 E5", 5, true},
		{"Show S1 E10", 10, true},
		{"Cold Harbor", 0, false},
		{"Ends with E", 0, false},
	}
	for _, tc := range cases {
		n, ok := episodeFromTitle(tc.in)
		if n != tc.n || ok != tc.ok {
			t.Errorf("%q：得到 (%d,%v)，期望 (%d,%v)", tc.in, n, ok, tc.n, tc.ok)
		}
	}
}

func TestFlexID_StringAndNumber(t *testing.T) {
	var f struct {
		A flexID `json:"a"`
		B flexID `json:"b"`
		C flexID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"123","b":456,"c":null}`), &f); err != nil {
		t.Fatalf("反序列化失败：%v", err)
	}
	if f.A != "123" || f.B != "456" || f.C != "" {
		t.Fatalf("flexID 解析不符合预期：%+v", f)
	}
}
