package localfile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/PSH/internal/domain"
)

func TestCanHandle(t *testing.T) {
	a := Adapter{}
	if !a.CanHandle("testdata/saved_set.html") {
		t.Errorf("应处理 .html 路径")
	}
	if !a.CanHandle("  /tmp/Some Set.HTML  ") {
		t.Errorf("扩展名匹配应不区分大小写并容忍空白")
	}
	if a.CanHandle("https://theposterdb.com/set/1") {
		t.Errorf("不应处理站点 URL")
	}
}

func TestScrape_SavedSetPage(t *testing.T) {
	recs, err := Adapter{}.Scrape(context.Background(), filepath.Join("testdata", "saved_set.html"), nil)
	if err != nil {
		t.Fatalf("Scrape 失败：%v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("期望 1 条记录，实际 %d", len(recs))
	}
	if recs[0].Title != "Heat" || recs[0].Year != 1995 || recs[0].Source != domain.SourcePosterDB {
		t.Fatalf("记录不符合预期：%+v", recs[0])
	}
}

func TestScrape_MissingFile(t *testing.T) {
	_, err := Adapter{}.Scrape(context.Background(), "testdata/no_such_file.html", nil)
	if err == nil {
		t.Fatalf("文件不存在应返回错误")
	}
}
