package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/PSH/internal/domain"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置文件失败：%v", err)
	}
}

const minimal = `{
  "plex": {"base_url": "http://plex.local:32400/", "token": "tok"},
  "tv_libraries": ["TV Shows"],
  "movie_libraries": ["Movies", " "]
}`

func TestLoadEffective_Minimal(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, minimal)

	eff, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("LoadEffective 失败：%v", err)
	}

	if eff.PlexBaseURL != "http://plex.local:32400" {
		t.Errorf("base_url 未去除尾部斜杠：%q", eff.PlexBaseURL)
	}
	if eff.Apply {
		t.Errorf("默认必须是 dry-run")
	}
	if len(eff.MovieLibraries) != 1 || eff.MovieLibraries[0] != "Movies" {
		t.Errorf("movie_libraries 未清洗：%v", eff.MovieLibraries)
	}
	if eff.FuzzyCutoff != DefaultFuzzyCutoff {
		t.Errorf("fuzzy_cutoff 默认值错误：%v", eff.FuzzyCutoff)
	}
	if eff.Concurrency < 1 || eff.Concurrency > 3 {
		t.Errorf("默认并发应在 [1,3]（由 CPU 推导），实际 %d", eff.Concurrency)
	}
	if eff.SourceDelays[domain.SourceMediUX] != time.Second {
		t.Errorf("mediux 默认间隔应为 1s，实际 %v", eff.SourceDelays[domain.SourceMediUX])
	}
	if eff.SourceDelays[domain.SourcePosterDB] != 500*time.Millisecond {
		t.Errorf("posterdb 默认间隔应为 500ms，实际 %v", eff.SourceDelays[domain.SourcePosterDB])
	}
	if eff.BulkFile != DefaultBulkFile {
		t.Errorf("bulk 文件默认值错误：%q", eff.BulkFile)
	}
}

func TestLoadEffective_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadEffective(dir, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 config_not_found，实际 %v", err)
	}
}

func TestLoadEffective_MissingPlex(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"tv_libraries": ["TV"]}`)
	_, err := LoadEffective(dir, CLIArgs{})
	if Code(err) != ErrCodeMissingPlex {
		t.Fatalf("期望 config_missing_plex，实际 %v", err)
	}
}

func TestLoadEffective_MissingLibrary(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"plex": {"base_url": "http://p:32400", "token": "tok"}}`)
	_, err := LoadEffective(dir, CLIArgs{})
	if Code(err) != ErrCodeMissingLibrary {
		t.Fatalf("期望 config_missing_library，实际 %v", err)
	}
}

func TestLoadEffective_CLIOverridesApply(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
  "plex": {"base_url": "http://p:32400", "token": "tok"},
  "movie_libraries": ["Movies"],
  "apply": true
}`)

	// --apply=false 必须能覆盖 config.apply=true。
	eff, err := LoadEffective(dir, CLIArgs{Apply: false, ApplySet: true})
	if err != nil {
		t.Fatalf("LoadEffective 失败：%v", err)
	}
	if eff.Apply {
		t.Fatalf("CLI --apply=false 未覆盖 config.apply=true")
	}
}

func TestLoadEffective_InvalidFields(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"坏 JSON", `{`},
		{"坏 base_url", `{"plex": {"base_url": "::", "token": "t"}, "tv_libraries": ["TV"]}`},
		{"image_proxy 无 proxy", `{"plex": {"base_url": "http://p:32400", "token": "t"}, "tv_libraries": ["TV"], "image_proxy": true}`},
		{"fuzzy_cutoff 越界", `{"plex": {"base_url": "http://p:32400", "token": "t"}, "tv_libraries": ["TV"], "fuzzy_cutoff": 1.5}`},
		{"未知来源的 delay", `{"plex": {"base_url": "http://p:32400", "token": "t"}, "tv_libraries": ["TV"], "source_delays_ms": {"imgur": 100}}`},
		{"负数 delay", `{"plex": {"base_url": "http://p:32400", "token": "t"}, "tv_libraries": ["TV"], "source_delays_ms": {"mediux": -1}}`},
		{"空映射键", `{"plex": {"base_url": "http://p:32400", "token": "t"}, "tv_libraries": ["TV"], "title_mappings": {" ": "X"}}`},
	}
	for _, tc := range cases {
		dir := t.TempDir()
		writeConfig(t, dir, tc.body)
		_, err := LoadEffective(dir, CLIArgs{})
		if Code(err) != ErrCodeInvalid {
			t.Errorf("%s：期望 config_invalid，实际 %v", tc.name, err)
		}
	}
}

func TestLoadEffective_ConcurrencyClampAndDelays(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{
  "plex": {"base_url": "http://p:32400", "token": "tok"},
  "tv_libraries": ["TV"],
  "concurrency": 99,
  "source_delays_ms": {"posterdb": 250},
  "fuzzy_cutoff": 0.6
}`)

	eff, err := LoadEffective(dir, CLIArgs{})
	if err != nil {
		t.Fatalf("LoadEffective 失败：%v", err)
	}
	if eff.Concurrency != 16 {
		t.Errorf("concurrency 应截断到 16，实际 %d", eff.Concurrency)
	}
	if eff.SourceDelays[domain.SourcePosterDB] != 250*time.Millisecond {
		t.Errorf("posterdb delay 未生效：%v", eff.SourceDelays[domain.SourcePosterDB])
	}
	if eff.FuzzyCutoff != 0.6 {
		t.Errorf("fuzzy_cutoff 未生效：%v", eff.FuzzyCutoff)
	}
}
