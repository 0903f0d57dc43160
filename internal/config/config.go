package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/John-Robertt/PSH/internal/domain"
)

const (
	// ErrCodeNotFound 表示 cwd 下没有 psh.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPlex 表示缺少 plex.base_url 或 plex.token。
	ErrCodeMissingPlex = "config_missing_plex"
	// ErrCodeMissingLibrary 表示 tv_libraries 与 movie_libraries 均为空。
	ErrCodeMissingLibrary = "config_missing_library"
)

const (
	// FileName 是配置文件的固定名字（在 cwd 下查找）。
	FileName = "psh.json"

	// DefaultFuzzyCutoff 是模糊匹配的默认相似度阈值。
	// 上游站点的标题格式会漂移，该值允许通过配置调整。
	DefaultFuzzyCutoff = 0.8

	// DefaultBulkFile 是 bulk 模式的默认 URL 清单文件。
	DefaultBulkFile = "bulk_import.txt"

	maxConcurrency = 16
)

// CLIArgs 只包含 CLI 暴露的入口（urls/bulk/apply），并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	URLs []string

	BulkFile string
	BulkSet  bool

	Apply    bool
	ApplySet bool
}

// FileConfig 对应 psh.json 的解析结构。
type FileConfig struct {
	Plex           *PlexConfig       `json:"plex"`
	TVLibraries    []string          `json:"tv_libraries"`
	MovieLibraries []string          `json:"movie_libraries"`
	TitleMappings  map[string]string `json:"title_mappings"`

	Apply       *bool        `json:"apply"`
	Concurrency int          `json:"concurrency"`
	Proxy       *ProxyConfig `json:"proxy"`
	ImageProxy  bool         `json:"image_proxy"`

	MediuxFilters  []string       `json:"mediux_filters"`
	FuzzyCutoff    *float64       `json:"fuzzy_cutoff"`
	SourceDelaysMS map[string]int `json:"source_delays_ms"`
	BulkFile       string         `json:"bulk_file"`
}

type PlexConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	PlexBaseURL string
	PlexToken   string

	TVLibraries    []string
	MovieLibraries []string
	TitleMappings  map[string]string

	Apply       bool
	Concurrency int
	ProxyURL    string
	ImageProxy  bool

	MediuxFilters []string
	FuzzyCutoff   float64

	// SourceDelays 是按来源的请求间隔（未配置的来源取内置默认值）。
	SourceDelays map[domain.Source]time.Duration

	BulkFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
// 这是唯一允许终止整个进程的错误类别。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPlex:
		return fmt.Sprintf("%s：配置文件 %q 缺少 plex.base_url / plex.token", e.Code, e.Path)
	case ErrCodeMissingLibrary:
		return fmt.Sprintf("%s：配置文件 %q 的 tv_libraries 与 movie_libraries 均为空", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 <cwd>/psh.json 并与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：
// - apply：CLI --apply/--apply=false > config > 默认 false（dry-run）
// - bulk 文件：CLI --bulk > config bulk_file > 默认 bulk_import.txt
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	return merge(cli, fc, cfgPath)
}

func merge(cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	if fc.Plex == nil || strings.TrimSpace(fc.Plex.BaseURL) == "" || strings.TrimSpace(fc.Plex.Token) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPlex, Path: cfgPath}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(fc.Plex.BaseURL), "/")
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("plex.base_url 无效：%q", fc.Plex.BaseURL)}
	}

	tv := cleanList(fc.TVLibraries)
	movie := cleanList(fc.MovieLibraries)
	if len(tv) == 0 && len(movie) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingLibrary, Path: cfgPath}
	}

	// apply：CLI > config > 默认 false
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = defaultConcurrency()
	}
	// 文档约定：范围 [1, 16]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%w", err)}
		}
	}
	if fc.ImageProxy && proxyURL == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("image_proxy=true 但 proxy.url 为空")}
	}

	cutoff := DefaultFuzzyCutoff
	if fc.FuzzyCutoff != nil {
		cutoff = *fc.FuzzyCutoff
		if cutoff <= 0 || cutoff > 1 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("fuzzy_cutoff 必须在 (0, 1] 内，实际是 %v", cutoff)}
		}
	}

	delays, err := sourceDelays(fc.SourceDelaysMS)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	bulkFile := DefaultBulkFile
	if cli.BulkSet && strings.TrimSpace(cli.BulkFile) != "" {
		bulkFile = strings.TrimSpace(cli.BulkFile)
	} else if strings.TrimSpace(fc.BulkFile) != "" {
		bulkFile = strings.TrimSpace(fc.BulkFile)
	}

	mappings := make(map[string]string, len(fc.TitleMappings))
	for k, v := range fc.TitleMappings {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("title_mappings 不允许空键/空值")}
		}
		mappings[k] = v
	}

	return EffectiveConfig{
		PlexBaseURL:    baseURL,
		PlexToken:      strings.TrimSpace(fc.Plex.Token),
		TVLibraries:    tv,
		MovieLibraries: movie,
		TitleMappings:  mappings,
		Apply:          apply,
		Concurrency:    concurrency,
		ProxyURL:       proxyURL,
		ImageProxy:     fc.ImageProxy,
		MediuxFilters:  cleanList(fc.MediuxFilters),
		FuzzyCutoff:    cutoff,
		SourceDelays:   delays,
		BulkFile:       bulkFile,
	}, nil
}

// defaultConcurrency 由 CPU 数推导，上限 3：任务主体是网络 I/O，
// 更高的并发只会更快触发站点限流。
func defaultConcurrency() int {
	n := runtime.NumCPU()
	if n > 3 {
		n = 3
	}
	if n < 1 {
		n = 1
	}
	return n
}

func sourceDelays(ms map[string]int) (map[domain.Source]time.Duration, error) {
	out := map[domain.Source]time.Duration{
		domain.SourceMediUX:   time.Duration(domain.SourceMediUX.DefaultDelayMS()) * time.Millisecond,
		domain.SourcePosterDB: time.Duration(domain.SourcePosterDB.DefaultDelayMS()) * time.Millisecond,
	}
	for k, v := range ms {
		src := domain.Source(strings.ToLower(strings.TrimSpace(k)))
		if _, ok := out[src]; !ok {
			return nil, fmt.Errorf("source_delays_ms 含未知来源：%q", k)
		}
		if v < 0 {
			return nil, fmt.Errorf("source_delays_ms[%q] 不能为负数", k)
		}
		out[src] = time.Duration(v) * time.Millisecond
	}
	return out, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
