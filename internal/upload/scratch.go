package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/PSH/internal/domain"
)

// Downloader 把图片拉到本地暂存文件，并按来源限速。
//
// 暂存文件用 uuid 命名避免并发冲突；上传完成后经 Release 延迟删除
// （Plex 端是异步读取，立刻删除会出现上传成功但图片为空的竞态）。
type Downloader struct {
	// Client 是图片下载专用的 HTTP 客户端（可能走代理）。
	Client *http.Client

	// Dir 是暂存目录；空值用系统临时目录。
	Dir string

	// Grace 是 Release 后到真正删除之间的等待时长。
	Grace time.Duration

	limiters map[domain.Source]*rate.Limiter
	wg       sync.WaitGroup
}

// NewDownloader 按来源间隔构造限速器。间隔为 0 的来源不限速。
func NewDownloader(c *http.Client, dir string, grace time.Duration, delays map[domain.Source]time.Duration) *Downloader {
	limiters := make(map[domain.Source]*rate.Limiter, len(delays))
	for src, d := range delays {
		if d <= 0 {
			limiters[src] = rate.NewLimiter(rate.Inf, 1)
			continue
		}
		limiters[src] = rate.NewLimiter(rate.Every(d), 1)
	}
	return &Downloader{Client: c, Dir: dir, Grace: grace, limiters: limiters}
}

// Fetch 下载记录的图片到暂存文件，返回本地路径。
// 调用方负责在用完后调用 Release。
func (d *Downloader) Fetch(ctx context.Context, rec domain.PosterRecord) (string, error) {
	if lim, ok := d.limiters[rec.Source]; ok {
		if err := lim.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.ArtworkURL, nil)
	if err != nil {
		return "", err
	}
	// MediUX 的资源服务校验 Referer。
	if rec.Source == domain.SourceMediUX {
		req.Header.Set("Referer", "https://mediux.pro/")
	}

	c := d.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("图片下载失败：HTTP %d（%s）", resp.StatusCode, rec.ArtworkURL)
	}

	dir := d.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	name := "psh-" + uuid.NewString() + scratchExt(rec.ArtworkURL)
	p := filepath.Join(dir, name)

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(p)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", err
	}
	return p, nil
}

// Release 安排删除暂存文件。Grace<=0 时立即删除（同步），
// 否则在后台等待 Grace 后删除；Wait 会等齐全部后台删除。
func (d *Downloader) Release(path string) {
	if path == "" {
		return
	}
	if d.Grace <= 0 {
		os.Remove(path)
		return
	}
	d.wg.Add(1)
	time.AfterFunc(d.Grace, func() {
		defer d.wg.Done()
		os.Remove(path)
	})
}

// Wait 阻塞到所有延迟删除完成。批处理结束时调用一次。
func (d *Downloader) Wait() { d.wg.Wait() }

func scratchExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	default:
		return ".jpg"
	}
}
