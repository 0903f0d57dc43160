package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/PSH/internal/app/batch"
	"github.com/John-Robertt/PSH/internal/config"
	"github.com/John-Robertt/PSH/internal/domain"
)

var _ batch.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：batch 层只发事件，CLI 决定如何展示
// - keepalive：长时间无 URL 完成时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w   io.Writer
	eff config.EffectiveConfig

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total    int
	done     int
	ok       int
	fail     int
	skip     int
	canceled int
	uploaded int
	planned  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer, eff config.EffectiveConfig) *progressUI {
	return &progressUI{
		w:                  w,
		eff:                eff,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(total int, dryRun bool) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = total

	mode := "apply"
	modeHint := ""
	if dryRun {
		mode = "dry-run"
		modeHint = " (只解析与匹配，不下载/不上传)"
	}

	fmt.Fprintf(p.w, "[%s] PSH run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  plex: %s\n", truncate(p.eff.PlexBaseURL, 120))
	fmt.Fprintf(p.w, "  tv_libraries: %s\n", formatList(p.eff.TVLibraries))
	fmt.Fprintf(p.w, "  movie_libraries: %s\n", formatList(p.eff.MovieLibraries))
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  concurrency: %d\n", p.eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(p.eff.ProxyURL))
	fmt.Fprintf(p.w, "  image_proxy: %s\n", onOff(p.eff.ImageProxy))
	fmt.Fprintf(p.w, "  fuzzy_cutoff: %.2f\n", p.eff.FuzzyCutoff)
	if len(p.eff.MediuxFilters) > 0 {
		fmt.Fprintf(p.w, "  mediux_filters: %s\n", formatList(p.eff.MediuxFilters))
	}
	fmt.Fprintf(p.w, "urls: %d\n\n", total)

	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnURLDone(done, total int, res domain.URLResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	p.total = total

	status := "OK"
	switch res.Status {
	case domain.URLStatusProcessed:
		p.ok++
	case domain.URLStatusFailed:
		p.fail++
		status = "FAIL"
	case domain.URLStatusSkipped:
		p.skip++
		status = "SKIP"
	case domain.URLStatusCanceled:
		p.canceled++
		status = "CANCEL"
	}

	uploaded, planned, missed := 0, 0, 0
	for _, rec := range res.Records {
		switch rec.Status {
		case domain.RecordStatusUploaded:
			uploaded++
		case domain.RecordStatusPlanned:
			planned++
		case domain.RecordStatusSkipped:
			missed++
		}
	}
	p.uploaded += uploaded
	p.planned += planned

	switch res.Status {
	case domain.URLStatusProcessed:
		note := ""
		if res.ErrorCode != "" {
			// 分页部分失败之类：URL 仍算处理完成，但要给出线索。
			note = fmt.Sprintf(" partial(%s: %s)", res.ErrorCode, truncate(res.ErrorMsg, 90))
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s records=%d uploaded=%d planned=%d miss=%d%s\n",
			done, total, truncate(res.URL, 100), status, len(res.Records), uploaded, planned, missed, note,
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s\n",
			done, total, truncate(res.URL, 100), status, res.ErrorCode, truncate(res.ErrorMsg, 160),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnFinish(rep domain.BatchReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}

				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					elapsed := time.Since(p.startedAt)
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d uploaded=%d planned=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, p.skip, p.uploaded, p.planned, formatElapsed(elapsed),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-p.stopCh:
				return
			}
		}
	}()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatList(xs []string) string {
	if len(xs) == 0 {
		return "[]"
	}
	return "[" + strings.Join(xs, ", ") + "]"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
