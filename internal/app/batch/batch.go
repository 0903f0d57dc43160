// Package batch 是管道的编排层：一批 URL 经由有界 worker 池
// 走完 抓取 => 解析 => 匹配 => 上传，并汇总成一份 BatchReport。
//
// 约束：
//   - 每个输入 URL 在报告里恰好出现一次（成功、失败、取消都算）
//   - URL 之间并发，URL 内的记录串行（来源限速在下载层统一做）
//   - 取消后不再开始新的 URL；未派发的 URL 记为 canceled
//   - dry-run 只做解析与匹配，不下载不上传
package batch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/John-Robertt/PSH/internal/catalog"
	"github.com/John-Robertt/PSH/internal/domain"
	"github.com/John-Robertt/PSH/internal/source"
	"github.com/John-Robertt/PSH/internal/upload"
)

// Deps 是批处理需要的全部协作方。
type Deps struct {
	Registry source.Registry

	// Pages 是页面抓取用的 HTTP 客户端（交给 adapter）。
	Pages *http.Client

	Orch *upload.Orchestrator

	// Observer 可为 nil（等价于 NopObserver）。
	Observer Observer
}

// Execute 处理一批 URL，返回定稿后的报告。
// apply=false 为 dry-run；concurrency 不足 1 时按 1 处理。
func Execute(ctx context.Context, urls []string, concurrency int, apply bool, deps Deps) domain.BatchReport {
	obs := deps.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(urls) && len(urls) > 0 {
		concurrency = len(urls)
	}

	rep := domain.BatchReport{DryRun: !apply, StartedAt: time.Now()}
	obs.OnStart(len(urls), !apply)

	jobs := make(chan string)
	results := make(chan domain.URLResult)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				// 取消后不再开始新 URL，但每个 URL 仍要产出结果。
				if ctx.Err() != nil {
					results <- domain.URLResult{URL: u, Status: domain.URLStatusCanceled,
						ErrorCode: domain.ErrCodeCanceled, ErrorMsg: ctx.Err().Error()}
					continue
				}
				results <- processURL(ctx, u, apply, deps)
			}
		}()
	}

	go func() {
		for _, u := range urls {
			jobs <- u
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		done++
		rep.Items = append(rep.Items, res)
		obs.OnURLDone(done, len(urls), res)
	}

	if deps.Orch != nil && deps.Orch.Download != nil {
		deps.Orch.Download.Wait()
	}

	rep.FinishedAt = time.Now()
	rep.Finalize()
	obs.OnFinish(rep)
	return rep
}

func processURL(ctx context.Context, rawURL string, apply bool, deps Deps) domain.URLResult {
	res := domain.URLResult{URL: rawURL}

	adapter, ok := deps.Registry.Pick(rawURL)
	if !ok {
		res.Status = domain.URLStatusSkipped
		res.ErrorCode = domain.ErrCodeUnsupportedURL
		res.ErrorMsg = "没有 adapter 认领该 URL"
		return res
	}
	res.Adapter = adapter.Name()

	records, err := adapter.Scrape(ctx, rawURL, deps.Pages)
	if err != nil {
		res.ErrorCode, res.ErrorMsg = classifyScrapeErr(err)
		// 部分结果（分页场景）照常处理；全军覆没才算 URL 失败。
		if len(records) == 0 {
			res.Status = domain.URLStatusFailed
			return res
		}
	}

	for _, rec := range records {
		res.Records = append(res.Records, processRecord(ctx, rec, apply, deps.Orch))
	}
	res.Status = domain.URLStatusProcessed
	return res
}

func processRecord(ctx context.Context, rec domain.PosterRecord, apply bool, orch *upload.Orchestrator) domain.RecordResult {
	rr := domain.RecordResult{
		Title:  rec.Title,
		Kind:   rec.Kind(),
		Target: rec.TargetDesc(),
	}

	var err error
	if apply {
		_, err = orch.Apply(ctx, rec)
	} else {
		_, err = orch.Plan(ctx, rec)
	}

	switch {
	case err == nil:
		if apply {
			rr.Status = domain.RecordStatusUploaded
		} else {
			rr.Status = domain.RecordStatusPlanned
		}
	case errors.Is(err, catalog.ErrNotFound):
		rr.Status = domain.RecordStatusSkipped
		rr.ErrorCode = domain.ErrCodeNotFound
		rr.ErrorMsg = "目的端没有匹配的条目"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		rr.Status = domain.RecordStatusFailed
		rr.ErrorCode = domain.ErrCodeCanceled
		rr.ErrorMsg = err.Error()
	default:
		rr.Status = domain.RecordStatusFailed
		rr.ErrorCode = domain.ErrCodeUploadFailed
		rr.ErrorMsg = err.Error()
	}
	return rr
}

func classifyScrapeErr(err error) (code, msg string) {
	var nd *source.NoDataError
	if errors.As(err, &nd) {
		return domain.ErrCodeNoDataFound, err.Error()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrCodeCanceled, err.Error()
	}
	return domain.ErrCodeFetchFailed, err.Error()
}
