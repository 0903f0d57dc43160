// Package upload 把一条 PosterRecord 落到目的端的精确槽位。
//
// 槽位规则（无降级）：
//   - 电影/合集 => 条目海报
//   - Season=Cover => 剧海报；Season=Backdrop => 剧背景图
//   - Season=N + Episode=M => 第 N 季第 M 集的海报
//   - Season=N（Episode 为 Cover 或缺失）=> 第 N 季的季海报
//
// 目标季/集不存在时该记录按未命中跳过，绝不退回更粗粒度的目标
// （把单集卡贴到季海报上是不可接受的静默污染）。
package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/John-Robertt/PSH/internal/catalog"
	"github.com/John-Robertt/PSH/internal/domain"
	"github.com/John-Robertt/PSH/internal/resolve"
)

type Orchestrator struct {
	Resolver resolve.Resolver

	// TV / Movie 是两类目的库；合集在电影库里解析。
	TV    []catalog.Library
	Movie []catalog.Library

	// Download 负责图片暂存与来源限速；Plan-only 场景可为 nil。
	Download *Downloader
}

// step 是一次具体的上传动作：目标条目 + 槽位（海报或背景图）。
type step struct {
	target catalog.Target
	art    bool
}

// Plan 只做目标解析，返回将要写入的目标数（dry-run 路径）。
// 未命中返回 catalog.ErrNotFound。
func (o *Orchestrator) Plan(ctx context.Context, rec domain.PosterRecord) (int, error) {
	steps, err := o.resolveSteps(ctx, rec)
	if err != nil {
		return 0, err
	}
	return len(steps), nil
}

// Apply 解析目标、下载图片并逐一上传。
// 单个目标上传失败不影响其余目标；返回成功数与合并后的错误。
func (o *Orchestrator) Apply(ctx context.Context, rec domain.PosterRecord) (int, error) {
	steps, err := o.resolveSteps(ctx, rec)
	if err != nil {
		return 0, err
	}

	path, err := o.Download.Fetch(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("下载 %s 失败：%w", rec.ArtworkURL, err)
	}
	defer o.Download.Release(path)

	done := 0
	var errs []error
	for _, s := range steps {
		var err error
		if s.art {
			err = s.target.SetArt(ctx, path)
		} else {
			err = s.target.SetPoster(ctx, path)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("上传到 %s/%s 失败：%w", s.target.LibraryName(), s.target.Title(), err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

func (o *Orchestrator) resolveSteps(ctx context.Context, rec domain.PosterRecord) ([]step, error) {
	switch rec.Kind() {
	case domain.KindCollection:
		targets, err := o.Resolver.ResolveCollection(ctx, o.Movie, rec.Title)
		if err != nil {
			return nil, err
		}
		return posterSteps(targets), nil

	case domain.KindMovie:
		targets, err := o.Resolver.Resolve(ctx, o.Movie, rec.Title, rec.Year)
		if err != nil {
			return nil, err
		}
		return posterSteps(targets), nil

	default:
		return o.resolveShowSteps(ctx, rec)
	}
}

func (o *Orchestrator) resolveShowSteps(ctx context.Context, rec domain.PosterRecord) ([]step, error) {
	shows, err := o.Resolver.Resolve(ctx, o.TV, rec.Title, rec.Year)
	if err != nil {
		return nil, err
	}

	var steps []step
	for _, show := range shows {
		s, err := showStep(ctx, show, rec)
		if errors.Is(err, catalog.ErrNotFound) {
			// 该库没有对应的季/集：跳过这个库，不降级。
			continue
		}
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, catalog.ErrNotFound
	}
	return steps, nil
}

func showStep(ctx context.Context, show catalog.Target, rec domain.PosterRecord) (step, error) {
	switch rec.Season.Kind {
	case domain.SlotCover:
		return step{target: show}, nil
	case domain.SlotBackdrop:
		return step{target: show, art: true}, nil
	case domain.SlotNumber:
		season, err := show.Season(ctx, rec.Season.Num)
		if err != nil {
			return step{}, err
		}
		if rec.Episode.Kind == domain.SlotNumber {
			ep, err := season.Episode(ctx, rec.Episode.Num)
			if err != nil {
				return step{}, err
			}
			return step{target: ep}, nil
		}
		return step{target: season}, nil
	default:
		return step{}, fmt.Errorf("剧集记录缺少 season 槽位：%s", rec.TargetDesc())
	}
}

func posterSteps(targets []catalog.Target) []step {
	out := make([]step, 0, len(targets))
	for _, t := range targets {
		out = append(out, step{target: t})
	}
	return out
}
