// Package resolve 把抓取到的标题解析成目的端条目。
//
// 匹配顺序（先到先得）：
//  1. 标题映射（title_mappings）无条件改写
//  2. 精确匹配（年份限定）
//  3. 模糊匹配（相似度 >= Cutoff，年份限定）
//  4. 放宽年份后再来一轮 2+3（站点与库之间的年份口径经常差一年）
//
// 全部落空返回 catalog.ErrNotFound；传输层错误原样上抛，不折叠成未命中。
package resolve

import (
	"context"
	"strings"

	"github.com/John-Robertt/PSH/internal/catalog"
)

// DefaultCutoff 是模糊匹配的默认相似度阈值。
const DefaultCutoff = 0.8

type Resolver struct {
	// Mappings 把抓取标题改写为库内标题（键值都是完整标题）。
	Mappings map[string]string

	// Cutoff 是模糊匹配的最低相似度；零值按 DefaultCutoff 处理。
	Cutoff float64
}

func (r Resolver) cutoff() float64 {
	if r.Cutoff <= 0 {
		return DefaultCutoff
	}
	return r.Cutoff
}

// Resolve 在给定的库里解析标题，返回全部命中的条目。
// 同名条目可能同时存在于多个库，全部返回由上层逐一处理。
func (r Resolver) Resolve(ctx context.Context, libs []catalog.Library, title string, year int) ([]catalog.Target, error) {
	if mapped, ok := r.Mappings[title]; ok {
		title = mapped
	}

	targets, err := r.resolveOnce(ctx, libs, title, year)
	if err != nil || len(targets) > 0 {
		return targets, err
	}

	// 年份放宽只在带年份且未命中时走一次。
	if year > 0 {
		targets, err = r.resolveOnce(ctx, libs, title, 0)
		if err != nil || len(targets) > 0 {
			return targets, err
		}
	}
	return nil, catalog.ErrNotFound
}

func (r Resolver) resolveOnce(ctx context.Context, libs []catalog.Library, title string, year int) ([]catalog.Target, error) {
	var out []catalog.Target
	for _, lib := range libs {
		got, err := lib.Find(ctx, title, year)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	if len(out) > 0 {
		return out, nil
	}

	// 精确未命中才进模糊：逐库取标题候选集，挑最相近的再精确取回。
	for _, lib := range libs {
		titles, err := lib.Titles(ctx)
		if err != nil {
			return nil, err
		}
		match, ok := bestMatch(title, titles, r.cutoff())
		if !ok {
			continue
		}
		got, err := lib.Find(ctx, match, year)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}

// ResolveCollection 按名字解析合集。合集名没有年份口径，
// 也不做模糊匹配（合集通常是人手起的名字，模糊命中风险大于收益）。
func (r Resolver) ResolveCollection(ctx context.Context, libs []catalog.Library, name string) ([]catalog.Target, error) {
	if mapped, ok := r.Mappings[name]; ok {
		name = mapped
	}

	var out []catalog.Target
	for _, lib := range libs {
		cols, err := lib.Collections(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if strings.EqualFold(c.Title(), name) {
				out = append(out, c)
			}
		}
	}
	if len(out) == 0 {
		return nil, catalog.ErrNotFound
	}
	return out, nil
}
