// Package catalog 定义目的端媒体库的稳定契约。
//
// 核心流程（resolve/upload/batch）只依赖这两个接口，不依赖具体的
// Plex 客户端实现；测试可用内存假实现替代。
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound 表示条目/季/集在目的端不存在。
// 这是可恢复条件：调用方跳过该记录，批处理继续。
var ErrNotFound = errors.New("catalog: not found")

// Library 是目的端的一个库（电影库或剧集库）。
type Library interface {
	// Name 返回库的显示名（用于 report 与日志）。
	Name() string

	// Find 按标题精确查找条目；year>0 时附加年份过滤。
	// 未命中返回空切片（不是错误）。
	Find(ctx context.Context, title string, year int) ([]Target, error)

	// Titles 枚举库内全部条目标题（模糊匹配的候选集）。
	Titles(ctx context.Context) ([]string, error)

	// Collections 枚举库内全部合集。
	Collections(ctx context.Context) ([]Target, error)
}

// Target 是目的端一个可寻址条目（剧/季/集/电影/合集）的句柄。
// 管道不直接修改它，只通过能力方法下发图片。
type Target interface {
	// Title 返回条目标题。
	Title() string

	// LibraryName 返回条目所属库的显示名。
	LibraryName() string

	// Season 返回第 n 季的句柄；不存在时返回 ErrNotFound。
	Season(ctx context.Context, n int) (Target, error)

	// Episode 返回（季句柄上的）第 n 集；不存在时返回 ErrNotFound。
	Episode(ctx context.Context, n int) (Target, error)

	// SetPoster 把本地文件推送到条目的海报槽位。
	SetPoster(ctx context.Context, path string) error

	// SetArt 把本地文件推送到条目的背景图槽位。
	SetArt(ctx context.Context, path string) error
}
