package domain

import "fmt"

// Source 标识海报记录的来源站点。
type Source string

const (
	SourceMediUX   Source = "mediux"
	SourcePosterDB Source = "posterdb"
)

// DefaultDelayMS 返回该来源的请求间隔建议值（毫秒）。
// 站点对抓取频率的容忍度不同；这些常量来自长期使用经验，可被配置覆盖。
func (s Source) DefaultDelayMS() int {
	switch s {
	case SourceMediUX:
		return 1000
	case SourcePosterDB:
		return 500
	default:
		return 0
	}
}

// SlotKind 是 Season/Episode 槽位的判别标签。
//
// 原始数据里这两个字段可能是数字、"Cover"、"Backdrop" 或缺失；
// 用显式 tagged variant 替代松散的字符串哨兵比较。
type SlotKind uint8

const (
	SlotNone SlotKind = iota
	SlotNumber
	SlotCover
	SlotBackdrop
)

// Slot 表示一个 season/episode 槽位。
// Num 仅在 Kind==SlotNumber 时有意义。
type Slot struct {
	Kind SlotKind
	Num  int
}

func NoSlot() Slot          { return Slot{Kind: SlotNone} }
func NumberSlot(n int) Slot { return Slot{Kind: SlotNumber, Num: n} }
func CoverSlot() Slot       { return Slot{Kind: SlotCover} }
func BackdropSlot() Slot    { return Slot{Kind: SlotBackdrop} }

func (s Slot) IsNone() bool { return s.Kind == SlotNone }

func (s Slot) String() string {
	switch s.Kind {
	case SlotNone:
		return ""
	case SlotNumber:
		return fmt.Sprintf("%d", s.Num)
	case SlotCover:
		return "Cover"
	case SlotBackdrop:
		return "Backdrop"
	default:
		return "?"
	}
}

// MediaKind 是记录的目标媒体类别。三类互斥且穷尽。
type MediaKind string

const (
	KindMovie      MediaKind = "movie"
	KindShow       MediaKind = "show"
	KindCollection MediaKind = "collection"
)

// PosterRecord 是管道中流动的规范化数据单元（一张候选图）。
//
// 不变量：
// - Season 缺失 + Year 存在 => 电影；Season 缺失 + Year 缺失 => 合集；
//   Season 存在 => 剧集范畴（Episode=Number 指向具体集，=Cover 指向季封面，
//   Season=Backdrop 指向剧的背景图槽位）
// - 由 adapter 创建后不可变；被上传层恰好消费一次；不落盘
type PosterRecord struct {
	Title      string
	ArtworkURL string
	Source     Source

	Year    int // 0 表示缺失
	Season  Slot
	Episode Slot
}

// Kind 按不变量对记录分类。
func (r PosterRecord) Kind() MediaKind {
	if !r.Season.IsNone() {
		return KindShow
	}
	if r.Year > 0 {
		return KindMovie
	}
	return KindCollection
}

// TargetDesc 生成人类可读的目标描述（用于 report 与进度输出）。
func (r PosterRecord) TargetDesc() string {
	switch r.Kind() {
	case KindCollection:
		return r.Title + " (collection)"
	case KindMovie:
		return fmt.Sprintf("%s (%d)", r.Title, r.Year)
	}
	// 剧集范畴
	switch {
	case r.Season.Kind == SlotNumber && r.Episode.Kind == SlotNumber:
		return fmt.Sprintf("%s S%dE%d", r.Title, r.Season.Num, r.Episode.Num)
	case r.Season.Kind == SlotNumber:
		return fmt.Sprintf("%s Season %d", r.Title, r.Season.Num)
	case r.Season.Kind == SlotBackdrop:
		return r.Title + " (backdrop)"
	default:
		return r.Title + " (show poster)"
	}
}
