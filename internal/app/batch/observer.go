package batch

import "github.com/John-Robertt/PSH/internal/domain"

// Observer 把批处理进度从核心流程里解耦出去：
// 核心只负责在节点上发事件，TTY 动画 / 安静模式由实现决定。
// 回调在多个 worker 汇聚后的单一 goroutine 里触发，实现无需加锁。
type Observer interface {
	// OnStart 在批处理开始时触发一次。
	OnStart(total int, dryRun bool)

	// OnURLDone 在每个 URL 处理完成（含失败/取消）时触发。
	OnURLDone(done, total int, res domain.URLResult)

	// OnFinish 在报告定稿后触发一次。
	OnFinish(rep domain.BatchReport)
}

// NopObserver 全部忽略（非 TTY 或测试场景）。
type NopObserver struct{}

func (NopObserver) OnStart(int, bool)                    {}
func (NopObserver) OnURLDone(int, int, domain.URLResult) {}
func (NopObserver) OnFinish(domain.BatchReport)          {}
