package ml

import "sync/atomic"

type predictorBox struct {
	p Predictor
}

// Handle 进程级预测器槽位。重载时整体替换指针，
// 并发读取方只会看到旧模型或新模型，不会看到中间状态。
type Handle struct {
	box atomic.Pointer[predictorBox]
}

// Get 返回当前预测器，未加载时返回nil
func (h *Handle) Get() Predictor {
	box := h.box.Load()
	if box == nil {
		return nil
	}
	return box.p
}

// Swap 原子替换预测器，nil表示模型不可用
func (h *Handle) Swap(p Predictor) {
	if p == nil {
		h.box.Store(nil)
		return
	}
	h.box.Store(&predictorBox{p: p})
}

// Loaded 当前是否持有可用预测器
func (h *Handle) Loaded() bool {
	return h.Get() != nil
}
