package ml

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// StageStatus 修复流水线各阶段的结果类型
type StageStatus int

const (
	StageOK StageStatus = iota
	StageDegraded
	StageFailed
)

func (s StageStatus) String() string {
	switch s {
	case StageOK:
		return "ok"
	case StageDegraded:
		return "degraded"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageResult 单个阶段的执行结果，由Loader决定后续策略
type StageResult struct {
	Stage  string
	Status StageStatus
	Err    error
}

// selfTestInput 自检用固定输入，顺序同FeatureOrder
var selfTestInput = []float64{1, 85, 175, 72, 45}

// Loader 模型加载器：定位、反序列化、参数修复、自检、深度修复。
// 任何阶段失败都不会向外抛错，最坏情况返回nil让服务降级运行。
type Loader struct {
	primaryPath  string
	fallbackPath string
	logger       *zap.Logger
}

func NewLoader(primaryPath, fallbackPath string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		primaryPath:  primaryPath,
		fallbackPath: fallbackPath,
		logger:       logger,
	}
}

// Load 加载并修复模型；不可恢复时返回nil，绝不panic或返回error
func (l *Loader) Load() *GBRegressor {
	model, result := l.open()
	l.logStage(result)
	if model == nil {
		return nil
	}

	l.logStage(l.patch(model))

	result = l.selfTest(model)
	l.logStage(result)
	if result.Status != StageOK {
		repaired, repairResult := l.deepRepair(model)
		l.logStage(repairResult)
		model = repaired

		result = l.selfTest(model)
		l.logStage(result)
		if result.Status != StageOK {
			l.logger.Warn("model self-test still failing after deep repair",
				zap.Error(result.Err))
		}
	}

	return model
}

// open 定位并反序列化模型文件，主路径缺失时回退到备用路径
func (l *Loader) open() (*GBRegressor, StageResult) {
	path := l.primaryPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = l.fallbackPath
	}

	model := &GBRegressor{}
	if err := model.Load(path); err != nil {
		return nil, StageResult{
			Stage:  "open",
			Status: StageFailed,
			Err:    fmt.Errorf("load model from %s: %w", path, err),
		}
	}
	l.logger.Info("model loaded", zap.String("path", path))
	return model, StageResult{Stage: "open", Status: StageOK}
}

// patch 应用兼容性修复：剔除GPU参数，强制CPU执行
func (l *Loader) patch(model *GBRegressor) StageResult {
	adapter := NewParamAdapter(model)
	adapter.Apply()
	l.logger.Info("model parameters normalized",
		zap.Any("params", adapter.Normalized()))
	return StageResult{Stage: "patch", Status: StageOK}
}

// selfTest 用固定输入跑一次预测验证模型可用
func (l *Loader) selfTest(model *GBRegressor) StageResult {
	value, err := model.Predict(selfTestInput)
	if err != nil {
		return StageResult{Stage: "self_test", Status: StageFailed, Err: err}
	}
	l.logger.Info("model self-test passed", zap.Float64("prediction", value))
	return StageResult{Stage: "self_test", Status: StageOK}
}

// deepRepair 深度修复：用纯CPU默认参数重建模型，把原booster状态
// 经临时文件移植过去。任何一步失败都返回原模型。
func (l *Loader) deepRepair(model *GBRegressor) (*GBRegressor, StageResult) {
	booster := model.Booster()
	if booster == nil {
		return model, StageResult{
			Stage:  "deep_repair",
			Status: StageDegraded,
			Err:    fmt.Errorf("no booster to transplant"),
		}
	}

	tmp, err := os.CreateTemp("", "booster-*.json")
	if err != nil {
		return model, StageResult{Stage: "deep_repair", Status: StageDegraded, Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := booster.Save(tmpPath); err != nil {
		return model, StageResult{Stage: "deep_repair", Status: StageDegraded, Err: err}
	}

	fresh := NewGBRegressor(CPUSafeDefaults())

	// 虚拟数据拟合仅为触发内部初始化，随后整体覆盖booster状态
	dummyX, dummyY := RandomDummyData(10, len(selfTestInput), 42)
	if err := fresh.Fit(dummyX, dummyY); err != nil {
		return model, StageResult{Stage: "deep_repair", Status: StageDegraded, Err: err}
	}

	if err := fresh.Booster().Load(tmpPath); err != nil {
		return model, StageResult{Stage: "deep_repair", Status: StageDegraded, Err: err}
	}

	return fresh, StageResult{Stage: "deep_repair", Status: StageOK}
}

func (l *Loader) logStage(result StageResult) {
	switch result.Status {
	case StageOK:
		l.logger.Debug("loader stage ok", zap.String("stage", result.Stage))
	case StageDegraded:
		l.logger.Warn("loader stage degraded",
			zap.String("stage", result.Stage), zap.Error(result.Err))
	case StageFailed:
		l.logger.Error("loader stage failed",
			zap.String("stage", result.Stage), zap.Error(result.Err))
	}
}
