package ml

// gpu相关参数在纯CPU环境下不可用，读取时必须剔除
var gpuParams = []string{"gpu_id", "n_gpus", "device"}

// cpu强制参数
var cpuForcedParams = map[string]string{
	"predictor":   "cpu_predictor",
	"tree_method": "hist",
}

// ParamAdapter 参数适配层：在不改动模型自身行为的前提下，
// 对外提供归一化后的参数视图，并把CPU强制参数写回模型
type ParamAdapter struct {
	model *GBRegressor
}

func NewParamAdapter(model *GBRegressor) *ParamAdapter {
	return &ParamAdapter{model: model}
}

// Normalized 返回剔除GPU参数、强制CPU执行后的参数视图
func (a *ParamAdapter) Normalized() map[string]string {
	params := a.model.Params()
	for _, key := range gpuParams {
		delete(params, key)
	}
	for key, value := range cpuForcedParams {
		params[key] = value
	}
	return params
}

// Apply 把CPU强制参数直接写到模型和底层booster上（尽力而为，不报错）
func (a *ParamAdapter) Apply() {
	for key, value := range cpuForcedParams {
		a.model.SetParam(key, value)
	}
	a.model.SetParam("device", "cpu")
	if booster := a.model.Booster(); booster != nil {
		booster.SetParam("predictor", "cpu_predictor")
	}
}

// CPUSafeDefaults 深度修复时重建模型用的纯CPU默认参数
func CPUSafeDefaults() map[string]string {
	return map[string]string{
		"predictor":    "cpu_predictor",
		"tree_method":  "hist",
		"n_jobs":       "1",
		"random_state": "42",
	}
}
