package ml

import "strings"

// Predictor 预测器接口：一个5维特征向量映射到躯干脂肪比例
type Predictor interface {
	Predict(features []float64) (float64, error)
}

// FeatureOrder 特征顺序必须与训练时一致
var FeatureOrder = []string{"Female", "Waist", "Height", "Weight", "Age"}

// BuildFeatures 按固定顺序构建特征向量
func BuildFeatures(gender string, waist, height, weight, age float64) []float64 {
	female := 0.0
	if strings.EqualFold(gender, "female") {
		female = 1.0
	}
	return []float64{female, waist, height, weight, age}
}
