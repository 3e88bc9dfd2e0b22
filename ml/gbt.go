package ml

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"os"
)

// GBRegressor 梯度提升回归模型（兼容外部训练工具导出的JSON格式）
type GBRegressor struct {
	booster *Booster
	params  map[string]string
}

// Booster 底层树集合，可独立于模型参数序列化
type Booster struct {
	BaseScore float64           `json:"base_score"`
	Trees     []RegTree         `json:"trees"`
	Params    map[string]string `json:"params,omitempty"`
}

// SetParam 设置booster级别参数
func (b *Booster) SetParam(key, value string) {
	if b.Params == nil {
		b.Params = make(map[string]string)
	}
	b.Params[key] = value
}

type RegTree struct {
	Nodes []RegNode `json:"nodes"`
}

type RegNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

type modelArtifact struct {
	Params  map[string]string `json:"params"`
	Booster *Booster          `json:"booster"`
}

// NewGBRegressor 用给定参数创建未训练的模型
func NewGBRegressor(params map[string]string) *GBRegressor {
	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return &GBRegressor{params: copied}
}

func (m *GBRegressor) Predict(features []float64) (float64, error) {
	if m.booster == nil || len(m.booster.Trees) == 0 {
		return 0, errors.New("model not trained")
	}
	sum := m.booster.BaseScore
	for _, tree := range m.booster.Trees {
		value, err := tree.eval(features)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum, nil
}

func (t *RegTree) eval(features []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, errors.New("empty tree")
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

// Params 返回模型参数的副本
func (m *GBRegressor) Params() map[string]string {
	copied := make(map[string]string, len(m.params))
	for k, v := range m.params {
		copied[k] = v
	}
	return copied
}

func (m *GBRegressor) SetParam(key, value string) {
	if m.params == nil {
		m.params = make(map[string]string)
	}
	m.params[key] = value
}

// Booster 暴露底层句柄（深度修复时移植状态用）
func (m *GBRegressor) Booster() *Booster {
	return m.booster
}

func (m *GBRegressor) SetBooster(b *Booster) {
	m.booster = b
}

// Fit 用平方损失做梯度提升：以均值为基准，逐轮对残差拟合回归树
func (m *GBRegressor) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}

	rounds := 10
	learningRate := 0.3
	maxDepth := 3

	base := mean(targets)
	booster := &Booster{BaseScore: base}

	residuals := make([]float64, len(targets))
	for i, target := range targets {
		residuals[i] = target - base
	}

	for round := 0; round < rounds; round++ {
		nodes := buildRegNodes(features, residuals, 0, maxDepth, learningRate)
		tree := RegTree{Nodes: nodes}
		for i, feature := range features {
			value, err := tree.eval(feature)
			if err != nil {
				return err
			}
			residuals[i] -= value
		}
		booster.Trees = append(booster.Trees, tree)
	}

	m.booster = booster
	return nil
}

// Save 保存完整模型（参数+booster）
func (m *GBRegressor) Save(path string) error {
	if m.booster == nil {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(modelArtifact{Params: m.params, Booster: m.booster})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load 加载完整模型
func (m *GBRegressor) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var artifact modelArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return err
	}
	if artifact.Booster == nil {
		return errors.New("artifact has no booster")
	}
	m.params = artifact.Params
	m.booster = artifact.Booster
	return nil
}

// Save 仅保存booster状态
func (b *Booster) Save(path string) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load 仅加载booster状态
func (b *Booster) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded Booster
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	*b = loaded
	return nil
}

func buildRegNodes(features [][]float64, residuals []float64, depth, maxDepth int, learningRate float64) []RegNode {
	leafValue := learningRate * mean(residuals)
	if depth >= maxDepth || len(residuals) < 2 {
		return []RegNode{leafNode(leafValue)}
	}

	bestFeature, threshold, ok := findBestRegSplit(features, residuals)
	if !ok {
		return []RegNode{leafNode(leafValue)}
	}

	leftFeatures, leftResiduals, rightFeatures, rightResiduals := splitRegData(features, residuals, bestFeature, threshold)
	if len(leftResiduals) == 0 || len(rightResiduals) == 0 {
		return []RegNode{leafNode(leafValue)}
	}

	leftNodes := buildRegNodes(leftFeatures, leftResiduals, depth+1, maxDepth, learningRate)
	rightNodes := buildRegNodes(rightFeatures, rightResiduals, depth+1, maxDepth, learningRate)

	root := RegNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		IsLeaf:     false,
	}

	nodes := make([]RegNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func leafNode(value float64) RegNode {
	return RegNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      value,
		IsLeaf:     true,
	}
}

func findBestRegSplit(features [][]float64, residuals []float64) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := median(values)
		left, right := splitResiduals(features, residuals, featureIdx, threshold)
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		score := weightedVariance(left, right)
		if score < bestScore {
			bestScore = score
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitRegData(features [][]float64, residuals []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	leftFeatures := make([][]float64, 0)
	leftResiduals := make([]float64, 0)
	rightFeatures := make([][]float64, 0)
	rightResiduals := make([]float64, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftResiduals = append(leftResiduals, residuals[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightResiduals = append(rightResiduals, residuals[i])
		}
	}
	return leftFeatures, leftResiduals, rightFeatures, rightResiduals
}

func splitResiduals(features [][]float64, residuals []float64, featureIdx int, threshold float64) ([]float64, []float64) {
	left := make([]float64, 0)
	right := make([]float64, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			left = append(left, residuals[i])
		} else {
			right = append(right, residuals[i])
		}
	}
	return left, right
}

func weightedVariance(left, right []float64) float64 {
	leftWeight := float64(len(left))
	rightWeight := float64(len(right))
	total := leftWeight + rightWeight
	return (leftWeight/total)*variance(left) + (rightWeight/total)*variance(right)
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return sum / float64(len(values))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sortFloats(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sortFloats(values []float64) {
	for i := 1; i < len(values); i++ {
		j := i
		for j > 0 && values[j-1] > values[j] {
			values[j-1], values[j] = values[j], values[j-1]
			j--
		}
	}
}

// RandomDummyData 生成随机虚拟数据（仅用于深度修复时触发内部初始化）
func RandomDummyData(rows, cols int, seed int64) ([][]float64, []float64) {
	rnd := rand.New(rand.NewSource(seed))
	features := make([][]float64, rows)
	targets := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = rnd.Float64()
		}
		features[i] = row
		targets[i] = rnd.Float64()
	}
	return features, targets
}
