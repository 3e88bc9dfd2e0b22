// Package advice 根据躯干脂肪比例给出健康解读
package advice

import "fmt"

// RiskCutoff 代谢性疾病风险临界值（临床研究）
const RiskCutoff = 28.6

// Interpretation 预测结果的健康解读，是百分比的纯函数
type Interpretation struct {
	RiskLevel      string   `json:"risk_level"`
	Advice         string   `json:"advice"`
	DetailedAdvice string   `json:"detailed_advice"`
	CutoffNote     string   `json:"cutoff_note"`
	Recommendation []string `json:"recommendation"`
}

// Interpret 由躯干脂肪比例生成解读，无副作用
func Interpret(percentage float64) Interpretation {
	risk := "较低"
	text := "您的躯干脂肪比例在健康范围内。继续保持均衡饮食和规律运动。"
	if percentage >= RiskCutoff {
		risk = "较高"
		text = "您的躯干脂肪比例提示代谢性疾病风险增高。建议咨询医生，调整饮食结构并增加有氧运动。"
	}

	var detailed string
	switch {
	case percentage < 20:
		detailed = "优秀！您的身体成分非常健康。"
	case percentage < 25:
		detailed = "良好！继续保持当前的生活方式。"
	case percentage < RiskCutoff:
		detailed = "注意！接近风险临界值，建议定期监测。"
	case percentage < 35:
		detailed = "关注！建议进行详细的身体成分分析，并制定改善计划。"
	default:
		detailed = "重要提示！强烈建议寻求专业医疗指导。"
	}

	return Interpretation{
		RiskLevel:      risk,
		Advice:         text,
		DetailedAdvice: detailed,
		CutoffNote: fmt.Sprintf("根据临床研究，躯干脂肪比例 ≥ %.1f%% 被视为代谢性疾病的风险临界值。您的结果是 %.1f%%。",
			RiskCutoff, percentage),
		Recommendation: recommendations(percentage),
	}
}

// recommendations 各条件相互独立，满足多条时累加建议（保留原始行为）
func recommendations(percentage float64) []string {
	items := make([]string, 0, 8)
	if percentage >= RiskCutoff {
		items = append(items,
			"增加有氧运动频率，每周至少150分钟中等强度运动",
			"减少精制碳水化合物和饱和脂肪的摄入",
			"增加膳食纤维和优质蛋白质比例",
			"考虑定期监测空腹血糖和血脂")
	}
	if percentage >= 35 {
		items = append(items,
			"强烈建议进行医学营养治疗咨询",
			"考虑进行口服葡萄糖耐量试验")
	}
	if percentage < 25 {
		items = append(items,
			"继续保持当前的健康生活习惯",
			"定期进行身体成分监测")
	}
	return items
}
