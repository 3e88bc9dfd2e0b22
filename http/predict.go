package http

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/width"

	"trunkfat/advice"
	"trunkfat/db"
	"trunkfat/ml"
	"trunkfat/monitoring"
)

// requiredFields 按校验顺序排列，第一个失败的检查决定错误消息
var requiredFields = []string{"gender", "waist", "height", "weight", "age"}

type numericRange struct {
	field   string
	min     float64
	max     float64
	message string
}

var numericRanges = []numericRange{
	{"waist", 50, 200, "腰围应在50-200cm之间"},
	{"height", 100, 250, "身高应在100-250cm之间"},
	{"weight", 30, 200, "体重应在30-200kg之间"},
	{"age", 18, 100, "年龄应在18-100岁之间"},
}

// fixed1 保证序列化时恒定一位小数
type fixed1 float64

func (f fixed1) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', 1, 64)), nil
}

type predictResponse struct {
	Success            bool                  `json:"success"`
	TrunkFatPercentage fixed1                `json:"trunk_fat_percentage"`
	Interpretation     advice.Interpretation `json:"interpretation"`
}

// predictionEvent 推送到监控中心的预测事件
type predictionEvent struct {
	Features  []float64 `json:"features"`
	TrunkFat  float64   `json:"trunk_fat"`
	RiskLevel string    `json:"risk_level"`
	Cached    bool      `json:"cached"`
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		monitoring.PredictionsTotal.WithLabelValues("validation_error").Inc()
		respondError(w, http.StatusBadRequest, "无效的JSON请求体")
		return
	}

	// 1. 必需字段
	for _, field := range requiredFields {
		if _, ok := data[field]; !ok {
			monitoring.PredictionsTotal.WithLabelValues("validation_error").Inc()
			respondError(w, http.StatusBadRequest, fmt.Sprintf("缺少必要字段: %s", field))
			return
		}
	}

	// 2. 数值解析
	values := make(map[string]float64, len(numericRanges))
	for _, nr := range numericRanges {
		value, err := parseNumber(data[nr.field])
		if err != nil {
			monitoring.PredictionsTotal.WithLabelValues("validation_error").Inc()
			respondError(w, http.StatusBadRequest, "请输入有效的数值")
			return
		}
		values[nr.field] = value
	}

	// 3. 范围检查
	for _, nr := range numericRanges {
		value := values[nr.field]
		// 写成肯定形式使NaN也被拒绝
		if !(value >= nr.min && value <= nr.max) {
			monitoring.PredictionsTotal.WithLabelValues("validation_error").Inc()
			respondError(w, http.StatusBadRequest, nr.message)
			return
		}
	}

	gender := fmt.Sprint(data["gender"])
	features := ml.BuildFeatures(gender, values["waist"], values["height"], values["weight"], values["age"])

	predictor := modelHandle.Get()
	if predictor == nil {
		monitoring.PredictionsTotal.WithLabelValues("model_unavailable").Inc()
		respondError(w, http.StatusInternalServerError, "模型未加载，请检查服务器配置")
		return
	}

	cacheKey := featureKey(features)
	if resultCache != nil {
		if cached, ok := resultCache.Get(cacheKey); ok {
			monitoring.CacheHits.Inc()
			monitoring.PredictionsTotal.WithLabelValues("ok").Inc()
			finishPredict(w, r, gender, values, features, cached, true)
			return
		}
	}

	raw, err := predictor.Predict(features)
	if err != nil {
		logger.Warn("prediction failed, attempting model reload",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))

		// 紧急修复：重载模型并重试一次
		raw, err = reloadAndRetry(features)
		if err != nil {
			monitoring.PredictionsTotal.WithLabelValues("prediction_error").Inc()
			respondError(w, http.StatusInternalServerError, "模型修复失败")
			return
		}
	}

	result := roundTo1(clamp(raw, 5.0, 50.0))
	if resultCache != nil {
		resultCache.Add(cacheKey, result)
	}

	monitoring.PredictionsTotal.WithLabelValues("ok").Inc()
	monitoring.PredictionValue.Observe(result)
	finishPredict(w, r, gender, values, features, result, false)
}

// reloadAndRetry 预测异常时的唯一兜底：重载一次模型再试一次
func reloadAndRetry(features []float64) (float64, error) {
	monitoring.ModelReloads.WithLabelValues("predict_failure").Inc()

	if modelLoader == nil {
		return 0, fmt.Errorf("no loader configured")
	}
	model := modelLoader.Load()
	if model == nil {
		modelHandle.Swap(nil)
		PurgeResultCache()
		return 0, fmt.Errorf("model reload failed")
	}
	modelHandle.Swap(model)
	PurgeResultCache()

	return model.Predict(features)
}

func finishPredict(w http.ResponseWriter, r *http.Request, gender string, values map[string]float64, features []float64, result float64, cached bool) {
	interpretation := advice.Interpret(result)

	if historyOn {
		record := db.PredictionRecord{
			Gender:    gender,
			Waist:     values["waist"],
			Height:    values["height"],
			Weight:    values["weight"],
			Age:       values["age"],
			TrunkFat:  result,
			RiskLevel: interpretation.RiskLevel,
		}
		if err := db.SavePrediction(record); err != nil {
			logger.Warn("failed to persist prediction", zap.Error(err))
		}
	}

	if monitorHub != nil {
		monitorHub.Publish(monitoring.PredictionEvent, predictionEvent{
			Features:  features,
			TrunkFat:  result,
			RiskLevel: interpretation.RiskLevel,
			Cached:    cached,
		})
	}

	logger.Info("prediction served",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Float64s("features", features),
		zap.Float64("trunk_fat", result),
		zap.Bool("cached", cached))

	respondJSON(w, predictResponse{
		Success:            true,
		TrunkFatPercentage: fixed1(result),
		Interpretation:     interpretation,
	})
}

// parseNumber 接受JSON数字或数字字符串；字符串先折叠全角字符再解析
func parseNumber(value interface{}) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		return v.Float64()
	case float64:
		return v, nil
	case string:
		normalized := strings.TrimSpace(width.Narrow.String(v))
		return strconv.ParseFloat(normalized, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", value)
	}
}

func featureKey(features []float64) string {
	parts := make([]string, len(features))
	for i, f := range features {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

func roundTo1(value float64) float64 {
	return math.Round(value*10) / 10
}
