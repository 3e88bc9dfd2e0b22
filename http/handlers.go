package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trunkfat/db"
	"trunkfat/ml"
	"trunkfat/monitoring"
)

// 包级共享状态：模型句柄在重载时整体替换，读取方不会看到中间状态
var (
	modelHandle = &ml.Handle{}
	modelLoader *ml.Loader
	monitorHub  *monitoring.Hub
	resultCache *lru.Cache[string, float64]
	logger      = zap.NewNop()
	historyOn   bool
)

// SetModel 替换当前预测器（nil表示模型不可用）
func SetModel(p ml.Predictor) {
	modelHandle.Swap(p)
}

// ModelLoaded 当前是否持有可用模型
func ModelLoaded() bool {
	return modelHandle.Loaded()
}

// ModelHandle 暴露模型句柄（热重载监听器替换模型用）
func ModelHandle() *ml.Handle {
	return modelHandle
}

// SetLoader 设置预测失败时兜底重载用的加载器
func SetLoader(l *ml.Loader) {
	modelLoader = l
}

// SetMonitorHub 设置实时监控中心
func SetMonitorHub(h *monitoring.Hub) {
	monitorHub = h
}

// SetLogger 设置日志器
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

// SetHistoryEnabled 预测历史持久化开关（数据库未初始化时保持关闭）
func SetHistoryEnabled(on bool) {
	historyOn = on
}

// InitResultCache 初始化预测结果缓存（模型确定性，相同特征必得相同结果）
func InitResultCache(size int) error {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, float64](size)
	if err != nil {
		return err
	}
	resultCache = cache
	return nil
}

// PurgeResultCache 清空缓存（模型替换后结果不再有效）
func PurgeResultCache() {
	if resultCache != nil {
		resultCache.Purge()
	}
}

// RegisterHandlers 注册所有处理器
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /", handleIndex)
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("POST /predict", handlePredict)
	mux.HandleFunc("GET /api/history", handleHistory)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/ws/monitor", handleMonitorWS)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "model_not_loaded"
	loaded := modelHandle.Loaded()
	if loaded {
		status = "healthy"
	}
	respondJSON(w, map[string]interface{}{
		"status":       status,
		"model_loaded": loaded,
		"features":     ml.FeatureOrder,
	})
}

func handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	if !historyOn {
		respondError(w, http.StatusServiceUnavailable, "历史记录不可用")
		return
	}

	records, err := db.QueryPredictions(limit)
	if err != nil {
		logger.Error("failed to query prediction history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "查询历史记录失败")
		return
	}

	respondJSON(w, map[string]interface{}{
		"count": len(records),
		"data":  records,
	})
}

func handleMonitorWS(w http.ResponseWriter, r *http.Request) {
	if monitorHub == nil {
		respondError(w, http.StatusServiceUnavailable, "监控服务未启用")
		return
	}
	monitorHub.HandleWebSocket(w, r)
}

// respondJSON 统一JSON响应
func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// respondError 统一错误响应，堆栈只留在服务端日志里
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logger.Warn("failed to encode error response", zap.Error(err))
	}
}
