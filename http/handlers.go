// Package http 提供流式训练与推理的API处理器
package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"textstream/monitoring"
	"textstream/predictor"
	"textstream/store"
	"textstream/trainer"
)

// App 请求处理器依赖的显式上下文；测试中可构造多个隔离实例
type App struct {
	Trainer   *trainer.StreamTrainer
	Predictor *predictor.Manager
	Store     *store.Store          // 可为nil
	Hub       *monitoring.Hub       // 可为nil
	Metrics   *monitoring.Collector // 可为nil
}

// RegisterHandlers 注册所有API处理器
func RegisterHandlers(mux *http.ServeMux, app *App) {
	mux.HandleFunc("POST /stream/start", app.handleStreamStart)
	mux.HandleFunc("POST /stream/stop", app.handleStreamStop)
	mux.HandleFunc("GET /stream/status", app.handleStreamStatus)
	mux.HandleFunc("POST /stream/train", app.handleStreamTrain)

	mux.HandleFunc("POST /predict", app.handlePredict)
	mux.HandleFunc("POST /predictor/start", app.handlePredictorStart)
	mux.HandleFunc("POST /predictor/stop", app.handlePredictorStop)

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/metrics", app.handleMetrics)
	mux.HandleFunc("GET /api/training/history", app.handleTrainingHistory)

	if app.Hub != nil {
		mux.HandleFunc("GET /api/ws/training", app.Hub.ServeWS)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *App) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	status, err := app.Trainer.Start()
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]trainer.Status{"status": status})
}

func (app *App) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	status, err := app.Trainer.Stop()
	response := map[string]interface{}{"status": status}
	if err != nil {
		// 保存失败不影响状态切换，原样上报
		response["error"] = err.Error()
	}
	respondJSON(w, http.StatusOK, response)
}

func (app *App) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"running": app.Trainer.IsRunning(),
		"stats":   app.Trainer.GetStats(),
	})
}

// handleStreamTrain 接收原始字节流，组装后按JSON解析并入队
func (app *App) handleStreamTrain(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read payload"})
		return
	}

	examples, err := trainer.ParsePayload(body)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if err := app.Trainer.Enqueue(examples); err != nil {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "trainer_not_started"})
		return
	}

	if app.Metrics != nil {
		app.Metrics.Inc("examples_ingested", int64(len(examples)))
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (app *App) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	results, err := app.Predictor.Predict(req)
	if err != nil {
		switch {
		case errors.Is(err, predictor.ErrTrainingActive):
			respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, predictor.ErrInvalidRequest), errors.Is(err, predictor.ErrNotLoaded):
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	if app.Metrics != nil {
		app.Metrics.Inc("predictions_served", int64(len(results)))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (app *App) handlePredictorStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelDir string `json:"model_dir"`
	}
	if r.Body != nil {
		// body可选；解析失败按未提供处理
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	info, err := app.Predictor.Load(req.ModelDir)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (app *App) handlePredictorStop(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, app.Predictor.Unload())
}

func (app *App) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]interface{}{
		"trainer": app.Trainer.GetStats(),
		"running": app.Trainer.IsRunning(),
	}
	if app.Metrics != nil {
		snapshot["process"] = app.Metrics.Snapshot()
	}
	if app.Store != nil {
		if count, err := app.Store.CountExamples(r.Context()); err == nil {
			snapshot["archived_examples"] = count
		}
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (app *App) handleTrainingHistory(w http.ResponseWriter, r *http.Request) {
	if app.Store == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "history not available"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := app.Store.RecentBatches(r.Context(), limit)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"batches": records})
}

// decodeBody 组装请求体；旧采集端会发GBK编码的载荷，按charset转码
func decodeBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	if _, params, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		switch strings.ToLower(params["charset"]) {
		case "gbk", "gb2312", "gb18030":
			decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), body)
			if err != nil {
				return nil, err
			}
			return decoded, nil
		}
	}

	return body, nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
