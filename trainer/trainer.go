// Package trainer 实现流式训练的生命周期控制与批次累积
package trainer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"textstream/config"
	"textstream/ml"
)

// Status 生命周期操作的状态标记
type Status string

const (
	StatusStarted        Status = "started"
	StatusAlreadyRunning Status = "already_running"
	StatusStopped        Status = "stopped"
	StatusNotRunning     Status = "not_running"
)

// ErrNotRunning 训练器未启动时入队返回
var ErrNotRunning = errors.New("trainer not started")

// ConfigProvider 返回当前训练配置；每次Start时读取一次
type ConfigProvider func() config.Config

// Archiver 样本与批次结果的持久化接口
type Archiver interface {
	SaveExamples(ctx context.Context, examples []ml.Example) error
	RecordBatch(ctx context.Context, size int, loss float64, trainErr string) error
}

// Publisher 训练事件广播接口
type Publisher interface {
	Publish(eventType string, data interface{})
}

// Stats 训练统计
type Stats struct {
	UnitsEnqueued    int64     `json:"units_enqueued"`
	ExamplesEnqueued int64     `json:"examples_enqueued"`
	BatchesTrained   int64     `json:"batches_trained"`
	FailedBatches    int64     `json:"failed_batches"`
	LastLoss         float64   `json:"last_loss"`
	LastTrain        time.Time `json:"last_train"`
}

// StreamTrainer 拥有至多一个活跃的学习器和消费循环。
// Running期间样本按到达顺序累积成批次顺序训练；Stop时排空缓冲、
// 训练最后一个不满批次并保存模型。
type StreamTrainer struct {
	provider ConfigProvider

	mu       sync.RWMutex
	running  bool
	cfg      config.Config // 本轮Running的配置快照
	learner  ml.Learner
	queue    chan []ml.Example
	stopChan chan struct{}
	wg       sync.WaitGroup

	stats     Stats
	statsLock sync.RWMutex

	archive   Archiver
	publisher Publisher

	// 测试替换点
	newLearner func(config.Config) (ml.Learner, error)
}

// New 创建流式训练器；archive和publisher可为nil
func New(provider ConfigProvider, archive Archiver, publisher Publisher) *StreamTrainer {
	return &StreamTrainer{
		provider:   provider,
		archive:    archive,
		publisher:  publisher,
		newLearner: ml.NewLearner,
	}
}

// Start 启动训练：构造学习器并拉起消费循环。已在运行则是no-op。
func (st *StreamTrainer) Start() (Status, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.running {
		return StatusAlreadyRunning, nil
	}

	cfg := st.provider()
	learner, err := st.newLearner(cfg)
	if err != nil {
		return "", fmt.Errorf("init learner failed: %w", err)
	}

	st.cfg = cfg
	st.learner = learner
	st.queue = make(chan []ml.Example, cfg.QueueSize)
	st.stopChan = make(chan struct{})
	st.running = true

	st.statsLock.Lock()
	st.stats = Stats{}
	st.statsLock.Unlock()

	st.wg.Add(1)
	go st.consumeLoop()

	zap.S().Infof("stream trainer started (batch_size=%d model_dir=%s)", cfg.BatchSize, cfg.ModelDir)
	st.publish("trainer_started", map[string]interface{}{"batch_size": cfg.BatchSize})

	return StatusStarted, nil
}

// Stop 停止训练：等待循环排空并做最后一次训练，然后保存模型。
// 保存失败不阻止状态切换到Stopped，错误原样上报。
func (st *StreamTrainer) Stop() (Status, error) {
	st.mu.Lock()
	if !st.running {
		st.mu.Unlock()
		return StatusNotRunning, nil
	}
	st.running = false
	close(st.stopChan)
	learner, modelDir := st.learner, st.cfg.ModelDir
	st.mu.Unlock()

	// 等待消费循环优雅退出（上界：一个轮询周期+一次训练调用）
	st.wg.Wait()

	var saveErr error
	if err := learner.Save(modelDir); err != nil {
		saveErr = fmt.Errorf("persist model to %s failed: %w", modelDir, err)
		zap.S().Errorf("stream trainer stopped with save failure: %v", saveErr)
	} else {
		zap.S().Infof("stream trainer stopped, model saved to %s", modelDir)
	}

	st.mu.Lock()
	st.learner = nil
	st.queue = nil
	st.mu.Unlock()

	st.publish("trainer_stopped", map[string]interface{}{"model_dir": modelDir})

	return StatusStopped, saveErr
}

// IsRunning 无阻塞状态查询
func (st *StreamTrainer) IsRunning() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.running
}

// Enqueue 把一个已解析的样本单元放入摄取通道。
// 队列有界；满时阻塞生产者直到有空位或训练器停止。
func (st *StreamTrainer) Enqueue(examples []ml.Example) error {
	st.mu.RLock()
	if !st.running {
		st.mu.RUnlock()
		return ErrNotRunning
	}
	queue, stopChan := st.queue, st.stopChan
	st.mu.RUnlock()

	select {
	case queue <- examples:
	case <-stopChan:
		return ErrNotRunning
	}

	st.statsLock.Lock()
	st.stats.UnitsEnqueued++
	st.stats.ExamplesEnqueued += int64(len(examples))
	st.statsLock.Unlock()

	return nil
}

// GetStats 返回统计快照
func (st *StreamTrainer) GetStats() Stats {
	st.statsLock.RLock()
	defer st.statsLock.RUnlock()
	return st.stats
}

// consumeLoop 单协程消费循环：带超时地等待入队单元，超过batch_size
// 就按FIFO切出一个批次训练；收到停止信号后排空并训练剩余缓冲。
func (st *StreamTrainer) consumeLoop() {
	defer st.wg.Done()

	var buffer []ml.Example
	timer := time.NewTimer(st.cfg.PollInterval())
	defer timer.Stop()

	for {
		timer.Reset(st.cfg.PollInterval())

		select {
		case <-st.stopChan:
			buffer = append(buffer, st.drainQueue()...)
			if len(buffer) > 0 {
				st.trainStep(buffer)
			}
			return
		case unit := <-st.queue:
			buffer = append(buffer, unit...)
		case <-timer.C:
			// 超时空转，保证停止信号能被及时观察到
		}

		if len(buffer) >= st.cfg.BatchSize {
			batch := buffer[:st.cfg.BatchSize:st.cfg.BatchSize]
			buffer = buffer[st.cfg.BatchSize:]
			st.trainStep(batch)
		}
	}
}

// drainQueue 非阻塞取走通道里积压的单元
func (st *StreamTrainer) drainQueue() []ml.Example {
	var drained []ml.Example
	for {
		select {
		case unit := <-st.queue:
			drained = append(drained, unit...)
		default:
			return drained
		}
	}
}

// trainStep 执行一次训练调用；单批失败只记录，不中断循环
func (st *StreamTrainer) trainStep(batch []ml.Example) {
	if len(batch) == 0 {
		return
	}

	st.archiveExamples(batch)

	loss, err := st.learner.TrainBatch(batch)
	if err != nil {
		zap.S().Errorf("train step failed (size=%d): %v", len(batch), err)

		st.statsLock.Lock()
		st.stats.FailedBatches++
		st.statsLock.Unlock()

		st.recordBatch(len(batch), 0, err.Error())
		st.publish("batch_failed", map[string]interface{}{"size": len(batch), "error": err.Error()})
		return
	}

	zap.S().Infof("trained batch size=%d loss=%.4f", len(batch), loss)

	st.statsLock.Lock()
	st.stats.BatchesTrained++
	st.stats.LastLoss = loss
	st.stats.LastTrain = time.Now()
	st.statsLock.Unlock()

	st.recordBatch(len(batch), loss, "")
	st.publish("batch_trained", map[string]interface{}{"size": len(batch), "loss": loss})
}

func (st *StreamTrainer) archiveExamples(batch []ml.Example) {
	if st.archive == nil {
		return
	}
	if err := st.archive.SaveExamples(context.Background(), batch); err != nil {
		zap.S().Warnf("archive examples failed: %v", err)
	}
}

func (st *StreamTrainer) recordBatch(size int, loss float64, trainErr string) {
	if st.archive == nil {
		return
	}
	if err := st.archive.RecordBatch(context.Background(), size, loss, trainErr); err != nil {
		zap.S().Warnf("record batch failed: %v", err)
	}
}

func (st *StreamTrainer) publish(eventType string, data interface{}) {
	if st.publisher == nil {
		return
	}
	st.publisher.Publish(eventType, data)
}
