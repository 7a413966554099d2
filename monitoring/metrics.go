package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// Collector 进程内指标收集器
type Collector struct {
	counters map[string]int64
	gauges   map[string]float64
	mu       sync.RWMutex

	startTime time.Time
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]int64),
		gauges:    make(map[string]float64),
		startTime: time.Now(),
	}
}

// Inc 计数器自增
func (c *Collector) Inc(name string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += delta
}

// Set 设置仪表值
func (c *Collector) Set(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = value
}

// Snapshot 返回所有指标与运行时信息
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	counters := make(map[string]int64, len(c.counters))
	for name, value := range c.counters {
		counters[name] = value
	}
	gauges := make(map[string]float64, len(c.gauges))
	for name, value := range c.gauges {
		gauges[name] = value
	}
	c.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"counters":       counters,
		"gauges":         gauges,
		"uptime_seconds": time.Since(c.startTime).Seconds(),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc":     mem.HeapAlloc,
	}
}
