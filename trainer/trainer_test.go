package trainer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"textstream/config"
	"textstream/ml"
)

type fakeLearner struct {
	mu       sync.Mutex
	batches  [][]ml.Example
	trainErr error
	saveErr  error
	saved    int
}

func (f *fakeLearner) TrainBatch(examples []ml.Example) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trainErr != nil {
		return 0, f.trainErr
	}
	batch := append([]ml.Example(nil), examples...)
	f.batches = append(f.batches, batch)
	return 0.5, nil
}

func (f *fakeLearner) Save(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	return f.saveErr
}

func (f *fakeLearner) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (f *fakeLearner) allExamples() []ml.Example {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []ml.Example
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func testConfig(batchSize int) config.Config {
	cfg := config.Default()
	cfg.BatchSize = batchSize
	cfg.PollIntervalMs = 10
	return cfg
}

func newTestTrainer(t *testing.T, batchSize int) (*StreamTrainer, *fakeLearner) {
	t.Helper()
	learner := &fakeLearner{}
	st := New(func() config.Config { return testConfig(batchSize) }, nil, nil)
	st.newLearner = func(config.Config) (ml.Learner, error) {
		return learner, nil
	}
	return st, learner
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartTwice(t *testing.T) {
	st, _ := newTestTrainer(t, 2)

	status, err := st.Start()
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if status != StatusStarted {
		t.Fatalf("expected started, got %s", status)
	}

	status, err = st.Start()
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if status != StatusAlreadyRunning {
		t.Fatalf("expected already_running, got %s", status)
	}

	if _, err := st.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestStopWhenStopped(t *testing.T) {
	st, _ := newTestTrainer(t, 2)

	status, err := st.Stop()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if status != StatusNotRunning {
		t.Fatalf("expected not_running, got %s", status)
	}
}

func TestEnqueueWhenStopped(t *testing.T) {
	st, _ := newTestTrainer(t, 2)

	err := st.Enqueue([]ml.Example{{Text: "hello", Label: 1}})
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestThresholdBatchAndFinalDrain(t *testing.T) {
	st, learner := newTestTrainer(t, 2)

	if _, err := st.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	examples := []ml.Example{
		{Text: "one", Label: 0},
		{Text: "two", Label: 1},
		{Text: "three", Label: 0},
	}
	if err := st.Enqueue(examples); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// 到达阈值后立即训练一个大小为2的批次，剩1条在缓冲
	waitFor(t, func() bool { return len(learner.batchSizes()) == 1 })
	if sizes := learner.batchSizes(); sizes[0] != 2 {
		t.Fatalf("expected first batch of 2, got %d", sizes[0])
	}

	status, err := st.Stop()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if status != StatusStopped {
		t.Fatalf("expected stopped, got %s", status)
	}

	// 停止时排空：最后一个批次恰好是剩下的1条
	sizes := learner.batchSizes()
	if len(sizes) != 2 || sizes[1] != 1 {
		t.Fatalf("expected final batch of 1, got %v", sizes)
	}
	if got := learner.allExamples()[2]; got.Text != "three" {
		t.Fatalf("final batch has wrong example: %+v", got)
	}
}

func TestNoLossNoDuplication(t *testing.T) {
	st, learner := newTestTrainer(t, 4)

	if _, err := st.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var want []ml.Example
	for i := 0; i < 25; i++ {
		example := ml.Example{Text: "sample", Label: i}
		want = append(want, example)
		if err := st.Enqueue([]ml.Example{example}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}

	if _, err := st.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	got := learner.allExamples()
	if len(got) != len(want) {
		t.Fatalf("expected %d examples trained, got %d", len(want), len(got))
	}
	// 单个Running周期内严格按到达顺序
	for i := range want {
		if got[i].Label != want[i].Label {
			t.Fatalf("example %d out of order: got label %d", i, got[i].Label)
		}
	}
}

func TestLearnerFailureDoesNotStopLoop(t *testing.T) {
	st, learner := newTestTrainer(t, 2)
	learner.trainErr = errors.New("boom")

	if _, err := st.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := st.Enqueue([]ml.Example{{Text: "a", Label: 0}, {Text: "b", Label: 1}}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	waitFor(t, func() bool { return st.GetStats().FailedBatches >= 1 })

	// 失败后循环仍在运行，后续批次继续提交
	learner.mu.Lock()
	learner.trainErr = nil
	learner.mu.Unlock()

	if err := st.Enqueue([]ml.Example{{Text: "c", Label: 0}, {Text: "d", Label: 1}}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	waitFor(t, func() bool { return len(learner.batchSizes()) == 1 })

	if _, err := st.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestStopPersistsAndReportsSaveFailure(t *testing.T) {
	st, learner := newTestTrainer(t, 2)
	learner.saveErr = errors.New("disk full")

	if _, err := st.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	status, err := st.Stop()
	if status != StatusStopped {
		t.Fatalf("expected stopped even on save failure, got %s", status)
	}
	if err == nil {
		t.Fatal("expected persistence error to be reported")
	}
	if st.IsRunning() {
		t.Fatal("trainer should not be running after stop")
	}
	if learner.saved != 1 {
		t.Fatalf("expected exactly one save attempt, got %d", learner.saved)
	}
}

func TestIsRunning(t *testing.T) {
	st, _ := newTestTrainer(t, 2)

	if st.IsRunning() {
		t.Fatal("new trainer should not be running")
	}
	if _, err := st.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !st.IsRunning() {
		t.Fatal("trainer should be running after start")
	}
	if _, err := st.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if st.IsRunning() {
		t.Fatal("trainer should not be running after stop")
	}
}
