package analytics

import (
	"sync"
	"sync/atomic"

	"energy-monitor/internal/models"
)

// Result результат проверки одного показания
type Result struct {
	Reading   models.Reading
	Anomaly   models.Anomaly
	IsAnomaly bool
	// HasBaseline false, если для датчика еще нет базовой линии
	HasBaseline bool
}

// Analyzer асинхронно прогоняет поток показаний через Detector пулом воркеров
type Analyzer struct {
	detector    *Detector
	readingChan chan models.Reading
	resultsChan chan Result
	stopChan    chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once

	processed atomic.Int64
	dropped   atomic.Int64
}

// NewAnalyzer создает анализатор с очередью заданного размера
func NewAnalyzer(detector *Detector, queueSize int) *Analyzer {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Analyzer{
		detector:    detector,
		readingChan: make(chan models.Reading, queueSize),
		resultsChan: make(chan Result, queueSize),
		stopChan:    make(chan struct{}),
	}
}

// Detector возвращает детектор анализатора
func (a *Analyzer) Detector() *Detector {
	return a.detector
}

// Start запускает обработчики в goroutines
func (a *Analyzer) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.processReadings()
	}
}

// Stop останавливает воркеры и закрывает канал результатов
func (a *Analyzer) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.wg.Wait()
		close(a.resultsChan)
	})
}

// Submit ставит показание в очередь. Возвращает false, если очередь полна
// или анализатор остановлен.
func (a *Analyzer) Submit(r models.Reading) bool {
	select {
	case <-a.stopChan:
		a.dropped.Add(1)
		return false
	default:
	}

	select {
	case a.readingChan <- r:
		return true
	default:
		a.dropped.Add(1)
		return false
	}
}

// Results возвращает канал с результатами
func (a *Analyzer) Results() <-chan Result {
	return a.resultsChan
}

// processReadings обрабатывает показания из очереди
func (a *Analyzer) processReadings() {
	defer a.wg.Done()

	for {
		select {
		case <-a.stopChan:
			return
		case r := <-a.readingChan:
			result := a.analyze(r)
			a.processed.Add(1)
			select {
			case a.resultsChan <- result:
			case <-a.stopChan:
				return
			}
		}
	}
}

func (a *Analyzer) analyze(r models.Reading) Result {
	_, hasBaseline := a.detector.Baseline(r.SensorID)
	anomaly, ok := a.detector.Classify(r)
	return Result{
		Reading:     r,
		Anomaly:     anomaly,
		IsAnomaly:   ok,
		HasBaseline: hasBaseline,
	}
}

// Stats статистика анализатора
type Stats struct {
	SensorsTracked int     `json:"sensors_tracked"`
	Multiplier     float64 `json:"threshold_multiplier"`
	QueueSize      int     `json:"queue_size"`
	Processed      int64   `json:"processed"`
	Dropped        int64   `json:"dropped"`
}

// GetStats возвращает статистику анализатора
func (a *Analyzer) GetStats() Stats {
	return Stats{
		SensorsTracked: len(a.detector.Baselines()),
		Multiplier:     a.detector.Multiplier(),
		QueueSize:      len(a.readingChan),
		Processed:      a.processed.Load(),
		Dropped:        a.dropped.Load(),
	}
}
