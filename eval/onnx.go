package eval

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/brensch/snekcore/game"
)

const (
	PolicySize = 4
	ValueSize  = 1
)

const (
	DefaultBatchSize    = 64
	DefaultBatchTimeout = time.Millisecond
)

var ErrClosed = errors.New("value net closed")

type ValueNetConfig struct {
	ModelPath    string
	BatchSize    int
	BatchTimeout time.Duration
	// Threads per session. ORT defaults to all cores, which fights with the
	// search workers.
	Threads int
}

// Prediction is one network output. Policy is indexed by game.Direction.
type Prediction struct {
	Policy [PolicySize]float32
	Value  float32
}

type inferenceRequest struct {
	input    *[]float32
	respChan chan inferenceResponse
}

type inferenceResponse struct {
	pred Prediction
	err  error
}

// ValueNet evaluates positions with an ONNX model exported with an "input"
// tensor of shape [N, Channels, Height, Width] and "policy"/"value" outputs.
// Concurrent Score calls are gathered into one batch per run.
type ValueNet struct {
	session      *ort.DynamicAdvancedSession
	cfg          ValueNetConfig
	bounds       Bounds
	requestsChan chan inferenceRequest
	done         chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

var ortInitOnce sync.Once
var ortInitErr error

func NewValueNet(cfg ValueNetConfig, bounds Bounds) (*ValueNet, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}

	if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
		ort.SetSharedLibraryPath(p)
	}
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to init ort: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(cfg.Threads); err != nil {
		return nil, err
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	v := &ValueNet{
		session:      session,
		cfg:          cfg,
		bounds:       bounds,
		requestsChan: make(chan inferenceRequest, cfg.BatchSize*2),
		done:         make(chan struct{}),
	}
	v.wg.Add(1)
	go v.batchLoop()
	return v, nil
}

// Score maps the value head from [-1,1] onto the bounds. Inference errors
// score a draw.
func (v *ValueNet) Score(g *game.Game) float64 {
	if _, ok := g.You(); !ok {
		return v.bounds.Min
	}
	pred, err := v.Predict(g)
	if err != nil {
		log.Warn().Err(err).Str("you", g.YouID).Int32("turn", g.Board.Turn).Msg("value net inference failed")
		return v.bounds.Draw
	}
	return ValueToScore(pred.Value, v.bounds)
}

// ValueToScore maps a value head output in [-1,1] onto b.
func ValueToScore(value float32, b Bounds) float64 {
	return b.Scale((float64(value) + 1) / 2)
}

func (v *ValueNet) Predict(g *game.Game) (Prediction, error) {
	respChan := make(chan inferenceResponse, 1)
	req := inferenceRequest{input: Encode(g), respChan: respChan}
	select {
	case v.requestsChan <- req:
	case <-v.done:
		PutBuffer(req.input)
		return Prediction{}, ErrClosed
	}
	resp := <-respChan
	return resp.pred, resp.err
}

func (v *ValueNet) Close() error {
	v.closeOnce.Do(func() { close(v.done) })
	v.wg.Wait()
	return v.session.Destroy()
}

func (v *ValueNet) batchLoop() {
	defer v.wg.Done()
	batchInput := make([]float32, 0, v.cfg.BatchSize*InputSize)
	requests := make([]inferenceRequest, 0, v.cfg.BatchSize)

	ticker := time.NewTicker(v.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(requests) == 0 {
			return
		}
		v.runBatch(requests, batchInput)
		requests = requests[:0]
		batchInput = batchInput[:0]
	}

	for {
		select {
		case req := <-v.requestsChan:
			requests = append(requests, req)
			batchInput = append(batchInput, (*req.input)...)
			PutBuffer(req.input)
			if len(requests) >= v.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-v.done:
			flush()
			for {
				select {
				case req := <-v.requestsChan:
					PutBuffer(req.input)
					req.respChan <- inferenceResponse{err: ErrClosed}
				default:
					return
				}
			}
		}
	}
}

func (v *ValueNet) runBatch(requests []inferenceRequest, batchInput []float32) {
	n := int64(len(requests))

	inputTensor, err := ort.NewTensor(ort.NewShape(n, Channels, Height, Width), batchInput)
	if err != nil {
		failBatch(requests, err)
		return
	}
	defer inputTensor.Destroy()

	policyTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, PolicySize))
	if err != nil {
		failBatch(requests, err)
		return
	}
	defer policyTensor.Destroy()

	valueTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, ValueSize))
	if err != nil {
		failBatch(requests, err)
		return
	}
	defer valueTensor.Destroy()

	if err := v.session.Run([]ort.Value{inputTensor}, []ort.Value{policyTensor, valueTensor}); err != nil {
		failBatch(requests, err)
		return
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()
	for i, req := range requests {
		var pred Prediction
		copy(pred.Policy[:], policyData[i*PolicySize:(i+1)*PolicySize])
		pred.Value = valueData[i*ValueSize]
		req.respChan <- inferenceResponse{pred: pred}
	}
}

func failBatch(requests []inferenceRequest, err error) {
	for _, req := range requests {
		req.respChan <- inferenceResponse{err: err}
	}
}
