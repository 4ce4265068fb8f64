package classifier

import (
	"errors"
	"fmt"
	"image"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

// Model input contract for the liveness artifact: one 150x150 RGB crop,
// channels last, intensities rescaled to [0,1]. The output is a single
// scalar where values near 1 indicate spoof.
const (
	InputSize  = 150
	inputName  = "input"
	outputName = "output"
)

const (
	defaultPoolSize = 4
	acquireTimeout  = 5 * time.Second
)

// Config controls where the model artifact is loaded from and how many
// inference sessions are kept ready.
type Config struct {
	ModelPath     string
	SharedLibPath string
	PoolSize      int
}

// ONNXClassifier scores face crops with a pool of ONNX Runtime sessions.
// A session with bound tensors is not safe for concurrent Run calls, so
// every Score checks a session out of the pool for its duration. The
// pool serves concurrent requests; it never batches them.
type ONNXClassifier struct {
	sessions chan *modelSession
	size     int
}

type modelSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// New initializes the ONNX Runtime environment and preloads the session
// pool. Any failure here means the service cannot score faces and should
// abort startup.
func New(cfg Config) (*ONNXClassifier, error) {
	if cfg.SharedLibPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx environment: %w", err)
		}
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = defaultPoolSize
	}

	c := &ONNXClassifier{
		sessions: make(chan *modelSession, size),
		size:     size,
	}
	for i := 0; i < size; i++ {
		sess, err := newModelSession(cfg.ModelPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("initialize session %d: %w", i, err)
		}
		c.sessions <- sess
	}
	return c, nil
}

func newModelSession(modelPath string) (*modelSession, error) {
	inputShape := ort.NewShape(1, InputSize, InputSize, 3)
	outputShape := ort.NewShape(1, 1)

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &modelSession{session: session, input: input, output: output}, nil
}

// Score runs the classifier over one face crop and returns the raw spoof
// probability.
func (c *ONNXClassifier) Score(face image.Image) (float32, error) {
	sess, err := c.acquire()
	if err != nil {
		return 0, err
	}
	defer c.release(sess)

	if err := PrepareInput(face, sess.input.GetData()); err != nil {
		return 0, err
	}
	if err := sess.session.Run(); err != nil {
		return 0, fmt.Errorf("liveness inference: %w", err)
	}

	out := sess.output.GetData()
	if len(out) == 0 {
		return 0, errors.New("model produced no output")
	}
	return out[0], nil
}

func (c *ONNXClassifier) acquire() (*modelSession, error) {
	select {
	case sess := <-c.sessions:
		return sess, nil
	case <-time.After(acquireTimeout):
		return nil, errors.New("timed out waiting for a free inference session")
	}
}

func (c *ONNXClassifier) release(sess *modelSession) {
	c.sessions <- sess
}

// Close destroys the pooled sessions and tears down the runtime
// environment.
func (c *ONNXClassifier) Close() {
	for {
		select {
		case sess := <-c.sessions:
			sess.destroy()
		default:
			ort.DestroyEnvironment()
			return
		}
	}
}

func (s *modelSession) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}
