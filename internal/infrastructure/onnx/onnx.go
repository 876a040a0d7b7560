// Package onnx загружает модель извлечения признаков в ONNX Runtime (CPU, полная оптимизация графа).
package onnx

import (
	"fmt"
	"sync"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	ort "github.com/yalue/onnxruntime_go"
)

// envMu защищает инициализацию окружения ONNX Runtime, общего для процесса.
var envMu sync.Mutex

type Config struct {
	SharedLibraryPath string // путь к libonnxruntime; пусто — путь по умолчанию библиотеки
	IntraOpThreads    int    // 0 — значение ONNX Runtime по умолчанию
}

// Loader реализует session.Loader поверх ONNX Runtime.
type Loader struct {
	cfg    Config
	logger logger.Logger
}

func NewLoader(cfg Config, logger logger.Logger) *Loader {
	return &Loader{
		cfg:    cfg,
		logger: logger,
	}
}

// Load инициализирует окружение и создаёт сессию с первым входом и первым выходом модели.
func (l *Loader) Load(path string) (domain.InferenceBackend, error) {
	const op = "Loader.Load"

	if err := l.initEnvironment(); err != nil {
		return nil, e.Wrap(op, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("io info: %w", err))
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs)))
	}
	in, out := inputs[0], outputs[0]
	l.logger.Debugf("model io: input=%s %v, output=%s %v", in.Name, in.Dimensions, out.Name, out.Dimensions)

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("session options: %w", err))
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			l.logger.Warnf("failed to destroy session options: %v", err)
		}
	}()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("graph optimization: %w", err))
	}
	if l.cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(l.cfg.IntraOpThreads); err != nil {
			return nil, e.Wrap(op, fmt.Errorf("intra op threads: %w", err))
		}
	}

	sess, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{out.Name}, opts)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("session: %w", err))
	}

	return NewBackend(sess), nil
}

func (l *Loader) initEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if l.cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(l.cfg.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	return nil
}

// Backend выполняет инференс в загруженной сессии.
// Close ждёт завершения идущих Run, после него Run возвращает e.ErrInference.
type Backend struct {
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
}

func NewBackend(sess *ort.DynamicAdvancedSession) *Backend {
	return &Backend{session: sess}
}

// Run подаёт тензор на вход модели и возвращает копию первого выхода.
// Любой сбой оборачивает e.ErrInference и не влияет на состояние сессии.
func (b *Backend) Run(input *domain.Tensor) ([]float32, error) {
	const op = "Backend.Run"

	if input == nil || len(input.Data) == 0 || int64(len(input.Data)) != input.Elements() {
		return nil, e.Wrap(op, fmt.Errorf("%w: malformed input tensor", e.ErrInference))
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: session closed", e.ErrInference))
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: tensor: %v", e.ErrInference, err))
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := b.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: run: %v", e.ErrInference, err))
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, e.Wrap(op, fmt.Errorf("%w: unexpected output type %T", e.ErrInference, outputs[0]))
	}

	data := t.GetData()
	if len(data) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyModelOutput)
	}

	// Данные тензора освобождаются вместе с ним
	return append([]float32(nil), data...), nil
}

func (b *Backend) Close() error {
	const op = "Backend.Close"

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	if err := b.session.Destroy(); err != nil {
		return e.Wrap(op, err)
	}
	b.session = nil
	return nil
}
