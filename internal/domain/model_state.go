package domain

// ModelState — состояние сессии модели в процессе.
type ModelState int

const (
	ModelUninitialized ModelState = iota
	ModelLoaded
	ModelFailedPermanently
)

func (s ModelState) String() string {
	switch s {
	case ModelLoaded:
		return "loaded"
	case ModelFailedPermanently:
		return "failed"
	default:
		return "uninitialized"
	}
}

// InferenceBackend — загруженная модель, готовая к инференсу.
type InferenceBackend interface {
	// Run выполняет инференс и возвращает выход модели в виде плоского среза.
	Run(input *Tensor) ([]float32, error)
	Close() error
}

// ModelSession — снимок состояния сессии модели. Backend заполнен только в состоянии ModelLoaded,
// Err только в состоянии ModelFailedPermanently.
type ModelSession struct {
	State   ModelState
	Backend InferenceBackend
	Err     error
}

func NewLoadedSession(backend InferenceBackend) *ModelSession {
	return &ModelSession{State: ModelLoaded, Backend: backend}
}

func NewFailedSession(err error) *ModelSession {
	return &ModelSession{State: ModelFailedPermanently, Err: err}
}
