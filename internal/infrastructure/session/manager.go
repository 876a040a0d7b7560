// Package session владеет жизненным циклом бэкенда инференса: один раз ищет и загружает модель,
// кэширует успешно загруженную сессию или ошибку загрузки на всё время жизни процесса.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
)

// Loader загружает модель из файла.
type Loader interface {
	Load(path string) (domain.InferenceBackend, error)
}

var uninitialized = &domain.ModelSession{State: domain.ModelUninitialized}

// Manager лениво загружает модель ровно один раз. Конкурентные первые вызовы ждут
// единственную попытку загрузки и видят её результат. Переходов из Loaded и FailedPermanently нет.
type Manager struct {
	path   string
	loader Loader
	logger logger.Logger

	once  sync.Once
	state atomic.Pointer[domain.ModelSession]
}

func NewManager(path string, loader Loader, logger logger.Logger) *Manager {
	return &Manager{
		path:   path,
		loader: loader,
		logger: logger,
	}
}

// Session возвращает состояние модели, при первом вызове выполняя попытку загрузки.
// Ошибок наружу не возвращает: отсутствие модели или сбой загрузки отражаются состоянием.
func (m *Manager) Session() *domain.ModelSession {
	m.once.Do(m.load)
	return m.state.Load()
}

// State возвращает текущее состояние без попытки загрузки.
func (m *Manager) State() domain.ModelState {
	return m.peek().State
}

// Path возвращает путь, по которому ищется модель.
func (m *Manager) Path() string {
	return m.path
}

// Close освобождает загруженный бэкенд. Повторная загрузка после Close не выполняется.
func (m *Manager) Close() error {
	const op = "Manager.Close"

	// После Close once уже не запустит загрузку
	m.once.Do(func() {
		m.state.Store(domain.NewFailedSession(fmt.Errorf("%w: session closed", e.ErrNoModelAvailable)))
	})

	s := m.peek()
	if s.State != domain.ModelLoaded {
		return nil
	}
	if err := s.Backend.Close(); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

func (m *Manager) peek() *domain.ModelSession {
	if s := m.state.Load(); s != nil {
		return s
	}
	return uninitialized
}

func (m *Manager) load() {
	start := time.Now()

	if err := checkModelFile(m.path); err != nil {
		m.logger.Warnf("model is unavailable, learned extraction disabled: path=%s reason=%v", m.path, err)
		m.state.Store(domain.NewFailedSession(err))
		return
	}

	backend, err := m.loadBackend()
	if err != nil {
		m.logger.Errorf(err, "model load failed permanently: path=%s duration=%s", m.path, time.Since(start))
		m.state.Store(domain.NewFailedSession(fmt.Errorf("%w: %v", e.ErrNoModelAvailable, err)))
		return
	}

	m.logger.Infof("model loaded: path=%s duration=%s", m.path, time.Since(start))
	m.state.Store(domain.NewLoadedSession(backend))
}

// loadBackend вызывает загрузчик, превращая панику в ошибку.
func (m *Manager) loadBackend() (backend domain.InferenceBackend, err error) {
	defer func() {
		if r := recover(); r != nil {
			backend, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()

	backend, err = m.loader.Load(m.path)
	if err == nil && backend == nil {
		err = errors.New("loader returned nil backend")
	}
	return backend, err
}

func checkModelFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", e.ErrModelNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", e.ErrModelNotFound, path)
		}
		return fmt.Errorf("%w: %v", e.ErrNoModelAvailable, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", e.ErrModelNotFound, path)
	}

	return nil
}
