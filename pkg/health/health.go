package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Статусы компонентов
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker интерфейс для проверки здоровья сервиса
type HealthChecker interface {
	Check(ctx context.Context) *HealthStatus
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]Status `json:"services,omitempty"`
	Version   string            `json:"version,omitempty"`
}

// Healthy сообщает, что все компоненты доступны
func (s *HealthStatus) Healthy() bool {
	return s.Status == StatusHealthy
}

// Status представляет статус компонента
type Status struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// Probe проверка одного компонента (база, кэш, брокер)
type Probe func(ctx context.Context) error

// ProbeChecker опрашивает зарегистрированные компоненты параллельно
type ProbeChecker struct {
	version string
	timeout time.Duration

	mu     sync.RWMutex
	probes map[string]Probe
}

// NewProbeChecker создает новый ProbeChecker
func NewProbeChecker(version string, timeout time.Duration) *ProbeChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeChecker{
		version: version,
		timeout: timeout,
		probes:  make(map[string]Probe),
	}
}

// Register добавляет проверку компонента
func (c *ProbeChecker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Names возвращает имена зарегистрированных компонентов
func (c *ProbeChecker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check проверяет здоровье сервиса
func (c *ProbeChecker) Check(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, probe := range c.probes {
		probes[name] = probe
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := &HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Services:  make(map[string]Status, len(probes)),
		Version:   c.version,
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			st := Status{Status: StatusHealthy}
			if err := probe(ctx); err != nil {
				st = Status{Status: StatusUnhealthy, Details: err.Error()}
			}
			mu.Lock()
			result.Services[name] = st
			if st.Status != StatusHealthy {
				result.Status = StatusUnhealthy
			}
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	return result
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Handler создает HTTP обработчик для health check эндпоинта
func Handler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checker.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

// ReadyHandler создает HTTP обработчик для ready check эндпоинта
// Возвращает 200 если все компоненты доступны и сервис готов принимать трафик
func ReadyHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !checker.Check(r.Context()).Healthy() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// LiveHandler создает HTTP обработчик для live check эндпоинта
// Возвращает 200 если процесс жив
func LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}
