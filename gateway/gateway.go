// Package gateway exposes the protocol adapters over HTTP: one endpoint runs
// a model turn against an upstream vendor or the emulated CLI, the others
// normalize stored history and translate token budgets.
package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/missdeer/agentbridge/balancer"
	"github.com/missdeer/agentbridge/budget"
	"github.com/missdeer/agentbridge/cliemu"
	"github.com/missdeer/agentbridge/config"
	"github.com/missdeer/agentbridge/heartbeat"
	"github.com/missdeer/agentbridge/middleware"
)

// maxUpstreamBody bounds how much of an upstream response is buffered.
const maxUpstreamBody int64 = 64 << 20

type Server struct {
	mu        sync.RWMutex
	cfg       *config.Config
	balancer  *balancer.WeightedRoundRobin
	heartbeat *heartbeat.Manager
	client    *http.Client
	emulator  *cliemu.Emulator
	budget    *budget.Translator
}

// New builds a server and starts heartbeats for upstreams that configure
// one. Close stops them.
func New(cfg *config.Config) *Server {
	s := &Server{balancer: balancer.NewWeightedRoundRobin(cfg.Upstreams)}
	s.apply(cfg)
	s.heartbeat = heartbeat.NewManager(s.probe, s.balancer)
	s.heartbeat.Update(cfg.Upstreams)
	return s
}

// UpdateConfig swaps in a reloaded configuration. Requests already running
// keep the components they started with.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	s.balancer.Update(cfg.Upstreams)
	s.apply(cfg)
	s.mu.Unlock()
	s.heartbeat.Update(cfg.Upstreams)
}

func (s *Server) Close() {
	s.heartbeat.Stop()
}

func (s *Server) apply(cfg *config.Config) {
	s.cfg = cfg
	s.client = newHTTPClient(cfg.UpstreamRequestTimeout)
	s.budget = cfg.Pricing.Translator()
	s.emulator = cliemu.New(cliemu.Config{
		Path:         cfg.CLI.Path,
		Timeout:      cfg.CLI.Timeout,
		DefaultModel: cfg.CLI.DefaultModel,
		ExtraArgs:    cfg.CLI.ExtraArgs,
		WorkDir:      cfg.CLI.WorkDir,
		ImageDir:     cfg.CLI.ImageDir,
		Env:          cfg.CLI.Env,
	}, s.budget)
}

type components struct {
	client   *http.Client
	emulator *cliemu.Emulator
	budget   *budget.Translator
}

func (s *Server) snapshot() components {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return components{client: s.client, emulator: s.emulator, budget: s.budget}
}

// Handler returns the routes, with request bodies decompressed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/turn", s.handleTurn)
	mux.HandleFunc("/v1/normalize", s.handleNormalize)
	mux.HandleFunc("/v1/budget", s.handleBudget)
	return middleware.DecompressionMiddleware(mux)
}

// newHTTPClient clones http.DefaultTransport so proxy, HTTP/2 and dial
// defaults are kept, and decodes compressed responses itself.
func newHTTPClient(responseHeaderTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = responseHeaderTimeout
	transport.DisableCompression = true
	return &http.Client{
		Transport: &middleware.CompressedTransport{
			Base:           transport,
			AcceptEncoding: middleware.AcceptEncoding,
		},
	}
}
