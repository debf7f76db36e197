package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stablecore/config"
	"stablecore/core/state"
	"stablecore/crypto"
	"stablecore/native/governance"
	"stablecore/native/oracle"
	"stablecore/native/stable"
	"stablecore/observability"
	"stablecore/observability/logging"
	otelinit "stablecore/observability/otel"
	"stablecore/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the service configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("stablecored", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		shutdown, err := otelinit.Init(ctx, otelinit.Config{
			ServiceName: "stablecored",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otelinit.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("init telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("open state database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := initConfig(manager, cfg); err != nil {
		logger.Error("init protocol config", "error", err)
		os.Exit(1)
	}

	emitter := observability.NewMetricsEmitter(observability.NewLogEmitter(logger))

	var feed oracle.PriceFeed
	if cfg.Oracle.Endpoint != "" {
		feed = oracle.NewHTTPFeed(&http.Client{Timeout: 10 * time.Second}, cfg.Oracle.Endpoint, cfg.Oracle.APIKey)
	} else {
		logger.Warn("no oracle endpoint configured, using manual price feed")
		feed = oracle.NewManualFeed()
	}
	agg := oracle.NewAggregator(feed, cfg.Oracle.PrimaryFeed, cfg.Oracle.BackupFeed)
	agg.SetEmitter(emitter)
	if maxAge := cfg.Oracle.MaxAge(); maxAge > 0 {
		agg.SetMaxAge(maxAge)
	}

	engine := stable.NewEngine(stable.NewValuer(agg), manager.CollateralLedger(), manager.StableLedger())
	engine.SetState(manager)
	engine.SetEmitter(emitter)

	gov := governance.NewEngine()
	gov.SetState(manager)
	gov.SetEmitter(emitter)

	srv := &server{engine: engine, gov: gov, manager: manager, logger: logger}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("stablecored listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
}

func initConfig(manager *state.Manager, cfg *config.Config) error {
	var authority crypto.Address
	if cfg.Authority != "" {
		decoded, err := crypto.DecodeAddress(cfg.Authority)
		if err != nil {
			return err
		}
		authority = decoded
	}
	protocol := stable.DefaultConfig(authority)
	if cfg.FeeRecipient != "" {
		recipient, err := crypto.DecodeAddress(cfg.FeeRecipient)
		if err != nil {
			return err
		}
		protocol.FeeRecipient = recipient
	}
	_, err := manager.InitProtocolConfig(protocol)
	return err
}

type server struct {
	engine  *stable.Engine
	gov     *governance.Engine
	manager *state.Manager
	logger  *slog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/positions/{address}", s.handlePosition)
	r.Post("/tx/deposit", s.handleDeposit)
	r.Post("/tx/redeem", s.handleRedeem)
	r.Post("/tx/liquidate", s.handleLiquidate)

	r.Post("/gov/proposals", s.handlePropose)
	r.Get("/gov/proposals/{id}", s.handleProposal)
	r.Post("/gov/proposals/{id}/votes", s.handleVote)
	r.Post("/gov/proposals/{id}/resolve", s.handleResolve)
	r.Post("/gov/proposals/{id}/execute", s.handleExecute)

	return r
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg, err := s.manager.ProtocolConfig()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"authority":            cfg.Authority.String(),
		"liquidationThreshold": cfg.LiquidationThreshold,
		"liquidationBonus":     cfg.LiquidationBonus,
		"minHealthFactor":      cfg.MinHealthFactor,
		"fees":                 cfg.Fees,
	})
}

func (s *server) handlePosition(w http.ResponseWriter, r *http.Request) {
	owner, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pos, err := s.engine.Position(owner)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner      string `json:"owner"`
		Collateral uint64 `json:"collateral"`
		Mint       uint64 `json:"mint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := crypto.DecodeAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	minted, err := s.engine.DepositAndMint(owner, req.Collateral, req.Mint)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"minted": minted})
}

func (s *server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner      string `json:"owner"`
		Collateral uint64 `json:"collateral"`
		Burn       uint64 `json:"burn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := crypto.DecodeAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.RedeemAndBurn(owner, req.Collateral, req.Burn); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Liquidator string `json:"liquidator"`
		Owner      string `json:"owner"`
		Burn       uint64 `json:"burn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	liquidator, err := crypto.DecodeAddress(req.Liquidator)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := crypto.DecodeAddress(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	payout, err := s.engine.Liquidate(liquidator, owner, req.Burn)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"payout": payout})
}

func (s *server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Proposer    string               `json:"proposer"`
		Kind        string               `json:"kind"`
		Value       uint64               `json:"value"`
		FeeUpdate   governance.FeeUpdate `json:"feeUpdate"`
		Description string               `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	proposer, err := crypto.DecodeAddress(req.Proposer)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	proposal, err := s.gov.Create(proposer, governance.ProposalKind(req.Kind), req.Value, req.FeeUpdate, req.Description)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, proposal)
}

func (s *server) handleProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	proposal, err := s.gov.Proposal(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, proposal)
}

func (s *server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Voter   string `json:"voter"`
		Support bool   `json:"support"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	voter, err := crypto.DecodeAddress(req.Voter)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.gov.Vote(voter, id, req.Support); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	proposal, err := s.gov.Resolve(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, proposal)
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.gov.Execute(id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func proposalID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeEngineError maps engine sentinels onto HTTP statuses: unknown records
// are 404, violated preconditions are 422, everything else is a 500.
func (s *server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, stable.ErrPositionNotFound) || errors.Is(err, governance.ErrProposalNotFound):
		status = http.StatusNotFound
	case errors.Is(err, stable.ErrBelowMinHealthFactor),
		errors.Is(err, stable.ErrAboveMinHealthFactor),
		errors.Is(err, stable.ErrInsufficientCollateralization),
		errors.Is(err, stable.ErrInsufficientCollateral),
		errors.Is(err, stable.ErrInsufficientDebt),
		errors.Is(err, stable.ErrExcessiveMint),
		errors.Is(err, stable.ErrNotAuthority),
		errors.Is(err, stable.ErrMinHealthFactorTooLow),
		errors.Is(err, governance.ErrInsufficientGovernanceBalance),
		errors.Is(err, governance.ErrInvalidKind),
		errors.Is(err, governance.ErrInvalidValue),
		errors.Is(err, governance.ErrDescriptionTooLong),
		errors.Is(err, governance.ErrProposalNotActive),
		errors.Is(err, governance.ErrVotingEnded),
		errors.Is(err, governance.ErrVotingOpen),
		errors.Is(err, governance.ErrNoVotingPower),
		errors.Is(err, governance.ErrExecutionDelay),
		errors.Is(err, governance.ErrQuorumNotReached),
		errors.Is(err, governance.ErrProposalRejected),
		errors.Is(err, governance.ErrProposalTerminal),
		errors.Is(err, governance.ErrNotProposer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrLowConfidence),
		errors.Is(err, oracle.ErrPriceDeviation),
		errors.Is(err, oracle.ErrFeedNotFound):
		status = http.StatusServiceUnavailable
	}
	s.writeError(w, status, err)
}
