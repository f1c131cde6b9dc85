package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tooldex/tooldex/pkg/model"
	"github.com/tooldex/tooldex/pkg/planner"
)

// State is one stage of the linear pipeline state machine.
type State string

const (
	StateInitialised     State = "initialised"
	StateIntentExtracted State = "intent_extracted"
	StatePlanned         State = "planned"
	StateExecuted        State = "executed"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// RecoveryFunc can be declared per stage; returning a nil error means the
// failure was absorbed and the pipeline continues.
type RecoveryFunc func(ctx context.Context, run *Run, stageErr error) error

// Run is the per-request execution record: the state machine position,
// the path walked, per-stage timings and the append-only error log.
type Run struct {
	RequestID          string
	State              State
	FailedStage        string
	ExecutionPath      []string
	NodeExecutionTimes map[string]time.Duration
	Errors             []StageError

	Intent    *model.Intent
	Plan      *model.RetrievalPlan
	Execution *ExecutionResult
}

func newRun() *Run {
	return &Run{
		RequestID:          uuid.NewString(),
		State:              StateInitialised,
		ExecutionPath:      []string{string(StateInitialised)},
		NodeExecutionTimes: make(map[string]time.Duration),
	}
}

func (r *Run) transition(next State) {
	r.State = next
	r.ExecutionPath = append(r.ExecutionPath, string(next))
}

func (r *Run) fail(stage string, err error) {
	r.State = StateFailed
	r.FailedStage = stage
	r.ExecutionPath = append(r.ExecutionPath, string(StateFailed))
	r.Errors = append(r.Errors, StageError{
		Stage:   stage,
		Code:    model.CodeOf(err),
		Message: err.Error(),
	})
}

// Orchestrator stitches intent extraction, planning and execution into
// one linear pipeline under a request-level deadline.
type Orchestrator struct {
	extractor      *planner.Extractor
	planner        *planner.Planner
	executor       *Executor
	requestTimeout time.Duration
	recoveries     map[string]RecoveryFunc
	logger         *slog.Logger
}

func NewOrchestrator(extractor *planner.Extractor, p *planner.Planner, executor *Executor, requestTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Orchestrator{
		extractor:      extractor,
		planner:        p,
		executor:       executor,
		requestTimeout: requestTimeout,
		recoveries:     make(map[string]RecoveryFunc),
		logger:         logger,
	}
}

// DeclareRecovery registers a recovery strategy for a stage ("intent",
// "plan", "execute"). Stage errors without one are terminal.
func (o *Orchestrator) DeclareRecovery(stage string, fn RecoveryFunc) {
	o.recoveries[stage] = fn
}

// Search runs the full pipeline for one request. Input validation happens
// before any external call; a stage failure without a declared recovery
// is terminal and carries the failing stage's name.
func (o *Orchestrator) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	run := newRun()
	started := time.Now()

	if err := req.Validate(); err != nil {
		run.fail("validate", err)
		return nil, err
	}

	timeout := o.requestTimeout
	if ms := req.Options.Performance.TimeoutMs; ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := o.stage(ctx, run, "intent", func() error {
		intent, err := o.extractor.Extract(ctx, req.Query)
		if err != nil {
			return err
		}
		run.Intent = intent
		run.transition(StateIntentExtracted)
		return nil
	}); err != nil {
		return nil, o.terminal(ctx, err)
	}

	if err := o.stage(ctx, run, "plan", func() error {
		plan, err := o.planner.Plan(ctx, run.Intent, req.Query)
		if err != nil {
			return err
		}
		run.Plan = plan
		run.transition(StatePlanned)
		return nil
	}); err != nil {
		return nil, o.terminal(ctx, err)
	}

	if err := o.stage(ctx, run, "execute", func() error {
		exec, err := o.executor.Execute(ctx, run.Plan, run.Intent, req.Query, &req.Options)
		if err != nil {
			return err
		}
		run.Execution = exec
		run.Errors = append(run.Errors, exec.Errors...)
		run.transition(StateExecuted)
		return nil
	}); err != nil {
		return nil, o.terminal(ctx, err)
	}

	// An execution where every source failed escalates to Timeout when
	// the deadline was the cause; partial results go out as-is.
	if len(run.Execution.Results) == 0 && ctx.Err() == context.DeadlineExceeded {
		err := model.NewError(model.CodeTimeout, "Orchestrator", "Search",
			"request deadline exceeded before any source succeeded", ctx.Err())
		run.fail("execute", err)
		return nil, err
	}

	run.transition(StateCompleted)
	resp := o.buildResponse(req, run, time.Since(started))

	o.logger.Info("search completed",
		"request_id", run.RequestID,
		"results", len(resp.Results),
		"sources", resp.Summary.SourcesSearched,
		"duplicates_removed", resp.Summary.DuplicatesRemoved,
		"elapsed", time.Since(started))
	return resp, nil
}

// stage times one stage and applies its declared recovery, if any.
func (o *Orchestrator) stage(ctx context.Context, run *Run, name string, fn func() error) error {
	stageStart := time.Now()
	err := fn()
	run.NodeExecutionTimes[name] = time.Since(stageStart)

	if err == nil {
		return nil
	}
	if rec, ok := o.recoveries[name]; ok {
		if rerr := rec(ctx, run, err); rerr == nil {
			run.Errors = append(run.Errors, StageError{
				Stage:   name,
				Code:    model.CodeOf(err),
				Message: "recovered: " + err.Error(),
			})
			return nil
		}
	}
	run.fail(name, err)
	return err
}

// terminal maps a stage error onto the outward error, folding a spent
// deadline into Timeout.
func (o *Orchestrator) terminal(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded && model.CodeOf(err) != model.CodeTimeout {
		return model.NewError(model.CodeTimeout, "Orchestrator", "Search",
			"request deadline exceeded", err)
	}
	return err
}

func (o *Orchestrator) buildResponse(req *SearchRequest, run *Run, elapsed time.Duration) *SearchResponse {
	exec := run.Execution
	results := exec.Results

	results = applySort(results, req.Options.Sort)

	resp := &SearchResponse{
		RequestID: run.RequestID,
		Errors:    run.Errors,
	}

	duplicatesRemoved := 0
	if exec.DedupStats != nil {
		duplicatesRemoved = exec.DedupStats.DuplicatesRemoved
		resp.DedupStats = exec.DedupStats
		resp.DuplicateGroups = exec.Groups
	}
	resp.Summary = Summary{
		TotalResults:      len(results),
		ProcessingTimeMs:  elapsed.Milliseconds(),
		SourcesSearched:   len(exec.Sources),
		DuplicatesRemoved: duplicatesRemoved,
		SearchStrategy:    exec.Strategy,
		Confidence:        exec.Confidence,
	}

	results, resp.Pagination = paginate(results, req.Options.Pagination)
	resp.Results = results

	if req.Options.IncludeSourceAttribution {
		for _, s := range exec.Sources {
			resp.SourceAttribution = append(resp.SourceAttribution, SourceAttribution{
				Source:      s.Label,
				ResultCount: s.Metrics.ResultCount,
				AvgScore:    s.Metrics.AvgScore,
				SearchTime:  s.Metrics.SearchTime.String(),
				Error:       s.Metrics.Error,
			})
		}
	}
	if exec.Enrichment != nil && req.Options.IncludeMetadata {
		stats := exec.Enrichment.Statistics
		resp.EntityStatistics = &stats
	}

	if req.Options.Debug {
		nodeTimes := make(map[string]int64, len(run.NodeExecutionTimes))
		for stage, d := range run.NodeExecutionTimes {
			nodeTimes[stage] = d.Milliseconds()
		}
		resp.Debug = &DebugInfo{
			Intent:        run.Intent,
			Plan:          run.Plan,
			ExecutionPath: run.ExecutionPath,
			NodeTimesMs:   nodeTimes,
		}
		if exec.Enrichment != nil {
			resp.Debug.EnrichStrategy = exec.Enrichment.Strategy
		}
	}
	return resp
}

// applySort reorders the window for non-relevance sorts. Relevance keeps
// fusion order. Final ranks are reassigned so rank always equals
// position.
func applySort(results []model.MergedResult, s Sort) []model.MergedResult {
	if s.Field == "" || s.Field == "relevance" {
		return results
	}

	desc := s.Order == "desc"
	sort.SliceStable(results, func(i, j int) bool {
		var less bool
		switch s.Field {
		case "name":
			less = results[i].Payload.Name < results[j].Payload.Name
		case "category":
			less = firstCategory(results[i]) < firstCategory(results[j])
		case "score":
			less = results[i].Score < results[j].Score
		}
		if desc {
			return !less
		}
		return less
	})
	for i := range results {
		results[i].FinalRank = i + 1
	}
	return results
}

func firstCategory(r model.MergedResult) string {
	if len(r.Payload.Categories) > 0 {
		return r.Payload.Categories[0]
	}
	return ""
}

// paginate slices the result window. Rank stays global: page two starts
// where page one ended.
func paginate(results []model.MergedResult, p Pagination) ([]model.MergedResult, *PaginationInfo) {
	if p.Page == 0 && p.Limit == 0 {
		return results, nil
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit < 1 {
		limit = 10
	}

	total := len(results)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return results[start:end], &PaginationInfo{
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
