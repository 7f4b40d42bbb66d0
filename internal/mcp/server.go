// Package mcp exposes the analyzer as an MCP tool server: run analysis
// passes, read findings, and submit precursor/confusable feedback. This is
// the programmatic operator interface; rendering and review UIs live
// elsewhere and consume the same contracts.
package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"ohtscope/internal/engine"
	"ohtscope/internal/learn"
	"ohtscope/internal/logging"
	"ohtscope/internal/orchestrate"
	"ohtscope/internal/record"
	"ohtscope/internal/rules"
	"ohtscope/internal/store"
)

// Server wraps the MCP SDK server around one analysis session.
type Server struct {
	MCPServer *sdkmcp.Server

	mu      sync.Mutex
	session *orchestrate.Session
	st      store.Store
}

// NewServer creates an MCP server over the given store. Version is reported
// in the MCP handshake.
func NewServer(st store.Store, version string) (*Server, error) {
	session, err := orchestrate.NewSession(st)
	if err != nil {
		return nil, err
	}
	s := &Server{st: st, session: session}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "ohtscope", Version: version},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	logging.New("mcp").Info("starting ohtscope MCP server over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_analysis",
		Description: "Run a full analysis pass over log bundles against the vehicle and motion source collections. Returns finding counts; use get_findings for detail.",
	}, s.handleRunAnalysis)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_findings",
		Description: "Get the findings of the last analysis pass, with the rule-set version they were computed against and whether they are stale.",
	}, s.handleGetFindings)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "submit_precursor",
		Description: "Submit a new precursor pattern. On success the rule set advances one version and all prior findings become stale until re-analysis.",
	}, s.handleSubmitPrecursor)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "submit_confusable",
		Description: "Submit a new confusable pattern conflicting with an existing precursor id. On success the rule set advances one version.",
	}, s.handleSubmitConfusable)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "ruleset_version",
		Description: "Get the current rule-set version and whether re-analysis is required.",
	}, s.handleRuleSetVersion)
}

// --- Tool input/output types ---

type runAnalysisInput struct {
	LogPaths   []string `json:"log_paths" jsonschema:"log bundle paths (directories, ZIPs, or files)"`
	VehicleSrc string   `json:"vehicle_src" jsonschema:"vehicle control source collection path"`
	MotionSrc  string   `json:"motion_src" jsonschema:"motion control source collection path"`
	Excludes   []string `json:"excludes,omitempty" jsonschema:"path fragments to exclude from source indexing"`
	Codes      []string `json:"codes,omitempty" jsonschema:"restrict to fault codes, e.g. E960"`
	Workers    int      `json:"workers,omitempty" jsonschema:"parallel correlation workers (default 1)"`
}

type runAnalysisOutput struct {
	Findings       int    `json:"findings"`
	Determined     int    `json:"determined"`
	Undetermined   int    `json:"undetermined"`
	RuleSetVersion int    `json:"ruleset_version"`
	IndexFromCache bool   `json:"index_from_cache"`
	Fingerprint    string `json:"fingerprint"`
}

type getFindingsInput struct{}

type getFindingsOutput struct {
	Findings       []record.Finding `json:"findings"`
	RuleSetVersion int              `json:"ruleset_version"`
	Stale          bool             `json:"stale"`
}

type submitPrecursorInput struct {
	ID        string `json:"id" jsonschema:"unique precursor id"`
	Pattern   string `json:"pattern" jsonschema:"regular expression matched against log lines"`
	Category  string `json:"category,omitempty" jsonschema:"free-text category"`
	Axis      *int   `json:"axis,omitempty" jsonschema:"axis index within the axis map"`
	Lookback  string `json:"lookback" jsonschema:"window before the anchor, e.g. 3s"`
	Lookahead string `json:"lookahead" jsonschema:"window after the anchor, e.g. 1s"`
}

type submitConfusableInput struct {
	Pattern       string `json:"pattern" jsonschema:"regular expression matched against log lines"`
	ConflictsWith string `json:"conflicts_with" jsonschema:"existing precursor id this pattern can be confused with"`
}

type submitOutput struct {
	RuleSetVersion   int  `json:"ruleset_version"`
	ReanalysisNeeded bool `json:"reanalysis_needed"`
}

type ruleSetVersionInput struct{}

type ruleSetVersionOutput struct {
	Version          int  `json:"version"`
	ReanalysisNeeded bool `json:"reanalysis_needed"`
}

// --- Tool handlers ---

func (s *Server) handleRunAnalysis(ctx context.Context, _ *sdkmcp.CallToolRequest, input runAnalysisInput) (*sdkmcp.CallToolResult, runAnalysisOutput, error) {
	if len(input.LogPaths) == 0 {
		return nil, runAnalysisOutput{}, fmt.Errorf("run_analysis: log_paths is required")
	}
	if input.VehicleSrc == "" || input.MotionSrc == "" {
		return nil, runAnalysisOutput{}, fmt.Errorf("run_analysis: vehicle_src and motion_src are required")
	}

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	idx, cached, err := sess.LoadOrBuildIndex(ctx, input.VehicleSrc, input.MotionSrc, input.Excludes)
	if err != nil {
		return nil, runAnalysisOutput{}, err
	}
	if _, err := sess.LoadLogs(input.LogPaths); err != nil {
		return nil, runAnalysisOutput{}, err
	}
	findings, err := sess.Analyze(ctx, engine.Options{
		TargetCodes: input.Codes,
		Workers:     input.Workers,
	})
	if err != nil {
		return nil, runAnalysisOutput{}, err
	}

	out := runAnalysisOutput{
		Findings:       len(findings),
		RuleSetVersion: sess.Rules().Version(),
		IndexFromCache: cached,
		Fingerprint:    idx.Fingerprint,
	}
	for _, f := range findings {
		if f.Verdict == record.VerdictDetermined {
			out.Determined++
		} else {
			out.Undetermined++
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetFindings(_ context.Context, _ *sdkmcp.CallToolRequest, _ getFindingsInput) (*sdkmcp.CallToolResult, getFindingsOutput, error) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	findings, version, stale := sess.Findings()
	return nil, getFindingsOutput{
		Findings:       findings,
		RuleSetVersion: version,
		Stale:          stale,
	}, nil
}

func (s *Server) handleSubmitPrecursor(_ context.Context, _ *sdkmcp.CallToolRequest, input submitPrecursorInput) (*sdkmcp.CallToolResult, submitOutput, error) {
	lookback, err := time.ParseDuration(input.Lookback)
	if err != nil {
		return nil, submitOutput{}, fmt.Errorf("submit_precursor: lookback: %w", err)
	}
	lookahead, err := time.ParseDuration(input.Lookahead)
	if err != nil {
		return nil, submitOutput{}, fmt.Errorf("submit_precursor: lookahead: %w", err)
	}

	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	version, err := sess.SubmitFeedback(learn.Submission{
		Kind: learn.KindPrecursor,
		Precursor: &rules.PrecursorPattern{
			ID:        input.ID,
			Pattern:   input.Pattern,
			Category:  input.Category,
			Axis:      input.Axis,
			Lookback:  rules.Duration(lookback),
			Lookahead: rules.Duration(lookahead),
		},
		Category: input.Category,
	})
	if err != nil {
		return nil, submitOutput{}, err
	}
	return nil, submitOutput{RuleSetVersion: version, ReanalysisNeeded: true}, nil
}

func (s *Server) handleSubmitConfusable(_ context.Context, _ *sdkmcp.CallToolRequest, input submitConfusableInput) (*sdkmcp.CallToolResult, submitOutput, error) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	version, err := sess.SubmitFeedback(learn.Submission{
		Kind: learn.KindConfusable,
		Confusable: &rules.ConfusablePattern{
			Pattern:       input.Pattern,
			ConflictsWith: input.ConflictsWith,
		},
	})
	if err != nil {
		return nil, submitOutput{}, err
	}
	return nil, submitOutput{RuleSetVersion: version, ReanalysisNeeded: true}, nil
}

func (s *Server) handleRuleSetVersion(_ context.Context, _ *sdkmcp.CallToolRequest, _ ruleSetVersionInput) (*sdkmcp.CallToolResult, ruleSetVersionOutput, error) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	_, _, stale := sess.Findings()
	return nil, ruleSetVersionOutput{
		Version:          sess.Rules().Version(),
		ReanalysisNeeded: stale,
	}, nil
}
