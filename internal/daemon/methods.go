package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/proxikal/cerberus/internal/blueprint"
	"github.com/proxikal/cerberus/internal/model"
	"github.com/proxikal/cerberus/internal/mutate"
	"github.com/proxikal/cerberus/internal/retrieval"
	"github.com/proxikal/cerberus/internal/store"
)

// handler is one RPC method's implementation: decode params, run the
// operation against the bound components, return a JSON-able result.
type handler func(ctx context.Context, params json.RawMessage) (any, error)

// methodEntry pairs a handler with the schema list_methods advertises,
// mirroring rpc_methods.py's RPCMethodRegistry.methods dict plus its
// list_methods introspection.
type methodEntry struct {
	handler handler
	params  *jsonschema.Schema
}

// Registry maps RPC method names to handlers bound to the store and the
// C5/C7/C8/C9 components, per spec.md §4.10's "method registry bound to
// C3/C5/C7/C8/C9." Grounded on
// original_source/src/cerberus/daemon/rpc_methods.py's
// RPCMethodRegistry.
type Registry struct {
	store     *store.Store
	retriever *retrieval.Retriever
	blueprint *blueprint.Generator
	mutator   *mutate.Mutator
	sessions  *SessionManager
	log       *zap.Logger
	hotSet    hotSetRecorder

	methods map[string]methodEntry
}

// hotSetRecorder is the slice of internal/watcher.HotSet get_blueprint
// needs to feed spec.md §4.11's access-count tracking, kept narrow so
// daemon doesn't require a watcher import cycle.
type hotSetRecorder interface {
	RecordAccess(filePath string)
}

// SetHotSet wires the watcher's hot-blueprint access tracker; optional,
// a no-op when never called (e.g. watcher disabled).
func (r *Registry) SetHotSet(h hotSetRecorder) {
	r.hotSet = h
}

// NewRegistry builds the method registry. retriever/blueprint/mutator
// may be nil when those subsystems aren't configured (e.g. embeddings
// disabled); the corresponding methods then fail with an error naming
// the missing component, which Invoke reports as ErrInternal.
func NewRegistry(s *store.Store, r *retrieval.Retriever, bp *blueprint.Generator, m *mutate.Mutator, sessions *SessionManager, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	reg := &Registry{store: s, retriever: r, blueprint: bp, mutator: m, sessions: sessions, log: log}
	reg.methods = map[string]methodEntry{
		"get_symbol":        {reg.getSymbol, objectSchema(map[string]*jsonschema.Schema{"name": stringSchema("Symbol name"), "file": stringSchema("Optional file path filter")}, "name")},
		"find_symbol":       {reg.getSymbol, objectSchema(map[string]*jsonschema.Schema{"name": stringSchema("Symbol name"), "file": stringSchema("Optional file path filter")}, "name")},
		"search":            {reg.search, objectSchema(map[string]*jsonschema.Schema{"query": stringSchema("Search query"), "mode": stringSchema("keyword|semantic|balanced|auto"), "top_k": intSchema("Max results")}, "query")},
		"hybrid_search":     {reg.search, objectSchema(map[string]*jsonschema.Schema{"query": stringSchema("Search query"), "mode": stringSchema("keyword|semantic|balanced|auto"), "top_k": intSchema("Max results")}, "query")},
		"read_file":         {reg.readFile, objectSchema(map[string]*jsonschema.Schema{"file": stringSchema("File path"), "lines": arraySchema(intSchema("line"), "[start, end] line range")}, "file")},
		"read_range":        {reg.readRange, objectSchema(map[string]*jsonschema.Schema{"file": stringSchema("File path"), "start": intSchema("Start line"), "end": intSchema("End line")}, "file", "start", "end")},
		"index_stats":       {reg.indexStats, objectSchema(nil)},
		"create_session":    {reg.createSession, objectSchema(map[string]*jsonschema.Schema{"context": stringSchema("Optional session context")})},
		"close_session":     {reg.closeSession, objectSchema(map[string]*jsonschema.Schema{"session_id": stringSchema("Session identifier")}, "session_id")},
		"assemble_context":  {reg.assembleContext, objectSchema(map[string]*jsonschema.Schema{"symbol": stringSchema("Symbol name"), "file": stringSchema("Optional file path filter"), "token_budget": intSchema("Token budget")}, "symbol")},
		"get_blueprint":     {reg.getBlueprint, objectSchema(map[string]*jsonschema.Schema{"file": stringSchema("File path")}, "file")},
		"mutate":            {reg.mutateSymbol, objectSchema(map[string]*jsonschema.Schema{"operation": stringSchema("edit|insert|delete"), "file": stringSchema("File path"), "symbol": stringSchema("Symbol name"), "code": stringSchema("New code"), "dry_run": boolSchema("Preview only"), "force": boolSchema("Override guard")}, "operation", "file")},
	}
	reg.methods["list_methods"] = methodEntry{reg.listMethods, objectSchema(nil)}
	return reg
}

// Invoke dispatches one RPC call, matching rpc_methods.py's
// RPCMethodRegistry.invoke error-wrapping behavior: unknown methods get
// ErrMethodNotFound, handler panics never happen (handlers return errors
// instead) so every other failure surfaces as ErrInternal with the
// method name attached.
func (r *Registry) Invoke(ctx context.Context, method string, params json.RawMessage, id any) Response {
	entry, ok := r.methods[method]
	if !ok {
		return errorResponse(ErrMethodNotFound, fmt.Sprintf("method not found: %s", method), id)
	}
	result, err := entry.handler(ctx, params)
	if err != nil {
		return errorResponseWithData(ErrInternal, err.Error(), map[string]string{"method": method}, id)
	}
	return successResponse(result, id)
}

func (r *Registry) getSymbol(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Name            string `json:"name"`
		File            string `json:"file"`
		PredictedSymbol string `json:"predicted_symbol"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, fmt.Errorf("missing required parameter: name")
	}
	matches, err := r.store.SymbolsByName(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if p.File != "" {
		filtered := matches[:0]
		for _, m := range matches {
			if m.FilePath == p.File {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	actual := ""
	if len(matches) > 0 {
		actual = matches[0].Name
	}
	if p.PredictedSymbol != "" {
		r.logPrediction("get_symbol", p.PredictedSymbol, actual)
	}
	if len(matches) == 0 {
		return map[string]any{"found": false, "symbol": p.Name, "matches": []model.Symbol{}}, nil
	}
	return map[string]any{
		"found":   true,
		"symbol":  p.Name,
		"primary": matches[0],
		"matches": matches,
		"count":   len(matches),
	}, nil
}

// logPrediction records a client's declared expectation against what the
// call actually resolved to (SPEC_FULL.md §C's prediction_log table).
// Best-effort: a logging failure never fails the RPC call itself.
func (r *Registry) logPrediction(method, predicted, actual string) {
	entry := model.PredictionLogEntry{
		Timestamp:       time.Now(),
		Method:          method,
		PredictedSymbol: predicted,
		ActualSymbol:    actual,
	}
	if err := r.store.InsertPredictionLog(context.Background(), entry); err != nil {
		r.log.Warn("prediction log write failed", zap.Error(err))
	}
}

func (r *Registry) search(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Query string `json:"query"`
		Mode  string `json:"mode"`
		TopK  int    `json:"top_k"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, fmt.Errorf("missing required parameter: query")
	}
	if r.retriever == nil {
		return nil, fmt.Errorf("retriever not configured")
	}
	mode := retrieval.Mode(p.Mode)
	if mode == "" {
		mode = retrieval.ModeAuto
	}
	results, err := r.retriever.Search(ctx, p.Query, mode, retrieval.FusionRRF)
	if err != nil {
		return nil, err
	}
	if p.TopK > 0 && len(results) > p.TopK {
		results = results[:p.TopK]
	}
	return map[string]any{
		"query":   p.Query,
		"mode":    string(mode),
		"count":   len(results),
		"results": results,
	}, nil
}

func (r *Registry) readFile(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		File  string `json:"file"`
		Lines []int  `json:"lines"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.File == "" {
		return nil, fmt.Errorf("missing required parameter: file")
	}
	if len(p.Lines) == 2 {
		return r.readRangeImpl(p.File, p.Lines[0], p.Lines[1])
	}
	content, err := readWholeFile(p.File)
	if err != nil {
		return map[string]any{"found": false, "file": p.File, "error": err.Error()}, nil
	}
	return map[string]any{"found": true, "file": p.File, "content": content}, nil
}

func (r *Registry) readRange(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		File  string `json:"file"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.File == "" || p.Start == 0 || p.End == 0 {
		return nil, fmt.Errorf("missing required parameters: file, start, end")
	}
	return r.readRangeImpl(p.File, p.Start, p.End)
}

func (r *Registry) readRangeImpl(file string, start, end int) (any, error) {
	content, err := readLineRange(file, start, end)
	if err != nil {
		return map[string]any{"found": false, "file": file, "error": err.Error()}, nil
	}
	return map[string]any{"found": true, "file": file, "content": content, "start": start, "end": end}, nil
}

func (r *Registry) indexStats(ctx context.Context, raw json.RawMessage) (any, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	ledger, err := r.store.LedgerStats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"index":  stats,
		"ledger": ledger,
	}, nil
}

func (r *Registry) createSession(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	sess, err := r.sessions.Create(ctx, p.Context)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (r *Registry) closeSession(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.SessionID == "" {
		return nil, fmt.Errorf("missing required parameter: session_id")
	}
	if err := r.sessions.Close(ctx, p.SessionID); err != nil {
		return nil, err
	}
	return map[string]any{"status": "closed", "session_id": p.SessionID}, nil
}

// assembleContext implements SPEC_FULL.md §C's context assembler RPC.
func (r *Registry) assembleContext(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Symbol      string `json:"symbol"`
		File        string `json:"file"`
		TokenBudget int    `json:"token_budget"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("missing required parameter: symbol")
	}
	return retrieval.AssembleContext(ctx, r.store, p.Symbol, p.File, p.TokenBudget)
}

func (r *Registry) getBlueprint(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		File string `json:"file"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.File == "" {
		return nil, fmt.Errorf("missing required parameter: file")
	}
	if r.blueprint == nil {
		return nil, fmt.Errorf("blueprint generator not configured")
	}
	if r.hotSet != nil {
		r.hotSet.RecordAccess(p.File)
	}
	return r.blueprint.Generate(ctx, blueprint.Request{FilePath: p.File, UseCache: true})
}

func (r *Registry) mutateSymbol(ctx context.Context, raw json.RawMessage) (any, error) {
	var p struct {
		Operation string `json:"operation"`
		File      string `json:"file"`
		Symbol    string `json:"symbol"`
		Code      string `json:"code"`
		DryRun    bool   `json:"dry_run"`
		Force     bool   `json:"force"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if r.mutator == nil {
		return nil, fmt.Errorf("mutation engine not configured")
	}
	opts := mutate.Options{DryRun: p.DryRun, Force: p.Force, AutoFormat: true}
	var result mutate.Result
	switch p.Operation {
	case "edit":
		result = r.mutator.EditSymbol(ctx, p.File, p.Symbol, p.Code, opts)
	case "insert":
		result = r.mutator.InsertSymbol(ctx, p.File, 0, p.Code, opts)
	case "delete":
		result = r.mutator.DeleteSymbol(ctx, p.File, p.Symbol, opts)
	default:
		return nil, fmt.Errorf("unknown operation: %s", p.Operation)
	}
	if !p.DryRun {
		r.logAction(p.Operation, p.Symbol, p.File, result.Success)
	}
	return result, nil
}

// logAction records a mutation's outcome (SPEC_FULL.md §C's action_log
// table). Best-effort: a logging failure never fails the RPC call.
func (r *Registry) logAction(operation, symbol, filePath string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	entry := model.ActionLogEntry{
		Timestamp: time.Now(),
		Operation: operation,
		Symbol:    symbol,
		FilePath:  filePath,
		Outcome:   outcome,
	}
	if err := r.store.InsertActionLog(context.Background(), entry); err != nil {
		r.log.Warn("action log write failed", zap.Error(err))
	}
}

// listMethods mirrors rpc_methods.py's list_methods introspection
// endpoint, returning names plus their param schema (§B's
// google/jsonschema-go wiring).
func (r *Registry) listMethods(ctx context.Context, raw json.RawMessage) (any, error) {
	names := make([]string, 0, len(r.methods))
	schemas := make(map[string]*jsonschema.Schema, len(r.methods))
	for name, entry := range r.methods {
		names = append(names, name)
		schemas[name] = entry.params
	}
	sort.Strings(names)
	return map[string]any{
		"methods": names,
		"count":   len(names),
		"schemas": schemas,
	}, nil
}

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func stringSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func intSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func boolSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func arraySchema(items *jsonschema.Schema, desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: items, Description: desc}
}
