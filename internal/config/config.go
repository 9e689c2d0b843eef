// Package config loads Cerberus project configuration from .cerberus.toml
// or .cerberus.kdl and resolves scan-time include/exclude patterns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full set of knobs consumed across Cerberus's components.
type Config struct {
	Project     Project     `toml:"project"`
	Index       Index       `toml:"index"`
	Embeddings  Embeddings  `toml:"embeddings"`
	Daemon      Daemon      `toml:"daemon"`
	Watcher     Watcher     `toml:"watcher"`
	Blueprint   Blueprint   `toml:"blueprint"`
	Mutation    Mutation    `toml:"mutation"`
	Retrieval   Retrieval   `toml:"retrieval"`
	Include     []string    `toml:"include"`
	Exclude     []string    `toml:"exclude"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Index struct {
	MaxFileBytes     int64  `toml:"max_file_bytes"`
	BatchSize        int    `toml:"batch_size"`
	RespectGitignore bool   `toml:"respect_gitignore"`
	FollowSymlinks   bool   `toml:"follow_symlinks"`
}

type Embeddings struct {
	Enabled      bool   `toml:"enabled"`
	Model        string `toml:"model"`
	ContextLines int    `toml:"context_lines"`
	Dimension    int    `toml:"dimension"`
}

type Daemon struct {
	Port            int `toml:"port"`
	MaxIdleSeconds  int `toml:"max_idle_seconds"`
	ReapIntervalSec int `toml:"reap_interval_seconds"`
}

type Watcher struct {
	DebounceMs           int  `toml:"debounce_ms"`
	AutoBlueprintEnabled bool `toml:"auto_blueprint_enabled"`
	HotThreshold         int  `toml:"hot_threshold"`
	HotCheckIntervalSec  int  `toml:"hot_check_interval_seconds"`
}

type Blueprint struct {
	CacheTTL         time.Duration `toml:"-"`
	CacheTTLSeconds  int           `toml:"cache_ttl_seconds"`
	CoverageJSONPath string        `toml:"coverage_json_path"`
	HydrationBudgetTokens int      `toml:"hydration_budget_tokens"`
	StabilityWeights StabilityWeights `toml:"stability_weights"`
}

// StabilityWeights composite weights per spec.md §4.8: complexity, churn,
// coverage, dependency count — in that order, default 0.4/0.3/0.2/0.1.
type StabilityWeights struct {
	Complexity float64 `toml:"complexity"`
	Churn      float64 `toml:"churn"`
	Coverage   float64 `toml:"coverage"`
	Deps       float64 `toml:"deps"`
}

type Mutation struct {
	BackupDir string `toml:"backup_dir"`
	UndoDir   string `toml:"undo_dir"`
	Formatter string `toml:"formatter"` // external formatter shell command, best-effort
}

// Retrieval configures the hybrid retriever (§4.7): BM25 tuning, fusion
// weights, and per-method candidate pool sizes.
type Retrieval struct {
	DefaultMode        string  `toml:"default_mode"` // "keyword", "semantic", "balanced", "auto"
	KeywordWeight      float64 `toml:"keyword_weight"`
	SemanticWeight     float64 `toml:"semantic_weight"`
	TopKPerMethod      int     `toml:"top_k_per_method"`
	FinalTopK          int     `toml:"final_top_k"`
	MinScoreThreshold  float64 `toml:"min_score_threshold"`
	BM25K1             float64 `toml:"bm25_k1"`
	BM25B              float64 `toml:"bm25_b"`
	MinSimilarity      float64 `toml:"min_similarity"`
	RRFK               int     `toml:"rrf_k"`
	FuzzyEnabled       bool    `toml:"fuzzy_enabled"`
	FuzzyThreshold     float64 `toml:"fuzzy_threshold"`
}

// Default returns a Config with the defaults spec.md §3/§4 imply:
// batch=100 files, 10MB max file size, 2s watcher debounce, 3600s idle
// session reap, stability weights 0.4/0.3/0.2/0.1.
func Default(root string) *Config {
	return &Config{
		Project: Project{Root: root, Name: filepath.Base(root)},
		Index: Index{
			MaxFileBytes:     10 * 1024 * 1024,
			BatchSize:        100,
			RespectGitignore: true,
			FollowSymlinks:   false,
		},
		Embeddings: Embeddings{
			Enabled:      false,
			Model:        "local-minilm",
			ContextLines: 5,
			Dimension:    384,
		},
		Daemon: Daemon{
			Port:            0, // 0 = pick an ephemeral port
			MaxIdleSeconds:  3600,
			ReapIntervalSec: 300,
		},
		Watcher: Watcher{
			DebounceMs:          2000,
			AutoBlueprintEnabled: false,
			HotThreshold:        5,
			HotCheckIntervalSec: 60,
		},
		Blueprint: Blueprint{
			CacheTTLSeconds:       600,
			CacheTTL:              10 * time.Minute,
			HydrationBudgetTokens: 2000,
			StabilityWeights: StabilityWeights{
				Complexity: 0.4,
				Churn:      0.3,
				Coverage:   0.2,
				Deps:       0.1,
			},
		},
		Mutation: Mutation{
			BackupDir: filepath.Join(root, ".cerberus", "backups"),
			UndoDir:   filepath.Join(root, ".cerberus", "undo"),
		},
		Retrieval: Retrieval{
			DefaultMode:       "auto",
			KeywordWeight:     0.5,
			SemanticWeight:    0.5,
			TopKPerMethod:     20,
			FinalTopK:         10,
			MinScoreThreshold: 0.1,
			BM25K1:            1.5,
			BM25B:             0.75,
			MinSimilarity:     0.2,
			RRFK:              60,
			FuzzyEnabled:      true,
			FuzzyThreshold:    0.80,
		},
	}
}

// Load reads .cerberus.toml or .cerberus.kdl from the given path, falling
// back to Default(root) when neither exists. The format is chosen by file
// extension: ".kdl" parses with sblinch/kdl-go, anything else with
// pelletier/go-toml.
func Load(path, root string) (*Config, error) {
	cfg := Default(root)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".kdl") {
		if err := loadKDL(data, cfg); err != nil {
			return nil, fmt.Errorf("parse kdl config %s: %w", path, err)
		}
	} else {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	}

	if cfg.Blueprint.CacheTTLSeconds > 0 {
		cfg.Blueprint.CacheTTL = time.Duration(cfg.Blueprint.CacheTTLSeconds) * time.Second
	}
	if cfg.Project.Root == "" {
		cfg.Project.Root = root
	}
	return cfg, nil
}

// loadKDL populates cfg from a minimal KDL document. KDL configs are the
// teacher's legacy format (.lci.kdl); Cerberus keeps reading it so
// projects migrating off lightning-code-index don't lose their config.
// Only the flat scalar fields used by CLI overrides are parsed — nested
// stability-weight nodes fall back to defaults, which is acceptable since
// .cerberus.toml is the documented primary format.
func loadKDL(data []byte, cfg *Config) error {
	doc, err := kdl.Parse(strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				if s, ok := firstStringArg(cn); ok {
					switch nodeName(cn) {
					case "root":
						cfg.Project.Root = s
					case "name":
						cfg.Project.Name = s
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileBytes = int64(v)
					}
				case "batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.BatchSize = v
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				}
			}
		case "embeddings":
			cfg.Embeddings.Enabled = true
			if s, ok := firstStringArg(n); ok {
				cfg.Embeddings.Model = s
			}
		case "daemon_port":
			if v, ok := firstIntArg(n); ok {
				cfg.Daemon.Port = v
			}
		case "watcher_debounce_ms":
			if v, ok := firstIntArg(n); ok {
				cfg.Watcher.DebounceMs = v
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, collectStringArgs(n)...)
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				out = append(out, nodeName(child))
			}
		}
	}
	return out
}

// runtime is imported for GOMAXPROCS-aware defaults callers may want; kept
// as a named import so embedders relying on config.NumWorkers stay stable.
func NumWorkers() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}
