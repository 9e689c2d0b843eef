package store

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/proxikal/cerberus/internal/cerrors"
)

// VectorStore is the exact nearest-neighbor half of C3: persistent
// vectors.bin + vector_id_map.bin files under the same index directory,
// append-mostly, dimension fixed at construction. There is no ANN
// library in the example pack that doesn't require cgo, so this
// brute-force cosine scan is the grounded fallback — justified in
// DESIGN.md. The on-disk float32 little-endian encoding is grounded on
// josephgoksu-TaskWing's float32SliceToBytes/bytesToFloat32Slice helpers
// in internal/memory/sqlite.go, generalized from a single BLOB column to
// a standalone append-only binary file.
type VectorStore struct {
	mu        sync.RWMutex
	dir       string
	dimension int
	vectors   [][]float32
	symbolIDs []int64
}

const vectorsFileName = "vectors.bin"
const idMapFileName = "vector_id_map.bin"

// OpenVectorStore loads any persisted vectors/ids from dir, or starts
// empty if absent. dimension must match whatever was used previously;
// mismatches are a caller bug (wrong embedding model), not a runtime
// condition this type recovers from.
func OpenVectorStore(dir string, dimension int) (*VectorStore, error) {
	vs := &VectorStore{dir: dir, dimension: dimension}
	if err := vs.load(); err != nil {
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) load() error {
	vecPath := filepath.Join(vs.dir, vectorsFileName)
	idPath := filepath.Join(vs.dir, idMapFileName)

	vecFile, err := os.Open(vecPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return cerrors.NewStoreError("vector_store_open", err)
	}
	defer vecFile.Close()

	idFile, err := os.Open(idPath)
	if err != nil {
		return cerrors.NewStoreError("vector_store_open", err)
	}
	defer idFile.Close()

	vecReader := bufio.NewReader(vecFile)
	idReader := bufio.NewReader(idFile)

	for {
		var id int64
		if err := binary.Read(idReader, binary.LittleEndian, &id); err != nil {
			break
		}
		vec := make([]float32, vs.dimension)
		if err := binary.Read(vecReader, binary.LittleEndian, &vec); err != nil {
			return cerrors.NewStoreError("vector_store_load", err)
		}
		vs.vectors = append(vs.vectors, vec)
		vs.symbolIDs = append(vs.symbolIDs, id)
	}
	return nil
}

// AddVectorsBatch appends vectors (assumed already L2-normalized by the
// caller) and returns the dense sequential vector_store_ids assigned,
// per §4.3's guarantee.
func (vs *VectorStore) AddVectorsBatch(symbolIDs []int64, vectors [][]float32) ([]int64, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if len(symbolIDs) != len(vectors) {
		return nil, cerrors.NewStoreError("add_vectors_batch", errMismatchedLengths)
	}

	vecFile, err := os.OpenFile(filepath.Join(vs.dir, vectorsFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, cerrors.NewStoreError("add_vectors_batch", err)
	}
	defer vecFile.Close()

	idFile, err := os.OpenFile(filepath.Join(vs.dir, idMapFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, cerrors.NewStoreError("add_vectors_batch", err)
	}
	defer idFile.Close()

	ids := make([]int64, len(vectors))
	for i, vec := range vectors {
		if len(vec) != vs.dimension {
			return nil, cerrors.NewStoreError("add_vectors_batch", errDimensionMismatch)
		}
		vectorStoreID := int64(len(vs.vectors))
		if err := binary.Write(idFile, binary.LittleEndian, symbolIDs[i]); err != nil {
			return nil, cerrors.NewStoreError("add_vectors_batch", err)
		}
		if err := binary.Write(vecFile, binary.LittleEndian, vec); err != nil {
			return nil, cerrors.NewStoreError("add_vectors_batch", err)
		}
		vs.vectors = append(vs.vectors, vec)
		vs.symbolIDs = append(vs.symbolIDs, symbolIDs[i])
		ids[i] = vectorStoreID
	}
	return ids, nil
}

// Match is one scored neighbor.
type Match struct {
	VectorStoreID int64
	SymbolID      int64
	Score         float64
}

// Search returns the k nearest neighbors to query by cosine similarity
// (equivalent to a dot product since vectors are L2-normalized),
// filtered to a minimum similarity threshold per §4.7's vector mode.
func (vs *VectorStore) Search(query []float32, k int, minSimilarity float64) ([]Match, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	if len(query) != vs.dimension {
		return nil, cerrors.NewStoreError("search", errDimensionMismatch)
	}

	matches := make([]Match, 0, len(vs.vectors))
	for i, vec := range vs.vectors {
		score := dot(query, vec)
		if score < minSimilarity {
			continue
		}
		matches = append(matches, Match{VectorStoreID: int64(i), SymbolID: vs.symbolIDs[i], Score: score})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Rebuild discards the current files and rewrites them from a fresh
// (symbolIDs, vectors) set — matching §5's "deletions rebuild the entire
// index" guarantee; called off the hot path.
func (vs *VectorStore) Rebuild(symbolIDs []int64, vectors [][]float32) error {
	vs.mu.Lock()
	vs.vectors = nil
	vs.symbolIDs = nil
	removeErr1 := os.Remove(filepath.Join(vs.dir, vectorsFileName))
	removeErr2 := os.Remove(filepath.Join(vs.dir, idMapFileName))
	vs.mu.Unlock()

	if removeErr1 != nil && !os.IsNotExist(removeErr1) {
		return cerrors.NewStoreError("rebuild", removeErr1)
	}
	if removeErr2 != nil && !os.IsNotExist(removeErr2) {
		return cerrors.NewStoreError("rebuild", removeErr2)
	}
	_, err := vs.AddVectorsBatch(symbolIDs, vectors)
	return err
}

func (vs *VectorStore) Len() int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	return len(vs.vectors)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize returns v scaled to unit L2 length, the form both AddVectorsBatch
// and Search expect their inputs in.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

var errDimensionMismatch = storeErr("vector dimension mismatch")
var errMismatchedLengths = storeErr("symbolIDs and vectors length mismatch")

type storeErr string

func (e storeErr) Error() string { return string(e) }
