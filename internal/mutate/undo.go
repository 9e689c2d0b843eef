package mutate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/proxikal/cerberus/internal/cerrors"
)

// ReversePatch is one file's pre-image, enough to undo it by writing
// OriginalContent straight back.
type ReversePatch struct {
	FilePath        string `json:"file_path"`
	OriginalContent string `json:"original_content"`
}

// Transaction is one recorded batch of mutations, matching undo.py's
// on-disk record shape exactly (field names included) so a transaction
// written by either implementation is interchangeable.
type Transaction struct {
	ID             string            `json:"-"`
	Timestamp      time.Time         `json:"-"`
	TimestampText  string            `json:"timestamp"`
	OperationType  string            `json:"operation_type"`
	Files          []string          `json:"files"`
	ReversePatches []ReversePatch    `json:"reverse_patches"`
	Metadata       map[string]string `json:"metadata"`
}

// UndoStack persists every successful mutation batch as a JSON file under
// dir, keyed by a content hash, giving AI-agent callers an unlimited
// "Ctrl+Z". Grounded on
// original_source/src/cerberus/mutation/undo.py's UndoStack, which uses
// the identical one-file-per-transaction layout.
type UndoStack struct {
	Dir string
}

func NewUndoStack(dir string) *UndoStack {
	_ = os.MkdirAll(dir, 0o755)
	return &UndoStack{Dir: dir}
}

// RecordTransaction writes a new transaction file and returns its ID.
func (u *UndoStack) RecordTransaction(operationType string, files []string, patches []ReversePatch, metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	txn := Transaction{
		TimestampText:  time.Now().Format(time.RFC3339Nano),
		OperationType:  operationType,
		Files:          files,
		ReversePatches: patches,
		Metadata:       metadata,
	}

	id, err := transactionID(txn)
	if err != nil {
		return "", err
	}

	encoded, err := json.MarshalIndent(txn, "", "  ")
	if err != nil {
		return "", cerrors.NewStoreError("undo_marshal", err)
	}
	path := filepath.Join(u.Dir, id+".json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", cerrors.NewStoreError("undo_write", err)
	}
	return id, nil
}

// transactionID hashes the transaction's canonical JSON encoding,
// matching undo.py's sha256(json.dumps(transaction, sort_keys=True))[:16].
// Go's json.Marshal already emits struct fields in declaration order and
// map keys sorted lexically, so the encoding is deterministic without a
// separate canonicalization pass.
func transactionID(txn Transaction) (string, error) {
	encoded, err := json.Marshal(txn)
	if err != nil {
		return "", cerrors.NewStoreError("undo_hash", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])[:16], nil
}

// GetHistory returns up to limit transactions, most recent first.
func (u *UndoStack) GetHistory(limit int) ([]Transaction, error) {
	entries, err := os.ReadDir(u.Dir)
	if err != nil {
		return nil, cerrors.NewStoreError("undo_list", err)
	}

	type stamped struct {
		id      string
		modTime time.Time
	}
	var files []stamped
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, stamped{id: entry.Name()[:len(entry.Name())-len(".json")], modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	out := make([]Transaction, 0, len(files))
	for _, f := range files {
		txn, err := u.GetTransaction(f.id)
		if err != nil {
			continue
		}
		out = append(out, *txn)
	}
	return out, nil
}

// GetTransaction reads one transaction by ID.
func (u *UndoStack) GetTransaction(id string) (*Transaction, error) {
	content, err := os.ReadFile(filepath.Join(u.Dir, id+".json"))
	if err != nil {
		return nil, cerrors.NewNotFoundError("transaction", id)
	}
	var txn Transaction
	if err := json.Unmarshal(content, &txn); err != nil {
		return nil, cerrors.NewStoreError("undo_decode", err)
	}
	txn.ID = id
	return &txn, nil
}

// ApplyReversePatches writes every reverse patch's OriginalContent back
// to its FilePath, undoing the transaction. It applies as many patches as
// it can and reports failures per file rather than stopping at the
// first error.
func (u *UndoStack) ApplyReversePatches(id string) (appliedFiles []string, errs []string) {
	txn, err := u.GetTransaction(id)
	if err != nil {
		return nil, []string{err.Error()}
	}

	for _, patch := range txn.ReversePatches {
		if patch.FilePath == "" {
			errs = append(errs, "invalid patch: missing file_path")
			continue
		}
		if err := os.WriteFile(patch.FilePath, []byte(patch.OriginalContent), 0o644); err != nil {
			errs = append(errs, "failed to revert "+patch.FilePath+": "+err.Error())
			continue
		}
		appliedFiles = append(appliedFiles, patch.FilePath)
	}
	return appliedFiles, errs
}

// ClearHistory deletes every transaction file except the keepLast most
// recent and returns how many it removed.
func (u *UndoStack) ClearHistory(keepLast int) (int, error) {
	history, err := u.GetHistory(0)
	if err != nil {
		return 0, err
	}
	if keepLast >= len(history) {
		return 0, nil
	}

	deleted := 0
	for _, txn := range history[keepLast:] {
		if err := os.Remove(filepath.Join(u.Dir, txn.ID+".json")); err == nil {
			deleted++
		}
	}
	return deleted, nil
}
