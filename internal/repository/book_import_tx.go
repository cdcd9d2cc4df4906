package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/library-catalog-api/internal/models"
)

const importSavepoint = "import_row"

// ErrImportAborted marks an import transaction that can no longer accept rows.
var ErrImportAborted = errors.New("import transaction aborted")

// ImportTx accepts rows for a single all-or-nothing import batch.
// A failed Insert leaves earlier rows intact and the transaction usable.
type ImportTx interface {
	Insert(ctx context.Context, book *models.Book) error
	Commit() error
	Rollback() error
}

type bookImportTx struct {
	tx      *sqlx.Tx
	aborted bool
}

// BeginImport opens the transaction that groups every insert of one import.
func (r *BookRepository) BeginImport(ctx context.Context) (ImportTx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	return &bookImportTx{tx: tx}, nil
}

// Insert stores one row under a savepoint so a rejected row does not poison the batch.
func (t *bookImportTx) Insert(ctx context.Context, book *models.Book) error {
	if t.aborted {
		return ErrImportAborted
	}
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+importSavepoint); err != nil {
		t.aborted = true
		return fmt.Errorf("%w: savepoint: %v", ErrImportAborted, err)
	}

	insertErr := insertBook(ctx, t.tx, book)
	if insertErr == nil {
		if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+importSavepoint); err != nil {
			t.aborted = true
			return fmt.Errorf("%w: release savepoint: %v", ErrImportAborted, err)
		}
		return nil
	}

	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+importSavepoint); err != nil {
		t.aborted = true
		return fmt.Errorf("%w: rollback to savepoint: %v (insert: %v)", ErrImportAborted, err, insertErr)
	}
	return insertErr
}

func (t *bookImportTx) Commit() error {
	if t.aborted {
		_ = t.tx.Rollback()
		return ErrImportAborted
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (t *bookImportTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback import: %w", err)
	}
	return nil
}
