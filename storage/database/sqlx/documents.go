package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
)

// Document kinds
const (
	kindForm              = "form"
	kindFormResponse      = "form_response"
	kindReportTemplate    = "report_template"
	kindReport            = "report"
	kindObservation       = "observation"
	kindObservatoryConfig = "observatory_config"
	kindSettings          = "settings"

	singletonID = "default"
)

var errNoDocument = errors.New("document not found")

// documents stores JSON documents keyed by kind & id, optionally grouped by parent & owner.
type documents struct {
	db *sqlx.DB
}

type documentKey struct {
	id       string
	parentID string
	ownerID  string
}

func (d documents) upsert(ctx context.Context, kind string, key documentKey, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	q := `INSERT INTO documents (kind, id, parent_id, owner_id, data) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, id) DO UPDATE SET parent_id = EXCLUDED.parent_id, owner_id = EXCLUDED.owner_id,
			data = EXCLUDED.data, updated_at = now()`
	if _, err = d.db.ExecContext(ctx, q, kind, key.id, key.parentID, key.ownerID, types.JSONText(data)); err != nil {
		return errors.Wrapf(err, "saving %s", kind)
	}
	return nil
}

// update returns errNoDocument when the document does not exist.
func (d documents) update(ctx context.Context, kind, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	res, err := d.db.ExecContext(ctx, `UPDATE documents SET data = $3, updated_at = now() WHERE kind = $1 AND id = $2`, kind, id, types.JSONText(data))
	if err != nil {
		return errors.Wrapf(err, "updating %s", kind)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errNoDocument
	}
	return nil
}

// get returns errNoDocument when the document does not exist.
func (d documents) get(ctx context.Context, kind, id string, v interface{}) error {
	var data types.JSONText
	if err := d.db.GetContext(ctx, &data, `SELECT data FROM documents WHERE kind = $1 AND id = $2`, kind, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return errNoDocument
		}
		return errors.Wrapf(err, "getting %s", kind)
	}
	return errors.Wrapf(data.Unmarshal(v), "decoding %s", kind)
}

// list decodes each matching document with decode, oldest first. Empty parent or owner ids match any.
func (d documents) list(ctx context.Context, kind, parentID, ownerID string, decode func(data types.JSONText) error) error {
	where := []string{"kind = $1"}
	args := []interface{}{kind}
	if parentID != "" {
		args = append(args, parentID)
		where = append(where, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if ownerID != "" {
		args = append(args, ownerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	var rows []types.JSONText
	q := `SELECT data FROM documents WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	if err := d.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return errors.Wrapf(err, "querying %s", kind)
	}
	for _, data := range rows {
		if err := decode(data); err != nil {
			return errors.Wrapf(err, "decoding %s", kind)
		}
	}
	return nil
}

// delete reports whether a document was deleted.
func (d documents) delete(ctx context.Context, kind, id string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, kind, id)
	if err != nil {
		return false, errors.Wrapf(err, "deleting %s", kind)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (d documents) deleteByParent(ctx context.Context, kind, parentID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = $1 AND parent_id = $2`, kind, parentID); err != nil {
		return errors.Wrapf(err, "deleting %s", kind)
	}
	return nil
}
