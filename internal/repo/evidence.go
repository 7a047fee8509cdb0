package repo

import (
	"context"
	"database/sql"

	"esgtrack/internal/domain"
)

func (r Repo) InsertEvidence(ctx context.Context, tx *sql.Tx, ev domain.Evidence) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO evidence(id,task_id,company_id,kind,filename,mime_type,value,unit,note,created_by,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.TaskID, ev.CompanyID, string(ev.Kind), nullable(ev.Filename), nullable(ev.MimeType), nullableFloatPtr(ev.Value),
		nullable(ev.Unit), nullable(ev.Note), ev.CreatedBy, ev.CreatedAt)
	return err
}

func (r Repo) ListEvidence(ctx context.Context, taskID string) ([]domain.Evidence, error) {
	return r.ListEvidenceTx(ctx, nil, taskID)
}

func (r Repo) ListEvidenceTx(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.Evidence, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,task_id,company_id,kind,COALESCE(filename,''),COALESCE(mime_type,''),value,COALESCE(unit,''),COALESCE(note,''),created_by,created_at
FROM evidence WHERE task_id=? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Evidence{}
	for rows.Next() {
		var ev domain.Evidence
		var kind string
		var value sql.NullFloat64
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.CompanyID, &kind, &ev.Filename, &ev.MimeType, &value, &ev.Unit, &ev.Note, &ev.CreatedBy, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Kind = domain.EvidenceType(kind)
		if value.Valid {
			v := value.Float64
			ev.Value = &v
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}

func (r Repo) CountEvidence(ctx context.Context, tx *sql.Tx, taskID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence WHERE task_id=?`, taskID).Scan(&n)
	return n, err
}

// EvidenceCounts returns the number of evidence items per task for a company.
func (r Repo) EvidenceCounts(ctx context.Context, tx *sql.Tx, companyID string) (map[string]int, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT task_id, COUNT(*) FROM evidence WHERE company_id=? GROUP BY task_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}
	return res, rows.Err()
}
