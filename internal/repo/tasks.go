package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"esgtrack/internal/domain"
)

const taskColumns = `id,company_id,sector,title,COALESCE(description,''),COALESCE(compliance_context,''),COALESCE(action_required,''),category,priority,status,due_date,framework_tags_json,required_evidence_count,evidence_type,estimated_hours,source,source_key,progress,created_at,updated_at,completed_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	tags, err := marshalTags(t.FrameworkTags)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO tasks(id,company_id,sector,title,description,compliance_context,action_required,category,priority,status,due_date,framework_tags_json,required_evidence_count,evidence_type,estimated_hours,source,source_key,progress,created_at,updated_at,completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CompanyID, t.Sector, t.Title, nullable(t.Description), nullable(t.ComplianceContext), nullable(t.ActionRequired),
		string(t.Category), string(t.Priority), t.Status, formatTime(t.DueDate), tags, t.RequiredEvidenceCount, string(t.EvidenceType),
		t.EstimatedHours, t.Source, t.SourceKey, t.Progress, formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullableTime(t.CompletedAt))
	return err
}

// UpdateTask rewrites every mutable column; id, company and source key are fixed.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	tags, err := marshalTags(t.FrameworkTags)
	if err != nil {
		return err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET sector=?, title=?, description=?, compliance_context=?, action_required=?, category=?, priority=?, status=?, due_date=?, framework_tags_json=?, required_evidence_count=?, evidence_type=?, estimated_hours=?, progress=?, updated_at=?, completed_at=? WHERE id=?`,
		t.Sector, t.Title, nullable(t.Description), nullable(t.ComplianceContext), nullable(t.ActionRequired), string(t.Category), string(t.Priority),
		t.Status, formatTime(t.DueDate), tags, t.RequiredEvidenceCount, string(t.EvidenceType), t.EstimatedHours, t.Progress,
		formatTime(t.UpdatedAt), nullableTime(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) GetTask(ctx context.Context, companyID, id string) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, companyID, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, companyID, id string) (domain.Task, error) {
	return scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE company_id=? AND id=?`, companyID, id))
}

type TaskFilters struct {
	CompanyID string
	Status    string
	Category  string
	Priority  string
	Source    string
	Framework string
	DueBefore *time.Time
	Limit     int
}

// ListTasks orders by priority, then due date, then id.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	return r.ListTasksTx(ctx, nil, f)
}

func (r Repo) ListTasksTx(ctx context.Context, tx *sql.Tx, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.CompanyID != "" {
		clauses = append(clauses, "company_id=?")
		args = append(args, f.CompanyID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.Source != "" {
		clauses = append(clauses, "source=?")
		args = append(args, f.Source)
	}
	if f.Framework != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(tasks.framework_tags_json) WHERE json_each.value=?)")
		args = append(args, f.Framework)
	}
	if f.DueBefore != nil {
		clauses = append(clauses, "due_date<?")
		args = append(args, formatTime(*f.DueBefore))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where +
		` ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, due_date, id`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasksByStatus(ctx context.Context, companyID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE company_id=? GROUP BY status`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var category, priority, evidenceType, tags, due, created, updated string
	var completed sql.NullString
	err := row.Scan(&t.ID, &t.CompanyID, &t.Sector, &t.Title, &t.Description, &t.ComplianceContext, &t.ActionRequired,
		&category, &priority, &t.Status, &due, &tags, &t.RequiredEvidenceCount, &evidenceType, &t.EstimatedHours,
		&t.Source, &t.SourceKey, &t.Progress, &created, &updated, &completed)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Category = domain.Category(category)
	t.Priority = domain.Priority(priority)
	t.EvidenceType = domain.EvidenceType(evidenceType)
	if err := json.Unmarshal([]byte(tags), &t.FrameworkTags); err != nil {
		return t, fmt.Errorf("decode framework tags of %s: %w", t.ID, err)
	}
	if t.FrameworkTags == nil {
		t.FrameworkTags = []string{}
	}
	if t.DueDate, err = parseTime(due); err != nil {
		return t, fmt.Errorf("parse due date of %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, fmt.Errorf("parse created_at of %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, fmt.Errorf("parse updated_at of %s: %w", t.ID, err)
	}
	if completed.Valid {
		ts, err := parseTime(completed.String)
		if err != nil {
			return t, fmt.Errorf("parse completed_at of %s: %w", t.ID, err)
		}
		t.CompletedAt = &ts
	}
	return t, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode framework tags: %w", err)
	}
	return string(data), nil
}
