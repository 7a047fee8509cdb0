package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"esgtrack/internal/domain"
)

const companyColumns = `id,name,sector,COALESCE(emirate,''),COALESCE(employee_size,''),preferences_json,answers_json,created_at,updated_at`

func (r Repo) InsertCompany(ctx context.Context, tx *sql.Tx, c domain.Company) error {
	prefs, answers, err := marshalCompanyJSON(c)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO companies(id,name,sector,emirate,employee_size,preferences_json,answers_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Sector, nullable(c.Emirate), nullable(c.EmployeeSize), prefs, answers, c.CreatedAt, c.UpdatedAt)
	return err
}

// UpdateCompany rewrites the profile, preferences and answers of a company.
func (r Repo) UpdateCompany(ctx context.Context, tx *sql.Tx, c domain.Company) error {
	prefs, answers, err := marshalCompanyJSON(c)
	if err != nil {
		return err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE companies SET name=?, sector=?, emirate=?, employee_size=?, preferences_json=?, answers_json=?, updated_at=? WHERE id=?`,
		c.Name, c.Sector, nullable(c.Emirate), nullable(c.EmployeeSize), prefs, answers, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) GetCompany(ctx context.Context, id string) (domain.Company, error) {
	return r.GetCompanyTx(ctx, nil, id)
}

func (r Repo) GetCompanyTx(ctx context.Context, tx *sql.Tx, id string) (domain.Company, error) {
	c, err := scanCompany(r.q(tx).QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id=?`, id))
	if err != nil {
		return c, err
	}
	meters, err := r.ListMetersTx(ctx, tx, id)
	if err != nil {
		return c, err
	}
	c.Meters = meters
	return c, nil
}

type CompanyFilters struct {
	ID     string
	Sector string
	Limit  int
}

// ListCompanies returns companies newest first; meters are not loaded.
func (r Repo) ListCompanies(ctx context.Context, f CompanyFilters) ([]domain.Company, error) {
	var clauses []string
	var args []any
	if f.ID != "" {
		clauses = append(clauses, "id=?")
		args = append(args, f.ID)
	}
	if f.Sector != "" {
		clauses = append(clauses, "sector=?")
		args = append(args, f.Sector)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + companyColumns + ` FROM companies ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) DeleteCompany(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM companies WHERE id=?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// UpsertMeter records a meter, replacing provider and location when the number already exists.
func (r Repo) UpsertMeter(ctx context.Context, tx *sql.Tx, companyID string, m domain.Meter, createdAt string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO meters(company_id,number,type,provider,location,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(company_id, number) DO UPDATE SET type=excluded.type, provider=excluded.provider, location=excluded.location`,
		companyID, m.Number, m.Type, nullable(m.Provider), nullable(m.Location), createdAt)
	return err
}

func (r Repo) ListMeters(ctx context.Context, companyID string) ([]domain.Meter, error) {
	return r.ListMetersTx(ctx, nil, companyID)
}

func (r Repo) ListMetersTx(ctx context.Context, tx *sql.Tx, companyID string) ([]domain.Meter, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT number,type,COALESCE(provider,''),COALESCE(location,'') FROM meters WHERE company_id=? ORDER BY created_at, number`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Meter
	for rows.Next() {
		var m domain.Meter
		if err := rows.Scan(&m.Number, &m.Type, &m.Provider, &m.Location); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (domain.Company, error) {
	var c domain.Company
	var prefs, answers string
	err := row.Scan(&c.ID, &c.Name, &c.Sector, &c.Emirate, &c.EmployeeSize, &prefs, &answers, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(prefs), &c.Preferences); err != nil {
		return c, fmt.Errorf("decode preferences of %s: %w", c.ID, err)
	}
	dec := json.NewDecoder(strings.NewReader(answers))
	dec.UseNumber()
	if err := dec.Decode(&c.Answers); err != nil {
		return c, fmt.Errorf("decode answers of %s: %w", c.ID, err)
	}
	if c.Answers == nil {
		c.Answers = domain.Answers{}
	}
	return c, nil
}

func marshalCompanyJSON(c domain.Company) (string, string, error) {
	prefs, err := json.Marshal(c.Preferences)
	if err != nil {
		return "", "", fmt.Errorf("encode preferences: %w", err)
	}
	answers := c.Answers
	if answers == nil {
		answers = domain.Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", "", fmt.Errorf("encode answers: %w", err)
	}
	return string(prefs), string(data), nil
}
