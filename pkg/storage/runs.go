package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/diag"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/kca"
)

// timeFormat has a fixed width so stored times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveRun stores a finished run with its rows, diagnostics and key
// categories in one transaction.
func SaveRun(ctx context.Context, db *sql.DB, res *engine.Result) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var uBY, uRY, uTrend float64
	if tr, ok := res.TotalRow(); ok {
		uBY = tr.Years[inventory.BY].MC.U.Mean
		uRY = tr.Years[inventory.RY].MC.U.Mean
		uTrend = tr.Years[inventory.Trend].MC.U.Mean
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO euq_runs(id,status,variant,unit,seed,simulations,categories,
		total_by,total_ry,u_by,u_ry,u_trend,result,started_at,finished_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		res.RunID, StatusDone, string(res.Variant), res.Unit, strconv.FormatUint(res.Seed, 10),
		res.Simulations, len(res.Params), res.Totals.BY, res.Totals.RY, uBY, uRY, uTrend, blob,
		res.Started.Format(timeFormat), res.Finished.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO euq_rows(run_id,position,process,compound,resource,depth,is_import,
		quantity,status,value,analytic_lower,analytic_upper,analytic_mean,mc_mean,mc_low,mc_high,mc_lower,mc_upper,mc_u,corr)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer rowStmt.Close()
	for i, r := range res.Records() {
		if _, err := rowStmt.ExecContext(ctx, res.RunID, i, r.Key.Process, r.Key.Compound, r.Key.Resource,
			r.Depth, boolInt(r.Import), r.Quantity.String(), string(r.Status), r.Value,
			r.Analytic.Lower, r.Analytic.Upper, r.Analytic.Mean,
			r.MCMean, r.MCInterval.Low, r.MCInterval.High, r.MC.Lower, r.MC.Upper, r.MC.Mean, r.Corr); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}

	if err := insertDiagnostics(ctx, tx, res.RunID, res.Diagnostics); err != nil {
		return err
	}

	kcaStmt, err := tx.PrepareContext(ctx, `INSERT INTO euq_key_categories(run_id,position,process,compound,resource,
		kind,approach,share,cumulative,is_key,extended) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer kcaStmt.Close()
	for i, a := range res.KeyCategories {
		if _, err := kcaStmt.ExecContext(ctx, res.RunID, i, a.Key.Process, a.Key.Compound, a.Key.Resource,
			string(a.Kind), a.Approach, a.Share, a.Cumulative, boolInt(a.IsKey), boolInt(a.Extended)); err != nil {
			return fmt.Errorf("insert key category: %w", err)
		}
	}
	return tx.Commit()
}

func insertDiagnostics(ctx context.Context, tx *sql.Tx, runID string, entries []diag.Entry) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO euq_diagnostics(run_id,position,logged_at,level,message,attrs)
		VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range entries {
		var attrs sql.NullString
		if len(e.Attrs) > 0 {
			b, err := json.Marshal(e.Attrs)
			if err != nil {
				return fmt.Errorf("encode diagnostic attrs: %w", err)
			}
			attrs = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, i, e.Time.Format(timeFormat), e.Level, e.Message, attrs); err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return nil
}

// SaveFailedRun records a run that stopped with a fatal error together with
// the diagnostics written up to that point.
func SaveFailedRun(ctx context.Context, db *sql.DB, id, variant string, runErr error, entries []diag.Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().UTC().Format(timeFormat)
	if _, err := tx.ExecContext(ctx, `INSERT INTO euq_runs(id,status,variant,error,started_at,finished_at)
		VALUES(?,?,?,?,?,?)`, id, StatusFailed, variant, runErr.Error(), now, now); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := insertDiagnostics(ctx, tx, id, entries); err != nil {
		return err
	}
	return tx.Commit()
}

const runColumns = `id,status,variant,COALESCE(unit,''),COALESCE(seed,''),simulations,categories,
	total_by,total_ry,u_by,u_ry,u_trend,COALESCE(error,''),COALESCE(started_at,''),COALESCE(finished_at,'')`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunInfo, error) {
	var r RunInfo
	err := s.Scan(&r.ID, &r.Status, &r.Variant, &r.Unit, &r.Seed, &r.Simulations, &r.Categories,
		&r.TotalBY, &r.TotalRY, &r.UBY, &r.URY, &r.UTrend, &r.Error, &r.StartedAt, &r.FinishedAt)
	return r, err
}

// GetRun returns the summary of one run.
func GetRun(ctx context.Context, db *sql.DB, id string) (RunInfo, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM euq_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return RunInfo{}, ErrRunNotFound
	}
	return r, err
}

// ListRuns returns the most recent runs first.
func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM euq_runs
		ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadResult decodes the full result of a finished run.
func LoadResult(ctx context.Context, db *sql.DB, id string) (*engine.Result, error) {
	var blob []byte
	err := db.QueryRowContext(ctx, `SELECT result FROM euq_runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, id)
	}
	var res engine.Result
	if err := json.Unmarshal(blob, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// RowFilter narrows ListRows. A zero Quantity pointer and a negative Depth
// select everything.
type RowFilter struct {
	Quantity   *inventory.Year
	Depth      int
	ImportOnly bool
}

// ListRows returns the stored result rows of a run in output order.
func ListRows(ctx context.Context, db *sql.DB, id string, f RowFilter) ([]engine.Record, error) {
	q := `SELECT process,compound,resource,depth,is_import,quantity,COALESCE(status,''),value,
		analytic_lower,analytic_upper,analytic_mean,mc_mean,mc_low,mc_high,mc_lower,mc_upper,mc_u,corr
		FROM euq_rows WHERE run_id = ?`
	args := []any{id}
	if f.Quantity != nil {
		q += ` AND quantity = ?`
		args = append(args, f.Quantity.String())
	}
	if f.Depth >= 0 {
		q += ` AND depth = ?`
		args = append(args, f.Depth)
	}
	if f.ImportOnly {
		q += ` AND is_import = 1`
	}
	q += ` ORDER BY position`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Record
	for rows.Next() {
		var r engine.Record
		var imp int
		var quantity, status string
		if err := rows.Scan(&r.Key.Process, &r.Key.Compound, &r.Key.Resource, &r.Depth, &imp, &quantity, &status,
			&r.Value, &r.Analytic.Lower, &r.Analytic.Upper, &r.Analytic.Mean, &r.MCMean,
			&r.MCInterval.Low, &r.MCInterval.High, &r.MC.Lower, &r.MC.Upper, &r.MC.Mean, &r.Corr); err != nil {
			return nil, err
		}
		r.Import = imp == 1
		r.Status = inventory.Status(status)
		y, ok := inventory.ParseYear(quantity)
		if !ok {
			return nil, fmt.Errorf("stored row has unknown quantity %q", quantity)
		}
		r.Quantity = y
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDiagnostics returns the diagnostic log of a run, optionally only the
// entries of one level.
func ListDiagnostics(ctx context.Context, db *sql.DB, id, level string) ([]diag.Entry, error) {
	q := `SELECT COALESCE(logged_at,''),level,message,COALESCE(attrs,'') FROM euq_diagnostics WHERE run_id = ?`
	args := []any{id}
	if level != "" {
		q += ` AND level = ?`
		args = append(args, level)
	}
	rows, err := db.QueryContext(ctx, q+` ORDER BY position`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []diag.Entry
	for rows.Next() {
		var e diag.Entry
		var at, attrs string
		if err := rows.Scan(&at, &e.Level, &e.Message, &attrs); err != nil {
			return nil, err
		}
		if at != "" {
			e.Time, _ = time.Parse(timeFormat, at)
		}
		if attrs != "" {
			if err := json.Unmarshal([]byte(attrs), &e.Attrs); err != nil {
				return nil, fmt.Errorf("decode diagnostic attrs: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListKeyCategories returns the key category assessments of a run. With
// onlyKey set, categories below the threshold are left out.
func ListKeyCategories(ctx context.Context, db *sql.DB, id string, onlyKey bool) ([]kca.Assessment, error) {
	q := `SELECT process,compound,resource,kind,approach,share,cumulative,is_key,extended
		FROM euq_key_categories WHERE run_id = ?`
	if onlyKey {
		q += ` AND is_key = 1`
	}
	rows, err := db.QueryContext(ctx, q+` ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kca.Assessment
	for rows.Next() {
		var a kca.Assessment
		var kind string
		var isKey, ext int
		if err := rows.Scan(&a.Key.Process, &a.Key.Compound, &a.Key.Resource, &kind, &a.Approach,
			&a.Share, &a.Cumulative, &isKey, &ext); err != nil {
			return nil, err
		}
		a.Kind = kca.Kind(kind)
		a.IsKey = isKey == 1
		a.Extended = ext == 1
		out = append(out, a)
	}
	return out, rows.Err()
}
