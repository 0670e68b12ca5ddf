package mysql

import (
	"context"
	"database/sql"
	"strings"

	"ski_homes/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func ptrF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

// batch keeps one statement well under max_allowed_packet and the 65535 placeholder cap.
const batch = 500

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertResorts writes resorts keyed by name; slice order becomes catalog order.
func (r *Repo) UpsertResorts(ctx context.Context, rs []domain.Resort) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for off := 0; off < len(rs); off += batch {
		end := min(off+batch, len(rs))
		values := make([]string, 0, end-off)
		args := make([]any, 0, (end-off)*9)
		for i, res := range rs[off:end] {
			values = append(values, "(?,?,?,?,?,?,?,?,?)")
			var lat, lon any
			if res.Coords != nil {
				lat, lon = res.Coords.Lat, res.Coords.Lon
			}
			args = append(args,
				res.Name,
				off+i,
				res.Region,
				valStr(res.State),
				lat, lon,
				valF64(res.SkiableAcres),
				valF64(res.VerticalDrop),
				valF64(res.AnnualSnowfall),
			)
		}
		q := insertResortsPrefix + strings.Join(values, ",") + insertResortsOnDup
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) ListResorts(ctx context.Context) ([]domain.Resort, error) {
	rows, err := r.db.QueryContext(ctx, listResortsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Resort
	for rows.Next() {
		var res domain.Resort
		var state sql.NullString
		var lat, lon, acres, drop, snow sql.NullFloat64
		if err := rows.Scan(&res.Name, &res.Region, &state, &lat, &lon, &acres, &drop, &snow); err != nil {
			return nil, err
		}
		if state.Valid {
			s := state.String
			res.State = &s
		}
		if lat.Valid && lon.Valid {
			res.Coords = &domain.Coords{Lat: lat.Float64, Lon: lon.Float64}
		}
		res.SkiableAcres, res.VerticalDrop, res.AnnualSnowfall = ptrF64(acres), ptrF64(drop), ptrF64(snow)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
