// Package export writes the admin spreadsheet and runs the daily export job.
// It only reads from storage.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"alphagate/entity"
	"alphagate/lib/clock"
	"alphagate/lib/sl"

	"github.com/xuri/excelize/v2"
)

const (
	SheetLogins     = "Logins"
	SheetRequests   = "Requests"
	SheetAlphaCodes = "AlphaCodes"
	FileName        = "alpha_export.xlsx"
)

type Source interface {
	ListLoginRecords(ctx context.Context) ([]*entity.LoginRecord, error)
	ListAccessRequests(ctx context.Context) ([]*entity.AccessRequest, error)
	ListAccessCodes(ctx context.Context) ([]*entity.AccessCode, error)
}

type column struct {
	header string
	width  float64
}

var (
	loginColumns = []column{
		{"Name", 25}, {"CountryCode", 10}, {"Mobile", 15}, {"Email", 30},
		{"AlphaCode", 30}, {"Accepted", 10}, {"IP", 20}, {"CreatedAt", 25},
	}
	requestColumns = []column{
		{"Name", 25}, {"CountryCode", 10}, {"Mobile", 15}, {"Email", 30},
		{"Approved", 10}, {"AlphaCodeId", 40}, {"CreatedAt", 25},
	}
	codeColumns = []column{
		{"Code", 30}, {"SingleUse", 10}, {"IssuedToEmail", 30}, {"IssuedToMobile", 20}, {"Used", 10},
		{"IssuedAt", 25}, {"UsedAt", 25}, {"ExpiresAt", 25}, {"IssuedBy", 20}, {"Note", 30},
	}
)

type Exporter struct {
	db    Source
	dir   string
	clock clock.Clock
	log   *slog.Logger
}

func New(db Source, dir string, clk clock.Clock, log *slog.Logger) *Exporter {
	return &Exporter{
		db:    db,
		dir:   dir,
		clock: clk,
		log:   log.With(sl.Module("export")),
	}
}

// Write streams the full admin workbook: logins, requests and codes.
func (e *Exporter) Write(ctx context.Context, w io.Writer) error {
	f, err := e.build(ctx, true)
	if err != nil {
		return err
	}
	defer f.Close()
	if err = f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteDaily saves the logins and requests workbook into the export directory.
func (e *Exporter) WriteDaily(ctx context.Context) (string, error) {
	f, err := e.build(ctx, false)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err = os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.dir, fmt.Sprintf("alpha_users_%s.xlsx", e.clock.Now().Format("2006-01-02")))
	if err = f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	e.log.Info("daily export written", slog.String("path", path))
	return path, nil
}

func (e *Exporter) build(ctx context.Context, withCodes bool) (*excelize.File, error) {
	logins, err := e.db.ListLoginRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logins: %w", err)
	}
	requests, err := e.db.ListAccessRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	var codes []*entity.AccessCode
	if withCodes {
		if codes, err = e.db.ListAccessCodes(ctx); err != nil {
			return nil, fmt.Errorf("list codes: %w", err)
		}
	}

	f := excelize.NewFile()
	if err = f.SetSheetName("Sheet1", SheetLogins); err != nil {
		_ = f.Close()
		return nil, err
	}
	rows := make([][]interface{}, 0, len(logins))
	for _, l := range logins {
		rows = append(rows, []interface{}{
			l.Name, l.CountryCode, l.Mobile, l.Email, l.AlphaCode, l.Accepted, l.IP, clock.Format(l.CreatedAt),
		})
	}
	if err = writeSheet(f, SheetLogins, loginColumns, rows); err != nil {
		_ = f.Close()
		return nil, err
	}

	rows = make([][]interface{}, 0, len(requests))
	for _, r := range requests {
		codeId := ""
		if r.AlphaCodeID != nil {
			codeId = r.AlphaCodeID.Hex()
		}
		rows = append(rows, []interface{}{
			r.Name, r.CountryCode, r.Mobile, r.Email, r.Approved, codeId, clock.Format(r.CreatedAt),
		})
	}
	if err = writeSheet(f, SheetRequests, requestColumns, rows); err != nil {
		_ = f.Close()
		return nil, err
	}

	if withCodes {
		rows = make([][]interface{}, 0, len(codes))
		for _, c := range codes {
			rows = append(rows, []interface{}{
				c.Code, c.SingleUse, c.IssuedToEmail, c.IssuedToMobile, c.Used,
				clock.Format(c.IssuedAt), clock.FormatPtr(c.UsedAt), clock.FormatPtr(c.ExpiresAt), c.IssuedBy, c.Note,
			})
		}
		if err = writeSheet(f, SheetAlphaCodes, codeColumns, rows); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, columns []column, rows [][]interface{}) error {
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err = f.SetColWidth(sheet, name, name, c.width); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
