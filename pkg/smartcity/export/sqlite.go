package export

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/dataset"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/synthetic"
	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/validation"
)

// SQLiteExporter bundles one pipeline run into a single SQLite file
type SQLiteExporter struct {
	db       *sql.DB
	dbPath   string
	mutex    sync.RWMutex
	prepared map[string]*sql.Stmt
}

// NewSQLiteExporter opens (or creates) the bundle at dbPath
func NewSQLiteExporter(dbPath string) (*SQLiteExporter, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL&_cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	e := &SQLiteExporter{
		db:       db,
		dbPath:   dbPath,
		prepared: make(map[string]*sql.Stmt),
	}
	if err := e.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %v", err)
	}
	if err := e.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %v", err)
	}
	return e, nil
}

// Path returns the database file location
func (e *SQLiteExporter) Path() string {
	return e.dbPath
}

func (e *SQLiteExporter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS energy_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		total_consumption_mw REAL NOT NULL,
		residential_mw REAL NOT NULL,
		commercial_mw REAL NOT NULL,
		industrial_mw REAL NOT NULL,
		grid_frequency_hz REAL NOT NULL,
		voltage_kv REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS emergency_requests (
		request_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		service_type TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		district TEXT NOT NULL,
		description TEXT,
		estimated_resolution_hours INTEGER NOT NULL,
		PRIMARY KEY (run_id, request_id)
	);

	CREATE TABLE IF NOT EXISTS dataset_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		dataset TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		data TEXT NOT NULL -- JSON object keyed by column
	);

	CREATE TABLE IF NOT EXISTS validation_reports (
		run_id TEXT NOT NULL,
		dataset TEXT NOT NULL,
		quality_score INTEGER NOT NULL,
		total_records INTEGER NOT NULL,
		report TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, dataset)
	);

	CREATE INDEX IF NOT EXISTS idx_energy_run_timestamp ON energy_readings(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_emergency_service ON emergency_requests(service_type);
	CREATE INDEX IF NOT EXISTS idx_dataset_rows_run ON dataset_rows(run_id, dataset);
	`

	_, err := e.db.Exec(schema)
	return err
}

func (e *SQLiteExporter) prepareStatements() error {
	statements := map[string]string{
		"insert_energy": `
			INSERT INTO energy_readings (
				run_id, timestamp, total_consumption_mw, residential_mw, commercial_mw,
				industrial_mw, grid_frequency_hz, voltage_kv
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
		"insert_emergency": `
			INSERT OR REPLACE INTO emergency_requests (
				request_id, run_id, timestamp, service_type, priority, status,
				latitude, longitude, district, description, estimated_resolution_hours
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
		"insert_row": `
			INSERT INTO dataset_rows (run_id, dataset, row_index, data)
			VALUES (?, ?, ?, ?)
		`,
		"insert_report": `
			INSERT OR REPLACE INTO validation_reports (run_id, dataset, quality_score, total_records, report)
			VALUES (?, ?, ?, ?, ?)
		`,
		"select_energy_range": `
			SELECT timestamp, total_consumption_mw, residential_mw, commercial_mw,
				   industrial_mw, grid_frequency_hz, voltage_kv
			FROM energy_readings
			WHERE run_id = ? AND timestamp BETWEEN ? AND ?
			ORDER BY timestamp ASC
		`,
		"count_requests_by_service": `
			SELECT service_type, COUNT(*)
			FROM emergency_requests
			WHERE run_id = ?
			GROUP BY service_type
		`,
	}

	for name, query := range statements {
		stmt, err := e.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %v", name, err)
		}
		e.prepared[name] = stmt
	}
	return nil
}

// StoreEnergy writes energy readings for a run in one transaction
func (e *SQLiteExporter) StoreEnergy(runID string, records []synthetic.EnergyRecord) error {
	return e.inTx("insert_energy", func(stmt *sql.Stmt) error {
		for _, r := range records {
			if _, err := stmt.Exec(runID, r.Timestamp.UTC(), r.TotalConsumptionMW, r.ResidentialMW,
				r.CommercialMW, r.IndustrialMW, r.GridFrequencyHz, r.VoltageKV); err != nil {
				return fmt.Errorf("failed to store energy reading at %s: %v", r.Timestamp, err)
			}
		}
		klog.V(3).InfoS("Stored energy readings", "runID", runID, "records", len(records))
		return nil
	})
}

// StoreEmergency writes service requests for a run in one transaction
func (e *SQLiteExporter) StoreEmergency(runID string, requests []synthetic.EmergencyRequest) error {
	return e.inTx("insert_emergency", func(stmt *sql.Stmt) error {
		for _, r := range requests {
			if _, err := stmt.Exec(r.RequestID, runID, r.Timestamp.UTC(), string(r.ServiceType),
				string(r.Priority), string(r.Status), r.Latitude, r.Longitude, r.District,
				r.Description, r.ResolutionHours); err != nil {
				return fmt.Errorf("failed to store request %s: %v", r.RequestID, err)
			}
		}
		klog.V(3).InfoS("Stored emergency requests", "runID", runID, "records", len(requests))
		return nil
	})
}

// StoreDataset writes every row of a collected dataset as a JSON object
func (e *SQLiteExporter) StoreDataset(runID, name string, ds *dataset.Dataset) error {
	return e.inTx("insert_row", func(stmt *sql.Stmt) error {
		for i, record := range ds.Records() {
			data, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("failed to marshal %s row %d: %v", name, i, err)
			}
			if _, err := stmt.Exec(runID, name, i, string(data)); err != nil {
				return fmt.Errorf("failed to store %s row %d: %v", name, i, err)
			}
		}
		klog.V(3).InfoS("Stored dataset rows", "runID", runID, "dataset", name, "records", ds.Len())
		return nil
	})
}

// StoreReports writes one validation report per dataset
func (e *SQLiteExporter) StoreReports(runID string, reports map[string]*validation.Report) error {
	return e.inTx("insert_report", func(stmt *sql.Stmt) error {
		for name, report := range reports {
			data, err := json.Marshal(report)
			if err != nil {
				return fmt.Errorf("failed to marshal %s report: %v", name, err)
			}
			if _, err := stmt.Exec(runID, name, report.QualityScore, report.TotalRecords, string(data)); err != nil {
				return fmt.Errorf("failed to store %s report: %v", name, err)
			}
		}
		return nil
	})
}

// EnergyRange reads back a run's readings between start and end inclusive.
// Timestamps are stored and returned in UTC.
func (e *SQLiteExporter) EnergyRange(runID string, start, end time.Time) ([]synthetic.EnergyRecord, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	rows, err := e.prepared["select_energy_range"].Query(runID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query energy readings: %v", err)
	}
	defer rows.Close()

	var records []synthetic.EnergyRecord
	for rows.Next() {
		var r synthetic.EnergyRecord
		if err := rows.Scan(&r.Timestamp, &r.TotalConsumptionMW, &r.ResidentialMW, &r.CommercialMW,
			&r.IndustrialMW, &r.GridFrequencyHz, &r.VoltageKV); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %v", err)
	}
	return records, nil
}

// RequestsByService counts a run's stored requests per service type
func (e *SQLiteExporter) RequestsByService(runID string) (map[string]int, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	rows, err := e.prepared["count_requests_by_service"].Query(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %v", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var service string
		var n int
		if err := rows.Scan(&service, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		counts[service] = n
	}
	return counts, rows.Err()
}

func (e *SQLiteExporter) inTx(statement string, fn func(stmt *sql.Stmt) error) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	stmt := tx.Stmt(e.prepared[statement])
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// Close closes the prepared statements and the database
func (e *SQLiteExporter) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for _, stmt := range e.prepared {
		stmt.Close()
	}
	return e.db.Close()
}
