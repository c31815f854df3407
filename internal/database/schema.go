package database

import (
	"database/sql"
	"fmt"

	"github.com/autoescuela/backend/internal/models"
	"gorm.io/gorm"
)

// UserColumns maps the four logical roles of the usuarios table onto whichever
// physical column names the connected database actually has.
type UserColumns struct {
	ID       string
	Name     string
	Email    string
	Password string
}

// Preference order per role: modern name first, legacy alternatives after.
var (
	idCandidates       = []string{"id_usuario", "id"}
	nameCandidates     = []string{"nombre", "nombre_completo", "usuario"}
	emailCandidates    = []string{"correo", "email", "usuario"}
	passwordCandidates = []string{"contrasena", "password", "clave"}
)

// DefaultUserColumns is the mapping for a schema created by this server.
func DefaultUserColumns() UserColumns {
	return UserColumns{
		ID:       "id_usuario",
		Name:     "nombre",
		Email:    "correo",
		Password: "contrasena",
	}
}

// schemaActions is what the compatibility pass decided to do with the
// usuarios table after inspecting it.
type schemaActions struct {
	createTable  bool
	addName      bool
	backfillFrom string
}

// planUserSchema decides between creating the modern table (fresh database)
// and repairing whatever historical shape is already there. A table that
// already exists is never handed to the ORM migrator: adding the modern NOT
// NULL columns to populated legacy rows would fail, and the legacy column
// names must survive so the resolved mapping can carry them.
func planUserSchema(existing map[string]bool) schemaActions {
	if len(existing) == 0 {
		return schemaActions{createTable: true}
	}
	if existing["nombre"] {
		return schemaActions{}
	}
	for _, legacy := range []string{"nombre_completo", "usuario"} {
		if existing[legacy] {
			return schemaActions{addName: true, backfillFrom: legacy}
		}
	}
	return schemaActions{addName: true}
}

// EnsureCompatibleSchema owns the usuarios table. On a fresh database it
// creates the modern shape; on an existing one it inspects the catalog,
// creates and backfills the nombre column when only a legacy name column is
// present, installs the digit-rejecting check constraint, attaches and
// synchronizes the id sequence, and returns the resolved column mapping.
// Non-Postgres dialects (the in-memory test database) just get the modern
// table and the default mapping.
func EnsureCompatibleSchema(db *gorm.DB) (UserColumns, error) {
	if db.Dialector.Name() != "postgres" {
		if err := db.AutoMigrate(&models.Usuario{}); err != nil {
			return UserColumns{}, err
		}
		return DefaultUserColumns(), nil
	}

	existing, err := tableColumns(db, "usuarios")
	if err != nil {
		return UserColumns{}, fmt.Errorf("inspecting usuarios columns: %w", err)
	}

	actions := planUserSchema(existing)
	switch {
	case actions.createTable:
		if err := db.AutoMigrate(&models.Usuario{}); err != nil {
			return UserColumns{}, fmt.Errorf("creating usuarios table: %w", err)
		}
		if existing, err = tableColumns(db, "usuarios"); err != nil {
			return UserColumns{}, fmt.Errorf("inspecting usuarios columns: %w", err)
		}
	case actions.addName:
		if err := addNameColumn(db, actions.backfillFrom); err != nil {
			return UserColumns{}, fmt.Errorf("adding nombre column: %w", err)
		}
		existing["nombre"] = true
	}

	columns, err := pickUserColumns(existing)
	if err != nil {
		return UserColumns{}, err
	}

	if err := ensureNoDigitsConstraint(db, columns.Name); err != nil {
		return UserColumns{}, fmt.Errorf("adding name constraint: %w", err)
	}

	if err := ensureUserSequence(db, columns.ID); err != nil {
		return UserColumns{}, fmt.Errorf("attaching usuarios sequence: %w", err)
	}

	return columns, nil
}

// pickUserColumns resolves each logical role against the set of physical
// columns present, preferring modern names.
func pickUserColumns(existing map[string]bool) (UserColumns, error) {
	pick := func(role string, candidates []string) (string, error) {
		for _, name := range candidates {
			if existing[name] {
				return name, nil
			}
		}
		return "", fmt.Errorf("usuarios table has no %s column (tried %v)", role, candidates)
	}

	var columns UserColumns
	var err error
	if columns.ID, err = pick("identifier", idCandidates); err != nil {
		return UserColumns{}, err
	}
	if columns.Name, err = pick("name", nameCandidates); err != nil {
		return UserColumns{}, err
	}
	if columns.Email, err = pick("email", emailCandidates); err != nil {
		return UserColumns{}, err
	}
	if columns.Password, err = pick("password", passwordCandidates); err != nil {
		return UserColumns{}, err
	}
	return columns, nil
}

func tableColumns(db *gorm.DB, table string) (map[string]bool, error) {
	var names []string
	err := db.Raw(
		"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ?",
		table,
	).Scan(&names).Error
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[name] = true
	}
	return existing, nil
}

func addNameColumn(db *gorm.DB, backfillFrom string) error {
	if err := db.Exec(`ALTER TABLE usuarios ADD COLUMN IF NOT EXISTS nombre varchar(150)`).Error; err != nil {
		return err
	}

	if backfillFrom == "" {
		return nil
	}
	return db.Exec(fmt.Sprintf(
		`UPDATE usuarios SET nombre = %s WHERE nombre IS NULL`, backfillFrom,
	)).Error
}

func ensureNoDigitsConstraint(db *gorm.DB, nameColumn string) error {
	constraint := fmt.Sprintf(`
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'usuarios_nombre_sin_digitos'
  ) THEN
    ALTER TABLE usuarios
    ADD CONSTRAINT usuarios_nombre_sin_digitos
    CHECK (%s !~ '[0-9]');
  END IF;
END $$;`, nameColumn)

	return db.Exec(constraint).Error
}

// sequenceDDL attaches a sequence to a legacy plain-integer id column:
// create it, make it the column default, and hand it to the column so
// pg_get_serial_sequence finds it from then on.
func sequenceDDL(idColumn string) []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS usuarios_id_seq`,
		fmt.Sprintf(`ALTER TABLE usuarios ALTER COLUMN %s SET DEFAULT nextval('usuarios_id_seq')`, idColumn),
		fmt.Sprintf(`ALTER SEQUENCE usuarios_id_seq OWNED BY usuarios.%s`, idColumn),
	}
}

// ensureUserSequence attaches a sequence to the id column when none is owned
// yet (legacy tables used a bare integer column), then synchronizes it with
// the current maximum identifier.
func ensureUserSequence(db *gorm.DB, idColumn string) error {
	var owned sql.NullString
	err := db.Raw(`SELECT pg_get_serial_sequence('usuarios', ?)`, idColumn).Scan(&owned).Error
	if err != nil {
		return err
	}

	if !owned.Valid || owned.String == "" {
		for _, stmt := range sequenceDDL(idColumn) {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	}

	return syncUserSequence(db, idColumn)
}

func syncUserSequence(db *gorm.DB, idColumn string) error {
	return db.Exec(fmt.Sprintf(`
SELECT setval(
  pg_get_serial_sequence('usuarios', '%s'),
  COALESCE((SELECT MAX(%s) FROM usuarios), 0) + 1,
  false
)`, idColumn, idColumn)).Error
}

// ResyncUserSequence re-aligns the id sequence with the current maximum after
// the delete handler renumbers rows. No-op outside Postgres.
func ResyncUserSequence(tx *gorm.DB, idColumn string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return syncUserSequence(tx, idColumn)
}
