package migrations

import _ "embed"

var (
	//go:embed 2024112203_create_submissions.sql
	createSubmissionsSQL string
	//go:embed 2024112203_create_submissions.down.sql
	dropSubmissionsSQL string
)

func init() {
	Migrations.MustRegister(sqlMigration(createSubmissionsSQL, dropSubmissionsSQL))
}
