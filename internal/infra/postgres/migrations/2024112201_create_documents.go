package migrations

import _ "embed"

var (
	//go:embed 2024112201_create_documents.sql
	createDocumentsSQL string
	//go:embed 2024112201_create_documents.down.sql
	dropDocumentsSQL string
)

func init() {
	Migrations.MustRegister(sqlMigration(createDocumentsSQL, dropDocumentsSQL))
}
