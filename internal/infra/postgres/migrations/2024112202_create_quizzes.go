package migrations

import _ "embed"

var (
	//go:embed 2024112202_create_quizzes.sql
	createQuizzesSQL string
	//go:embed 2024112202_create_quizzes.down.sql
	dropQuizzesSQL string
)

func init() {
	Migrations.MustRegister(sqlMigration(createQuizzesSQL, dropQuizzesSQL))
}
