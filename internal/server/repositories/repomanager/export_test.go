package repomanager

import (
	"io/fs"

	"github.com/ttn64681/SWE-Final-Proj/internal/server/migrations"
)

func migrationsDir() ([]fs.DirEntry, error) {
	return fs.ReadDir(migrations.Migrations, ".")
}
