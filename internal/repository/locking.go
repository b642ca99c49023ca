package repository

import "gorm.io/gorm/clause"

// forUpdateClause builds the row lock clause for read-modify-write paths.
func forUpdateClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}
