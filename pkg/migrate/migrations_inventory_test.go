package migrate_test

import "testing"

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	content := migrationContent(t, "*_create_inventory_items.sql")
	requireStatements(t, content, []string{
		"CREATE TABLE IF NOT EXISTS inventory_items",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (available_qty >= 0)",
		"CHECK (sold_qty >= 0)",
		"DROP TABLE IF EXISTS inventory_items",
	})
}
