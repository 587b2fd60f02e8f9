package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
)

type mockCatalog struct {
	entity.BaseCatalog
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

func TestExtractDBColumns_EmbeddedStructs(t *testing.T) {
	cols := ExtractDBColumns[mockCatalog]()

	expectedCols := []string{
		"id", "deletion_mark", "version", "code", "name",
	}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap_EmbeddedStructs(t *testing.T) {
	cat := mockCatalog{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.BaseEntity{
				ID:           id.New(),
				DeletionMark: true,
				Version:      5,
			},
		},
		Code: "TEST",
		Name: "Test Name",
	}

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "TEST", m["code"])
	assert.Equal(t, "Test Name", m["name"])
}

func TestStructToMap_SkipsIgnoredFields(t *testing.T) {
	type withIgnored struct {
		ID    id.ID  `db:"id"`
		Lines []int  `db:"-"`
		Name  string `db:"name"`
	}

	m := StructToMap(withIgnored{ID: id.New(), Lines: []int{1}, Name: "x"})

	assert.Contains(t, m, "id")
	assert.Contains(t, m, "name")
	assert.NotContains(t, m, "-")
	assert.Len(t, m, 2)
}
